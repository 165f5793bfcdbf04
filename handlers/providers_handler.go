package handlers

import (
	"net/http"

	"github.com/upb/llm-cascade/internal/observability"
	"github.com/upb/llm-cascade/services/providers"
	"github.com/upb/llm-cascade/utils"
	"go.uber.org/zap"
)

// ProviderStatus describes one catalog entry as seen by this server
type ProviderStatus struct {
	Name          string                       `json:"name"`
	Model         string                       `json:"model"`
	Protocol      providers.ProtocolKind       `json:"protocol"`
	HasCredential bool                         `json:"has_credential"`
	Stats         *observability.ProviderStats `json:"stats,omitempty"`
}

// StatsSource exposes per-provider attempt counters
type StatsSource interface {
	Snapshot() map[string]observability.ProviderStats
}

// ProvidersHandler lists the catalog
type ProvidersHandler struct {
	catalog     *providers.Catalog
	credentials providers.CredentialSet
	stats       StatsSource
	logger      *zap.Logger
}

// NewProvidersHandler creates a new ProvidersHandler. stats may be nil.
func NewProvidersHandler(catalog *providers.Catalog, credentials providers.CredentialSet, stats StatsSource, logger *zap.Logger) *ProvidersHandler {
	return &ProvidersHandler{
		catalog:     catalog,
		credentials: credentials,
		stats:       stats,
		logger:      logger,
	}
}

// HandleList handles GET /api/v1/providers. Entries are returned in cascade order.
func (h *ProvidersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var snapshot map[string]observability.ProviderStats
	if h.stats != nil {
		snapshot = h.stats.Snapshot()
	}

	descs := h.catalog.Providers()
	result := make([]ProviderStatus, 0, len(descs))
	for _, desc := range descs {
		_, ok := h.credentials.Lookup(desc.Name)
		status := ProviderStatus{
			Name:          desc.Name,
			Model:         desc.Model,
			Protocol:      desc.Protocol,
			HasCredential: ok,
		}
		if stats, found := snapshot[desc.Name]; found {
			status.Stats = &stats
		}
		result = append(result, status)
	}

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write providers response", zap.Error(err))
	}
}
