package providers

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// ErrProviderNotFound is returned when a provider is not in the catalog
	ErrProviderNotFound = errors.New("provider not found")

	// ErrDuplicateProvider is returned when two descriptors share a name
	ErrDuplicateProvider = errors.New("duplicate provider")

	// ErrEmptyCatalog is returned when a catalog has no providers
	ErrEmptyCatalog = errors.New("catalog has no providers")
)

// AccountIDPlaceholder is replaced with the account id for cloudflare-native providers
const AccountIDPlaceholder = "{account_id}"

// Catalog is the ordered, read-only list of providers.
// The order is the failover sequence.
type Catalog struct {
	providers []ProviderDescriptor
	index     map[string]int
}

// NewCatalog creates a catalog from descriptors in cascade order
func NewCatalog(descs ...ProviderDescriptor) (*Catalog, error) {
	if len(descs) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		providers: make([]ProviderDescriptor, 0, len(descs)),
		index:     make(map[string]int, len(descs)),
	}

	for i, d := range descs {
		if d.Name == "" {
			return nil, fmt.Errorf("provider %d: name cannot be empty", i)
		}
		if _, exists := c.index[d.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, d.Name)
		}
		if !d.Protocol.Valid() {
			return nil, fmt.Errorf("provider %s: unknown protocol %q", d.Name, d.Protocol)
		}
		if d.BaseURL == "" {
			return nil, fmt.Errorf("provider %s: base URL cannot be empty", d.Name)
		}

		c.index[d.Name] = len(c.providers)
		c.providers = append(c.providers, d)
	}

	return c, nil
}

// MustCatalog is NewCatalog that panics on error, for static tables
func MustCatalog(descs ...ProviderDescriptor) *Catalog {
	c, err := NewCatalog(descs...)
	if err != nil {
		panic(err)
	}
	return c
}

// Providers returns a copy of the descriptors in cascade order
func (c *Catalog) Providers() []ProviderDescriptor {
	out := make([]ProviderDescriptor, len(c.providers))
	copy(out, c.providers)
	return out
}

// Get retrieves a descriptor by name
func (c *Catalog) Get(name string) (ProviderDescriptor, error) {
	i, exists := c.index[name]
	if !exists {
		return ProviderDescriptor{}, ErrProviderNotFound
	}
	return c.providers[i], nil
}

// Names returns provider names in cascade order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.providers))
	for i, d := range c.providers {
		names[i] = d.Name
	}
	return names
}

// Len returns the number of providers
func (c *Catalog) Len() int {
	return len(c.providers)
}

// DefaultCatalog returns the production cascade order
func DefaultCatalog() *Catalog {
	return MustCatalog(
		ProviderDescriptor{
			Name:     "cerebras",
			BaseURL:  "https://api.cerebras.ai/v1",
			Endpoint: "/chat/completions",
			Model:    "llama-3.1-70b-chat",
			Protocol: ProtocolOpenAICompatible,
		},
		ProviderDescriptor{
			Name:     "gemini",
			BaseURL:  "https://generativelanguage.googleapis.com/v1beta",
			Endpoint: "/models/gemini-2.5-flash-lite:generateContent",
			Model:    "gemini-2.5-flash-lite",
			Protocol: ProtocolGeminiNative,
		},
		ProviderDescriptor{
			Name:     "deepseek",
			BaseURL:  "https://api.deepseek.com/v1",
			Endpoint: "/chat/completions",
			Model:    "deepseek-r1-0528",
			Protocol: ProtocolOpenAICompatible,
		},
		ProviderDescriptor{
			Name:     "openrouter",
			BaseURL:  "https://openrouter.ai/api/v1",
			Endpoint: "/chat/completions",
			Model:    "deepseek/deepseek-r1",
			Protocol: ProtocolOpenAICompatible,
		},
		ProviderDescriptor{
			Name:     "mistral",
			BaseURL:  "https://api.mistral.ai/v1",
			Endpoint: "/chat/completions",
			Model:    "mistral-large-3",
			Protocol: ProtocolOpenAICompatible,
		},
		ProviderDescriptor{
			Name:     "together",
			BaseURL:  "https://api.together.xyz/v1",
			Endpoint: "/chat/completions",
			Model:    "meta-llama/Llama-3.1-70b-instruct",
			Protocol: ProtocolOpenAICompatible,
		},
		ProviderDescriptor{
			Name:     "groq",
			BaseURL:  "https://api.groq.com/openai/v1",
			Endpoint: "/chat/completions",
			Model:    "llama-3.1-70b-versatile",
			Protocol: ProtocolOpenAICompatible,
		},
		ProviderDescriptor{
			Name:     "cloudflare",
			BaseURL:  "https://api.cloudflare.com/client/v4/accounts/" + AccountIDPlaceholder + "/ai/run",
			Endpoint: "/@cf/meta/llama-3.1-8b-instruct",
			Model:    "@cf/meta/llama-3.1-8b-instruct",
			Protocol: ProtocolCloudflareNative,
		},
	)
}

// catalogFile is the YAML layout accepted by LoadCatalogFile
type catalogFile struct {
	Providers []ProviderDescriptor `yaml:"providers"`
}

// ParseCatalog decodes a YAML catalog document
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return NewCatalog(file.Providers...)
}

// LoadCatalogFile reads a catalog from a YAML file
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}
