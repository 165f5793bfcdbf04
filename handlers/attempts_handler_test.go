package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-cascade/models"
	"go.uber.org/zap"
)

// MockAttemptRepository is a mock implementation of repositories.AttemptRepository
type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) Insert(ctx context.Context, attempt *models.CascadeAttempt) error {
	return m.Called(ctx, attempt).Error(0)
}

func (m *MockAttemptRepository) GetByCascadeID(ctx context.Context, cascadeID string) ([]*models.CascadeAttempt, error) {
	args := m.Called(ctx, cascadeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CascadeAttempt), args.Error(1)
}

func (m *MockAttemptRepository) GetByRequestID(ctx context.Context, requestID string) ([]*models.CascadeAttempt, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CascadeAttempt), args.Error(1)
}

func (m *MockAttemptRepository) ListRecent(ctx context.Context, provider string, limit, offset int) ([]*models.CascadeAttempt, error) {
	args := m.Called(ctx, provider, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CascadeAttempt), args.Error(1)
}

// serve routes the request through chi so URL parameters resolve
func serve(handler *AttemptsHandler, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/api/v1/cascades/{id}/attempts", handler.HandleByCascade)
	r.Get("/api/v1/requests/{id}/attempts", handler.HandleByRequest)
	r.Get("/api/v1/attempts", handler.HandleList)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func sampleTrail(cascadeID string) []*models.CascadeAttempt {
	first := models.NewCascadeAttempt(cascadeID, "gemini", "gemini-native", 1).
		WithStatus(503).
		WithFailure("retryable", "service unavailable")
	second := models.NewCascadeAttempt(cascadeID, "groq", "openai-compatible", 1).WithStatus(200)
	return []*models.CascadeAttempt{first, second}
}

func TestAttemptsHandler_ByCascade(t *testing.T) {
	t.Run("returns the trail in order", func(t *testing.T) {
		repo := new(MockAttemptRepository)
		repo.On("GetByCascadeID", mock.Anything, "c-1").Return(sampleTrail("c-1"), nil)

		w := serve(NewAttemptsHandler(repo, zap.NewNop()), "/api/v1/cascades/c-1/attempts")

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Data []models.CascadeAttempt `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		require.Len(t, response.Data, 2)
		assert.Equal(t, "gemini", response.Data[0].Provider)
		assert.Equal(t, "retryable", response.Data[0].Outcome)
		assert.Equal(t, models.OutcomeSuccess, response.Data[1].Outcome)
		repo.AssertExpectations(t)
	})

	t.Run("unknown cascade is not found", func(t *testing.T) {
		repo := new(MockAttemptRepository)
		repo.On("GetByCascadeID", mock.Anything, "missing").Return([]*models.CascadeAttempt{}, nil)

		w := serve(NewAttemptsHandler(repo, zap.NewNop()), "/api/v1/cascades/missing/attempts")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("repository failure is internal", func(t *testing.T) {
		repo := new(MockAttemptRepository)
		repo.On("GetByCascadeID", mock.Anything, "c-1").Return(nil, errors.New("connection reset"))

		w := serve(NewAttemptsHandler(repo, zap.NewNop()), "/api/v1/cascades/c-1/attempts")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection reset")
	})
}

func TestAttemptsHandler_ByRequest(t *testing.T) {
	repo := new(MockAttemptRepository)
	trail := sampleTrail("c-3")
	for _, a := range trail {
		a.WithRequest("req-5")
	}
	repo.On("GetByRequestID", mock.Anything, "req-5").Return(trail, nil)

	w := serve(NewAttemptsHandler(repo, zap.NewNop()), "/api/v1/requests/req-5/attempts")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"request_id":"req-5"`)
	repo.AssertExpectations(t)
}

func TestAttemptsHandler_List(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		provider   string
		limit      int
		offset     int
		wantStatus int
	}{
		{name: "defaults", target: "/api/v1/attempts", limit: 50, wantStatus: http.StatusOK},
		{name: "provider filter", target: "/api/v1/attempts?provider=groq&limit=10&offset=20", provider: "groq", limit: 10, offset: 20, wantStatus: http.StatusOK},
		{name: "limit too large", target: "/api/v1/attempts?limit=501", wantStatus: http.StatusBadRequest},
		{name: "limit zero", target: "/api/v1/attempts?limit=0", wantStatus: http.StatusBadRequest},
		{name: "negative offset", target: "/api/v1/attempts?offset=-1", wantStatus: http.StatusBadRequest},
		{name: "non numeric", target: "/api/v1/attempts?limit=ten", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockAttemptRepository)
			if tt.wantStatus == http.StatusOK {
				repo.On("ListRecent", mock.Anything, tt.provider, tt.limit, tt.offset).Return(nil, nil)
			}

			w := serve(NewAttemptsHandler(repo, zap.NewNop()), tt.target)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.JSONEq(t, `{"data":[]}`, w.Body.String())
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestAttemptsHandler_PersistenceDisabled(t *testing.T) {
	handler := NewAttemptsHandler(nil, zap.NewNop())

	for _, target := range []string{
		"/api/v1/cascades/c-1/attempts",
		"/api/v1/requests/r-1/attempts",
		"/api/v1/attempts",
	} {
		w := serve(handler, target)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, target)
	}
}
