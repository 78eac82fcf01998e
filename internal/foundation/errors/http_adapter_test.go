package errors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPErrorAdapter_StatusCodeFor(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, http.StatusOK},
		{"validation", ValidationError("invalid input").Build(), http.StatusBadRequest},
		{"query", QueryError("bad query").Build(), http.StatusBadRequest},
		{"not found", NewError(CategoryNotFound, "missing").Build(), http.StatusNotFound},
		{"connection", ConnectionError("nats down").Build(), http.StatusBadGateway},
		{"encoding", EncodingError("corrupt").Build(), http.StatusUnprocessableEntity},
		{"closed", ClosedError("store closed").Build(), http.StatusServiceUnavailable},
		{"internal", InternalError("bug").Build(), http.StatusInternalServerError},
		{"unclassified", errors.New("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.StatusCodeFor(tt.err))
		})
	}
}

func TestHTTPErrorAdapter_WriteErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	t.Run("nil error", func(t *testing.T) {
		w := httptest.NewRecorder()
		adapter.WriteErrorResponse(w, req, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("classified error", func(t *testing.T) {
		w := httptest.NewRecorder()
		adapter.WriteErrorResponse(w, req, ConnectionError("stream unreachable").WithContext("url", "nats://localhost:4222").Build())

		require.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response HTTPErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "stream unreachable", response.Error)
		assert.Equal(t, "connection", response.Code)
		assert.True(t, response.Retryable)
		assert.Equal(t, "nats://localhost:4222", response.Details["url"])
	})
}

func TestHTTPErrorAdapter_FormatErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())

	assert.Empty(t, adapter.FormatErrorResponse(nil).Error)

	resp := adapter.FormatErrorResponse(ValidationError("invalid bound").Build())
	assert.Equal(t, "validation", resp.Code)
	assert.False(t, resp.Retryable)
	assert.Nil(t, resp.Details)

	plain := adapter.FormatErrorResponse(errors.New("plain"))
	assert.Equal(t, "plain", plain.Error)
	assert.Empty(t, plain.Code)
}
