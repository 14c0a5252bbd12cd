package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicationClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/applications/42":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"42","name":"claims-portal"}`))
		case "/applications/99":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewApplicationClient(Config{BaseURL: server.URL})

	t.Run("known application", func(t *testing.T) {
		info, err := client.GetApplicationInfo(context.Background(), "42")
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "42", info.ID)
		assert.Equal(t, "claims-portal", info.Name)
	})

	t.Run("unknown application is nil without error", func(t *testing.T) {
		info, err := client.GetApplicationInfo(context.Background(), "99")
		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("server failure", func(t *testing.T) {
		_, err := client.GetApplicationInfo(context.Background(), "boom")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		down := NewApplicationClient(Config{BaseURL: "http://127.0.0.1:1"})
		_, err := down.GetApplicationInfo(context.Background(), "42")
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestTemplateClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/templates/T-1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"errors":[]}`))
		case "/templates/T-2":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"errors":[{"field":"templateId","message":"unknown template"}]}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	client := NewTemplateClient(Config{BaseURL: server.URL})

	t.Run("clean template", func(t *testing.T) {
		errs, err := client.GetLetterTemplate(context.Background(), "T-1")
		require.NoError(t, err)
		assert.Empty(t, errs)
	})

	t.Run("template with findings", func(t *testing.T) {
		errs, err := client.GetLetterTemplate(context.Background(), "T-2")
		require.NoError(t, err)
		require.Len(t, errs, 1)
		assert.Equal(t, "templateId", errs[0].Field)
		assert.Equal(t, "unknown template", errs[0].Message)
	})

	t.Run("server failure", func(t *testing.T) {
		_, err := client.GetLetterTemplate(context.Background(), "T-500")
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewApplicationClient(Config{BaseURL: server.URL})

	// Default breaker settings trip after more than five consecutive
	// failures; later calls fail fast without reaching the server.
	for i := 0; i < 10; i++ {
		_, err := client.GetApplicationInfo(context.Background(), "42")
		require.Error(t, err)
	}
	assert.Less(t, hits, 10)
}
