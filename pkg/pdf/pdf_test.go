package pdf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Run("returns pdf bytes on 200", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.Write([]byte("%PDF-1.4 content"))
		}))
		defer server.Close()

		client := NewClient(server.URL, nil)
		pdf, err := client.Render(context.Background(), "invoice", map[string]string{"code": "I-2026-000001"})
		require.NoError(t, err)
		assert.Contains(t, string(pdf), "%PDF")
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "template error", http.StatusUnprocessableEntity)
		}))
		defer server.Close()

		client := NewClient(server.URL, nil)
		_, err := client.Render(context.Background(), "quote", nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "422")
	})

	t.Run("empty body is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewClient(server.URL, nil)
		_, err := client.Render(context.Background(), "quote", nil)
		assert.Error(t, err)
	})

	t.Run("missing render url is an error", func(t *testing.T) {
		client := NewClient("", nil)
		_, err := client.Render(context.Background(), "quote", nil)
		assert.Error(t, err)
	})
}
