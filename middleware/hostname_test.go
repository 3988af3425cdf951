package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostnameMiddleware(t *testing.T) {
	serve := func(t *testing.T, cfg HostnameConfig) string {
		t.Helper()

		mw, err := HostnameMiddleware(cfg)
		require.NoError(t, err)

		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		return w.Header().Get("X-Server-Hostname")
	}

	t.Run("explicit hostname wins", func(t *testing.T) {
		assert.Equal(t, "web-1", serve(t, HostnameConfig{Hostname: "web-1"}))
	})

	t.Run("first non-empty environment variable wins", func(t *testing.T) {
		t.Setenv("TEST_POD_NAME", "")
		t.Setenv("TEST_NODE_NAME", "node-7")

		got := serve(t, HostnameConfig{HostnameEnv: []string{"TEST_POD_NAME", "TEST_NODE_NAME"}})
		assert.Equal(t, "node-7", got)
	})

	t.Run("explicit hostname beats environment", func(t *testing.T) {
		t.Setenv("TEST_POD_NAME", "pod-3")

		got := serve(t, HostnameConfig{Hostname: "web-1", HostnameEnv: []string{"TEST_POD_NAME"}})
		assert.Equal(t, "web-1", got)
	})

	t.Run("falls back to the os hostname", func(t *testing.T) {
		expected, err := os.Hostname()
		require.NoError(t, err)

		assert.Equal(t, expected, serve(t, HostnameConfig{}))
	})
}
