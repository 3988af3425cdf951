package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentTypeMiddleware(t *testing.T) {
	t.Run("requires allowed types", func(t *testing.T) {
		_, err := ContentTypeMiddleware(ContentTypeConfig{})
		assert.ErrorIs(t, err, ErrNoAllowedTypes)
	})

	serve := func(t *testing.T, cfg ContentTypeConfig, method, contentType string) (*httptest.ResponseRecorder, bool) {
		t.Helper()

		mw, err := ContentTypeMiddleware(cfg)
		require.NoError(t, err)

		var nextCalled bool
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			nextCalled = true
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, "/items", nil)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		h.ServeHTTP(w, req)

		return w, nextCalled
	}

	jsonOnly := ContentTypeConfig{AllowedTypes: []string{"application/json"}}

	t.Run("allowed type passes", func(t *testing.T) {
		w, nextCalled := serve(t, jsonOnly, http.MethodPost, "application/json")

		assert.True(t, nextCalled)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("parameters and case are ignored", func(t *testing.T) {
		for _, ct := range []string{
			"application/json; charset=utf-8",
			"Application/JSON",
		} {
			_, nextCalled := serve(t, jsonOnly, http.MethodPost, ct)
			assert.True(t, nextCalled, ct)
		}
	})

	t.Run("disallowed type is rejected", func(t *testing.T) {
		w, nextCalled := serve(t, jsonOnly, http.MethodPost, "text/plain")

		assert.False(t, nextCalled)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		assert.JSONEq(t, `{"message":"unsupported media type","error":"Unsupported Media Type","statusCode":415}`, w.Body.String())
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		w, nextCalled := serve(t, jsonOnly, http.MethodPost, "")

		assert.False(t, nextCalled)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("malformed header is rejected", func(t *testing.T) {
		w, nextCalled := serve(t, jsonOnly, http.MethodPost, "text/")

		assert.False(t, nextCalled)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("unchecked methods skip validation", func(t *testing.T) {
		_, nextCalled := serve(t, jsonOnly, http.MethodGet, "")
		assert.True(t, nextCalled)

		_, nextCalled = serve(t, jsonOnly, http.MethodDelete, "text/plain")
		assert.True(t, nextCalled)
	})

	t.Run("custom method list replaces the default", func(t *testing.T) {
		cfg := ContentTypeConfig{
			AllowedTypes: []string{"application/json"},
			Methods:      []string{http.MethodDelete},
		}

		_, nextCalled := serve(t, cfg, http.MethodDelete, "text/plain")
		assert.False(t, nextCalled)

		_, nextCalled = serve(t, cfg, http.MethodPost, "text/plain")
		assert.True(t, nextCalled)
	})
}
