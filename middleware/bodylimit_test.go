package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyLimitMiddleware(t *testing.T) {
	t.Run("rejects a zero or negative limit", func(t *testing.T) {
		_, err := BodyLimitMiddleware(BodyLimitConfig{})
		assert.ErrorIs(t, err, ErrInvalidMaxBytes)

		_, err = BodyLimitMiddleware(BodyLimitConfig{MaxBytes: -1})
		assert.ErrorIs(t, err, ErrInvalidMaxBytes)
	})

	t.Run("passes bodies under the limit", func(t *testing.T) {
		mw, err := BodyLimitMiddleware(BodyLimitConfig{MaxBytes: 16})
		require.NoError(t, err)

		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, readErr := io.ReadAll(r.Body)
			require.NoError(t, readErr)
			w.Write(body)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small body")))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "small body", w.Body.String())
	})

	t.Run("fails reads beyond the limit", func(t *testing.T) {
		mw, err := BodyLimitMiddleware(BodyLimitConfig{MaxBytes: 4})
		require.NoError(t, err)

		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, readErr := io.ReadAll(r.Body)

			var maxBytesErr *http.MaxBytesError
			require.ErrorAs(t, readErr, &maxBytesErr)
			assert.Equal(t, int64(4), maxBytesErr.Limit)

			w.WriteHeader(http.StatusRequestEntityTooLarge)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a body beyond the limit")))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("error can be classified with errors.As downstream", func(t *testing.T) {
		mw, err := BodyLimitMiddleware(BodyLimitConfig{MaxBytes: 1})
		require.NoError(t, err)

		var sawMaxBytes bool
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, readErr := io.ReadAll(r.Body)
			var maxBytesErr *http.MaxBytesError
			sawMaxBytes = errors.As(readErr, &maxBytesErr)
			w.WriteHeader(http.StatusOK)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("xx")))
		assert.True(t, sawMaxBytes)
	})
}
