package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeoutMiddleware(t *testing.T) {
	t.Run("rejects a zero or negative duration", func(t *testing.T) {
		_, err := TimeoutMiddleware(TimeoutConfig{})
		assert.ErrorIs(t, err, ErrInvalidTimeout)

		_, err = TimeoutMiddleware(TimeoutConfig{Duration: -time.Second})
		assert.ErrorIs(t, err, ErrInvalidTimeout)
	})

	t.Run("overrun returns the JSON 503", func(t *testing.T) {
		mw, err := TimeoutMiddleware(TimeoutConfig{
			Duration: 10 * time.Millisecond,
			Message:  "upstream too slow",
		})
		require.NoError(t, err)

		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(time.Second):
				w.WriteHeader(http.StatusOK)
			case <-r.Context().Done():
			}
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"message":"upstream too slow","error":"Service Unavailable","statusCode":503}`, w.Body.String())
	})

	t.Run("default timeout message", func(t *testing.T) {
		mw, err := TimeoutMiddleware(TimeoutConfig{Duration: 5 * time.Millisecond})
		require.NoError(t, err)

		handler := mw(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

		assert.JSONEq(t, `{"message":"request timed out","error":"Service Unavailable","statusCode":503}`, w.Body.String())
	})

	t.Run("in-time handler passes through untouched", func(t *testing.T) {
		mw, err := TimeoutMiddleware(TimeoutConfig{Duration: time.Second})
		require.NoError(t, err)

		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("X-Custom", "kept")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("fast"))
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fast", nil))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "kept", w.Header().Get("X-Custom"))
		assert.Equal(t, "fast", w.Body.String())
	})

	t.Run("buffered output is dropped on timeout", func(t *testing.T) {
		mw, err := TimeoutMiddleware(TimeoutConfig{Duration: 10 * time.Millisecond})
		require.NoError(t, err)

		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Partial", "leaked")
			_, _ = w.Write([]byte("partial body"))
			<-r.Context().Done()
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Empty(t, w.Header().Get("X-Partial"))
		assert.NotContains(t, w.Body.String(), "partial body")
	})

	t.Run("late writes fail with ErrHandlerTimeout", func(t *testing.T) {
		mw, err := TimeoutMiddleware(TimeoutConfig{Duration: 5 * time.Millisecond})
		require.NoError(t, err)

		release := make(chan struct{})
		writeErr := make(chan error, 1)
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			<-release
			_, err := w.Write([]byte("late"))
			writeErr <- err
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

		// ServeHTTP has returned, so the writer is already abandoned.
		close(release)
		assert.ErrorIs(t, <-writeErr, http.ErrHandlerTimeout)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "late")
	})

	t.Run("first WriteHeader wins", func(t *testing.T) {
		mw, err := TimeoutMiddleware(TimeoutConfig{Duration: time.Second})
		require.NoError(t, err)

		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			w.WriteHeader(http.StatusInternalServerError)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("handler panics propagate", func(t *testing.T) {
		mw, err := TimeoutMiddleware(TimeoutConfig{Duration: time.Second})
		require.NoError(t, err)

		handler := mw(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			panic("boom")
		}))

		assert.PanicsWithValue(t, "boom", func() {
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})
}
