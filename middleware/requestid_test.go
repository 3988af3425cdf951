package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertUUIDVersion parses id and checks its RFC 9562 version field.
func assertUUIDVersion(t *testing.T, id string, version byte) {
	t.Helper()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err, "not a UUID: %q", id)
	assert.Equal(t, uuid.Version(version), parsed.Version())
}

func TestRequestIDMiddleware(t *testing.T) {
	serve := func(cfg RequestIDConfig, mutate func(*http.Request)) (*httptest.ResponseRecorder, *http.Request) {
		var seen *http.Request
		handler := RequestIDMiddleware(cfg)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			seen = r
		}))

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		if mutate != nil {
			mutate(req)
		}

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w, seen
	}

	t.Run("stamps a v4 id on request, response and context", func(t *testing.T) {
		w, seen := serve(RequestIDConfig{}, nil)

		id := w.Header().Get("X-Request-ID")
		assertUUIDVersion(t, id, 4)
		assert.Equal(t, id, seen.Header.Get("X-Request-ID"))
		assert.Equal(t, id, RequestIDFromContext(seen.Context()))
	})

	t.Run("ignores an inbound id unless trusted", func(t *testing.T) {
		w, seen := serve(RequestIDConfig{}, func(r *http.Request) {
			r.Header.Set("X-Request-ID", "inbound-id")
		})

		id := w.Header().Get("X-Request-ID")
		assert.NotEqual(t, "inbound-id", id)
		assertUUIDVersion(t, id, 4)
		assert.Equal(t, id, seen.Header.Get("X-Request-ID"))
	})

	t.Run("trusted inbound id is propagated unchanged", func(t *testing.T) {
		w, seen := serve(RequestIDConfig{TrustIncoming: true}, func(r *http.Request) {
			r.Header.Set("X-Request-ID", "inbound-id")
		})

		assert.Equal(t, "inbound-id", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "inbound-id", RequestIDFromContext(seen.Context()))
	})

	t.Run("trusted but absent falls through to the generator", func(t *testing.T) {
		w, _ := serve(RequestIDConfig{TrustIncoming: true}, nil)
		assertUUIDVersion(t, w.Header().Get("X-Request-ID"), 4)
	})

	t.Run("custom header and generator", func(t *testing.T) {
		w, seen := serve(RequestIDConfig{
			HeaderName:   "X-Trace-ID",
			GenerateFunc: func(_ *http.Request) string { return "trace-1" },
		}, nil)

		assert.Equal(t, "trace-1", w.Header().Get("X-Trace-ID"))
		assert.Equal(t, "trace-1", seen.Header.Get("X-Trace-ID"))
		assert.Empty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("generator sees the request", func(t *testing.T) {
		w, _ := serve(RequestIDConfig{
			GenerateFunc: func(r *http.Request) string { return "id-for" + r.URL.Path },
		}, nil)

		assert.Equal(t, "id-for/orders", w.Header().Get("X-Request-ID"))
	})

	t.Run("blank id stamps nothing", func(t *testing.T) {
		w, seen := serve(RequestIDConfig{
			GenerateFunc: func(_ *http.Request) string { return "" },
		}, nil)

		require.NotNil(t, seen, "handler must still run")
		assert.Empty(t, w.Header().Get("X-Request-ID"))
		assert.Empty(t, seen.Header.Get("X-Request-ID"))
		assert.Empty(t, RequestIDFromContext(seen.Context()))
	})

	t.Run("ids differ across requests", func(t *testing.T) {
		w1, _ := serve(RequestIDConfig{}, nil)
		w2, _ := serve(RequestIDConfig{}, nil)

		id1 := w1.Header().Get("X-Request-ID")
		id2 := w2.Header().Get("X-Request-ID")
		require.NotEmpty(t, id1)
		assert.NotEqual(t, id1, id2)
	})
}

func TestRequestIDFromContext(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestGenerateUUIDv4(t *testing.T) {
	assertUUIDVersion(t, GenerateUUIDv4(nil), 4)
	assert.NotEqual(t, GenerateUUIDv4(nil), GenerateUUIDv4(nil))
}

func TestGenerateUUIDv7(t *testing.T) {
	first := GenerateUUIDv7(nil)
	assertUUIDVersion(t, first, 7)

	// The embedded millisecond timestamp makes later IDs sort after
	// earlier ones.
	time.Sleep(5 * time.Millisecond)
	assert.Less(t, first, GenerateUUIDv7(nil))
}
