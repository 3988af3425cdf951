package httpd

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tetherto/svc-facs-httpd/routetable"
)

func TestParams(t *testing.T) {
	t.Run("returns nil without parameters", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		assert.Nil(t, Params(req))
	})

	t.Run("returns the stored parameters", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
		req = SetParams(req, routetable.Params{"id": "42"})

		assert.Equal(t, routetable.Params{"id": "42"}, Params(req))
	})

	t.Run("wildcard remainder is stored under star", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/static/css/site.css", nil)
		req = SetParams(req, routetable.Params{"*": "css/site.css"})

		val, ok := Param(req, "*")
		assert.True(t, ok)
		assert.Equal(t, "css/site.css", val)
	})
}

func TestParam(t *testing.T) {
	t.Run("returns a single parameter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
		req = SetParams(req, routetable.Params{"id": "42", "tab": "posts"})

		val, ok := Param(req, "id")
		assert.True(t, ok)
		assert.Equal(t, "42", val)
	})

	t.Run("reports a missing parameter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
		req = SetParams(req, routetable.Params{"id": "42"})

		val, ok := Param(req, "name")
		assert.False(t, ok)
		assert.Empty(t, val)
	})

	t.Run("reports missing without parameters", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users", nil)

		val, ok := Param(req, "id")
		assert.False(t, ok)
		assert.Empty(t, val)
	})
}

func TestSetParams(t *testing.T) {
	t.Run("empty set leaves the request untouched", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		same := SetParams(req, nil)
		assert.Same(t, req, same)

		same = SetParams(req, routetable.Params{})
		assert.Same(t, req, same)
	})

	t.Run("does not mutate the original request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/42", nil)

		withP := SetParams(req, routetable.Params{"id": "42"})
		assert.NotSame(t, req, withP)
		assert.Nil(t, Params(req))
	})
}
