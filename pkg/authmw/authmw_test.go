package authmw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_RejectsMissingBearerToken(t *testing.T) {
	t.Parallel()
	m := &Middleware{cfg: Config{Issuer: "https://issuer.example"}}

	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodPost, "/execute_script", nil)
	w := httptest.NewRecorder()
	m.Wrap(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestWrap_RejectsMalformedAuthorizationHeader(t *testing.T) {
	t.Parallel()
	m := &Middleware{cfg: Config{Issuer: "https://issuer.example"}}

	req := httptest.NewRequest(http.MethodPost, "/execute_script", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	m.Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
