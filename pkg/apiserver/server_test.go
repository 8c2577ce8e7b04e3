package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alennartz/toolscript/pkg/catalogue"
	"github.com/alennartz/toolscript/pkg/executor"
	"github.com/alennartz/toolscript/pkg/httpgateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDispatcher struct{}

func (stubDispatcher) Dispatch(context.Context, string, string, []httpgateway.Pair, []httpgateway.Pair, []byte) (int, []byte, error) {
	return 200, []byte(`{"ok":true}`), nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cat := catalogue.New(&catalogue.Manifest{})
	exec := executor.New(executor.Config{
		Catalogue: cat,
		HTTP:      httpgateway.NewWithDispatcher(stubDispatcher{}),
	})
	return New(exec, nil)
}

func TestHandleExecute_ReturnsResult(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"script": `return 1 + 1`})
	req := httptest.NewRequest(http.MethodPost, "/execute_script", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp executeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(2), resp.Result)
}

func TestHandleExecute_MalformedBody(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/execute_script", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleExecute_ScriptErrorMapsToInternal(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"script": `error("boom")`})
	req := httptest.NewRequest(http.MethodPost, "/execute_script", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestHandleDocs(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
