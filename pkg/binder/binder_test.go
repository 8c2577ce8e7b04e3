package binder

import (
	"context"
	"testing"

	"github.com/alennartz/toolscript/pkg/catalogue"
	"github.com/alennartz/toolscript/pkg/httpgateway"
	"github.com/alennartz/toolscript/pkg/mcpgateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func newTestCatalogue(t *testing.T, fns []catalogue.FunctionDescriptor, servers []catalogue.McpServerDescriptor) *catalogue.Catalogue {
	t.Helper()
	return catalogue.New(&catalogue.Manifest{
		Apis: []catalogue.ApiDescriptor{
			{Name: "petstore", BaseURL: "https://petstore.example"},
		},
		Functions:  fns,
		McpServers: servers,
	})
}

type recordingDispatcher struct {
	lastURL   string
	lastQuery []httpgateway.Pair
	lastBody  []byte
	respBody  []byte
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ string, fullURL string, query, _ []httpgateway.Pair, body []byte) (int, []byte, error) {
	d.lastURL = fullURL
	d.lastQuery = query
	d.lastBody = body
	resp := d.respBody
	if resp == nil {
		resp = []byte(`{"ok":true}`)
	}
	return 200, resp, nil
}

func newBinder(t *testing.T, catalog *catalogue.Catalogue, dispatcher *recordingDispatcher, mcp *mcpgateway.Gateway) (*Binder, *lua.LState) {
	t.Helper()
	L := lua.NewState()
	t.Cleanup(L.Close)

	gw := httpgateway.NewWithDispatcher(dispatcher)
	b := New(context.Background(), catalog, gw, mcp, NewCallCounter(100), map[string]*httpgateway.Credential{})
	sdk := L.NewTable()
	require.NoError(t, b.BindAll(L, sdk))
	L.SetGlobal("sdk", sdk)
	return b, L
}

func TestCallHTTPFunction_GetWithQueryParams(t *testing.T) {
	t.Parallel()
	fn := catalogue.FunctionDescriptor{
		Name: "list_pets", API: "petstore", Method: catalogue.MethodGet, PathTemplate: "/pets",
		Parameters: []catalogue.ParamDescriptor{
			{Name: "limit", Location: catalogue.LocationQuery, Kind: catalogue.KindInteger},
		},
	}
	catalog := newTestCatalogue(t, []catalogue.FunctionDescriptor{fn}, nil)
	d := &recordingDispatcher{}
	_, L := newBinder(t, catalog, d, nil)

	require.NoError(t, L.DoString(`return sdk.list_pets({ limit = 5 })`))
	assert.Equal(t, "https://petstore.example/pets", d.lastURL)
	require.Len(t, d.lastQuery, 1)
	assert.Equal(t, "limit", d.lastQuery[0].Name)
	assert.Equal(t, "5", d.lastQuery[0].Value)
}

func TestCallHTTPFunction_NoParamsShape(t *testing.T) {
	t.Parallel()
	fn := catalogue.FunctionDescriptor{
		Name: "ping", API: "petstore", Method: catalogue.MethodGet, PathTemplate: "/ping",
	}
	catalog := newTestCatalogue(t, []catalogue.FunctionDescriptor{fn}, nil)
	d := &recordingDispatcher{}
	_, L := newBinder(t, catalog, d, nil)

	require.NoError(t, L.DoString(`return sdk.ping()`))
	assert.Equal(t, "https://petstore.example/ping", d.lastURL)
}

func TestCallHTTPFunction_ParamsAndBodyShape(t *testing.T) {
	t.Parallel()
	fn := catalogue.FunctionDescriptor{
		Name: "update_pet", API: "petstore", Method: catalogue.MethodPut, PathTemplate: "/pets/{pet_id}",
		Parameters: []catalogue.ParamDescriptor{
			{Name: "pet_id", Location: catalogue.LocationPath, Kind: catalogue.KindString, Required: true},
		},
		RequestBody: &catalogue.RequestBodyDescriptor{ContentType: "application/json", Required: true},
	}
	catalog := newTestCatalogue(t, []catalogue.FunctionDescriptor{fn}, nil)
	d := &recordingDispatcher{}
	_, L := newBinder(t, catalog, d, nil)

	require.NoError(t, L.DoString(`return sdk.update_pet({ pet_id = "42" }, { name = "Buddy" })`))
	assert.Equal(t, "https://petstore.example/pets/42", d.lastURL)
	assert.Contains(t, string(d.lastBody), `"name":"Buddy"`)
}

func TestCallHTTPFunction_FrozenParamBypassesVMSignature(t *testing.T) {
	t.Parallel()
	frozen := "secret-tenant"
	fn := catalogue.FunctionDescriptor{
		Name: "tenant_scoped", API: "petstore", Method: catalogue.MethodGet, PathTemplate: "/pets",
		Parameters: []catalogue.ParamDescriptor{
			{Name: "tenant", Location: catalogue.LocationHeader, Kind: catalogue.KindString, FrozenValue: &frozen},
		},
	}
	catalog := newTestCatalogue(t, []catalogue.FunctionDescriptor{fn}, nil)
	d := &recordingDispatcher{}
	_, L := newBinder(t, catalog, d, nil)

	// Frozen-only params are invisible, so this is a no-args call.
	require.NoError(t, L.DoString(`return sdk.tenant_scoped()`))
	assert.Equal(t, "https://petstore.example/pets", d.lastURL)
}

func TestCallHTTPFunction_MissingRequiredParamRaises(t *testing.T) {
	t.Parallel()
	fn := catalogue.FunctionDescriptor{
		Name: "get_pet", API: "petstore", Method: catalogue.MethodGet, PathTemplate: "/pets/{pet_id}",
		Parameters: []catalogue.ParamDescriptor{
			{Name: "pet_id", Location: catalogue.LocationPath, Kind: catalogue.KindString, Required: true},
		},
	}
	catalog := newTestCatalogue(t, []catalogue.FunctionDescriptor{fn}, nil)
	d := &recordingDispatcher{}
	_, L := newBinder(t, catalog, d, nil)

	err := L.DoString(`return sdk.get_pet({})`)
	require.Error(t, err)
}

func TestCallCounter_CeilingExceeded(t *testing.T) {
	t.Parallel()
	fn := catalogue.FunctionDescriptor{Name: "ping", API: "petstore", Method: catalogue.MethodGet, PathTemplate: "/ping"}
	catalog := newTestCatalogue(t, []catalogue.FunctionDescriptor{fn}, nil)
	d := &recordingDispatcher{}

	L := lua.NewState()
	defer L.Close()
	gw := httpgateway.NewWithDispatcher(d)
	b := New(context.Background(), catalog, gw, nil, NewCallCounter(1), nil)
	sdk := L.NewTable()
	require.NoError(t, b.BindAll(L, sdk))
	L.SetGlobal("sdk", sdk)

	require.NoError(t, L.DoString(`sdk.ping()`))
	err := L.DoString(`sdk.ping()`)
	require.Error(t, err)
}

type fakeMcpClient struct {
	result mcpgateway.CallResult
}

func (f *fakeMcpClient) ListTools(context.Context) ([]mcpgateway.ToolInfo, error) { return nil, nil }
func (f *fakeMcpClient) CallTool(context.Context, string, map[string]any) (mcpgateway.CallResult, error) {
	return f.result, nil
}
func (f *fakeMcpClient) Close() error { return nil }

type fakeMcpDialer struct{ client *fakeMcpClient }

func (d *fakeMcpDialer) Dial(context.Context, mcpgateway.ServerConfig) (mcpgateway.Client, error) {
	return d.client, nil
}

func TestCallMcpTool_ReadFile(t *testing.T) {
	t.Parallel()
	client := &fakeMcpClient{result: mcpgateway.CallResult{
		Content: []mcpgateway.ContentItem{{Kind: mcpgateway.ContentText, Text: "file contents"}},
	}}
	sessions := mcpgateway.NewSessionMap(&fakeMcpDialer{client: client})
	require.NoError(t, sessions.ConnectAll(context.Background(), []mcpgateway.ServerConfig{
		{Name: "fs", Transport: mcpgateway.TransportStdio, Command: "fs-bin"},
	}, 1))
	mcpGw := mcpgateway.New(sessions)

	tool := catalogue.McpTool{
		Name: "read_file", Server: "fs",
		Params: []catalogue.McpToolParam{{Name: "path", LuauType: "string", Required: true}},
	}
	catalog := newTestCatalogue(t, nil, []catalogue.McpServerDescriptor{{Name: "fs", Tools: []catalogue.McpTool{tool}}})

	L := lua.NewState()
	defer L.Close()
	b := New(context.Background(), catalog, httpgateway.NewWithDispatcher(&recordingDispatcher{}), mcpGw, NewCallCounter(0), nil)
	sdk := L.NewTable()
	require.NoError(t, b.BindAll(L, sdk))
	L.SetGlobal("sdk", sdk)

	result, err := vmEval(L, `return sdk.fs.read_file({ path = "/tmp/x" })`)
	require.NoError(t, err)
	assert.Equal(t, "file contents", result.String())
}

func vmEval(L *lua.LState, src string) (lua.LValue, error) {
	top := L.GetTop()
	if err := L.DoString(src); err != nil {
		return nil, err
	}
	if L.GetTop() > top {
		return L.Get(-1), nil
	}
	return lua.LNil, nil
}
