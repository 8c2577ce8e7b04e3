// Package binder implements the function binder (C7): it materializes
// catalogue descriptors as VM closures under a shared call-count budget,
// driving C2 validation and C3/C4 dispatch.
package binder

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/alennartz/toolscript/pkg/catalogue"
	"github.com/alennartz/toolscript/pkg/coerce"
	toolerrors "github.com/alennartz/toolscript/pkg/errors"
	"github.com/alennartz/toolscript/pkg/httpgateway"
	"github.com/alennartz/toolscript/pkg/mcpgateway"
	"github.com/alennartz/toolscript/pkg/validation"
	lua "github.com/yuin/gopher-lua"
)

// CallCounter is a single integer shared by every closure registered in one
// execution, incremented before each outbound HTTP or MCP call and
// compared against the configured ceiling (§3, §4.6 step 1).
type CallCounter struct {
	limit int64
	count atomic.Int64
}

// NewCallCounter constructs a CallCounter with the given per-execution
// ceiling. A non-positive limit means unlimited.
func NewCallCounter(limit int) *CallCounter {
	return &CallCounter{limit: int64(limit)}
}

// Take increments the counter and errors if doing so would pass the
// ceiling.
func (c *CallCounter) Take() error {
	if c.limit <= 0 {
		c.count.Add(1)
		return nil
	}
	if c.count.Add(1) > c.limit {
		return toolerrors.NewResourceExhaustedError(
			fmt.Sprintf("call-count ceiling of %d exceeded", c.limit), nil)
	}
	return nil
}

// Binder installs sdk closures for HTTP functions and MCP tools.
type Binder struct {
	ctx         context.Context
	catalog     *catalogue.Catalogue
	http        *httpgateway.Gateway
	mcp         *mcpgateway.Gateway
	counter     *CallCounter
	credentials map[string]*httpgateway.Credential
}

// New constructs a Binder. credentials maps API name to the credential to
// use for that API's requests within this execution; it is never exposed
// to the VM (§3).
func New(
	ctx context.Context,
	catalog *catalogue.Catalogue,
	http *httpgateway.Gateway,
	mcp *mcpgateway.Gateway,
	counter *CallCounter,
	credentials map[string]*httpgateway.Credential,
) *Binder {
	return &Binder{ctx: ctx, catalog: catalog, http: http, mcp: mcp, counter: counter, credentials: credentials}
}

// BindAll installs every catalogued HTTP function and MCP tool onto sdk.
func (b *Binder) BindAll(L *lua.LState, sdk *lua.LTable) error {
	for _, fn := range b.catalog.Functions() {
		fn := fn
		sdk.RawSetString(fn.Name, L.NewFunction(func(L *lua.LState) int {
			return b.callHTTPFunction(L, fn)
		}))
	}
	for _, server := range b.catalog.McpServers() {
		serverTable := L.NewTable()
		for _, tool := range server.Tools {
			tool := tool
			serverTable.RawSetString(tool.Name, L.NewFunction(func(L *lua.LState) int {
				return b.callMcpTool(L, tool)
			}))
		}
		sdk.RawSetString(server.Name, serverTable)
	}
	return nil
}

// callShape classifies a descriptor's calling convention (§4.6).
type callShape struct {
	hasVisibleParams bool
	hasBody          bool
}

func shapeOf(fn catalogue.FunctionDescriptor) callShape {
	return callShape{hasVisibleParams: len(fn.VisibleParameters()) > 0, hasBody: fn.HasBody()}
}

// callHTTPFunction implements the closure body for one HTTP function
// descriptor (§4.6 "Closure body").
func (b *Binder) callHTTPFunction(L *lua.LState, fn catalogue.FunctionDescriptor) int {
	if err := b.counter.Take(); err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}

	shape := shapeOf(fn)
	paramsIdx, bodyIdx := argIndicesFor(shape)

	var params *lua.LTable
	if paramsIdx > 0 {
		params = tableArgOrNil(L, paramsIdx, fn.Name)
	}

	req := httpgateway.Request{
		Method:       string(fn.Method),
		PathTemplate: fn.PathTemplate,
		PathParams:   map[string]string{},
	}

	api, err := b.catalog.API(fn.API)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	req.BaseURL = api.BaseURL
	if api.AuthScheme != nil {
		req.Auth = &httpgateway.AuthScheme{
			Kind:   httpgateway.AuthSchemeKind(api.AuthScheme.Kind),
			Header: api.AuthScheme.Header,
			Prefix: api.AuthScheme.Prefix,
		}
	}
	req.Credential = b.credentials[fn.API]

	for _, p := range fn.Parameters {
		value, present, err := resolveParamValue(L, params, p, fn.Name)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		if !present {
			continue
		}
		if !p.Frozen() {
			if err := validation.Validate(fn.Name, p.Name, p.Format, p.EnumValues, value); err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
		}
		switch p.Location {
		case catalogue.LocationPath:
			req.PathParams[p.Name] = value
		case catalogue.LocationQuery:
			req.Query = append(req.Query, httpgateway.Pair{Name: p.Name, Value: value})
		case catalogue.LocationHeader:
			req.Headers = append(req.Headers, httpgateway.Pair{Name: p.Name, Value: value})
		}
	}

	if shape.hasBody && bodyIdx > 0 {
		bodyVal := L.Get(bodyIdx)
		if bodyVal != lua.LNil {
			req.Body = coerce.ToJSON(bodyVal)
		}
	}

	result, err := b.http.Call(b.ctx, req)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}

	L.Push(coerce.ToLua(L, result))
	return 1
}

// callMcpTool implements the closure body for one MCP tool (§4.6, §4.3).
func (b *Binder) callMcpTool(L *lua.LState, tool catalogue.McpTool) int {
	if err := b.counter.Take(); err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}

	var params *lua.LTable
	if L.GetTop() >= 1 {
		params = tableArgOrNil(L, 1, tool.Name)
	}

	args := make(map[string]any, len(tool.Params))
	for _, p := range tool.Params {
		if params == nil {
			if p.Required {
				L.RaiseError("%s: missing required parameter %q", tool.Name, p.Name)
				return 0
			}
			continue
		}
		v := params.RawGetString(p.Name)
		if v == lua.LNil {
			if p.Required {
				L.RaiseError("%s: missing required parameter %q", tool.Name, p.Name)
				return 0
			}
			continue
		}
		args[p.Name] = coerce.ToJSON(v)
	}

	var schema json.RawMessage
	if len(tool.Schemas) > 0 {
		schema = tool.Schemas[0]
	}

	result, err := b.mcp.Call(b.ctx, tool.Server, tool.Name, schema, args)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}

	L.Push(coerce.ToLua(L, result))
	return 1
}

// argIndicesFor maps a call shape to the Lua stack index of the params
// table and body argument (1-based; 0 means absent), per the four-shape
// table in §4.6.
func argIndicesFor(shape callShape) (paramsIdx, bodyIdx int) {
	switch {
	case shape.hasVisibleParams && shape.hasBody:
		return 1, 2
	case shape.hasVisibleParams && !shape.hasBody:
		return 1, 0
	case !shape.hasVisibleParams && shape.hasBody:
		return 0, 1
	default:
		return 0, 0
	}
}

// tableArgOrNil extracts the params table from the given stack index,
// tolerating an absent (nil) argument but rejecting a present non-table
// argument with a clear message (§4.6 step 2).
func tableArgOrNil(L *lua.LState, idx int, funcName string) *lua.LTable {
	if L.GetTop() < idx {
		return nil
	}
	v := L.Get(idx)
	if v == lua.LNil {
		return nil
	}
	t, ok := v.(*lua.LTable)
	if !ok {
		L.RaiseError("%s: expected a table of parameters, got %s", funcName, v.Type().String())
		return nil
	}
	return t
}

// resolveParamValue resolves one parameter's value per §4.6 step 3-4:
// frozen parameters use their configured value and bypass lookup; others
// are looked up by name in params, erroring if required and absent.
func resolveParamValue(L *lua.LState, params *lua.LTable, p catalogue.ParamDescriptor, funcName string) (value string, present bool, err error) {
	if p.Frozen() {
		return *p.FrozenValue, true, nil
	}

	var raw lua.LValue = lua.LNil
	if params != nil {
		raw = params.RawGetString(p.Name)
	}
	if raw == lua.LNil {
		if p.Default != nil {
			return *p.Default, true, nil
		}
		if p.Required {
			return "", false, toolerrors.NewInvalidArgumentError(
				fmt.Sprintf("%s: missing required parameter %q", funcName, p.Name), nil)
		}
		return "", false, nil
	}

	if p.Kind == catalogue.KindInteger {
		if n, ok := coerce.RoundToInt64(raw); ok {
			return fmt.Sprintf("%d", n), true, nil
		}
	}

	str, serr := coerce.StringifyForURL(raw)
	if serr != nil {
		return "", false, toolerrors.NewInvalidArgumentError(
			fmt.Sprintf("%s: parameter %q: %s", funcName, p.Name, serr), nil)
	}
	return str, true, nil
}
