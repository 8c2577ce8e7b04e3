// Package vm implements the VM host (C6): it creates a fresh scripting VM
// per execution, sets an approximate memory budget, installs sandbox mode,
// and injects a captured print and JSON helpers.
//
// The specification calls for a Lua-family language with a native
// read-only-globals sandbox mode, an interrupt hook, and Luau's
// type-annotation surface; no such binding exists in this module's
// dependency set, so the VM is built on github.com/yuin/gopher-lua and the
// sandbox/interrupt/memory-cap behavior Luau provides natively is
// reconstructed manually on top of gopher-lua's real primitives (global
// metatable freezing, LState.SetContext, and runtime.MemStats sampling).
package vm

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/alennartz/toolscript/pkg/coerce"
	toolerrors "github.com/alennartz/toolscript/pkg/errors"
	lua "github.com/yuin/gopher-lua"
)

// Config configures one VM instance.
type Config struct {
	// MemoryLimitBytes is the approximate memory budget (§4.5 step 1).
	// Zero means no limit is enforced.
	MemoryLimitBytes uint64
}

// VM wraps one gopher-lua state plus the facilities layered on top of it:
// a captured log buffer, an approximate memory-cap check, and sandbox
// freezing of the global table.
type VM struct {
	L      *lua.LState
	config Config

	logMu sync.Mutex
	logs  []string

	baselineAlloc uint64
}

// New constructs a VM per §4.5: opens a restricted library set and
// installs print/json/sdk. It does not freeze the globals; callers install
// their own globals first and then call Freeze.
func New(cfg Config) *VM {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	// Restricted library set: base, table, string, math. No io, os,
	// package, debug, channel, or coroutine libraries, so the script has
	// no ambient process execution, dynamic code loading, or debug
	// introspection surface (§4.5 step 5).
	for _, open := range []func(*lua.LState) int{
		lua.OpenBase,
		lua.OpenTable,
		lua.OpenString,
		lua.OpenMath,
	} {
		open(L)
	}

	// Base library still exposes load/loadstring/loadfile/dofile/require;
	// strip them explicitly since OpenBase has no restricted variant.
	for _, name := range []string{"load", "loadstring", "loadfile", "dofile", "require", "collectgarbage"} {
		L.SetGlobal(name, lua.LNil)
	}

	v := &VM{L: L, config: cfg}

	L.SetGlobal("print", L.NewFunction(v.luaPrint))
	installJSON(L)
	L.SetGlobal("sdk", L.NewTable())

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	v.baselineAlloc = ms.Alloc

	return v
}

// Freeze enters sandbox mode (§4.5 step 5). Callers must install every
// custom global — sdk closures (C7), the filesystem facet surface (C5) —
// before calling Freeze, since sandbox mode works by freezing the global
// table itself.
func (v *VM) Freeze() {
	freezeGlobals(v.L)
}

// luaPrint implements the captured print(values...): it tab-joins the
// string form of each argument and appends it to the internal log buffer,
// never writing to process stdout (§4.5 step 2).
func (v *VM) luaPrint(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.Get(i).String()
	}
	v.logMu.Lock()
	v.logs = append(v.logs, strings.Join(parts, "\t"))
	v.logMu.Unlock()
	return 0
}

// Logs returns every line captured by print, in call order.
func (v *VM) Logs() []string {
	v.logMu.Lock()
	defer v.logMu.Unlock()
	out := make([]string, len(v.logs))
	copy(out, v.logs)
	return out
}

// Sdk returns the sdk table, for C7/C4 registration.
func (v *VM) Sdk() *lua.LTable {
	return v.L.GetGlobal("sdk").(*lua.LTable)
}

// SetDeadline installs a context whose cancellation gopher-lua observes at
// its bytecode-dispatch interrupt points, implementing the executor's
// wall-clock timeout without a separate watchdog thread (§4.7).
func (v *VM) SetDeadline(ctx context.Context) {
	v.L.SetContext(ctx)
}

// CheckMemory reports a resource-exhausted error if allocations since VM
// construction have passed the configured cap. This is an approximation:
// gopher-lua has no native allocation budget, so the cap is checked
// against process-wide heap growth sampled via runtime.MemStats rather
// than VM-local allocation.
func (v *VM) CheckMemory() error {
	if v.config.MemoryLimitBytes == 0 {
		return nil
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.Alloc > v.baselineAlloc && ms.Alloc-v.baselineAlloc > v.config.MemoryLimitBytes {
		return toolerrors.NewResourceExhaustedError(
			fmt.Sprintf("memory limit of %d bytes exceeded", v.config.MemoryLimitBytes), nil)
	}
	return nil
}

// DoString runs source to completion, returning the script's returned
// value (or LNil if it returned nothing).
func (v *VM) DoString(source string) (lua.LValue, error) {
	top := v.L.GetTop()
	if err := v.L.DoString(source); err != nil {
		return nil, toolerrors.NewInternalError("script execution failed", err)
	}
	if v.L.GetTop() > top {
		return v.L.Get(-1), nil
	}
	return lua.LNil, nil
}

// Close tears down the underlying Lua state.
func (v *VM) Close() {
	v.L.Close()
}

// freezeGlobals enters sandbox mode by installing a metatable on the
// global table whose __newindex raises, and whose __metatable hides the
// metatable from script introspection (§4.5 step 5). __newindex fires only
// for names absent from the table, so creating a new global raises while
// assigning to an existing global (print, json, sdk, a library table) is
// not intercepted. Must run after every custom global is installed, since
// no new global can be added afterwards.
func freezeGlobals(L *lua.LState) {
	globals := L.Get(lua.GlobalsIndex).(*lua.LTable)
	mt := L.NewTable()
	mt.RawSetString("__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("attempt to modify a read-only global table")
		return 0
	}))
	mt.RawSetString("__metatable", lua.LString("protected"))
	globals.Metatable = mt
}

// installJSON installs json.encode/json.decode backed by pkg/coerce,
// round-tripping tables as objects or arrays (§4.5 step 3).
func installJSON(L *lua.LState) {
	jsonTable := L.NewTable()
	jsonTable.RawSetString("encode", L.NewFunction(jsonEncode))
	jsonTable.RawSetString("decode", L.NewFunction(jsonDecode))
	L.SetGlobal("json", jsonTable)
}

func jsonEncode(L *lua.LState) int {
	v := L.CheckAny(1)
	data, err := json.Marshal(coerce.ToJSON(v))
	if err != nil {
		L.RaiseError("json.encode: %s", err)
		return 0
	}
	L.Push(lua.LString(data))
	return 1
}

func jsonDecode(L *lua.LState) int {
	s := L.CheckString(1)
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		L.RaiseError("json.decode: %s", err)
		return 0
	}
	L.Push(coerce.ToLua(L, normalizeJSONNumbers(decoded)))
	return 1
}

// normalizeJSONNumbers replaces json.Number leaves with int64 or float64
// so coerce.ToLua never has to special-case json.Number.
func normalizeJSONNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, vv := range val {
			val[k] = normalizeJSONNumbers(vv)
		}
		return val
	case []any:
		for i, vv := range val {
			val[i] = normalizeJSONNumbers(vv)
		}
		return val
	default:
		return v
	}
}
