package fsfacet

import (
	lua "github.com/yuin/gopher-lua"
)

// InstallSurface installs the virtual io namespace and the os.remove
// addition onto L (§4.4). Must run before the VM host freezes the global
// table (§4.5 step 5). The io and os tables it installs are a capability
// surface entirely owned by this package — the VM never opens the real io/os libraries.
func InstallSurface(L *lua.LState, facet *Facet) {
	ioTable := L.NewTable()
	ioTable.RawSetString("open", L.NewFunction(func(L *lua.LState) int {
		path := L.CheckString(1)
		mode := L.OptString(2, "r")
		h, err := facet.Open(path, mode)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(handleToLua(L, h))
		return 1
	}))
	ioTable.RawSetString("lines", L.NewFunction(func(L *lua.LState) int {
		path := L.CheckString(1)
		lines, err := facet.Lines(path)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		i := 0
		iter := L.NewFunction(func(L *lua.LState) int {
			if i >= len(lines) {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(lua.LString(lines[i]))
			i++
			return 1
		})
		L.Push(iter)
		return 1
	}))
	ioTable.RawSetString("list", L.NewFunction(func(L *lua.LState) int {
		path := L.OptString(1, "")
		names, err := facet.List(path)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		t := L.NewTable()
		for i, name := range names {
			t.RawSetInt(i+1, lua.LString(name))
		}
		L.Push(t)
		return 1
	}))
	ioTable.RawSetString("type", L.NewFunction(func(L *lua.LState) int {
		v := L.CheckAny(1)
		if tbl, ok := v.(*lua.LTable); ok && tbl.RawGetString("__fsfacet_handle") != lua.LNil {
			L.Push(lua.LString("file"))
			return 1
		}
		L.Push(lua.LNil)
		return 1
	}))
	L.SetGlobal("io", ioTable)

	osTable := L.NewTable()
	osTable.RawSetString("remove", L.NewFunction(func(L *lua.LState) int {
		path := L.CheckString(1)
		if err := facet.Remove(path); err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		return 0
	}))
	L.SetGlobal("os", osTable)
}

// handleToLua wraps a Handle as a table of bound methods, called with Lua
// method-call sugar (h:read(), h:write(...), etc).
func handleToLua(L *lua.LState, h *Handle) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("__fsfacet_handle", lua.LTrue)

	t.RawSetString("read", L.NewFunction(func(L *lua.LState) int {
		format := ReadFormat(L.OptString(2, string(ReadLine)))
		v, err := h.Read(format)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		switch val := v.(type) {
		case nil:
			L.Push(lua.LNil)
		case string:
			L.Push(lua.LString(val))
		case float64:
			L.Push(lua.LNumber(val))
		default:
			L.Push(lua.LNil)
		}
		return 1
	}))

	t.RawSetString("write", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		values := make([]string, 0, n-1)
		for i := 2; i <= n; i++ {
			values = append(values, L.Get(i).String())
		}
		if err := h.Write(values...); err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		return 0
	}))

	t.RawSetString("lines", L.NewFunction(func(L *lua.LState) int {
		lines, err := h.Lines()
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		i := 0
		iter := L.NewFunction(func(L *lua.LState) int {
			if i >= len(lines) {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(lua.LString(lines[i]))
			i++
			return 1
		})
		L.Push(iter)
		return 1
	}))

	t.RawSetString("seek", L.NewFunction(func(L *lua.LState) int {
		whence := SeekWhence(L.OptString(2, string(SeekSet)))
		offset := int64(L.OptInt(3, 0))
		if err := h.Seek(whence, offset); err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		return 0
	}))

	t.RawSetString("flush", L.NewFunction(func(L *lua.LState) int {
		if err := h.Flush(); err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		return 0
	}))

	t.RawSetString("close", L.NewFunction(func(L *lua.LState) int {
		if err := h.Close(); err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		return 0
	}))

	return t
}
