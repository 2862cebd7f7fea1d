// Package script drives the joypad from a Lua file during headless runs. The script
// defines input(frame), returning the keys to hold for that frame either as a list
// of names ({"a", "start"}) or as a set ({right = true}).
package script

import (
	"errors"
	"fmt"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/emu"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/joypad"
	"github.com/retroenv/retrogolib/log"
	lua "github.com/yuin/gopher-lua"
)

const inputFunc = "input"

// ErrNoInput is returned when the script does not define input(frame).
var ErrNoInput = errors.New("script does not define input(frame)")

type Script struct {
	state *lua.LState
	input *lua.LFunction
}

// LoadFile runs the file at path and looks up its input function.
func LoadFile(path string, logger *log.Logger) (*Script, error) {
	return load(logger, func(L *lua.LState) error { return L.DoFile(path) })
}

// LoadString is LoadFile for inline source.
func LoadString(src string, logger *log.Logger) (*Script, error) {
	return load(logger, func(L *lua.LState) error { return L.DoString(src) })
}

func load(logger *log.Logger, run func(*lua.LState) error) (*Script, error) {
	L := lua.NewState()
	L.SetGlobal("log", L.NewFunction(func(L *lua.LState) int {
		logger.Info(L.CheckString(1), log.String("source", "lua"))
		return 0
	}))
	if err := run(L); err != nil {
		L.Close()
		return nil, fmt.Errorf("running script: %w", err)
	}
	fn, ok := L.GetGlobal(inputFunc).(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, ErrNoInput
	}
	return &Script{state: L, input: fn}, nil
}

// Input calls input(frame) and decodes the returned keys. nil means nothing held.
func (s *Script) Input(frame int) (emu.Buttons, error) {
	var held emu.Buttons
	L := s.state
	if err := L.CallByParam(lua.P{Fn: s.input, NRet: 1, Protect: true}, lua.LNumber(frame)); err != nil {
		return held, fmt.Errorf("input(%d): %w", frame, err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	switch v := ret.(type) {
	case *lua.LNilType:
		return held, nil
	case *lua.LTable:
		var err error
		v.ForEach(func(key, value lua.LValue) {
			if err != nil {
				return
			}
			name, on := key, lua.LVAsBool(value)
			if _, isIndex := key.(lua.LNumber); isIndex {
				name, on = value, true
			}
			var b joypad.Button
			if b, err = joypad.ParseButton(name.String()); err == nil {
				held.Set(b, on)
			}
		})
		if err != nil {
			return emu.Buttons{}, fmt.Errorf("input(%d): %w", frame, err)
		}
		return held, nil
	default:
		return held, fmt.Errorf("input(%d): expected table or nil, got %s", frame, ret.Type())
	}
}

// Close releases the interpreter.
func (s *Script) Close() { s.state.Close() }
