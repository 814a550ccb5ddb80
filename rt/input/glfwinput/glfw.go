// Package glfwinput feeds GLFW window callbacks into the input aggregator.
package glfwinput

import (
	"github.com/gekko3d/particlert/rt/input"
	"github.com/go-gl/glfw/v3.3/glfw"
)

var glfwToKey = map[glfw.Key]input.Key{
	glfw.KeyA:            input.KeyA,
	glfw.KeyB:            input.KeyB,
	glfw.KeyC:            input.KeyC,
	glfw.KeyD:            input.KeyD,
	glfw.KeyE:            input.KeyE,
	glfw.KeyF:            input.KeyF,
	glfw.KeyG:            input.KeyG,
	glfw.KeyH:            input.KeyH,
	glfw.KeyI:            input.KeyI,
	glfw.KeyJ:            input.KeyJ,
	glfw.KeyK:            input.KeyK,
	glfw.KeyL:            input.KeyL,
	glfw.KeyM:            input.KeyM,
	glfw.KeyN:            input.KeyN,
	glfw.KeyO:            input.KeyO,
	glfw.KeyP:            input.KeyP,
	glfw.KeyQ:            input.KeyQ,
	glfw.KeyR:            input.KeyR,
	glfw.KeyS:            input.KeyS,
	glfw.KeyT:            input.KeyT,
	glfw.KeyU:            input.KeyU,
	glfw.KeyV:            input.KeyV,
	glfw.KeyW:            input.KeyW,
	glfw.KeyX:            input.KeyX,
	glfw.KeyY:            input.KeyY,
	glfw.KeyZ:            input.KeyZ,
	glfw.KeySpace:        input.KeySpace,
	glfw.KeyEnter:        input.KeyEnter,
	glfw.KeyEscape:       input.KeyEscape,
	glfw.KeyTab:          input.KeyTab,
	glfw.KeyRight:        input.KeyRight,
	glfw.KeyLeft:         input.KeyLeft,
	glfw.KeyDown:         input.KeyDown,
	glfw.KeyUp:           input.KeyUp,
	glfw.KeyLeftShift:    input.KeyShift,
	glfw.KeyRightShift:   input.KeyShift,
	glfw.KeyLeftControl:  input.KeyControl,
	glfw.KeyRightControl: input.KeyControl,
	glfw.KeyF1:           input.KeyF1,
}

var glfwToButton = map[glfw.MouseButton]input.MouseButton{
	glfw.MouseButtonLeft:   input.MouseButtonLeft,
	glfw.MouseButtonRight:  input.MouseButtonRight,
	glfw.MouseButtonMiddle: input.MouseButtonMiddle,
}

// TranslateKey maps a GLFW key action to an event. Repeats and unknown keys
// yield ok=false.
func TranslateKey(key glfw.Key, action glfw.Action) (input.KeyEvent, bool) {
	k, ok := glfwToKey[key]
	if !ok || action == glfw.Repeat {
		return input.KeyEvent{}, false
	}
	return input.KeyEvent{Key: k, Pressed: action == glfw.Press}, true
}

func TranslateButton(button glfw.MouseButton, action glfw.Action) (input.ButtonEvent, bool) {
	b, ok := glfwToButton[button]
	if !ok {
		return input.ButtonEvent{}, false
	}
	return input.ButtonEvent{Button: b, Pressed: action == glfw.Press}, true
}

// BindWindow installs GLFW callbacks that forward translated events to sink.
// Callbacks fire from glfw.PollEvents on the main thread.
func BindWindow(w *glfw.Window, sink func(input.Event)) {
	w.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if ev, ok := TranslateKey(key, action); ok {
			sink(ev)
		}
	})
	w.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		sink(input.CursorEvent{X: xpos, Y: ypos})
	})
	w.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if ev, ok := TranslateButton(button, action); ok {
			sink(ev)
		}
	})
	w.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		sink(input.ScrollEvent{DX: xoff, DY: yoff})
	})
}
