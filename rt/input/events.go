package input

type Key int

const (
	KeyUnknown Key = iota
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ
	KeySpace
	KeyEnter
	KeyEscape
	KeyTab
	KeyRight
	KeyLeft
	KeyDown
	KeyUp
	KeyShift
	KeyControl
	KeyF1
)

type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonRight
	MouseButtonMiddle
)

// Event is one raw device event. The set is closed.
type Event interface {
	isEvent()
}

type KeyEvent struct {
	Key     Key
	Pressed bool
}

// CursorEvent carries the absolute pointer position in window coordinates
// (origin top-left, Y down).
type CursorEvent struct {
	X, Y float64
}

type ButtonEvent struct {
	Button  MouseButton
	Pressed bool
}

type ScrollEvent struct {
	DX, DY float64
}

func (KeyEvent) isEvent()    {}
func (CursorEvent) isEvent() {}
func (ButtonEvent) isEvent() {}
func (ScrollEvent) isEvent() {}
