package input

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Movement axes of Snapshot.Movement.
const (
	AxisRight   = 0
	AxisUp      = 1
	AxisForward = 2
)

// FlipMask turns window-space cursor motion (Y down) into right/up positive.
var FlipMask = mgl32.Vec2{1, -1}

type axisBinding struct {
	axis int
	sign float32
}

// Snapshot is what the camera consumes once per frame.
type Snapshot struct {
	// Movement is right/up/forward, each component in {-1, 0, 1}.
	Movement   mgl32.Vec3
	MouseDelta mgl32.Vec2
	Scroll     float32
}

// Aggregator folds raw device events into per-tick input state. Mouse delta
// and scroll are tagged with the tick they were captured on and read as zero
// once a later tick clears them.
type Aggregator struct {
	bindings   map[Key]axisBinding
	lookButton MouseButton

	movement mgl32.Vec3
	lookHeld bool

	cursor    mgl32.Vec2
	hasCursor bool

	mouseDelta mgl32.Vec2
	deltaTick  uint64

	scroll     float32
	scrollTick uint64
}

func NewAggregator() *Aggregator {
	a := &Aggregator{
		bindings:   make(map[Key]axisBinding),
		lookButton: MouseButtonRight,
	}
	a.Bind(KeyW, AxisForward, 1)
	a.Bind(KeyS, AxisForward, -1)
	a.Bind(KeyD, AxisRight, 1)
	a.Bind(KeyA, AxisRight, -1)
	a.Bind(KeySpace, AxisUp, 1)
	a.Bind(KeyShift, AxisUp, -1)
	return a
}

// Bind maps key to one movement axis. sign is clamped to ±1.
func (a *Aggregator) Bind(key Key, axis int, sign float32) {
	if axis < AxisRight || axis > AxisForward {
		return
	}
	if sign < 0 {
		sign = -1
	} else {
		sign = 1
	}
	a.bindings[key] = axisBinding{axis: axis, sign: sign}
}

func (a *Aggregator) SetLookButton(b MouseButton) {
	a.lookButton = b
	a.lookHeld = false
}

func (a *Aggregator) LookHeld() bool {
	return a.lookHeld
}

// ApplyEvent mutates the input state. tick is the caller's current tick and
// tags any mouse or scroll delta produced by the event.
func (a *Aggregator) ApplyEvent(ev Event, tick uint64) {
	switch e := ev.(type) {
	case KeyEvent:
		b, ok := a.bindings[e.Key]
		if !ok {
			return
		}
		if e.Pressed {
			a.movement[b.axis] = b.sign
		} else {
			a.movement[b.axis] = 0
		}

	case CursorEvent:
		pos := mgl32.Vec2{float32(e.X), float32(e.Y)}
		if a.lookHeld && a.hasCursor {
			d := pos.Sub(a.cursor)
			d = mgl32.Vec2{d[0] * FlipMask[0], d[1] * FlipMask[1]}
			if a.deltaTick != tick {
				a.mouseDelta = mgl32.Vec2{}
				a.deltaTick = tick
			}
			a.mouseDelta = a.mouseDelta.Add(d)
		}
		a.cursor = pos
		a.hasCursor = true

	case ButtonEvent:
		if e.Button != a.lookButton {
			return
		}
		a.lookHeld = e.Pressed
		if !e.Pressed {
			a.mouseDelta = mgl32.Vec2{}
		}

	case ScrollEvent:
		if a.scrollTick != tick {
			a.scroll = 0
			a.scrollTick = tick
		}
		a.scroll += float32(e.DY)
	}
}

// Sample is a pure read of the current state.
func (a *Aggregator) Sample() Snapshot {
	return Snapshot{
		Movement:   a.movement,
		MouseDelta: a.mouseDelta,
		Scroll:     a.scroll,
	}
}

// ClearIfStale zeroes deltas captured before currentTick. Held keys are kept.
func (a *Aggregator) ClearIfStale(currentTick uint64) {
	if a.deltaTick < currentTick {
		a.mouseDelta = mgl32.Vec2{}
	}
	if a.scrollTick < currentTick {
		a.scroll = 0
	}
}
