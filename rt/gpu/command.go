package gpu

import (
	"fmt"
)

type Access int

const (
	AccessUniform Access = iota
	AccessReadOnly
	AccessReadWrite
	// AccessVertex binds the buffer as a vertex buffer; Slot is the vertex
	// buffer slot rather than a bind group binding.
	AccessVertex
)

func (a Access) String() string {
	switch a {
	case AccessUniform:
		return "uniform"
	case AccessReadOnly:
		return "read-only"
	case AccessReadWrite:
		return "read-write"
	case AccessVertex:
		return "vertex"
	default:
		return fmt.Sprintf("Access(%d)", int(a))
	}
}

type Binding struct {
	Slot   uint32
	Buffer BufferHandle
	Access Access
}

type Command interface {
	isCommand()
	bindings() []Binding
}

type DispatchCommand struct {
	Kernel   KernelHandle
	Bindings []Binding
	Groups   uint32
}

type DrawCommand struct {
	Frame       Frame
	Kernel      KernelHandle
	Bindings    []Binding
	FirstVertex uint32
	VertexCount uint32
	Instances   uint32
}

func (DispatchCommand) isCommand() {}
func (DrawCommand) isCommand()     {}

func (c DispatchCommand) bindings() []Binding { return c.Bindings }
func (c DrawCommand) bindings() []Binding     { return c.Bindings }

// CommandStream records work for one Submit. Commands run in order.
type CommandStream struct {
	Label    string
	Commands []Command
}

func NewCommandStream(label string) *CommandStream {
	return &CommandStream{Label: label}
}

func (s *CommandStream) DispatchCompute(kernel KernelHandle, bindings []Binding, groups uint32) {
	s.Commands = append(s.Commands, DispatchCommand{
		Kernel:   kernel,
		Bindings: append([]Binding(nil), bindings...),
		Groups:   groups,
	})
}

func (s *CommandStream) DrawInstanced(frame Frame, kernel KernelHandle, bindings []Binding, firstVertex, vertexCount, instances uint32) {
	s.Commands = append(s.Commands, DrawCommand{
		Frame:       frame,
		Kernel:      kernel,
		Bindings:    append([]Binding(nil), bindings...),
		FirstVertex: firstVertex,
		VertexCount: vertexCount,
		Instances:   instances,
	})
}

func (s *CommandStream) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Commands)
}

func (s *CommandStream) Reset() {
	s.Commands = s.Commands[:0]
}

// Validate rejects commands that bind one buffer for writing and also
// anywhere else in the same command.
func (s *CommandStream) Validate() error {
	if s == nil {
		return nil
	}
	for i, cmd := range s.Commands {
		if err := validateBindings(cmd.bindings()); err != nil {
			return fmt.Errorf("command %d of %q: %w", i, s.Label, err)
		}
	}
	return nil
}

func validateBindings(bindings []Binding) error {
	for i, a := range bindings {
		if !a.Buffer.Valid() {
			return fmt.Errorf("slot %d: %w", a.Slot, ErrUnknownResource)
		}
		for _, b := range bindings[i+1:] {
			if a.Buffer.ID != b.Buffer.ID {
				continue
			}
			if a.Access == AccessReadWrite || b.Access == AccessReadWrite {
				return fmt.Errorf("%w: %s at slots %d and %d", ErrBufferAliasing, a.Buffer.Label, a.Slot, b.Slot)
			}
		}
	}
	return nil
}
