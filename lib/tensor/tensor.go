package tensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrShapeMismatch is returned whenever two values with different shapes are combined.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvalidEncoding is returned when a binary encoded value cannot be decoded.
	ErrInvalidEncoding = errors.New("invalid tensor encoding")
)

// --------------------------------------------------------------------------
// Device Context
// --------------------------------------------------------------------------

// DeviceType is the device mask of a context
type DeviceType uint8

const (
	DeviceCPU       DeviceType = 1
	DeviceGPU       DeviceType = 2
	DeviceCPUPinned DeviceType = 3
)

func (d DeviceType) String() string {
	switch d {
	case DeviceCPU:
		return "cpu"
	case DeviceGPU:
		return "gpu"
	case DeviceCPUPinned:
		return "cpu_pinned"
	default:
		return "unknown"
	}
}

// Context identifies the device a value is located on
type Context struct {
	DeviceType DeviceType `json:"device_type"`
	DeviceID   int        `json:"device_id"`
}

// CPU returns the context of the cpu with the given id
func CPU(id int) Context { return Context{DeviceType: DeviceCPU, DeviceID: id} }

// GPU returns the context of the gpu with the given id
func GPU(id int) Context { return Context{DeviceType: DeviceGPU, DeviceID: id} }

func (c Context) String() string {
	return fmt.Sprintf("%s(%d)", c.DeviceType, c.DeviceID)
}

// ParseContext parses a context in the form "cpu(0)", "gpu(1)" or "cpu_pinned(0)".
// A bare device type ("gpu") means device id 0.
func ParseContext(s string) (Context, error) {
	s = strings.TrimSpace(s)
	name, rest, hasID := strings.Cut(s, "(")

	var ctx Context
	switch strings.ToLower(name) {
	case "cpu":
		ctx.DeviceType = DeviceCPU
	case "gpu":
		ctx.DeviceType = DeviceGPU
	case "cpu_pinned":
		ctx.DeviceType = DeviceCPUPinned
	default:
		return Context{}, fmt.Errorf("unknown device type %q", name)
	}

	if hasID {
		idStr, ok := strings.CutSuffix(rest, ")")
		if !ok {
			return Context{}, fmt.Errorf("invalid device context %q", s)
		}
		id, err := strconv.Atoi(idStr)
		if err != nil || id < 0 {
			return Context{}, fmt.Errorf("invalid device id in %q", s)
		}
		ctx.DeviceID = id
	}

	return ctx, nil
}

// --------------------------------------------------------------------------
// Shape
// --------------------------------------------------------------------------

// Shape holds the dimensions of a value
type Shape []int

// Size returns the number of elements of a value with this shape
func (s Shape) Size() int {
	size := 1
	for _, d := range s {
		size *= d
	}
	return size
}

// Equal reports whether both shapes have the same dimensions
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape
func (s Shape) Clone() Shape {
	c := make(Shape, len(s))
	copy(c, s)
	return c
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ParseShape parses a comma separated list of dimensions such as "2,3"
func ParseShape(s string) (Shape, error) {
	s = strings.Trim(strings.TrimSpace(s), "()")
	if s == "" {
		return Shape{}, nil
	}
	fields := strings.Split(s, ",")
	shape := make(Shape, 0, len(fields))
	for _, f := range fields {
		d, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid dimension %q", f)
		}
		shape = append(shape, d)
	}
	return shape, nil
}

// --------------------------------------------------------------------------
// Value Adapter
// --------------------------------------------------------------------------

// Value is the numeric array type handled by the store.
// Implementations are not required to be thread-safe, the store serializes all
// access to values it owns.
type Value interface {
	// Shape returns the dimensions of the value.
	Shape() Shape
	// Context returns the device the value is located on.
	Context() Context
	// Data returns the flat row-major backing slice. Writes to it modify the value.
	Data() []float32
	// Copy returns a deep copy of the value on the same device.
	Copy() Value
	// CopyFrom overwrites the contents with src. Fails with ErrShapeMismatch if the shapes differ.
	CopyFrom(src Value) error
	// AddInPlace adds src element-wise. Fails with ErrShapeMismatch if the shapes differ.
	AddInPlace(src Value) error
	// MarshalBinary encodes the value for transport.
	MarshalBinary() ([]byte, error)
	// UnmarshalBinary replaces the value with a decoded one.
	UnmarshalBinary(data []byte) error
}

// CheckShape returns an error wrapping ErrShapeMismatch if a and b differ in shape
func CheckShape(a, b Value) error {
	if !a.Shape().Equal(b.Shape()) {
		return fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, a.Shape(), b.Shape())
	}
	return nil
}
