package tensor

import (
	"fmt"
	"strings"
)

// Dense is a row-major float32 array implementing Value
type Dense struct {
	shape Shape
	ctx   Context
	data  []float32
}

// New creates a zero filled value with the given shape
func New(shape Shape, ctx Context) *Dense {
	return &Dense{
		shape: shape.Clone(),
		ctx:   ctx,
		data:  make([]float32, shape.Size()),
	}
}

// Full creates a value with every element set to v
func Full(shape Shape, v float32, ctx Context) *Dense {
	d := New(shape, ctx)
	for i := range d.data {
		d.data[i] = v
	}
	return d
}

// Ones creates a value with every element set to 1
func Ones(shape Shape, ctx Context) *Dense {
	return Full(shape, 1, ctx)
}

// FromSlice creates a value from a copy of data.
// Returns an error if len(data) does not match the number of elements of shape.
func FromSlice(shape Shape, data []float32, ctx Context) (*Dense, error) {
	if len(data) != shape.Size() {
		return nil, fmt.Errorf("%w: shape %s needs %d elements, got %d", ErrShapeMismatch, shape, shape.Size(), len(data))
	}
	d := New(shape, ctx)
	copy(d.data, data)
	return d, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see tensor/tensor.go)
// --------------------------------------------------------------------------

func (d *Dense) Shape() Shape { return d.shape }

func (d *Dense) Context() Context { return d.ctx }

func (d *Dense) Data() []float32 { return d.data }

func (d *Dense) Copy() Value {
	c := &Dense{
		shape: d.shape.Clone(),
		ctx:   d.ctx,
		data:  make([]float32, len(d.data)),
	}
	copy(c.data, d.data)
	return c
}

func (d *Dense) CopyFrom(src Value) error {
	if err := CheckShape(d, src); err != nil {
		return err
	}
	copy(d.data, src.Data())
	return nil
}

func (d *Dense) AddInPlace(src Value) error {
	if err := CheckShape(d, src); err != nil {
		return err
	}
	for i, v := range src.Data() {
		d.data[i] += v
	}
	return nil
}

// ToContext returns a copy of the value placed on ctx
func (d *Dense) ToContext(ctx Context) *Dense {
	c := d.Copy().(*Dense)
	c.ctx = ctx
	return c
}

func (d *Dense) String() string {
	var sb strings.Builder
	sb.WriteString("tensor")
	sb.WriteString(d.shape.String())
	sb.WriteString("@")
	sb.WriteString(d.ctx.String())
	sb.WriteString(fmt.Sprint(d.data))
	return sb.String()
}
