package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	codecMagic   = "TNSR"
	codecVersion = 1
	maxRank      = 32
	// magic + version + device type + device id + rank
	headerSize = len(codecMagic) + 1 + 1 + 4 + 1
)

// EncodedSize returns the number of bytes MarshalBinary produces for v
func EncodedSize(v Value) int {
	return headerSize + 4*len(v.Shape()) + 4*v.Shape().Size()
}

// Encode appends the binary form of v to buf and returns the extended buffer
func Encode(buf []byte, v Value) ([]byte, error) {
	shape := v.Shape()
	if len(shape) > maxRank {
		return nil, fmt.Errorf("%w: rank %d exceeds %d", ErrInvalidEncoding, len(shape), maxRank)
	}
	data := v.Data()
	if len(data) != shape.Size() {
		return nil, fmt.Errorf("%w: %d elements for shape %s", ErrInvalidEncoding, len(data), shape)
	}

	buf = append(buf, codecMagic...)
	buf = append(buf, codecVersion)
	buf = append(buf, byte(v.Context().DeviceType))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(v.Context().DeviceID))
	buf = append(buf, byte(len(shape)))
	for _, d := range shape {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(d))
	}
	for _, f := range data {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf, nil
}

// Decode creates a Dense value from its binary form
func Decode(data []byte) (*Dense, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidEncoding, len(data))
	}
	if string(data[:len(codecMagic)]) != codecMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidEncoding)
	}
	pos := len(codecMagic)
	if data[pos] != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidEncoding, data[pos])
	}
	pos++

	ctx := Context{DeviceType: DeviceType(data[pos])}
	pos++
	ctx.DeviceID = int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4

	rank := int(data[pos])
	pos++
	if rank > maxRank || len(data) < pos+4*rank {
		return nil, fmt.Errorf("%w: truncated shape", ErrInvalidEncoding)
	}
	shape := make(Shape, rank)
	for i := range shape {
		shape[i] = int(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4
	}

	remaining := (len(data) - pos) / 4
	size := 1
	for _, dim := range shape {
		if dim != 0 && size > remaining/dim+1 {
			return nil, fmt.Errorf("%w: shape %s does not fit the payload", ErrInvalidEncoding, shape)
		}
		size *= dim
	}
	if len(data)-pos != 4*size {
		return nil, fmt.Errorf("%w: expected %d data bytes, got %d", ErrInvalidEncoding, 4*size, len(data)-pos)
	}
	d := &Dense{shape: shape, ctx: ctx, data: make([]float32, size)}
	for i := range d.data {
		d.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4
	}
	return d, nil
}

func (d *Dense) MarshalBinary() ([]byte, error) {
	return Encode(make([]byte, 0, EncodedSize(d)), d)
}

func (d *Dense) UnmarshalBinary(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*d = *decoded
	return nil
}
