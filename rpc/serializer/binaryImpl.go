package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/tKV/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format:
//
//	MsgType (1B) | flags (1B) | Key (8B) | optional fields in flag order
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasValue      byte = 1 << 0
	hasGeneration byte = 1 << 1
	hasCode       byte = 1 << 2
	hasErr        byte = 1 << 3
	hasMeta       byte = 1 << 4
)

const binaryHeaderSize = 1 + 1 + 8

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, binaryHeaderSize, b.sizeBytes(msg))

	result[0] = byte(msg.MsgType)
	var flags byte
	binary.BigEndian.PutUint64(result[2:10], uint64(msg.Key))

	if msg.Value != nil {
		flags |= hasValue
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Value)))
		result = append(result, msg.Value...)
	}

	if msg.Generation > 0 {
		flags |= hasGeneration
		result = binary.BigEndian.AppendUint64(result, msg.Generation)
	}

	if msg.Code > 0 {
		flags |= hasCode
		result = binary.BigEndian.AppendUint64(result, msg.Code)
	}

	if msg.Err != "" {
		flags |= hasErr
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Err)))
		result = append(result, msg.Err...)
	}

	if msg.Meta != nil {
		flags |= hasMeta
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Meta)))
		result = append(result, msg.Meta...)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < binaryHeaderSize {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	flags := data[1]
	msg.Key = int64(binary.BigEndian.Uint64(data[2:10]))
	pos := binaryHeaderSize

	// readBytes reads a length prefixed byte field
	readBytes := func(field string) ([]byte, error) {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("data too short for %s length", field)
		}
		n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if n < 0 || pos+n > len(data) {
			return nil, fmt.Errorf("data too short for %s data", field)
		}
		out := make([]byte, n)
		copy(out, data[pos:pos+n])
		pos += n
		return out, nil
	}

	// readUint64 reads a fixed size field
	readUint64 := func(field string) (uint64, error) {
		if pos+8 > len(data) {
			return 0, fmt.Errorf("data too short for %s", field)
		}
		v := binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
		return v, nil
	}

	var err error

	msg.Value = nil
	if flags&hasValue != 0 {
		if msg.Value, err = readBytes("value"); err != nil {
			return err
		}
	}

	msg.Generation = 0
	if flags&hasGeneration != 0 {
		if msg.Generation, err = readUint64("generation"); err != nil {
			return err
		}
	}

	msg.Code = 0
	if flags&hasCode != 0 {
		if msg.Code, err = readUint64("code"); err != nil {
			return err
		}
	}

	msg.Err = ""
	if flags&hasErr != 0 {
		errBytes, err := readBytes("error")
		if err != nil {
			return err
		}
		msg.Err = string(errBytes)
	}

	msg.Meta = nil
	if flags&hasMeta != 0 {
		if msg.Meta, err = readBytes("meta"); err != nil {
			return err
		}
	}

	if pos != len(data) {
		return fmt.Errorf("%d trailing bytes after message", len(data)-pos)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := binaryHeaderSize

	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Generation > 0 {
		size += 8
	}
	if msg.Code > 0 {
		size += 8
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}
