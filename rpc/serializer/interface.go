package serializer

import "github.com/ValentinKolb/tKV/rpc/common"

// IRPCSerializer converts messages to and from their wire representation.
// Implementations must be safe for concurrent use.
type IRPCSerializer interface {
	// Serialize encodes msg. The returned slice is owned by the caller.
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg. Every field of msg is overwritten,
	// fields missing in b are reset to their zero value.
	Deserialize(b []byte, msg *common.Message) error
}
