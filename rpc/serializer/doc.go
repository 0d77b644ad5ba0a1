// Package serializer turns common.Message values into bytes and back for the
// tKV RPC layer. Tensor payloads travel inside Message.Value already encoded
// with the tensor codec, so a serializer never has to know about shapes or devices.
//
// Implementations:
//
//   - binarySerializerImpl: fixed header (type, flags, key) followed by the
//     fields named in the flag byte. Smallest payloads and the default on the wire.
//
//   - jsonSerializerImpl: human-readable, handy when inspecting traffic.
//
//   - gobSerializerImpl: Go's gob format, kept for compatibility testing.
//
// All implementations are stateless and can be shared between goroutines.
// Deserialize resets every field of the target message, so a single
// common.Message can be reused for a stream of requests.
//
// Usage:
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(*common.NewPullRequest(3))
//	// ... send data ...
//	var resp common.Message
//	err = s.Deserialize(received, &resp)
package serializer
