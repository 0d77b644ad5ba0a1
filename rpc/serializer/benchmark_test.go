package serializer

import (
	"testing"

	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/rpc/common"
)

// benchmarkMessages returns the messages a worker and coordinator typically exchange
func benchmarkMessages(b *testing.B) map[string]common.Message {
	return map[string]common.Message{
		"Ack":         *common.NewPushResponse(nil),
		"PullRequest": *common.NewPullRequest(17),
		"Push8":       *common.NewPushRequest(1, encodedTensor(b, []int{8}, 1)),
		"Push32x32":   *common.NewPushRequest(2, encodedTensor(b, []int{32, 32}, 1)),
		"Push256x256": *common.NewPushRequest(3, encodedTensor(b, []int{256, 256}, 1)),
		"Pull64x64":   *common.NewPullResponse(encodedTensor(b, []int{64, 64}, 0.25), 1234, nil),
		"UnknownKey":  *common.NewPullResponse(nil, 0, store.Errorf(store.RetCUnknownKey, "key %d was never initialized", 17)),
	}
}

// forEachCase runs fn as a sub-benchmark for every serializer and message
func forEachCase(b *testing.B, fn func(b *testing.B, s IRPCSerializer, msg common.Message)) {
	messages := benchmarkMessages(b)
	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"/"+msgName, func(b *testing.B) {
				fn(b, factory(), msg)
			})
		}
	}
}

// mustSerialize encodes msg or aborts the benchmark
func mustSerialize(b *testing.B, s IRPCSerializer, msg common.Message) []byte {
	data, err := s.Serialize(msg)
	if err != nil {
		b.Fatalf("Failed to serialize: %v", err)
	}
	return data
}

func BenchmarkSerialize(b *testing.B) {
	forEachCase(b, func(b *testing.B, s IRPCSerializer, msg common.Message) {
		b.SetBytes(int64(len(msg.Value)))
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := s.Serialize(msg); err != nil {
				b.Fatalf("Failed to serialize: %v", err)
			}
		}
	})
}

// BenchmarkDeserialize decodes into one reused message, as the transport handlers do
func BenchmarkDeserialize(b *testing.B) {
	forEachCase(b, func(b *testing.B, s IRPCSerializer, msg common.Message) {
		data := mustSerialize(b, s, msg)
		var out common.Message
		b.SetBytes(int64(len(msg.Value)))
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if err := s.Deserialize(data, &out); err != nil {
				b.Fatalf("Failed to deserialize: %v", err)
			}
		}
	})
}

// BenchmarkSize reports the encoded size and the overhead on top of the tensor payload
func BenchmarkSize(b *testing.B) {
	forEachCase(b, func(b *testing.B, s IRPCSerializer, msg common.Message) {
		data := mustSerialize(b, s, msg)
		b.ReportMetric(float64(len(data)), "bytes")
		b.ReportMetric(float64(len(data)-len(msg.Value)), "overhead_bytes")
		for i := 0; i < b.N; i++ {
			_ = data
		}
	})
}
