package serializer

import (
	"testing"

	"github.com/ValentinKolb/dTrie/lib/store"
	"github.com/ValentinKolb/dTrie/lib/token"
	"github.com/ValentinKolb/dTrie/rpc/common"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	longPath := make(token.Path, 0, 64)
	longPath = append(longPath, token.Arity(63))
	for i := 0; i < 63; i++ {
		longPath = append(longPath, token.Atom("segment"))
	}
	return map[string]common.Message{
		"Empty": {
			MsgType: common.MsgTSuccess,
		},
		"ShortPathOnly": {
			MsgType: common.MsgTLookup,
			Path:    token.P(token.Atom("k")),
		},
		"MediumPathOnly": {
			MsgType: common.MsgTLookup,
			Path:    edgePath,
		},
		"LongPathOnly": {
			MsgType: common.MsgTLookup,
			Path:    longPath,
		},
		"SmallValue": {
			MsgType: common.MsgTInsert,
			Path:    edgePath,
			Value:   []byte("v"),
		},
		"LargeValue": {
			MsgType: common.MsgTInsert,
			Path:    edgePath,
			Value:   make([]byte, 1024), // 1KB of data
		},
		"VeryLargeValue": {
			MsgType: common.MsgTInsert,
			Path:    edgePath,
			Value:   make([]byte, 1024*16), // 16KB of data
		},
		"MatchRequest": {
			MsgType: common.MsgTMatch,
			Pattern: token.Pattern{
				token.Lit(token.Arity(3)), token.Lit(token.Atom("edge")), token.Var("x"), token.Var("x"),
			},
		},
		"MatchItem": {
			MsgType:  common.MsgTItem,
			Path:     edgePath,
			Value:    []byte("payload"),
			Bindings: token.Bindings{"x": token.P(token.Int(1)), "y": token.P(token.Atom("b"))},
		},
		"ErrorMessage": {
			MsgType: common.MsgTError,
			ErrCode: store.RetCMalformedRequest,
			Err:     "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.",
		},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various message types
func BenchmarkSerialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					_, err := serializer.Serialize(msg)
					if err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various message types
func BenchmarkDeserialize(b *testing.B) {
	messages := benchmarkMessages()
	serializedData := make(map[string]map[string][]byte)

	// Pre-serialize all messages with all serializers
	for name, factory := range testSerializers {
		serializer := factory()
		serializedData[name] = make(map[string][]byte)

		for msgName, msg := range messages {
			data, err := serializer.Serialize(msg)
			if err != nil {
				b.Fatalf("Failed to serialize %s with %s: %v", msgName, name, err)
			}
			serializedData[name][msgName] = data
		}
	}

	// Benchmark deserialization
	for name, factory := range testSerializers {
		for msgName := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data := serializedData[name][msgName]
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var msg common.Message
					err := serializer.Deserialize(data, &msg)
					if err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkSize measures and reports the serialized size for each message type
func BenchmarkSize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		serializer := factory()

		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				data, err := serializer.Serialize(msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}

				// Report the size as a custom metric
				b.ReportMetric(float64(len(data)), "bytes")

				// Minimal loop to satisfy benchmark requirements
				for i := 0; i < b.N; i++ {
					_ = data
				}
			})
		}
	}
}
