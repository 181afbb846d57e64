package serializer

import (
	"testing"

	"github.com/ValentinKolb/dTrie/lib/store"
	"github.com/ValentinKolb/dTrie/lib/token"
	"github.com/ValentinKolb/dTrie/rpc/common"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// messageOpts compares symbols by value, json and gob do not keep the difference between
// nil and empty slices
var messageOpts = cmp.Options{
	cmp.Comparer(func(a, b token.Symbol) bool { return a.Kind() == b.Kind() && a.Compare(b) == 0 }),
	cmpopts.EquateEmpty(),
}

var edgePath = token.P(token.Arity(3), token.Atom("edge"), token.Int(1), token.Atom("b"))

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Insert request
		{
			MsgType: common.MsgTInsert,
			Path:    edgePath,
			Value:   []byte("test-value"),
		},

		// Lookup response
		{
			MsgType: common.MsgTLookup,
			Result:  common.ResultFound,
			Value:   []byte("test-value"),
		},

		// Match request
		{
			MsgType: common.MsgTMatch,
			Pattern: token.Pattern{
				token.Lit(token.Arity(3)), token.Lit(token.Atom("edge")), token.Var("x"), token.Many("rest"),
			},
		},

		// Item record of a match
		{
			MsgType: common.MsgTItem,
			Path:    edgePath,
			Bindings: token.Bindings{
				"x":    token.P(token.Int(1)),
				"rest": token.P(token.Atom("b")),
			},
		},

		// End record
		{MsgType: common.MsgTEnd, Count: 42},

		// Error response
		{
			MsgType: common.MsgTError,
			ErrCode: store.RetCPatternInconsistent,
			Err:     "test error message",
		},

		// Message with all fields filled
		{
			MsgType:  common.MsgTInfo,
			Path:     edgePath,
			Pattern:  token.Exact(edgePath),
			Value:    []byte("test-value"),
			Result:   common.ResultReplaced,
			Count:    7,
			Bindings: token.Bindings{"y": token.P(token.Int(-3))},
			ErrCode:  store.RetCInternalError,
			Err:      "boom",
			Meta:     []byte(`{"entries":1}`),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if diff := cmp.Diff(msg, result, messageOpts); diff != "" {
					t.Errorf("Message %d doesn't match after round trip (-want +got):\n%s", i, diff)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// MsgTUnknown is not tested since it cannot be encoded as json
			for msgType := common.MsgTSuccess; msgType <= common.MsgTEnd; msgType++ {
				msg := common.Message{MsgType: msgType}

				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestBinarySerializerSpecific tests the distinction between nil and empty fields, which
// only the binary serializer keeps
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Empty path selects everything",
			msg:  common.Message{MsgType: common.MsgTPrefix, Path: token.Path{}},
		},
		{
			name: "Empty value slice but not nil",
			msg:  common.Message{MsgType: common.MsgTInsert, Path: edgePath, Value: []byte{}},
		},
		{
			name: "Binding to the empty sequence",
			msg: common.Message{
				MsgType:  common.MsgTItem,
				Path:     edgePath,
				Bindings: token.Bindings{"rest": token.Path{}},
			},
		},
		{
			name: "Empty meta slice but not nil",
			msg:  common.Message{MsgType: common.MsgTInfo, Meta: []byte{}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if (tc.msg.Path == nil) != (result.Path == nil) {
				t.Errorf("Path nil/non-nil mismatch: expected %v, got %v", tc.msg.Path, result.Path)
			}
			if (tc.msg.Value == nil) != (result.Value == nil) {
				t.Errorf("Value nil/non-nil mismatch: expected %v, got %v", tc.msg.Value, result.Value)
			}
			if (tc.msg.Meta == nil) != (result.Meta == nil) {
				t.Errorf("Meta nil/non-nil mismatch: expected %v, got %v", tc.msg.Meta, result.Meta)
			}
			if !tc.msg.Bindings.Equal(result.Bindings) {
				t.Errorf("Bindings mismatch: expected %s, got %s", tc.msg.Bindings, result.Bindings)
			}
			if tc.msg.MsgType != result.MsgType {
				t.Errorf("MsgType mismatch: expected %v, got %v", tc.msg.MsgType, result.MsgType)
			}
		})
	}
}

// TestBinaryBufferReuse checks that a reused message does not keep fields of the previous one
func TestBinaryBufferReuse(t *testing.T) {
	serializer := NewBinarySerializer()

	first, _ := serializer.Serialize(common.Message{
		MsgType: common.MsgTItem, Path: edgePath, Value: []byte("a long first value"),
		Bindings: token.Bindings{"x": edgePath},
	})
	second, _ := serializer.Serialize(common.Message{MsgType: common.MsgTItem, Value: []byte("short")})

	var msg common.Message
	if err := serializer.Deserialize(first, &msg); err != nil {
		t.Fatal(err)
	}
	if err := serializer.Deserialize(second, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Path != nil || msg.Bindings != nil {
		t.Errorf("fields of the previous message were kept: %+v", msg)
	}
	if string(msg.Value) != "short" {
		t.Errorf("Value mismatch: expected 'short', got '%s'", msg.Value)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Message type and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Truncated path",
			data:        []byte{3, 0, 1, 3}, // Claims a path of 3 symbols but none follow
			expectError: true,
		},
		{
			name:        "Invalid length for value",
			data:        []byte{3, 0, 4, 0, 0, 0, 10}, // Claims value length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Too many bindings",
			data:        []byte{9, 0, 32, 0, 0, 1, 0}, // Claims 256 bindings
			expectError: true,
		},
		{
			name:        "Trailing bytes",
			data:        []byte{1, 0, 0, 1},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
