package internal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/token"
)

// TestSizeBytes tests the SizeBytes method
func TestSizeBytes(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{
			name:    "Insert with payload",
			command: Command{Type: CommandTInsert, Path: token.Atoms("edge", "a"), Value: []byte("v")},
		},
		{
			name:    "Delete without payload",
			command: Command{Type: CommandTDelete, Path: token.P(token.Arity(2), token.Int(-7), token.Atom(""))},
		},
		{
			name:    "Clear",
			command: Command{Type: CommandTClear},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if size, got := tt.command.SizeBytes(), len(tt.command.Serialize()); size != got {
				t.Errorf("SizeBytes() = %v, serialized length %v", size, got)
			}
		})
	}
}

// TestSerializeDeserialize tests both Serialize and Deserialize methods
func TestSerializeDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{
			name:    "Insert with payload",
			command: Command{Type: CommandTInsert, Path: token.Atoms("edge", "a", "b"), Value: []byte("payload")},
		},
		{
			name:    "Insert of the empty path",
			command: Command{Type: CommandTInsert, Path: token.Path{}},
		},
		{
			name:    "Delete with mixed symbols",
			command: Command{Type: CommandTDelete, Path: token.P(token.Arity(3), token.Atom("f"), token.Int(1<<40), token.Atom("$x"))},
		},
		{
			name:    "Clear",
			command: Command{Type: CommandTClear},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.command.Serialize()

			var got Command
			if err := got.Deserialize(data); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}
			if got.Type != tt.command.Type {
				t.Errorf("Type = %v, want %v", got.Type, tt.command.Type)
			}
			if !got.Path.Equal(tt.command.Path) {
				t.Errorf("Path = %v, want %v", got.Path, tt.command.Path)
			}
			if !bytes.Equal(got.Value, tt.command.Value) {
				t.Errorf("Value = %q, want %q", got.Value, tt.command.Value)
			}
		})
	}
}

// TestDeserializeErrors tests Deserialize with invalid input
func TestDeserializeErrors(t *testing.T) {
	valid := (&Command{Type: CommandTInsert, Path: token.Atoms("a", "b")}).Serialize()

	// path length pointing beyond the data
	tooLong := bytes.Clone(valid)
	binary.BigEndian.PutUint32(tooLong[1:5], 1000)

	// path length cutting the encoded path
	cut := bytes.Clone(valid)
	binary.BigEndian.PutUint32(cut[1:5], uint32(len(valid)-headerSize-1))

	// path length too large for the encoded path
	trailing := append(bytes.Clone(valid), 0)
	binary.BigEndian.PutUint32(trailing[1:5], uint32(len(trailing)-headerSize))

	tests := []struct {
		name string
		data []byte
	}{
		{"Empty data", nil},
		{"Header only partially present", []byte{0, 0, 0}},
		{"Path length too long", tooLong},
		{"Path cut off", cut},
		{"Trailing byte inside path", trailing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Command
			if err := c.Deserialize(tt.data); err == nil {
				t.Errorf("Deserialize() expected error, got nil (command %+v)", c)
			}
		})
	}

	var c Command
	if err := c.Deserialize(trailing); !errors.Is(err, token.ErrMalformed) {
		t.Errorf("Deserialize() error = %v, want token.ErrMalformed", err)
	}
}

// TestBufferReuse tests that Deserialize reuses the value buffer and drops old values
func TestBufferReuse(t *testing.T) {
	var c Command
	c.Value = make([]byte, 0, 64)
	buf := c.Value[:1]

	if err := c.Deserialize((&Command{Type: CommandTInsert, Path: token.Atoms("a"), Value: []byte("abc")}).Serialize()); err != nil {
		t.Fatal(err)
	}
	if &c.Value[0] != &buf[0] {
		t.Errorf("Deserialize() did not reuse the value buffer")
	}

	if err := c.Deserialize((&Command{Type: CommandTDelete, Path: token.Atoms("a")}).Serialize()); err != nil {
		t.Fatal(err)
	}
	if c.Value != nil {
		t.Errorf("Value = %q, want nil", c.Value)
	}
}

func TestResults(t *testing.T) {
	for _, o := range []db.Outcome{db.OutcomeInserted, db.OutcomeReplaced, db.OutcomeRemoved, db.OutcomeNotFound} {
		got, err := DecodeOutcome(EncodeOutcome(o))
		if err != nil || got != o {
			t.Errorf("DecodeOutcome(EncodeOutcome(%v)) = %v, %v", o, got, err)
		}
	}
	if _, err := DecodeOutcome(nil); err == nil {
		t.Errorf("DecodeOutcome(nil) expected error")
	}

	n, err := DecodeCount(EncodeCount(12345))
	if err != nil || n != 12345 {
		t.Errorf("DecodeCount(EncodeCount(12345)) = %v, %v", n, err)
	}
	if _, err := DecodeCount([]byte{1}); err == nil {
		t.Errorf("DecodeCount() expected error for short data")
	}
}

func TestToDBFeature(t *testing.T) {
	for ct, want := range map[CommandType]db.Feature{
		CommandTInsert: db.FeatureInsert,
		CommandTDelete: db.FeatureDelete,
		CommandTClear:  db.FeatureClear,
	} {
		got, err := ct.ToDBFeature()
		if err != nil || got != want {
			t.Errorf("%v.ToDBFeature() = %v, %v", ct, got, err)
		}
	}
	if _, err := CommandType(99).ToDBFeature(); err == nil {
		t.Errorf("ToDBFeature() expected error for unknown type")
	}
}
