package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/token"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTInsert CommandType = iota // Insert a path or replace its payload.
	CommandTDelete                    // Delete a path.
	CommandTClear                     // Delete all paths.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTInsert:
		return "Insert"
	case CommandTDelete:
		return "Delete"
	case CommandTClear:
		return "Clear"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature.
// This can be used for checking if the database supports a certain operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTInsert:
		return db.FeatureInsert, nil
	case CommandTDelete:
		return db.FeatureDelete, nil
	case CommandTClear:
		return db.FeatureClear, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// headerSize is the size of the fixed part of a serialized command: type + path length.
const headerSize = 1 + 4

// Command represents a command to be executed by the state machine (a single entry in the raft log)
type Command struct {
	Type  CommandType
	Path  token.Path
	Value []byte
}

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	return headerSize + len(command.Path.AppendBinary(nil)) + len(command.Value)
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 4 bytes for the length of the encoded path (big endian),
// N bytes for the path in the token binary encoding,
// N bytes for value data (optional)
func (command *Command) Serialize() []byte {
	result := make([]byte, headerSize, headerSize+len(command.Path)*2+len(command.Value))
	result[0] = byte(command.Type)

	result = command.Path.AppendBinary(result)
	binary.BigEndian.PutUint32(result[1:headerSize], uint32(len(result)-headerSize))

	return append(result, command.Value...)
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	pathLen := int(binary.BigEndian.Uint32(data[1:headerSize]))
	if len(data) < headerSize+pathLen {
		return fmt.Errorf("data too short for path of length %d", pathLen)
	}

	path, n, err := token.DecodePath(data[headerSize : headerSize+pathLen])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if n != pathLen {
		return fmt.Errorf("%w: %d trailing bytes after path", token.ErrMalformed, pathLen-n)
	}
	command.Path = path

	rest := data[headerSize+pathLen:]
	if len(rest) == 0 {
		command.Value = nil
		return nil
	}
	// Reuse existing buffer if possible to reduce allocations
	if cap(command.Value) < len(rest) {
		command.Value = make([]byte, len(rest))
	} else {
		command.Value = command.Value[:len(rest)]
	}
	copy(command.Value, rest)
	return nil
}

// --------------------------------------------------------------------------
// Command Results
// --------------------------------------------------------------------------

// EncodeOutcome encodes the outcome of an insert or delete as result data.
func EncodeOutcome(o db.Outcome) []byte {
	return []byte{byte(o)}
}

// DecodeOutcome is the inverse of EncodeOutcome.
func DecodeOutcome(data []byte) (db.Outcome, error) {
	if len(data) != 1 {
		return db.OutcomeNone, fmt.Errorf("invalid outcome of %d bytes", len(data))
	}
	return db.Outcome(data[0]), nil
}

// EncodeCount encodes the number of paths removed by a clear as result data.
func EncodeCount(n int) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(n))
}

// DecodeCount is the inverse of EncodeCount.
func DecodeCount(data []byte) (int, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("invalid count of %d bytes", len(data))
	}
	return int(binary.BigEndian.Uint64(data)), nil
}
