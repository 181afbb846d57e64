package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dTrie/lib/store"
	"github.com/ValentinKolb/dTrie/lib/token"
	"github.com/ValentinKolb/dTrie/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format:
//
//	msgType u8 | flags u16 | present fields in flag order
//
// Paths and patterns use the token binary encoding, byte fields and strings are
// prefixed with their length as u32. All integers are big endian.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasPath     uint16 = 1 << 0
	hasPattern  uint16 = 1 << 1
	hasValue    uint16 = 1 << 2
	hasResult   uint16 = 1 << 3
	hasCount    uint16 = 1 << 4
	hasBindings uint16 = 1 << 5
	hasErrCode  uint16 = 1 << 6
	hasErr      uint16 = 1 << 7
	hasMeta     uint16 = 1 << 8
)

const binaryHeaderSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, binaryHeaderSize, b.estimateSize(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	var flags uint16

	if msg.Path != nil {
		flags |= hasPath
		result = msg.Path.AppendBinary(result)
	}

	if msg.Pattern != nil {
		flags |= hasPattern
		result = msg.Pattern.AppendBinary(result)
	}

	if msg.Value != nil {
		flags |= hasValue
		result = appendBytes(result, msg.Value)
	}

	if msg.Result != common.ResultNone {
		flags |= hasResult
		result = append(result, byte(msg.Result))
	}

	if msg.Count > 0 {
		flags |= hasCount
		result = binary.BigEndian.AppendUint64(result, msg.Count)
	}

	if msg.Bindings != nil {
		flags |= hasBindings
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Bindings)))
		for _, name := range msg.Bindings.Names() {
			result = appendBytes(result, []byte(name))
			result = msg.Bindings[name].AppendBinary(result)
		}
	}

	if msg.ErrCode != store.RetCSuccess {
		flags |= hasErrCode
		result = append(result, byte(msg.ErrCode))
	}

	if msg.Err != "" {
		flags |= hasErr
		result = appendBytes(result, []byte(msg.Err))
	}

	if msg.Meta != nil {
		flags |= hasMeta
		result = appendBytes(result, msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:3], flags)

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < binaryHeaderSize {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	flags := binary.BigEndian.Uint16(data[1:3])
	pos := binaryHeaderSize

	// Path
	msg.Path = nil
	if flags&hasPath != 0 {
		p, n, err := token.DecodePath(data[pos:])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		msg.Path = p
		pos += n
	}

	// Pattern
	msg.Pattern = nil
	if flags&hasPattern != 0 {
		p, n, err := token.DecodePattern(data[pos:])
		if err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
		msg.Pattern = p
		pos += n
	}

	// Value, the buffer of msg is reused if possible
	if flags&hasValue != 0 {
		raw, n, err := readBytes(data[pos:], "value")
		if err != nil {
			return err
		}
		if msg.Value == nil || cap(msg.Value) < len(raw) {
			msg.Value = make([]byte, len(raw))
		} else {
			msg.Value = msg.Value[:len(raw)]
		}
		copy(msg.Value, raw)
		pos += n
	} else {
		msg.Value = nil
	}

	// Result
	msg.Result = common.ResultNone
	if flags&hasResult != 0 {
		if pos+1 > len(data) {
			return fmt.Errorf("data too short for result")
		}
		msg.Result = common.ResultCode(data[pos])
		pos++
	}

	// Count
	msg.Count = 0
	if flags&hasCount != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for count")
		}
		msg.Count = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	}

	// Bindings
	msg.Bindings = nil
	if flags&hasBindings != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for bindings count")
		}
		count := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
		// every binding needs at least a name length and a path length
		if int(count) > (len(data)-pos)/5 {
			return fmt.Errorf("bindings count %d exceeds data", count)
		}
		msg.Bindings = make(token.Bindings, count)
		for i := uint32(0); i < count; i++ {
			name, n, err := readBytes(data[pos:], "binding name")
			if err != nil {
				return err
			}
			pos += n
			p, n, err := token.DecodePath(data[pos:])
			if err != nil {
				return fmt.Errorf("invalid binding %q: %w", name, err)
			}
			pos += n
			msg.Bindings[string(name)] = p
		}
	}

	// ErrCode
	msg.ErrCode = store.RetCSuccess
	if flags&hasErrCode != 0 {
		if pos+1 > len(data) {
			return fmt.Errorf("data too short for error code")
		}
		msg.ErrCode = store.RetCode(data[pos])
		pos++
	}

	// Err
	msg.Err = ""
	if flags&hasErr != 0 {
		raw, n, err := readBytes(data[pos:], "error")
		if err != nil {
			return err
		}
		msg.Err = string(raw)
		pos += n
	}

	// Meta, the buffer of msg is reused if possible
	if flags&hasMeta != 0 {
		raw, n, err := readBytes(data[pos:], "meta")
		if err != nil {
			return err
		}
		if msg.Meta == nil || cap(msg.Meta) < len(raw) {
			msg.Meta = make([]byte, len(raw))
		} else {
			msg.Meta = msg.Meta[:len(raw)]
		}
		copy(msg.Meta, raw)
		pos += n
	} else {
		msg.Meta = nil
	}

	if pos != len(data) {
		return fmt.Errorf("%d trailing bytes after message", len(data)-pos)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// estimateSize returns an upper bound of the serialized size for the common case, it is
// only used as the initial capacity of the result buffer
func (b binarySerializerImpl) estimateSize(msg common.Message) int {
	size := binaryHeaderSize
	// a symbol takes up to 10 bytes plus the atom text
	size += 10 + len(msg.Path)*12
	size += 10 + len(msg.Pattern)*12
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	size += 1 + 8 + 1 // result, count, errCode
	for name, p := range msg.Bindings {
		size += 4 + len(name) + 10 + len(p)*12
	}
	size += 4 + len(msg.Err)
	size += 4 + len(msg.Meta)
	return size
}

// appendBytes appends len(b) as u32 followed by b
func appendBytes(dst, b []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(b)))
	return append(dst, b...)
}

// readBytes reads a u32 length prefixed field and returns it (not copied) together with
// the number of consumed bytes
func readBytes(data []byte, field string) ([]byte, int, error) {
	if len(data) < 4 {
		return nil, 0, fmt.Errorf("data too short for %s length", field)
	}
	l := binary.BigEndian.Uint32(data[:4])
	if uint64(l) > uint64(len(data)-4) {
		return nil, 0, fmt.Errorf("data too short for %s data", field)
	}
	return data[4 : 4+int(l)], 4 + int(l), nil
}
