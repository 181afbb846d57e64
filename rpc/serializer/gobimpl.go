package serializer

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/ValentinKolb/dTrie/rpc/common"
)

// NewGOBSerializer creates a new serializer using Go's binary gob format. Every message
// is a self-contained gob stream, so the type description is sent with each message.
func NewGOBSerializer() IRPCSerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the IRPCSerializer interface using gob encoding. Symbols
// use their GobEncoder implementation (the compact token encoding).
type gobSerializerImpl struct{}

func (g gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&msg); err != nil {
		return nil, fmt.Errorf("gob serializer: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize resets msg first since gob leaves fields untouched that were zero when encoded
func (g gobSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	*msg = common.Message{}
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(msg); err != nil {
		return fmt.Errorf("gob serializer: %w", err)
	}
	return nil
}
