package serializer

import "github.com/ValentinKolb/dTrie/rpc/common"

// IRPCSerializer converts Messages to and from bytes. Implementations are stateless and
// may be shared between goroutines.
type IRPCSerializer interface {
	// Serialize encodes msg. The returned slice belongs to the caller.
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg, replacing all of its fields. msg does not keep
	// references into b.
	Deserialize(b []byte, msg *common.Message) error
}
