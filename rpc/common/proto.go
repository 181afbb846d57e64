package common

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/store"
	"github.com/ValentinKolb/dTrie/lib/token"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Path    token.Path    `json:"path,omitempty"`    // Used for: Insert, Delete, Lookup, Prefix, Explore (requests), Item (responses)
	Pattern token.Pattern `json:"pattern,omitempty"` // Used for: Match
	Value   []byte        `json:"value,omitempty"`   // Used for: Insert (request), Lookup and Item (responses)

	// Response only fields
	Result   ResultCode     `json:"result,omitempty"`   // Used for: Insert, Delete, Lookup responses
	Count    uint64         `json:"count,omitempty"`    // Used for: Clear responses (removed paths), End records (streamed items)
	Bindings token.Bindings `json:"bindings,omitempty"` // Used for: Item records of a Match
	ErrCode  store.RetCode  `json:"err_code,omitempty"` // Code of the error, see store.RetCode
	Err      string         `json:"err,omitempty"`      // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Info responses (JSON encoded db.DatabaseInfo)
}

// AsError returns the error carried by the message as *store.Error, or nil.
func (m *Message) AsError() error {
	if m.MsgType != MsgTError && m.Err == "" {
		return nil
	}
	code := m.ErrCode
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewInsertRequest creates a new Insert request
func NewInsertRequest(path token.Path, value []byte) *Message {
	return &Message{
		MsgType: MsgTInsert,
		Path:    path,
		Value:   value,
	}
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(path token.Path) *Message {
	return &Message{
		MsgType: MsgTDelete,
		Path:    path,
	}
}

// NewWriteResponse creates the response for an Insert or Delete request
func NewWriteResponse(msgType MessageType, outcome db.Outcome, err error) *Message {
	msg := &Message{
		MsgType: msgType,
		Result:  ResultFromOutcome(outcome),
	}
	setErr(msg, err)
	return msg
}

// NewLookupRequest creates a new Lookup request
func NewLookupRequest(path token.Path) *Message {
	return &Message{
		MsgType: MsgTLookup,
		Path:    path,
	}
}

// NewLookupResponse creates a new Lookup response
func NewLookupResponse(value []byte, found bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTLookup,
		Result:  ResultNotFound,
	}
	if found {
		msg.Result = ResultFound
		msg.Value = value
	}
	setErr(msg, err)
	return msg
}

// NewPrefixRequest creates a new Prefix request
func NewPrefixRequest(prefix token.Path) *Message {
	return &Message{
		MsgType: MsgTPrefix,
		Path:    prefix,
	}
}

// NewMatchRequest creates a new Match request
func NewMatchRequest(pattern token.Pattern) *Message {
	return &Message{
		MsgType: MsgTMatch,
		Pattern: pattern,
	}
}

// NewExploreRequest creates a new Explore request
func NewExploreRequest(prefix token.Path) *Message {
	return &Message{
		MsgType: MsgTExplore,
		Path:    prefix,
	}
}

// NewItemRecord creates an intermediate record of a Prefix or Match response
func NewItemRecord(e db.Entry) *Message {
	return &Message{
		MsgType:  MsgTItem,
		Path:     e.Path,
		Value:    e.Value,
		Bindings: e.Bindings,
	}
}

// NewEndRecord creates the final record of a successful Prefix or Match response
func NewEndRecord(count uint64) *Message {
	return &Message{
		MsgType: MsgTEnd,
		Count:   count,
	}
}

// NewClearRequest creates a new Clear request
func NewClearRequest() *Message {
	return &Message{MsgType: MsgTClear}
}

// NewClearResponse creates a new Clear response
func NewClearResponse(removed int, err error) *Message {
	msg := &Message{
		MsgType: MsgTClear,
		Count:   uint64(max(removed, 0)),
	}
	setErr(msg, err)
	return msg
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{MsgType: MsgTInfo}
}

// NewInfoResponse creates a new Info response carrying the JSON encoded info
func NewInfoResponse(info db.DatabaseInfo, err error) *Message {
	msg := &Message{MsgType: MsgTInfo}
	if err == nil {
		msg.Meta, err = json.Marshal(info)
	}
	setErr(msg, err)
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err error) *Message {
	msg := &Message{MsgType: MsgTError}
	setErr(msg, err)
	return msg
}

// NewErrorResponseCode creates a new Error response from a code and a message
func NewErrorResponseCode(code store.RetCode, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		ErrCode: code,
		Err:     err,
	}
}

func setErr(msg *Message, err error) {
	if err == nil {
		return
	}
	se := store.FromError(err)
	msg.ErrCode = se.Code
	msg.Err = se.Msg
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// IsStreaming reports whether the response to a request of this type consists of any
// number of Item records followed by an End (or Error) record.
func (t MessageType) IsStreaming() bool {
	return t == MsgTPrefix || t == MsgTMatch || t == MsgTExplore
}

var messageTypeNames = map[MessageType]string{
	MsgTSuccess: "success",
	MsgTError:   "error",
	MsgTInsert:  "insert",
	MsgTDelete:  "delete",
	MsgTLookup:  "lookup",
	MsgTPrefix:  "prefix",
	MsgTMatch:   "match",
	MsgTClear:   "clear",
	MsgTInfo:    "info",
	MsgTItem:    "item",
	MsgTEnd:     "end",
	MsgTExplore: "explore",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for mt, name := range messageTypeNames {
		if name == s {
			*t = mt
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred, terminates a stream

	// IStore operations

	MsgTInsert // Insert a path or replace its payload
	MsgTDelete // Delete a path
	MsgTLookup // Get the payload of a path
	MsgTPrefix // Enumerate all paths with a prefix (streaming)
	MsgTMatch  // Enumerate all paths matching a pattern (streaming)
	MsgTClear  // Delete all paths of a space
	MsgTInfo   // Get database information of a space

	// Stream records

	MsgTItem // One result of a streaming request
	MsgTEnd  // End of a successful stream

	MsgTExplore // Enumerate the next symbols below a prefix (streaming)
)

// --------------------------------------------------------------------------
// Result Codes
// --------------------------------------------------------------------------

// ResultCode is the result of an Insert, Delete or Lookup request.
type ResultCode uint8

const (
	ResultNone ResultCode = iota
	ResultInserted
	ResultReplaced
	ResultRemoved
	ResultNotFound
	ResultFound
)

var resultCodeNames = map[ResultCode]string{
	ResultNone:     "",
	ResultInserted: "inserted",
	ResultReplaced: "replaced",
	ResultRemoved:  "removed",
	ResultNotFound: "not_found",
	ResultFound:    "found",
}

// ResultFromOutcome converts the outcome of a write into a ResultCode.
func ResultFromOutcome(o db.Outcome) ResultCode {
	switch o {
	case db.OutcomeInserted:
		return ResultInserted
	case db.OutcomeReplaced:
		return ResultReplaced
	case db.OutcomeRemoved:
		return ResultRemoved
	case db.OutcomeNotFound:
		return ResultNotFound
	default:
		return ResultNone
	}
}

// Outcome converts a ResultCode of a write back into a db.Outcome.
func (r ResultCode) Outcome() db.Outcome {
	switch r {
	case ResultInserted:
		return db.OutcomeInserted
	case ResultReplaced:
		return db.OutcomeReplaced
	case ResultRemoved:
		return db.OutcomeRemoved
	case ResultNotFound:
		return db.OutcomeNotFound
	default:
		return db.OutcomeNone
	}
}

func (r ResultCode) String() string {
	if name, ok := resultCodeNames[r]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(r))
}

func (r ResultCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *ResultCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for rc, name := range resultCodeNames {
		if name == s {
			*r = rc
			return nil
		}
	}
	return fmt.Errorf("unknown result code: %s", s)
}
