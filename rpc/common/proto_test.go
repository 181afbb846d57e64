package common

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/store"
	"github.com/ValentinKolb/dTrie/lib/token"
)

func TestMessageTypeJSON(t *testing.T) {
	for mt := MsgTSuccess; mt <= MsgTExplore; mt++ {
		data, err := json.Marshal(mt)
		require.NoError(t, err)

		var decoded MessageType
		require.NoError(t, json.Unmarshal(data, &decoded), string(data))
		assert.Equal(t, mt, decoded)
	}

	var mt MessageType
	assert.Error(t, json.Unmarshal([]byte(`"compact"`), &mt))
	assert.Equal(t, "unknown", MessageType(200).String())
}

func TestIsStreaming(t *testing.T) {
	assert.True(t, MsgTPrefix.IsStreaming())
	assert.True(t, MsgTMatch.IsStreaming())
	assert.True(t, MsgTExplore.IsStreaming())
	assert.False(t, MsgTLookup.IsStreaming())
	assert.False(t, MsgTItem.IsStreaming())
}

func TestResultCode(t *testing.T) {
	for _, out := range []db.Outcome{db.OutcomeInserted, db.OutcomeReplaced, db.OutcomeRemoved, db.OutcomeNotFound} {
		rc := ResultFromOutcome(out)
		assert.Equal(t, out, rc.Outcome())

		data, err := json.Marshal(rc)
		require.NoError(t, err)
		var decoded ResultCode
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, rc, decoded)
	}
	assert.Equal(t, db.OutcomeNone, ResultFound.Outcome())
}

func TestAsError(t *testing.T) {
	assert.NoError(t, NewLookupResponse([]byte("v"), true, nil).AsError())
	assert.NoError(t, NewEndRecord(3).AsError())

	err := NewErrorResponse(token.ErrPatternInconsistent).AsError()
	require.Error(t, err)
	assert.True(t, errors.Is(err, token.ErrPatternInconsistent))

	// errors without a code are internal errors
	err = (&Message{MsgType: MsgTError, Err: "boom"}).AsError()
	var se *store.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, store.RetCInternalError, se.Code)
	assert.Equal(t, "boom", se.Msg)

	// a failed write keeps its type but carries the error
	err = NewWriteResponse(MsgTInsert, db.OutcomeNone, store.Unsupported("Insert")).AsError()
	require.ErrorAs(t, err, &se)
	assert.Equal(t, store.RetCUnsupportedOperation, se.Code)
}

func TestInfoResponse(t *testing.T) {
	msg := NewInfoResponse(db.DatabaseInfo{Entries: 3, SizeBytes: 10}, nil)
	require.NoError(t, msg.AsError())

	var info db.DatabaseInfo
	require.NoError(t, json.Unmarshal(msg.Meta, &info))
	assert.Equal(t, 3, info.Entries)
	assert.Equal(t, 10, info.SizeBytes)
}
