package http

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecord(&buf, recordMore, []byte("item-1")))
	require.NoError(t, writeRecord(&buf, recordMore, nil))
	require.NoError(t, writeRecord(&buf, recordLast, []byte("end")))

	expected := []struct {
		kind recordKind
		data []byte
	}{
		{recordMore, []byte("item-1")},
		{recordMore, []byte{}},
		{recordLast, []byte("end")},
	}
	for _, e := range expected {
		kind, data, err := readRecord(&buf)
		require.NoError(t, err)
		assert.Equal(t, e.kind, kind)
		assert.Equal(t, e.data, data)
	}

	_, _, err := readRecord(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadRecordErrors(t *testing.T) {
	// header announces more data than present
	header := []byte{byte(recordLast), 0, 0, 0, 10}
	_, _, err := readRecord(bytes.NewReader(append(header, 'a', 'b')))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	// oversized record
	big := make([]byte, recordHeaderSize)
	binary.BigEndian.PutUint32(big[1:], maxRecordSize+1)
	_, _, err = readRecord(bytes.NewReader(big))
	assert.Error(t, err)

	// truncated header
	_, _, err = readRecord(bytes.NewReader([]byte{1, 0}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
