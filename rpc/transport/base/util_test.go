package base

import (
	"bytes"
	"strings"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	frames := []struct {
		shardID, requestID uint64
		kind               frameKind
		data               []byte
	}{
		{100, 1, frameLast, []byte("request")},
		{100, 1, frameMore, []byte("item")},
		{200, 7, frameCancel, nil},
		{1 << 60, 1 << 62, frameLast, bytes.Repeat([]byte{0xab}, 4096)},
	}

	for _, f := range frames {
		if err := writeFrame(&buf, f.shardID, f.requestID, f.kind, f.data); err != nil {
			t.Fatalf("writeFrame failed: %v", err)
		}
	}

	// a pooled buffer smaller than the last payload forces an allocation
	pooled := make([]byte, 64)
	for i, f := range frames {
		shardID, requestID, kind, data, err := readFrame(&buf, pooled)
		if err != nil {
			t.Fatalf("frame %d: readFrame failed: %v", i, err)
		}
		if shardID != f.shardID || requestID != f.requestID || kind != f.kind {
			t.Errorf("frame %d: header mismatch: got (%d, %d, %d)", i, shardID, requestID, kind)
		}
		if !bytes.Equal(data, f.data) {
			t.Errorf("frame %d: data mismatch: got %d bytes, expected %d", i, len(data), len(f.data))
		}
	}

	if _, _, _, _, err := readFrame(&buf, nil); err == nil {
		t.Error("expected an error when reading past the last frame")
	}
}

func TestReadFrameErrors(t *testing.T) {
	// truncated header
	if _, _, _, _, err := readFrame(bytes.NewReader(make([]byte, frameHeaderSize-1)), nil); err == nil {
		t.Error("expected an error for a truncated header")
	}

	// header announces more data than available
	var buf bytes.Buffer
	if err := writeFrame(&buf, 1, 1, frameLast, []byte("0123456789")); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()-3]
	if _, _, _, _, err := readFrame(bytes.NewReader(truncated), nil); err == nil {
		t.Error("expected an error for truncated data")
	}

	// length above the limit
	header := make([]byte, frameHeaderSize)
	header[17], header[18], header[19], header[20] = 0xff, 0xff, 0xff, 0xff
	_, _, _, _, err := readFrame(bytes.NewReader(header), nil)
	if err == nil || !strings.Contains(err.Error(), "exceeds limit") {
		t.Errorf("expected a size limit error, got %v", err)
	}
}
