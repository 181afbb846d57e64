package http

import (
	"encoding/binary"
	"fmt"
	"io"
)

// recordKind marks the position of a record in a response body
type recordKind uint8

const (
	recordLast recordKind = iota // final record of a response
	recordMore                   // intermediate record of a streaming response
)

const (
	recordHeaderSize = 5 // kind u8 | length u32
	maxRecordSize    = 256 << 20
	maxRequestSize   = 256 << 20
)

// writeRecord writes kind u8 | length u32 (big endian) | data
func writeRecord(w io.Writer, kind recordKind, data []byte) error {
	header := make([]byte, recordHeaderSize, recordHeaderSize+len(data))
	header[0] = byte(kind)
	binary.BigEndian.PutUint32(header[1:], uint32(len(data)))
	_, err := w.Write(append(header, data...))
	return err
}

// readRecord reads one record written by writeRecord
func readRecord(r io.Reader) (recordKind, []byte, error) {
	var header [recordHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	kind := recordKind(header[0])
	l := binary.BigEndian.Uint32(header[1:])
	if l > maxRecordSize {
		return 0, nil, fmt.Errorf("record of %d bytes exceeds limit of %d bytes", l, maxRecordSize)
	}
	data := make([]byte, l)
	if _, err := io.ReadFull(r, data); err != nil {
		return 0, nil, fmt.Errorf("truncated record: %w", err)
	}
	return kind, data, nil
}
