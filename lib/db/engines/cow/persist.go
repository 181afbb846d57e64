package cow

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/token"
)

const flagKeysOnly = 1 << 0

// maxEntryBytes bounds a single encoded path or value when loading.
const maxEntryBytes = 1 << 30

// writeSnapshot writes all entries of s in symbol order:
//
//	magic | version u8 | flags u8 | writeIndex u64 | count u64 |
//	count x (pathLen u32 | path | valueLen u32 | value)
//
// Integers are little endian, paths use the token binary encoding.
func writeSnapshot(w io.Writer, s *snapshot) error {
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	var flags uint8
	if s.keysOnly {
		flags |= flagKeysOnly
	}
	header := []any{uint8(cowVersion), flags, s.version, uint64(s.size)}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	cur := s.Prefix(context.Background(), nil)
	defer cur.Close()

	var buf []byte
	written := 0
	for cur.Next() {
		e := cur.Entry()
		buf = e.Path.AppendBinary(buf[:0])

		if err := binary.Write(bw, binary.LittleEndian, uint32(len(buf))); err != nil {
			return err
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(e.Value))); err != nil {
			return err
		}
		if _, err := bw.Write(e.Value); err != nil {
			return err
		}
		written++
	}
	if err := cur.Err(); err != nil {
		return err
	}
	if written != s.size {
		return fmt.Errorf("snapshot size mismatch: wrote %d of %d entries", written, s.size)
	}

	return bw.Flush()
}

// readSnapshot reads data written by writeSnapshot and builds a new trie from it. Payloads
// are dropped if keysOnly is set.
func readSnapshot(r io.Reader, keysOnly bool) (*node, int, uint64, error) {
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return nil, 0, 0, err
	}
	if string(magicBytes) != magicNum {
		return nil, 0, 0, fmt.Errorf("invalid file format: magic number mismatch")
	}

	var (
		version    uint8
		flags      uint8
		writeIndex uint64
		count      uint64
	)
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, 0, 0, err
	}
	if int(version) != cowVersion {
		return nil, 0, 0, fmt.Errorf("unsupported version: %d (expected %d)", version, cowVersion)
	}
	for _, v := range []any{&flags, &writeIndex, &count} {
		if err := binary.Read(br, binary.LittleEndian, v); err != nil {
			return nil, 0, 0, err
		}
	}

	root := &node{}
	size := 0
	for i := uint64(0); i < count; i++ {
		pathBytes, err := readChunk(br)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("entry %d: %w", i, err)
		}
		path, n, err := token.DecodePath(pathBytes)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("entry %d: %w", i, err)
		}
		if n != len(pathBytes) {
			return nil, 0, 0, fmt.Errorf("entry %d: trailing bytes after path", i)
		}
		value, err := readChunk(br)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("entry %d: %w", i, err)
		}
		if keysOnly || flags&flagKeysOnly != 0 || len(value) == 0 {
			value = nil
		}

		var out db.Outcome
		root, out = insertAt(root, path, value)
		if out == db.OutcomeInserted {
			size++
		}
	}
	return root, size, writeIndex, nil
}

func readChunk(r io.Reader) ([]byte, error) {
	var l uint32
	if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
		return nil, err
	}
	if l > maxEntryBytes {
		return nil, fmt.Errorf("chunk of %d bytes exceeds limit", l)
	}
	b := make([]byte, l)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
