package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/ValentinKolb/dTrie/rpc/common"
)

// frameKind tells the receiver how a frame relates to its request
type frameKind uint8

const (
	frameLast   frameKind = iota // request, or the final record of a response
	frameMore                    // intermediate record of a streaming response
	frameCancel                  // client asks the server to stop the request (empty)
)

const (
	// frameHeaderSize is 8 bytes shardID + 8 bytes requestID + 1 byte kind + 4 bytes length
	frameHeaderSize = 21
	// maxFrameSize bounds the payload of a single frame
	maxFrameSize = 256 << 20
)

// writeFrame writes a frame to the connection with the format:
// - 8 bytes: shardId (uint64, big endian)
// - 8 bytes: requestID (uint64, big endian)
// - 1 byte: kind
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(w io.Writer, shardID uint64, requestID uint64, kind frameKind, data []byte) error {
	if len(data) > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit of %d bytes", len(data), maxFrameSize)
	}
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[:8], shardID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	header[16] = byte(kind)
	binary.BigEndian.PutUint32(header[17:21], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(w)
	return err
}

// readFrame reads a frame from the connection using the provided buffer
// If the buffer is too small, it will allocate a new temporary buffer for the data
func readFrame(r io.Reader, buf []byte) (shardID uint64, requestID uint64, kind frameKind, data []byte, err error) {
	if len(buf) < frameHeaderSize {
		buf = make([]byte, frameHeaderSize)
	}

	if _, err = io.ReadFull(r, buf[:frameHeaderSize]); err != nil {
		return 0, 0, 0, nil, err
	}

	shardID = binary.BigEndian.Uint64(buf[:8])
	requestID = binary.BigEndian.Uint64(buf[8:16])
	kind = frameKind(buf[16])
	contentLength := binary.BigEndian.Uint32(buf[17:21])

	if contentLength > maxFrameSize {
		return 0, 0, 0, nil, fmt.Errorf("frame of %d bytes exceeds limit of %d bytes", contentLength, maxFrameSize)
	}

	if contentLength == 0 {
		return shardID, requestID, kind, []byte{}, nil
	}

	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	if _, err = io.ReadFull(r, buf[:contentLength]); err != nil {
		return 0, 0, 0, nil, err
	}

	return shardID, requestID, kind, buf[:contentLength], nil
}

// --------------------------------------------------------------------------
// Socket options (shared by the tcp and unix connectors)
// --------------------------------------------------------------------------

// ApplySocketConf sets the socket buffer sizes of conn if configured
func ApplySocketConf(conn net.Conn, config common.SocketConf) error {
	type bufferedConn interface {
		SetWriteBuffer(bytes int) error
		SetReadBuffer(bytes int) error
	}
	bc, ok := conn.(bufferedConn)
	if !ok {
		return nil
	}
	if config.WriteBufferSize > 0 {
		if err := bc.SetWriteBuffer(config.WriteBufferSize); err != nil {
			return err
		}
	}
	if config.ReadBufferSize > 0 {
		if err := bc.SetReadBuffer(config.ReadBufferSize); err != nil {
			return err
		}
	}
	return nil
}

// ApplyTCPConf applies TCP specific settings to conn, other connections are left untouched
func ApplyTCPConf(conn net.Conn, config common.TCPConf) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	// Disable Nagle's algorithm if configured
	if err := tcpConn.SetNoDelay(config.TCPNoDelay); err != nil {
		return err
	}

	if config.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(config.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	if config.TCPLingerSec >= 0 {
		if err := tcpConn.SetLinger(config.TCPLingerSec); err != nil {
			return err
		}
	}
	return nil
}
