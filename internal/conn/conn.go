// Package conn wraps a net.Conn with the growable read buffer every
// RESP consumer parses against, replacing the teacher's bufio.Reader
// usage so callers can drive the parse/read_more/consume loop described
// in spec.md §4.4 directly against a byte slice.
package conn

import (
	"errors"
	"io"
	"net"
	"time"
)

// MaxMessageSize is the per-connection maximum buffered message size.
// Exceeding it while reading is a fatal framing error.
const MaxMessageSize = 1 << 20 // 1 MiB

// ErrMessageTooLarge is returned by ReadMore when the buffer would grow
// past MaxMessageSize.
var ErrMessageTooLarge = errors.New("conn: message exceeds maximum size")

// Conn pairs a duplex byte stream with a growable unread-data buffer.
type Conn struct {
	nc  net.Conn
	buf []byte
}

// New wraps nc for buffered RESP framing.
func New(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// ReadMore performs one blocking read into the buffer tail. It returns
// io.EOF on a clean close and ErrMessageTooLarge if the buffer would
// grow past MaxMessageSize; the bytes of that read are then dropped. The net package's runtime poller already
// retries an interrupted syscall internally, so a single Read suffices.
func (c *Conn) ReadMore() error {
	if len(c.buf) >= MaxMessageSize {
		return ErrMessageTooLarge
	}

	tmp := make([]byte, 4096)
	n, err := c.nc.Read(tmp)
	if n > 0 {
		if len(c.buf)+n > MaxMessageSize {
			return ErrMessageTooLarge
		}
		c.buf = append(c.buf, tmp[:n]...)
	}
	if n == 0 && err == nil {
		return io.EOF
	}
	return err
}

// Write writes all of b to the underlying stream, handling partial
// writes.
func (c *Conn) Write(b []byte) error {
	for len(b) > 0 {
		n, err := c.nc.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// Buffer returns the currently buffered, unconsumed bytes. The slice is
// only valid until the next ReadMore or Consume call.
func (c *Conn) Buffer() []byte {
	return c.buf
}

// Consume drops the first n bytes from the head of the buffer.
func (c *Conn) Consume(n int) {
	c.buf = append(c.buf[:0], c.buf[n:]...)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// RemoteAddr returns the peer address of the underlying connection.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// SetReadDeadline sets the read deadline on the underlying connection.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.nc.SetReadDeadline(t)
}

// Underlying returns the wrapped net.Conn, for callers that need the raw
// connection rather than the buffered wrapper.
func (c *Conn) Underlying() net.Conn {
	return c.nc
}

var _ io.Closer = (*Conn)(nil)
