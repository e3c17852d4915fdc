// Package replication drives the replica side of the replication
// handshake, rewritten from the teacher's ad hoc byte-at-a-time
// receiveRDB/prependReader hack onto the shared internal/conn buffer,
// following the same read-buffer/parse/consume loop as
// original_source/src/replication/handshake.rs's Handshaker.
package replication

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/mathiusj/goredis-replica/internal/conn"
	"github.com/mathiusj/goredis-replica/internal/logger"
	"github.com/mathiusj/goredis-replica/internal/resp"
)

// DialTimeout bounds the initial TCP connect to the master.
const DialTimeout = 5 * time.Second

// Handshake carries the parameters needed to bootstrap against a master.
type Handshake struct {
	MasterHost  string
	MasterPort  string
	ReplicaPort uint16
}

// Run performs the full handshake sequence from spec.md §4.7 and
// returns the connection positioned at the start of the replicated
// command stream — any bytes read past the RDB payload in the same
// network read remain buffered in c for the caller's read loop.
func (h *Handshake) Run() (*conn.Conn, error) {
	addr := fmt.Sprintf("%s:%s", h.MasterHost, h.MasterPort)
	logger.WithFields(logger.Fields{"addr": addr}).Info("connecting to master")

	nc, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("replication: dial master: %w", err)
	}
	c := conn.New(nc)

	// The 5s budget covers the handshake only; it is cleared before the
	// connection is handed to the replicated command stream, which has
	// no read deadline of its own.
	c.SetReadDeadline(time.Now().Add(DialTimeout))

	if err := h.ping(c); err != nil {
		c.Close()
		return nil, err
	}
	if err := h.replconf(c); err != nil {
		c.Close()
		return nil, err
	}
	if err := h.psync(c); err != nil {
		c.Close()
		return nil, err
	}
	if err := h.receiveRDB(c); err != nil {
		c.Close()
		return nil, err
	}

	c.SetReadDeadline(time.Time{})
	logger.WithFields(logger.Fields{"addr": addr}).Info("handshake with master complete")
	return c, nil
}

func (h *Handshake) ping(c *conn.Conn) error {
	if err := c.Write(resp.BulkStringArray("PING").Serialize()); err != nil {
		return fmt.Errorf("replication: send PING: %w", err)
	}
	v, err := readFrame(c)
	if err != nil {
		return fmt.Errorf("replication: PING response: %w", err)
	}
	if v.Type != resp.SimpleString || !strings.EqualFold(v.Str, "PONG") {
		return fmt.Errorf("replication: unexpected PING response %q", v.Str)
	}
	return nil
}

func (h *Handshake) replconf(c *conn.Conn) error {
	port := fmt.Sprintf("%d", h.ReplicaPort)
	if err := h.sendAndExpectOK(c, resp.BulkStringArray("REPLCONF", "listening-port", port)); err != nil {
		return err
	}
	return h.sendAndExpectOK(c, resp.BulkStringArray("REPLCONF", "capa", "psync2"))
}

func (h *Handshake) sendAndExpectOK(c *conn.Conn, req resp.Value) error {
	if err := c.Write(req.Serialize()); err != nil {
		return fmt.Errorf("replication: send %v: %w", req, err)
	}
	v, err := readFrame(c)
	if err != nil {
		return fmt.Errorf("replication: response to %v: %w", req, err)
	}
	if v.Type != resp.SimpleString || !strings.EqualFold(v.Str, "OK") {
		return fmt.Errorf("replication: unexpected response %q", v.Str)
	}
	return nil
}

func (h *Handshake) psync(c *conn.Conn) error {
	if err := c.Write(resp.BulkStringArray("PSYNC", "?", "-1").Serialize()); err != nil {
		return fmt.Errorf("replication: send PSYNC: %w", err)
	}
	v, err := readFrame(c)
	if err != nil {
		return fmt.Errorf("replication: PSYNC response: %w", err)
	}
	if v.Type != resp.SimpleString || !strings.HasPrefix(v.Str, "FULLRESYNC ") {
		return fmt.Errorf("replication: unexpected PSYNC response %q", v.Str)
	}
	logger.Debug("received %s", v.Str)
	return nil
}

// receiveRDB reads the framed empty snapshot. The replica does not
// parse its contents beyond the framing length; any trailing bytes
// still in c's buffer belong to the first replicated command.
func (h *Handshake) receiveRDB(c *conn.Conn) error {
	for {
		_, n, err := resp.ParseRDBPayload(c.Buffer())
		if err == nil {
			c.Consume(n)
			return nil
		}
		if err != resp.ErrIncomplete {
			return fmt.Errorf("replication: RDB payload: %w", err)
		}
		if err := c.ReadMore(); err != nil {
			return fmt.Errorf("replication: reading RDB payload: %w", err)
		}
	}
}

// readFrame runs the standard parse/read_more retry loop for one frame
// and consumes it from c's buffer.
func readFrame(c *conn.Conn) (resp.Value, error) {
	for {
		v, n, err := resp.Parse(c.Buffer())
		if err == nil {
			c.Consume(n)
			return v, nil
		}
		if err != resp.ErrIncomplete {
			return resp.Value{}, err
		}
		if err := c.ReadMore(); err != nil {
			return resp.Value{}, err
		}
	}
}
