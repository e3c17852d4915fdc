// Package handler dispatches compiled commands against the store,
// replica registry, and live counters, generalizing the teacher's
// commands.Registry.HandleCommand into the role-aware dispatch table of
// spec.md §4.6, grounded on original_source/src/handler.rs's
// CommandHandler for the master/replica branching.
package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mathiusj/goredis-replica/internal/command"
	"github.com/mathiusj/goredis-replica/internal/conn"
	"github.com/mathiusj/goredis-replica/internal/errors"
	"github.com/mathiusj/goredis-replica/internal/logger"
	"github.com/mathiusj/goredis-replica/internal/meta"
	"github.com/mathiusj/goredis-replica/internal/rdb"
	"github.com/mathiusj/goredis-replica/internal/replica"
	"github.com/mathiusj/goredis-replica/internal/resp"
	"github.com/mathiusj/goredis-replica/internal/store"
)

// Store is the subset of *store.Store the handler depends on.
type Store interface {
	Get(key []byte) ([]byte, bool)
	Set(key, value []byte, ttl *time.Duration)
}

// Handler dispatches commands for one server instance. Replicas is nil
// on a replica-role server, since only a master tracks replica sessions.
type Handler struct {
	Meta     *meta.Metadata
	Live     *meta.LiveData
	Store    Store
	Replicas *replica.Registry

	// WaitPollInterval controls how often WAIT re-checks up_to_date_count
	// while polling; overridable by tests to avoid slow sleeps.
	WaitPollInterval time.Duration
}

// New creates a handler wired to the given collaborators.
func New(m *meta.Metadata, live *meta.LiveData, st *store.Store, reg *replica.Registry) *Handler {
	return &Handler{
		Meta:             m,
		Live:             live,
		Store:            st,
		Replicas:         reg,
		WaitPollInterval: 20 * time.Millisecond,
	}
}

// Handle dispatches cmd, writing any reply to c. Commands that produce
// no reply on this role (PING/SET on a replica, REPLCONF ACK) write
// nothing.
func (h *Handler) Handle(cmd command.Command, c *conn.Conn) error {
	switch cmd.Kind {
	case command.Ping:
		return h.handlePing(c)
	case command.Echo:
		return c.Write(resp.BulkStringValue([]byte(cmd.Arg)).Serialize())
	case command.Get:
		return h.handleGet(cmd, c)
	case command.Set:
		return h.handleSet(cmd, c)
	case command.Info:
		return c.Write(h.infoReply(cmd.Arg).Serialize())
	case command.ReplConf:
		return h.handleReplConf(cmd, c)
	case command.Psync:
		return h.handlePsync(c)
	case command.Wait:
		return h.handleWait(cmd, c)
	default:
		return c.Write(resp.ErrorValue(errors.UnknownCommand(cmd.Raw).Error()).Serialize())
	}
}

func (h *Handler) handlePing(c *conn.Conn) error {
	if h.Meta.IsMaster() {
		return c.Write(resp.Pong().Serialize())
	}
	h.Live.SetHeartbeat(time.Now())
	return nil
}

func (h *Handler) handleGet(cmd command.Command, c *conn.Conn) error {
	v, ok := h.Store.Get([]byte(cmd.Arg))
	if !ok {
		return c.Write(resp.NullBulkString().Serialize())
	}
	return c.Write(resp.BulkStringValue(v).Serialize())
}

// handleSet applies the write, and on a master re-serializes it in
// canonical PX form for the replication stream before replying.
func (h *Handler) handleSet(cmd command.Command, c *conn.Conn) error {
	var ttl *time.Duration
	if cmd.Expiry != nil {
		d := time.Duration(*cmd.Expiry) * time.Millisecond
		ttl = &d
	}
	h.Store.Set(cmd.Key, cmd.Value, ttl)

	if !h.Meta.IsMaster() {
		return nil
	}

	frame := serializeCanonicalSet(cmd)
	h.Replicas.Broadcast(frame)
	offset := h.Live.AddReplicationOffset(len(frame))
	logger.WithFields(logger.Fields{"offset": offset}).Debug("broadcast SET to replicas")
	return c.Write(resp.OK().Serialize())
}

func serializeCanonicalSet(cmd command.Command) []byte {
	parts := []string{"SET", string(cmd.Key), string(cmd.Value)}
	if cmd.Expiry != nil {
		parts = append(parts, "PX", strconv.FormatInt(*cmd.Expiry, 10))
	}
	return resp.BulkStringArray(parts...).Serialize()
}

func (h *Handler) infoReply(section string) resp.Value {
	if strings.ToLower(section) != "replication" {
		return resp.BulkStringValue(nil)
	}

	var lines []string
	if h.Meta.IsMaster() {
		lines = []string{
			"role:master",
			fmt.Sprintf("master_replid:%s", h.Meta.ReplicationID),
			fmt.Sprintf("master_repl_offset:%d", h.Live.ReplicationOffset()),
		}
	} else {
		lines = []string{"role:slave"}
	}
	return resp.BulkStringValue([]byte(strings.Join(lines, "\r\n")))
}

func (h *Handler) handleReplConf(cmd command.Command, c *conn.Conn) error {
	switch cmd.ReplConfKind {
	case command.ListeningPort, command.Capa:
		return c.Write(resp.OK().Serialize())

	case command.Ack:
		if h.Replicas != nil {
			h.Replicas.UpdateOffset(c.RemoteAddr().String(), cmd.AckOffset)
		}
		return nil

	case command.GetAck:
		ack := resp.BulkStringArray("REPLCONF", "ACK", strconv.FormatUint(h.Live.ProcessedOffset(), 10))
		return c.Write(ack.Serialize())

	default:
		return c.Write(resp.OK().Serialize())
	}
}

// handlePsync implements the master side of a full resync: write the
// FULLRESYNC reply, the framed empty snapshot, then register the peer
// as a replica session.
func (h *Handler) handlePsync(c *conn.Conn) error {
	reply := resp.SimpleStringValue(
		fmt.Sprintf("FULLRESYNC %s %d", h.Meta.ReplicationID, h.Live.ReplicationOffset()),
	)
	if err := c.Write(reply.Serialize()); err != nil {
		return err
	}
	if err := c.Write(rdb.EmptySnapshot()); err != nil {
		return err
	}

	session := &replica.Session{Addr: c.RemoteAddr().String(), Conn: c}
	h.Replicas.Add(session)
	logger.WithFields(logger.Fields{"addr": session.Addr}).Info("registered replica")
	return nil
}

// handleWait implements §4.9: snapshot the target offset, probe every
// replica with GETACK, then poll up_to_date_count until it satisfies
// the requested count or the timeout elapses.
func (h *Handler) handleWait(cmd command.Command, c *conn.Conn) error {
	if !h.Meta.IsMaster() {
		return c.Write(resp.ErrorValue(errors.ErrNotMaster.Error()).Serialize())
	}

	if cmd.ReplicaCount == 0 {
		return c.Write(resp.IntegerValue(0).Serialize())
	}

	target := h.Live.ReplicationOffset()

	getack := resp.BulkStringArray("REPLCONF", "GETACK", "*").Serialize()
	h.Replicas.Broadcast(getack)

	deadline := time.Now().Add(time.Duration(cmd.TimeoutMS) * time.Millisecond)
	for {
		count := h.Replicas.UpToDateCount(target)
		if count >= cmd.ReplicaCount || time.Now().After(deadline) {
			return c.Write(resp.IntegerValue(int64(count)).Serialize())
		}
		time.Sleep(h.WaitPollInterval)
	}
}
