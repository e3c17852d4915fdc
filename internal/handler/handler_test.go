package handler

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathiusj/goredis-replica/internal/command"
	"github.com/mathiusj/goredis-replica/internal/conn"
	"github.com/mathiusj/goredis-replica/internal/meta"
	"github.com/mathiusj/goredis-replica/internal/replica"
	"github.com/mathiusj/goredis-replica/internal/resp"
	"github.com/mathiusj/goredis-replica/internal/store"
)

func newPipe(t *testing.T) (*conn.Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { server.Close(); client.Close() })
	return conn.New(server), client
}

func readFrame(t *testing.T, client net.Conn) resp.Value {
	t.Helper()
	buf := make([]byte, 4096)
	n, err := client.Read(buf)
	require.NoError(t, err)
	v, consumed, err := resp.Parse(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, n, consumed)
	return v
}

func masterHandler() *Handler {
	m := &meta.Metadata{Role: meta.RoleMaster, ReplicationID: "a1b2c3d4e5a1b2c3d4e5a1b2c3d4e5a1b2c3d4e5"}
	return New(m, &meta.LiveData{}, store.New(), replica.New())
}

func replicaHandler() *Handler {
	m := &meta.Metadata{Role: meta.RoleReplica}
	return New(m, &meta.LiveData{}, store.New(), nil)
}

func TestPingOnMasterRepliesPong(t *testing.T) {
	h := masterHandler()
	c, client := newPipe(t)

	go func() { h.Handle(command.Command{Kind: command.Ping}, c) }()

	v := readFrame(t, client)
	assert.Equal(t, resp.Pong(), v)
}

func TestPingOnReplicaRecordsHeartbeatAndNoReply(t *testing.T) {
	h := replicaHandler()
	c, client := newPipe(t)

	before := h.Live.Heartbeat()
	require.NoError(t, h.Handle(command.Command{Kind: command.Ping}, c))
	assert.True(t, h.Live.Heartbeat().After(before))

	client.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
	_, err := client.Read(make([]byte, 1))
	assert.Error(t, err, "replica must not reply to PING")
}

func TestGetMissingKeyReturnsNullBulk(t *testing.T) {
	h := masterHandler()
	c, client := newPipe(t)

	go func() { h.Handle(command.Command{Kind: command.Get, Arg: "missing"}, c) }()

	v := readFrame(t, client)
	assert.True(t, v.IsNull)
}

func TestSetOnMasterBroadcastsAndAdvancesOffset(t *testing.T) {
	h := masterHandler()
	replicaConn, replicaClient := newPipe(t)
	h.Replicas.Add(&replica.Session{Addr: "replica:1", Conn: replicaConn})

	c, client := newPipe(t)
	go func() {
		h.Handle(command.Command{Kind: command.Set, Key: []byte("foo"), Value: []byte("bar")}, c)
	}()

	broadcast := readFrame(t, replicaClient)
	name, args, err := broadcast.CommandParts()
	require.NoError(t, err)
	assert.Equal(t, "SET", name)
	assert.Equal(t, []byte("foo"), args[0])
	assert.Equal(t, []byte("bar"), args[1])

	reply := readFrame(t, client)
	assert.Equal(t, resp.OK(), reply)

	assert.Equal(t, uint64(len(broadcast.Serialize())), h.Live.ReplicationOffset())

	v, ok := h.Store.Get([]byte("foo"))
	require.True(t, ok)
	assert.Equal(t, []byte("bar"), v)
}

func TestSetOnReplicaAppliesSilently(t *testing.T) {
	h := replicaHandler()
	c, client := newPipe(t)

	require.NoError(t, h.Handle(command.Command{Kind: command.Set, Key: []byte("foo"), Value: []byte("bar")}, c))

	v, ok := h.Store.Get([]byte("foo"))
	require.True(t, ok)
	assert.Equal(t, []byte("bar"), v)

	client.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
	_, err := client.Read(make([]byte, 1))
	assert.Error(t, err, "replica must not reply to a replicated SET")
}

func TestInfoReplicationOnMaster(t *testing.T) {
	h := masterHandler()
	c, client := newPipe(t)

	go func() { h.Handle(command.Command{Kind: command.Info, Arg: "replication"}, c) }()

	v := readFrame(t, client)
	assert.Contains(t, string(v.Bulk), "role:master")
	assert.Contains(t, string(v.Bulk), h.Meta.ReplicationID)
}

func TestInfoReplicationOnReplica(t *testing.T) {
	h := replicaHandler()
	c, client := newPipe(t)

	go func() { h.Handle(command.Command{Kind: command.Info, Arg: "replication"}, c) }()

	v := readFrame(t, client)
	assert.Contains(t, string(v.Bulk), "role:slave")
}

func TestReplConfListeningPortAndCapaReplyOK(t *testing.T) {
	h := masterHandler()
	c, client := newPipe(t)

	go func() {
		h.Handle(command.Command{Kind: command.ReplConf, ReplConfKind: command.ListeningPort}, c)
	}()
	assert.Equal(t, resp.OK(), readFrame(t, client))

	go func() {
		h.Handle(command.Command{Kind: command.ReplConf, ReplConfKind: command.Capa}, c)
	}()
	assert.Equal(t, resp.OK(), readFrame(t, client))
}

func TestReplConfAckUpdatesRegistry(t *testing.T) {
	h := masterHandler()
	c, client := newPipe(t)
	addr := c.RemoteAddr().String()
	h.Replicas.Add(&replica.Session{Addr: addr, Conn: c})

	require.NoError(t, h.Handle(command.Command{Kind: command.ReplConf, ReplConfKind: command.Ack, AckOffset: 42}, c))
	assert.Equal(t, 1, h.Replicas.UpToDateCount(42))

	client.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
	_, err := client.Read(make([]byte, 1))
	assert.Error(t, err, "REPLCONF ACK must not get a reply")
}

func TestReplConfGetAckRepliesWithProcessedOffset(t *testing.T) {
	h := replicaHandler()
	h.Live.AddProcessedOffset(37)
	c, client := newPipe(t)

	go func() { h.Handle(command.Command{Kind: command.ReplConf, ReplConfKind: command.GetAck}, c) }()

	v := readFrame(t, client)
	name, args, err := v.CommandParts()
	require.NoError(t, err)
	assert.Equal(t, "REPLCONF", name)
	assert.Equal(t, "37", string(args[1]))
}

func TestPsyncRepliesFullResyncThenSnapshotAndRegistersReplica(t *testing.T) {
	h := masterHandler()
	c, client := newPipe(t)

	go func() { h.Handle(command.Command{Kind: command.Psync}, c) }()

	buf := make([]byte, 4096)
	total := 0
	deadline := time.Now().Add(time.Second)
	for total < 60 && time.Now().Before(deadline) {
		n, err := client.Read(buf[total:])
		require.NoError(t, err)
		total += n
	}

	fullresync, n1, err := resp.Parse(buf[:total])
	require.NoError(t, err)
	assert.Contains(t, fullresync.Str, "FULLRESYNC")

	_, n2, err := resp.ParseRDBPayload(buf[n1:total])
	require.NoError(t, err)
	assert.Equal(t, total, n1+n2)

	assert.Equal(t, 1, h.Replicas.Count())
}

func TestWaitWithZeroReplicasRepliesImmediately(t *testing.T) {
	h := masterHandler()
	c, client := newPipe(t)

	go func() { h.Handle(command.Command{Kind: command.Wait, ReplicaCount: 0, TimeoutMS: 1000}, c) }()

	v := readFrame(t, client)
	assert.Equal(t, int64(0), v.Int)
}

func TestWaitOnReplicaIsRejected(t *testing.T) {
	h := replicaHandler()
	c, client := newPipe(t)

	go func() { h.Handle(command.Command{Kind: command.Wait, ReplicaCount: 1, TimeoutMS: 100}, c) }()

	v := readFrame(t, client)
	assert.True(t, v.IsError())
}

func TestWaitTimesOutWhenReplicaNeverAcks(t *testing.T) {
	h := masterHandler()
	h.WaitPollInterval = time.Millisecond
	h.Live.AddReplicationOffset(10)

	replicaConn, replicaClient := newPipe(t)
	h.Replicas.Add(&replica.Session{Addr: "r:1", Conn: replicaConn})
	go func() {
		buf := make([]byte, 64)
		replicaClient.Read(buf)
	}()

	c, client := newPipe(t)
	go func() { h.Handle(command.Command{Kind: command.Wait, ReplicaCount: 1, TimeoutMS: 30}, c) }()

	v := readFrame(t, client)
	assert.Equal(t, int64(0), v.Int)
}

func TestWaitSatisfiedOnceReplicaAcks(t *testing.T) {
	h := masterHandler()
	h.WaitPollInterval = time.Millisecond
	h.Live.AddReplicationOffset(10)

	replicaConn, replicaClient := newPipe(t)
	h.Replicas.Add(&replica.Session{Addr: "r:1", Conn: replicaConn})
	go func() {
		buf := make([]byte, 64)
		replicaClient.Read(buf)
		h.Replicas.UpdateOffset("r:1", 10)
	}()

	c, client := newPipe(t)
	go func() { h.Handle(command.Command{Kind: command.Wait, ReplicaCount: 1, TimeoutMS: 2000}, c) }()

	v := readFrame(t, client)
	assert.Equal(t, int64(1), v.Int)
}
