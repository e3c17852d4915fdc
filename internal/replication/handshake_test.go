package replication

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathiusj/goredis-replica/internal/conn"
	"github.com/mathiusj/goredis-replica/internal/rdb"
	"github.com/mathiusj/goredis-replica/internal/resp"
)

// fakeMaster runs the master side of the handshake (§4.7 step-by-step
// sequence) against one accepted connection, then writes trailingBytes
// immediately after the RDB snapshot to simulate the first replicated
// command arriving in the same read.
func fakeMaster(t *testing.T, ln net.Listener, trailingBytes []byte) {
	t.Helper()
	nc, err := ln.Accept()
	require.NoError(t, err)
	defer nc.Close()

	c := conn.New(nc)

	expectArray := func(want ...string) {
		for {
			v, n, err := resp.Parse(c.Buffer())
			if err == resp.ErrIncomplete {
				require.NoError(t, c.ReadMore())
				continue
			}
			require.NoError(t, err)
			c.Consume(n)
			name, args, err := v.CommandParts()
			require.NoError(t, err)
			require.Equal(t, want[0], name)
			for i, a := range want[1:] {
				assert.Equal(t, a, string(args[i]))
			}
			return
		}
	}

	expectArray("PING")
	require.NoError(t, c.Write(resp.Pong().Serialize()))

	expectArray("REPLCONF", "listening-port")
	require.NoError(t, c.Write(resp.OK().Serialize()))

	expectArray("REPLCONF", "capa", "psync2")
	require.NoError(t, c.Write(resp.OK().Serialize()))

	expectArray("PSYNC", "?", "-1")
	require.NoError(t, c.Write(resp.SimpleStringValue("FULLRESYNC abc123 0").Serialize()))
	require.NoError(t, c.Write(rdb.EmptySnapshot()))
	if len(trailingBytes) > 0 {
		require.NoError(t, c.Write(trailingBytes))
	}
}

func TestHandshakeSucceedsAndLeavesTrailingBytesBuffered(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	trailing := resp.BulkStringArray("SET", "foo", "bar").Serialize()
	go fakeMaster(t, ln, trailing)

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	h := &Handshake{MasterHost: host, MasterPort: port, ReplicaPort: 6380}
	c, err := h.Run()
	require.NoError(t, err)
	defer c.Close()

	assert.Eventually(t, func() bool { return len(c.Buffer()) > 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, trailing, c.Buffer())
}

func TestHandshakeFailsOnBadPingResponse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		defer nc.Close()
		c := conn.New(nc)
		for {
			_, n, err := resp.Parse(c.Buffer())
			if err == resp.ErrIncomplete {
				c.ReadMore()
				continue
			}
			c.Consume(n)
			break
		}
		c.Write(resp.ErrorValue("ERR boom").Serialize())
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	h := &Handshake{MasterHost: host, MasterPort: port, ReplicaPort: 6380}
	_, err = h.Run()
	assert.Error(t, err)
}
