// Package server wires the leaf packages into the accept loop and the
// replica boot sequence described in spec.md §4.10, replacing the
// teacher's Server struct (which held an ad hoc []*Replica slice and a
// commands.Registry) with the store/replica-registry/handler
// composition the rest of this module is built from.
package server

import (
	"fmt"
	"net"
	"sync"

	"github.com/mathiusj/goredis-replica/internal/command"
	"github.com/mathiusj/goredis-replica/internal/config"
	"github.com/mathiusj/goredis-replica/internal/conn"
	"github.com/mathiusj/goredis-replica/internal/handler"
	"github.com/mathiusj/goredis-replica/internal/logger"
	"github.com/mathiusj/goredis-replica/internal/meta"
	"github.com/mathiusj/goredis-replica/internal/reaper"
	"github.com/mathiusj/goredis-replica/internal/replica"
	"github.com/mathiusj/goredis-replica/internal/replication"
	"github.com/mathiusj/goredis-replica/internal/resp"
	"github.com/mathiusj/goredis-replica/internal/store"
)

// Server owns every shared collaborator and the goroutines driving them.
type Server struct {
	addr string
	cfg  *config.Config

	meta     *meta.Metadata
	live     *meta.LiveData
	store    *store.Store
	replicas *replica.Registry
	reaper   *reaper.Reaper
	handler  *handler.Handler

	listener net.Listener
	wg       sync.WaitGroup
	shutdown chan struct{}

	mu          sync.Mutex
	replicaConn *conn.Conn
}

// New builds a server from cfg, deriving its master/replica role from
// cfg.IsReplica.
func New(cfg *config.Config) *Server {
	st := store.New()
	live := &meta.LiveData{}

	var md *meta.Metadata
	var reg *replica.Registry
	if cfg.IsReplica() {
		host, port := cfg.GetReplicaInfo()
		md = &meta.Metadata{
			ListeningPort: uint16(cfg.Port),
			Role:          meta.RoleReplica,
			MasterHost:    host,
			MasterPort:    port,
		}
	} else {
		md = &meta.Metadata{
			ListeningPort: uint16(cfg.Port),
			Role:          meta.RoleMaster,
			ReplicationID: meta.NewReplicationID(),
		}
		reg = replica.New()
	}

	return &Server{
		addr:     fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		cfg:      cfg,
		meta:     md,
		live:     live,
		store:    st,
		replicas: reg,
		reaper:   reaper.New(st, reaper.DefaultInterval),
		handler:  handler.New(md, live, st, reg),
		shutdown: make(chan struct{}),
	}
}

// Start binds the listening socket, launches the reaper, the accept
// loop, and — on a replica — the outbound connection to the master.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	logger.Info("listening on %s", s.addr)

	s.reaper.Start()

	if !s.meta.IsMaster() {
		s.wg.Add(1)
		go s.runReplicaClient()
	}

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and any outbound replication connection and
// stops the reaper, which ends the accept loop and the replica client
// loop. Connections already accepted are not closed; their workers exit
// only when the peer disconnects or sends an invalid frame.
func (s *Server) Stop() {
	close(s.shutdown)
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	if s.replicaConn != nil {
		s.replicaConn.Close()
	}
	s.mu.Unlock()
	s.reaper.Stop()
}

// Wait blocks until every worker goroutine has exited.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				logger.Error("accept: %v", err)
				return
			}
		}
		s.wg.Add(1)
		go s.serveConn(nc)
	}
}

// serveConn runs the standard parse/dispatch loop from spec.md §4.4
// until the peer disconnects or sends an invalid frame or command.
func (s *Server) serveConn(nc net.Conn) {
	defer s.wg.Done()

	c := conn.New(nc)
	addr := c.RemoteAddr().String()
	defer func() {
		c.Close()
		if s.replicas != nil {
			s.replicas.Remove(addr)
		}
	}()

	for {
		v, n, err := resp.Parse(c.Buffer())
		if err == nil {
			c.Consume(n)
			if !s.dispatch(v, c, addr) {
				return
			}
			continue
		}
		if err != resp.ErrIncomplete {
			logger.WithFields(logger.Fields{"addr": addr}).Debug("closing connection: invalid frame: %v", err)
			return
		}
		if err := c.ReadMore(); err != nil {
			return
		}
	}
}

// dispatch compiles and handles one frame, returning false when the
// connection must be closed.
func (s *Server) dispatch(v resp.Value, c *conn.Conn, addr string) bool {
	cmd, err := command.Compile(v)
	if err != nil {
		logger.WithFields(logger.Fields{"addr": addr}).Debug("closing connection: %v", err)
		return false
	}
	if err := s.handler.Handle(cmd, c); err != nil {
		logger.WithFields(logger.Fields{"addr": addr, "cmd": cmd.Raw}).Debug("closing connection: %v", err)
		return false
	}
	return true
}

// runReplicaClient performs the handshake against the master and then
// enters the replicated command stream, advancing processed_offset by
// each frame's exact byte length before it is handled — required so a
// REPLCONF GETACK reply reflects bytes consumed up to and including
// the GETACK frame itself.
func (s *Server) runReplicaClient() {
	defer s.wg.Done()

	hs := &replication.Handshake{
		MasterHost:  s.meta.MasterHost,
		MasterPort:  s.meta.MasterPort,
		ReplicaPort: s.meta.ListeningPort,
	}

	c, err := hs.Run()
	if err != nil {
		logger.Warn("replication handshake failed, continuing as standalone: %v", err)
		return
	}

	s.mu.Lock()
	s.replicaConn = c
	s.mu.Unlock()
	defer c.Close()

	for {
		v, n, err := resp.Parse(c.Buffer())
		if err == nil {
			c.Consume(n)
			s.live.AddProcessedOffset(n)
			if !s.dispatch(v, c, "master") {
				return
			}
			continue
		}
		if err != resp.ErrIncomplete {
			logger.Warn("invalid frame from master: %v", err)
			return
		}
		if err := c.ReadMore(); err != nil {
			select {
			case <-s.shutdown:
			default:
				logger.Warn("lost connection to master: %v", err)
			}
			return
		}
	}
}
