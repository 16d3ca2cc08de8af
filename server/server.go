// Package server implements TerrabaseDB's TCP listener, per-connection
// state machine, and graceful shutdown coordination.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/jackc/puddle/v2"

	"github.com/terrabasedb/tdb/dispatch"
	"github.com/terrabasedb/tdb/keyspace"
	"github.com/terrabasedb/tdb/metrics"
	"github.com/terrabasedb/tdb/persist"
)

// Server binds the TCP listener, admits connections up to Config's
// MaxConnections, and coordinates graceful shutdown across every handler
// and the snapshot scheduler.
type Server struct {
	cfg   Config
	ks    *keyspace.Keyspace
	d     *dispatch.Dispatcher
	m     *metrics.Metrics
	sched *persist.Scheduler

	// admission is a jackc/puddle pool of zero-value resources used purely
	// as a sized semaphore bounding incoming connections: the accept loop
	// acquires a slot after each Accept and before spawning a handler, and
	// the handler releases it on exit. While the loop waits in Acquire it
	// accepts nothing else, so one accepted socket waits in-process and any
	// further connections wait in the OS backlog.
	admission *puddle.Pool[struct{}]

	wg   sync.WaitGroup
	addr atomic.Value // net.Addr, set once ListenAndServe has bound successfully
}

// New constructs a Server and restores its keyspace from cfg.SnapshotPath
// if the file is present. A corrupt snapshot is returned as a fatal error:
// the caller must abort startup rather than silently starting empty.
func New(cfg Config) (*Server, error) {
	cfg = cfg.withDefaults()

	ks := keyspace.New(cfg.KeyspaceStripes)
	if err := persist.Restore(cfg.SnapshotPath, ks); err != nil {
		return nil, fmt.Errorf("server: restoring snapshot: %w", err)
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
	}

	admission, err := puddle.NewPool(&puddle.Config[struct{}]{
		Constructor: func(ctx context.Context) (struct{}, error) { return struct{}{}, nil },
		Destructor:  func(struct{}) {},
		MaxSize:     cfg.MaxConnections,
	})
	if err != nil {
		return nil, fmt.Errorf("server: building admission pool: %w", err)
	}

	return &Server{
		cfg:       cfg,
		ks:        ks,
		d:         dispatch.New(ks, m),
		m:         m,
		sched:     persist.NewScheduler(cfg.SnapshotPath, ks, cfg.SnapshotInterval),
		admission: admission,
	}, nil
}

// ListenAndServe binds the listener and runs the accept loop until ctx is
// cancelled. By the time it returns, every in-flight connection has
// drained and a final snapshot has been written.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: bind: %w", err)
	}
	s.addr.Store(ln.Addr())

	if s.cfg.MetricsAddr != "" {
		go func() {
			if err := s.m.Serve(s.cfg.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("server: metrics endpoint: %v", err)
			}
		}()
	}

	go s.sched.Run()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	acceptErr := s.acceptLoop(ctx, ln)

	s.wg.Wait()
	s.sched.Stop()

	finalErr := s.sched.Final()
	s.m.SnapshotResult(finalErr)
	if finalErr != nil {
		return fmt.Errorf("server: final snapshot: %w", finalErr)
	}

	if acceptErr != nil && ctx.Err() == nil {
		return acceptErr
	}
	return nil
}

// Addr returns the listener's bound address, or nil if ListenAndServe has
// not yet bound successfully. Useful for tests that bind to "127.0.0.1:0"
// and need the OS-assigned port.
func (s *Server) Addr() net.Addr {
	a, _ := s.addr.Load().(net.Addr)
	return a
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}

		res, err := s.admission.Acquire(ctx)
		if err != nil {
			nc.Close()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("server: admission: %w", err)
		}

		s.m.ConnOpened()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer res.Release()
			defer s.m.ConnClosed()

			conn := newConnection(nc, s.d, s.m)
			conn.serve(ctx)
		}()
	}
}
