package server

import "time"

// Config configures a Server, following a zero-value-defaulting pattern:
// the zero Config is valid and withDefaults fills in every field a caller
// left unset.
type Config struct {
	// ListenAddr is the host:port the TCP listener binds.
	// Defaults to "127.0.0.1:2003".
	ListenAddr string

	// MaxConnections bounds the number of connections served concurrently;
	// additional accepted sockets block until a slot frees.
	// Defaults to 256.
	MaxConnections int32

	// SnapshotPath is where the keyspace is persisted and, at startup,
	// restored from. Defaults to "tdb.snapshot" in the working directory.
	SnapshotPath string

	// SnapshotInterval, when nonzero, additionally snapshots on a timer.
	// Zero (the default) disables periodic snapshotting; the server still
	// snapshots once on graceful shutdown.
	SnapshotInterval time.Duration

	// MetricsAddr, when non-empty, starts a standalone Prometheus
	// /metrics endpoint at that address. Empty (the default) disables it.
	MetricsAddr string

	// KeyspaceStripes is the lock-stripe count passed to keyspace.New.
	// Zero uses keyspace.DefaultStripes.
	KeyspaceStripes int
}

func (c Config) withDefaults() Config {
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:2003"
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 256
	}
	if c.SnapshotPath == "" {
		c.SnapshotPath = "tdb.snapshot"
	}
	return c
}
