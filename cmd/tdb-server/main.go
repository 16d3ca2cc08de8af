// Command tdb-server runs a standalone TerrabaseDB node: it binds the
// Terrapipe listener, restores any existing snapshot, and serves requests
// until SIGINT/SIGTERM triggers a graceful shutdown and final snapshot.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terrabasedb/tdb/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		host             = flag.String("host", "127.0.0.1", "address to bind the Terrapipe listener")
		port             = flag.Int("port", 2003, "port to bind the Terrapipe listener")
		snapshotPath     = flag.String("snapshot-path", "tdb.snapshot", "path to the persisted keyspace snapshot")
		snapshotInterval = flag.Duration("snapshot-interval", 0, "periodic snapshot interval (0 disables periodic snapshots)")
		maxConnections   = flag.Int("max-connections", 256, "maximum number of connections served concurrently")
		metricsAddr      = flag.String("metrics-addr", "", "address for the Prometheus /metrics endpoint (empty disables it)")
		keyspaceStripes  = flag.Int("keyspace-stripes", 0, "number of lock stripes in the keyspace (0 uses the default)")
	)
	flag.Parse()

	cfg := server.Config{
		ListenAddr:       net.JoinHostPort(*host, fmt.Sprint(*port)),
		MaxConnections:   int32(*maxConnections),
		SnapshotPath:     *snapshotPath,
		SnapshotInterval: *snapshotInterval,
		MetricsAddr:      *metricsAddr,
		KeyspaceStripes:  *keyspaceStripes,
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Printf("tdb-server: startup failed: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("tdb-server: listening on %s (snapshot=%s, max-connections=%d)",
		cfg.ListenAddr, cfg.SnapshotPath, cfg.MaxConnections)

	start := time.Now()
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Printf("tdb-server: exited with error after %s: %v", time.Since(start).Round(time.Millisecond), err)
		return 1
	}

	log.Printf("tdb-server: clean shutdown after %s", time.Since(start).Round(time.Millisecond))
	return 0
}
