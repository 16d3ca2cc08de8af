package persist

import (
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/terrabasedb/tdb/keyspace"
)

// Scheduler runs Snapshot on a timer in addition to the shutdown-triggered
// snapshot the server always performs. Periodic snapshotting is opt-in and
// disabled by default.
type Scheduler struct {
	path     string
	ks       *keyspace.Keyspace
	interval time.Duration
	breaker  *gobreaker.CircuitBreaker[struct{}]

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewScheduler builds a Scheduler for path and ks. A zero interval
// disables the periodic timer; Run then just waits for Stop, and callers
// still invoke Final once at shutdown.
func NewScheduler(path string, ks *keyspace.Keyspace, interval time.Duration) *Scheduler {
	settings := gobreaker.Settings{
		Name:    "snapshot-writer",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &Scheduler{
		path:     path,
		ks:       ks,
		interval: interval,
		breaker:  gobreaker.NewCircuitBreaker[struct{}](settings),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run blocks, snapshotting on Interval until Stop is called. Each attempt
// runs through a circuit breaker: a persistently failing disk trips the
// breaker after a few consecutive failures, so a stuck snapshot path logs
// one warning per tick instead of retrying a doomed write on every
// interval.
func (s *Scheduler) Run() {
	defer close(s.done)
	if s.interval <= 0 {
		<-s.stop
		return
	}

	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.attempt()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) attempt() {
	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, Snapshot(s.path, s.ks)
	})
	if err != nil {
		log.Printf("persist: periodic snapshot failed (breaker=%s): %v", s.breaker.State(), err)
	}
}

// Stop halts the periodic timer and waits for Run to return.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

// Final runs one last snapshot synchronously, bypassing the breaker's
// cooldown: shutdown gets exactly one attempt regardless of recent
// failures, with the error returned directly so the caller can decide the
// process exit code.
func (s *Scheduler) Final() error {
	return Snapshot(s.path, s.ks)
}
