// Package keyspace implements TerrabaseDB's shared mutable resource: a
// concurrent in-memory mapping from binary-safe keys to binary-safe values,
// with per-action semantics (insert-only, update-only, either) and a
// read-consistent snapshot view.
package keyspace

import (
	"sync"

	"github.com/terrabasedb/tdb/internal"
	"github.com/zeebo/xxh3"
)

// DefaultStripes is the lock-stripe count used when a caller doesn't need a
// specific one. Jump Consistent Hash over an xxh3 digest of the key picks
// which of DefaultStripes internal lock stripes a key falls into,
// satisfying "writers serialized against writers on the same key, readers
// don't block each other" without one global mutex.
const DefaultStripes = 32

type stripe struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// Keyspace is a sharded map guarded by per-stripe read/write locks.
// Operations are linearizable with respect to each other.
type Keyspace struct {
	stripes []*stripe
}

// New creates an empty Keyspace with nStripes lock stripes. nStripes <= 0
// falls back to DefaultStripes.
func New(nStripes int) *Keyspace {
	if nStripes <= 0 {
		nStripes = DefaultStripes
	}
	ks := &Keyspace{stripes: make([]*stripe, nStripes)}
	for i := range ks.stripes {
		ks.stripes[i] = &stripe{m: make(map[string][]byte)}
	}
	return ks
}

func (ks *Keyspace) stripeFor(key string) *stripe {
	idx := internal.JumpHash(xxh3.HashString(key), len(ks.stripes))
	return ks.stripes[idx]
}

// Get returns the value stored for key and whether it was present. The
// returned slice is a private copy; mutating it does not affect the
// keyspace.
func (ks *Keyspace) Get(key string) ([]byte, bool) {
	s := ks.stripeFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// Exists reports whether key is present.
func (ks *Keyspace) Exists(key string) bool {
	s := ks.stripeFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[key]
	return ok
}

// Set inserts key=value only if key is absent. Returns ErrOverwrite, and
// leaves the existing value untouched, if key was already present.
func (ks *Keyspace) Set(key string, value []byte) error {
	s := ks.stripeFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[key]; ok {
		return ErrOverwrite
	}
	s.m[key] = cloneValue(value)
	return nil
}

// Update replaces key's value only if key is present. Returns ErrNotFound
// otherwise.
func (ks *Keyspace) Update(key string, value []byte) error {
	s := ks.stripeFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[key]; !ok {
		return ErrNotFound
	}
	s.m[key] = cloneValue(value)
	return nil
}

// Del removes key if present. Returns ErrNotFound if it was absent: an
// ordinary miss, not a fault (the dispatcher turns this back into a
// non-error per-key aggregate count).
func (ks *Keyspace) Del(key string) error {
	s := ks.stripeFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[key]; !ok {
		return ErrNotFound
	}
	delete(s.m, key)
	return nil
}

// Len returns the number of keys across all stripes, taking every stripe's
// read lock in the same fixed index order Each uses, so it can never
// deadlock against a concurrent Each.
func (ks *Keyspace) Len() int {
	n := 0
	for _, s := range ks.stripes {
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

// Each calls fn once per (key, value) pair, holding every stripe's read
// lock for the call's duration: a point-in-time, read-consistent view, per
// the "hold exclusion for the duration of serialization" snapshot strategy.
// fn must not call back into the Keyspace; doing so deadlocks.
func (ks *Keyspace) Each(fn func(key string, value []byte)) {
	for _, s := range ks.stripes {
		s.mu.RLock()
	}
	defer func() {
		for _, s := range ks.stripes {
			s.mu.RUnlock()
		}
	}()
	for _, s := range ks.stripes {
		for k, v := range s.m {
			fn(k, v)
		}
	}
}

// Pair is a single key/value record, the shape persist reads off disk
// before handing a batch to LoadAll.
type Pair struct {
	Key   []byte
	Value []byte
}

// LoadAll installs pairs into the keyspace. The keyspace must be empty:
// LoadAll returns ErrNotEmpty otherwise, matching restore()'s precondition
// that the engine it replaces state into starts empty.
func (ks *Keyspace) LoadAll(pairs []Pair) error {
	if ks.Len() != 0 {
		return ErrNotEmpty
	}
	for _, p := range pairs {
		s := ks.stripeFor(string(p.Key))
		s.mu.Lock()
		s.m[string(p.Key)] = cloneValue(p.Value)
		s.mu.Unlock()
	}
	return nil
}

func cloneValue(v []byte) []byte {
	out := make([]byte, len(v))
	copy(out, v)
	return out
}
