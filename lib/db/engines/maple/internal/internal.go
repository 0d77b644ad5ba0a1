package internal

import (
	"sync"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/db/util"
	"github.com/ValentinKolb/tKV/lib/tensor"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Type (owned value with generation counter)
// --------------------------------------------------------------------------

// Entry stores an owned value with its generation.
// The mutex guards both fields, entries are always handled by pointer.
type Entry struct {
	mu         sync.Mutex
	value      tensor.Value
	generation uint64
}

// NewEntry creates an entry that takes ownership of value
func NewEntry(value tensor.Value) *Entry {
	return &Entry{value: value}
}

// Update runs fn under the entry lock and increments the generation if fn succeeds
func (e *Entry) Update(fn func(stored tensor.Value) error) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := fn(e.value); err != nil {
		return e.generation, err
	}
	e.generation++
	return e.generation, nil
}

// Read runs fn under the entry lock
func (e *Entry) Read(fn func(stored tensor.Value, generation uint64) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.value, e.generation)
}

// --------------------------------------------------------------------------
// Shard Type (partition of the table)
// --------------------------------------------------------------------------

// Shard represents a partition of the table
type Shard struct {
	Data *xsync.MapOf[db.Key, *Entry]
}

// NewShard creates a new shard with the provided hash function
func NewShard(hasher func(db.Key, uint64) uint64) *Shard {
	return &Shard{
		Data: xsync.NewMapOfWithHasher[db.Key, *Entry](hasher),
	}
}

// GetShard returns the appropriate shard for a given hashed key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard[T any](key util.UintKey, shards []*T) *T {
	return shards[uint64(key)%uint64(len(shards))]
}
