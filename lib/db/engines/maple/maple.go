package maple

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/tKV/lib/db/util"
	"github.com/ValentinKolb/tKV/lib/tensor"
)

// --------------------------------------------------------------------------
// Core Maple table structure
// --------------------------------------------------------------------------

// mapleImpl implements a sharded in-memory tensor table
type mapleImpl struct {
	numShards int               // Number of shards
	seed      uint64            // Seed for shard selection
	shards    []*internal.Shard // Array of shards
	closed    atomic.Bool
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = one per CPU)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(),
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new maple table with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.Table {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	hasher := func(key db.Key, mapSeed uint64) uint64 {
		return uint64(util.HashKey(int(key), mapSeed))
	}

	shards := make([]*internal.Shard, opts.NumShards)
	for i := range shards {
		shards[i] = internal.NewShard(hasher)
	}

	return &mapleImpl{
		numShards: opts.NumShards,
		seed:      util.GenerateSeed(),
		shards:    shards,
	}
}

// shardFor returns the shard responsible for key
func (maple *mapleImpl) shardFor(key db.Key) *internal.Shard {
	return internal.GetShard(util.HashKey(int(key), maple.seed), maple.shards)
}

// load returns the entry for key or an error if the table is closed or the key is absent
func (maple *mapleImpl) load(key db.Key) (*internal.Entry, error) {
	if maple.closed.Load() {
		return nil, db.ErrClosed
	}
	entry, ok := maple.shardFor(key).Data.Load(key)
	if !ok {
		return nil, fmt.Errorf("key %d: %w", key, db.ErrKeyNotFound)
	}
	return entry, nil
}

// --------------------------------------------------------------------------
// Core Table Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Init creates an entry holding a copy of value.
//
// Thread-safety: concurrent Init calls for the same key are resolved atomically,
// exactly one of them succeeds.
func (maple *mapleImpl) Init(key db.Key, value tensor.Value) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}

	_, loaded := maple.shardFor(key).Data.LoadOrCompute(key, func() *internal.Entry {
		return internal.NewEntry(value.Copy())
	})
	if loaded {
		return fmt.Errorf("key %d: %w", key, db.ErrKeyExists)
	}
	return nil
}

// Update runs fn on the stored value under the entry lock.
//
// Thread-safety: updates of the same key are serialized, updates of different keys are not.
func (maple *mapleImpl) Update(key db.Key, fn func(stored tensor.Value) error) (uint64, error) {
	entry, err := maple.load(key)
	if err != nil {
		return 0, err
	}
	return entry.Update(fn)
}

// Set overwrites the stored value with a copy of value.
func (maple *mapleImpl) Set(key db.Key, value tensor.Value) (uint64, error) {
	return maple.Update(key, func(stored tensor.Value) error {
		return stored.CopyFrom(value)
	})
}

// --------------------------------------------------------------------------
// Core Table Interface Methods - Read Operations
// --------------------------------------------------------------------------

func (maple *mapleImpl) Read(key db.Key, fn func(stored tensor.Value, generation uint64) error) error {
	entry, err := maple.load(key)
	if err != nil {
		return err
	}
	return entry.Read(fn)
}

// Get returns a copy of the stored value, the copy is safe to use and modify.
func (maple *mapleImpl) Get(key db.Key) (tensor.Value, uint64, error) {
	var (
		value tensor.Value
		gen   uint64
	)
	err := maple.Read(key, func(stored tensor.Value, generation uint64) error {
		value = stored.Copy()
		gen = generation
		return nil
	})
	return value, gen, err
}

func (maple *mapleImpl) Has(key db.Key) bool {
	if maple.closed.Load() {
		return false
	}
	_, ok := maple.shardFor(key).Data.Load(key)
	return ok
}

func (maple *mapleImpl) Len() int {
	n := 0
	for _, shard := range maple.shards {
		n += shard.Data.Size()
	}
	return n
}

func (maple *mapleImpl) Range(fn func(key db.Key, value tensor.Value, generation uint64) bool) {
	if maple.closed.Load() {
		return
	}
	for _, shard := range maple.shards {
		cont := true
		shard.Data.Range(func(key db.Key, entry *internal.Entry) bool {
			_ = entry.Read(func(stored tensor.Value, generation uint64) error {
				cont = fn(key, stored, generation)
				return nil
			})
			return cont
		})
		if !cont {
			return
		}
	}
}

// --------------------------------------------------------------------------
// Info and Feature Support
// --------------------------------------------------------------------------

// GetInfo returns statistics about the table
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {

	histogram := util.NewSizeHistogram()
	samplesPerShard := 100
	wg := sync.WaitGroup{}
	wg.Add(len(maple.shards))

	mu := sync.Mutex{}
	var maxGeneration uint64
	shardSizes := make([]float64, len(maple.shards))

	// concurrently collect samples from all shards
	for shardIndex, shard := range maple.shards {
		go func(i int, s *internal.Shard) {
			defer wg.Done()
			count := 0
			var shardMaxGen uint64
			s.Data.Range(func(_ db.Key, entry *internal.Entry) bool {
				_ = entry.Read(func(stored tensor.Value, generation uint64) error {
					histogram.AddSample(tensor.EncodedSize(stored))
					if generation > shardMaxGen {
						shardMaxGen = generation
					}
					return nil
				})

				// only sample a few entries per shard
				count++
				return count < samplesPerShard
			})

			mu.Lock()
			defer mu.Unlock()
			if shardMaxGen > maxGeneration {
				maxGeneration = shardMaxGen
			}
			shardSizes[i] = float64(s.Data.Size())
		}(shardIndex, shard)
	}

	wg.Wait()

	entries := maple.Len()
	entryOverhead := 48 // key, generation, mutex and interface header
	medianSize := histogram.Median() + entryOverhead
	avgSize := histogram.Average() + entryOverhead

	// weighted estimate (60% median, 40% average) times the number of entries
	sizeBytes := (medianSize*60 + avgSize*40) / 100 * entries

	boundaries, percentages := histogram.Distribution()
	meta := &struct {
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
		MaxSampledGen     uint64                 `json:"max_sampled_generation"`
		SizeBoundaries    []int                  `json:"size_boundaries"`
		SizePercentages   []float64              `json:"size_percentages"`
		Info              string                 `json:"info"`
	}{
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		MaxSampledGen:     maxGeneration,
		SizeBoundaries:    boundaries,
		SizePercentages:   percentages,
		Info:              "All values (including SizeBytes) are estimates and may vary depending on the table state.",
	}

	return db.DatabaseInfo{
		Entries:   entries,
		SizeBytes: sizeBytes,
		DbType:    db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureInit, db.FeatureUpdate, db.FeatureRead,
			db.FeatureSet, db.FeatureGet, db.FeatureHas, db.FeatureRange,
		},
		Metadata: meta,
	}
}

// SupportsFeature reports whether all features in the bitmask are supported
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supported := db.FeatureInit | db.FeatureUpdate | db.FeatureRead |
		db.FeatureSet | db.FeatureGet | db.FeatureHas | db.FeatureRange
	return feature&supported == feature
}

// Close drops all entries
func (maple *mapleImpl) Close() error {
	if !maple.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, shard := range maple.shards {
		shard.Data.Clear()
	}
	return nil
}
