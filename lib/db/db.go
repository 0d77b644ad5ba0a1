package db

import (
	"errors"

	"github.com/ValentinKolb/tKV/lib/tensor"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// Key identifies a logical parameter. Valid keys are non-negative.
type Key int

type Implementation string

const (
	ImplMaple Implementation = "maple"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureInit   Feature = 1 << iota // Support for Init operations
	FeatureUpdate                     // Support for Update operations
	FeatureRead                       // Support for Read operations
	FeatureSet                        // Support for Set operations
	FeatureGet                        // Support for Get operations
	FeatureHas                        // Support for Has operations
	FeatureRange                      // Support for Range and Len operations
)

func (f Feature) String() string {
	switch f {
	case FeatureInit:
		return "Init"
	case FeatureUpdate:
		return "Update"
	case FeatureRead:
		return "Read"
	case FeatureSet:
		return "Set"
	case FeatureGet:
		return "Get"
	case FeatureHas:
		return "Has"
	case FeatureRange:
		return "Range"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	Entries           int            `json:"entries"`
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

var (
	// ErrKeyNotFound is returned for operations on keys that were never initialized
	ErrKeyNotFound = errors.New("key not found")
	// ErrKeyExists is returned when initializing a key a second time
	ErrKeyExists = errors.New("key already exists")
	// ErrClosed is returned for operations on a closed table
	ErrClosed = errors.New("table is closed")
)

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// Table defines an interface for tensor tables.
// Every entry holds an owned value and a generation counter. The generation starts at 0
// and is incremented by every successful Update or Set.
// Implementations must serialize all access to a single entry. Operations on different
// keys may run concurrently.
type Table interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Init creates an entry holding a copy of value.
	// Returns ErrKeyExists if the key is already present, the existing entry is not modified.
	Init(key Key, value tensor.Value) (err error)

	// Update calls fn with the stored value while holding the entry lock.
	// fn may modify the value in place. If fn returns nil the generation is incremented
	// and the new generation is returned. If fn fails the error is returned unchanged
	// and the generation stays as it is.
	// Returns ErrKeyNotFound if the key is absent.
	Update(key Key, fn func(stored tensor.Value) error) (generation uint64, err error)

	// Set overwrites the stored value with a copy of value and increments the generation.
	// Returns ErrKeyNotFound if the key is absent.
	Set(key Key, value tensor.Value) (generation uint64, err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Read calls fn with the stored value and its generation while holding the entry lock.
	// fn must not modify or retain the value.
	// Returns ErrKeyNotFound if the key is absent.
	Read(key Key, fn func(stored tensor.Value, generation uint64) error) (err error)

	// Get returns a copy of the stored value and its generation.
	// Returns ErrKeyNotFound if the key is absent.
	Get(key Key) (value tensor.Value, generation uint64, err error)

	// Has checks whether a key exists in the table.
	Has(key Key) (loaded bool)

	// Len returns the number of entries.
	Len() (n int)

	// Range calls fn for every entry until fn returns false. The order is unspecified.
	// The value is only valid during the call and must not be modified or retained.
	Range(fn func(key Key, value tensor.Value, generation uint64) bool)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the table implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the table.
	GetInfo() (info DatabaseInfo)

	// Close releases all entries. Every operation after Close fails with ErrClosed.
	Close() (err error)
}
