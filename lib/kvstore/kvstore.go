package kvstore

import (
	"sync"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/db/engines/maple"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/store/lstore"
	"github.com/ValentinKolb/tKV/lib/tensor"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("kvstore")

// --------------------------------------------------------------------------
// State Machine
// --------------------------------------------------------------------------

// State is the lifecycle state of a KVStore
type State int32

const (
	StateUninitialized      State = iota // no devices registered yet
	StateDevicesInitialized              // devices registered, backend not opened
	StateRunning                         // backend open, serving requests
	StateStopped                         // terminal
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateDevicesInitialized:
		return "DevicesInitialized"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Opener opens the backend the KVStore relays to. It is called once, when the
// store enters StateRunning.
type Opener func() (store.IStore, error)

// KVStore is the public, batched API of the tensor store.
// It is safe for concurrent use by many goroutines (typically one per device).
type KVStore struct {
	// mu is held in read mode for the whole duration of every operation and in
	// write mode for state transitions, so Stop waits for in-flight calls.
	mu          sync.RWMutex
	state       State
	devices     DeviceSet
	open        Opener
	ownsBackend bool
	backend     store.IStore
	pending     store.Updater // updater registered before the backend was opened
	fixed       string        // non-empty if the backend does not accept updaters
	name        string
}

// Option configures a KVStore
type Option func(kv *KVStore)

// WithFixedUpdater declares that the aggregation of the backend is configured by
// its owner, e.g. a remote coordinator. SetUpdater then fails with
// RetCUnsupportedOperation in every state, reason is the error message.
func WithFixedUpdater(reason string) Option {
	return func(kv *KVStore) {
		kv.fixed = reason
	}
}

// New creates a store relaying to the backend returned by open.
// The backend is closed by Stop.
func New(name string, open Opener, opts ...Option) *KVStore {
	kv := &KVStore{
		open:        open,
		ownsBackend: true,
		name:        name,
	}
	for _, opt := range opts {
		opt(kv)
	}
	return kv
}

// NewLocal creates a single process store backed by a maple table
func NewLocal() *KVStore {
	return New("local", func() (store.IStore, error) {
		return lstore.NewLocalStore(func() db.Table { return maple.NewMapleDB(nil) }), nil
	})
}

// NewWithStore creates a store on top of an existing backend, e.g. a shard of a
// coordinator running in the same process. Stop does not close s.
func NewWithStore(name string, s store.IStore, opts ...Option) *KVStore {
	kv := New(name, func() (store.IStore, error) { return s, nil }, opts...)
	kv.ownsBackend = false
	return kv
}

// State returns the current lifecycle state
func (kv *KVStore) State() State {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return kv.state
}

// Devices returns the registered device set
func (kv *KVStore) Devices() DeviceSet {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return kv.devices
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// InitDevices registers the local devices. It can only be called once.
func (kv *KVStore) InitDevices(contexts []tensor.Context) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	switch kv.state {
	case StateStopped:
		return store.NewError(store.RetCStopped, "store was stopped")
	case StateUninitialized:
	default:
		return store.Errorf(store.RetCAlreadyInitialized, "devices are already initialized: %s", kv.devices)
	}

	set, err := NewDeviceSet(contexts)
	if err != nil {
		return err
	}
	kv.devices = set
	kv.state = StateDevicesInitialized
	Logger.Infof("[%s] devices initialized: %s", kv.name, set)
	return nil
}

// Stop releases the backend. Stopping a stopped store is a no-op.
// Stop waits until all in-flight operations are complete.
func (kv *KVStore) Stop() error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if kv.state == StateStopped {
		return nil
	}
	prev := kv.state
	kv.state = StateStopped
	Logger.Infof("[%s] stopped (was %s)", kv.name, prev)

	if kv.backend != nil && kv.ownsBackend {
		if err := kv.backend.Close(); err != nil {
			return store.AsError(err)
		}
	}
	return nil
}

// acquire returns the running backend with kv.mu held in read mode.
// The caller must call kv.mu.RUnlock when done. On error the lock is not held.
func (kv *KVStore) acquire() (store.IStore, error) {
	for {
		kv.mu.RLock()
		switch kv.state {
		case StateRunning:
			return kv.backend, nil
		case StateStopped:
			kv.mu.RUnlock()
			return nil, store.NewError(store.RetCStopped, "store was stopped")
		case StateUninitialized:
			kv.mu.RUnlock()
			return nil, store.NewError(store.RetCInvalidOperation, "devices must be initialized first")
		}
		kv.mu.RUnlock()

		if err := kv.start(); err != nil {
			return nil, err
		}
	}
}

// start opens the backend and enters StateRunning
func (kv *KVStore) start() error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if kv.state != StateDevicesInitialized {
		return nil // another goroutine won, acquire re-checks the state
	}

	backend, err := kv.open()
	if err != nil {
		Logger.Errorf("[%s] failed to open backend: %v", kv.name, err)
		if e := store.AsError(err); e.Code != store.RetCInternalError {
			return e
		}
		return store.Errorf(store.RetCTransportError, "failed to open backend: %v", err)
	}
	if kv.pending != nil {
		fn := kv.pending
		// the updater is dropped either way, a rejected updater must not block later opens
		kv.pending = nil
		if err := backend.SetUpdater(fn); err != nil {
			if kv.ownsBackend {
				_ = backend.Close()
			}
			Logger.Errorf("[%s] backend rejected the updater: %v", kv.name, err)
			return store.AsError(err)
		}
	}

	kv.backend = backend
	kv.state = StateRunning
	Logger.Infof("[%s] running", kv.name)
	return nil
}

// --------------------------------------------------------------------------
// Batched Operations
// --------------------------------------------------------------------------

// Init initializes every key with its value. Keys and values must pair 1:1 and keys
// must be unique within the call. The whole batch is validated before any key is created
// if the backend supports validation.
func (kv *KVStore) Init(keys []db.Key, values []tensor.Value) error {
	pairs, err := Normalize(keys, values, false)
	if err != nil {
		return err
	}

	backend, err := kv.acquire()
	if err != nil {
		return err
	}
	defer kv.mu.RUnlock()

	if err := kv.devices.checkDevices(pairs); err != nil {
		return err
	}
	seen := make(map[db.Key]struct{}, len(pairs))
	for _, p := range pairs {
		if _, ok := seen[p.Key]; ok {
			return store.Errorf(store.RetCDuplicateKey, "key %d appears more than once", p.Key)
		}
		seen[p.Key] = struct{}{}
	}
	if err := validate(backend, pairs, false); err != nil {
		return err
	}

	for _, p := range pairs {
		if err := backend.Init(p.Key, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// Push contributes values. A single key with several values pushes every value
// to that key (one contribution per device).
func (kv *KVStore) Push(keys []db.Key, values []tensor.Value) error {
	pairs, err := Normalize(keys, values, true)
	if err != nil {
		return err
	}

	backend, err := kv.acquire()
	if err != nil {
		return err
	}
	defer kv.mu.RUnlock()

	if err := kv.devices.checkDevices(pairs); err != nil {
		return err
	}
	if err := validate(backend, pairs, true); err != nil {
		return err
	}

	for _, p := range pairs {
		if err := backend.Push(p.Key, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// Pull copies the current value of every key into its output buffers.
// All outputs of one key receive the same snapshot.
func (kv *KVStore) Pull(keys []db.Key, outs []tensor.Value) error {
	_, err := kv.pull(keys, outs)
	return err
}

func (kv *KVStore) pull(keys []db.Key, outs []tensor.Value) ([]uint64, error) {
	pairs, err := Normalize(keys, outs, true)
	if err != nil {
		return nil, err
	}

	backend, err := kv.acquire()
	if err != nil {
		return nil, err
	}
	defer kv.mu.RUnlock()

	if err := kv.devices.checkDevices(pairs); err != nil {
		return nil, err
	}
	groups := groupByKey(pairs)
	for _, g := range groups {
		for _, out := range g.outs[1:] {
			if err := tensor.CheckShape(g.outs[0], out); err != nil {
				return nil, store.Errorf(store.RetCShapeMismatch, "outputs of key %d: %v", g.key, err)
			}
		}
	}

	generations := make([]uint64, len(groups))
	for i, g := range groups {
		gen, err := backend.Pull(g.key, g.outs[0])
		if err != nil {
			return nil, err
		}
		for _, out := range g.outs[1:] {
			if err := out.CopyFrom(g.outs[0]); err != nil {
				return nil, store.AsError(err)
			}
		}
		generations[i] = gen
	}
	return generations, nil
}

// SetUpdater replaces the store wide updater, nil restores the element-wise sum.
// If the store is not running yet the updater is installed when the backend opens.
func (kv *KVStore) SetUpdater(fn store.Updater) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	switch {
	case kv.state == StateStopped:
		return store.NewError(store.RetCStopped, "store was stopped")
	case kv.fixed != "":
		return store.NewError(store.RetCUnsupportedOperation, kv.fixed)
	}

	switch kv.state {
	case StateRunning:
		return kv.backend.SetUpdater(fn)
	default:
		kv.pending = fn
		return nil
	}
}

// Info returns metadata about the table behind the store
func (kv *KVStore) Info() (db.DatabaseInfo, error) {
	backend, err := kv.acquire()
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	defer kv.mu.RUnlock()
	return backend.GetDBInfo()
}

// --------------------------------------------------------------------------
// Single Key Conveniences
// --------------------------------------------------------------------------

// InitOne initializes a single key
func (kv *KVStore) InitOne(key db.Key, value tensor.Value) error {
	return kv.Init([]db.Key{key}, []tensor.Value{value})
}

// PushOne pushes a single value
func (kv *KVStore) PushOne(key db.Key, value tensor.Value) error {
	return kv.Push([]db.Key{key}, []tensor.Value{value})
}

// PullOne pulls a single key and returns the generation of the snapshot
func (kv *KVStore) PullOne(key db.Key, out tensor.Value) (uint64, error) {
	gens, err := kv.pull([]db.Key{key}, []tensor.Value{out})
	if err != nil {
		return 0, err
	}
	return gens[0], nil
}

// validate runs the backend pre-validation for all pairs if the backend supports it.
// A single pair is not checked, the operation itself reports the same error without
// leaving anything half applied.
func validate(backend store.IStore, pairs []Pair, mustExist bool) error {
	v, ok := backend.(store.IValidator)
	if !ok || len(pairs) < 2 {
		return nil
	}
	for _, p := range pairs {
		if err := v.Validate(p.Key, p.Value, mustExist); err != nil {
			return err
		}
	}
	return nil
}
