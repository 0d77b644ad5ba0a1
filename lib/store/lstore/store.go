package lstore

import (
	"errors"
	"sync/atomic"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/tensor"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

type storeImpl struct {
	db      db.Table
	updater atomic.Pointer[store.Updater]
	closed  atomic.Bool
}

// NewLocalStore creates a new local store instance.
// The store merges pushes in the calling goroutine, it is not distributed.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		db: factory(),
	}
}

// sum is the merge used when no updater is registered
func sum(incoming, stored tensor.Value) error {
	return stored.AddInPlace(incoming)
}

// currentUpdater returns the registered updater or sum
func (s *storeImpl) currentUpdater() store.Updater {
	if fn := s.updater.Load(); fn != nil {
		return *fn
	}
	return sum
}

// mapError converts table and tensor errors into store errors
func mapError(key db.Key, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrKeyNotFound):
		return store.Errorf(store.RetCUnknownKey, "key %d was not initialized", key)
	case errors.Is(err, db.ErrKeyExists):
		return store.Errorf(store.RetCDuplicateKey, "key %d was already initialized", key)
	case errors.Is(err, db.ErrClosed):
		return store.NewError(store.RetCStopped, "store is closed")
	case errors.Is(err, tensor.ErrShapeMismatch):
		return store.Errorf(store.RetCShapeMismatch, "key %d: %v", key, err)
	default:
		var e *store.Error
		if errors.As(err, &e) {
			return e
		}
		return store.Errorf(store.RetCInternalError, "key %d: %v", key, err)
	}
}

func (s *storeImpl) checkOpen() error {
	if s.closed.Load() {
		return store.NewError(store.RetCStopped, "store is closed")
	}
	return nil
}

// checkKey rejects negative keys and nil values
func checkKey(key db.Key, value tensor.Value) error {
	if key < 0 {
		return store.Errorf(store.RetCArityMismatch, "invalid key %d", key)
	}
	if value == nil {
		return store.Errorf(store.RetCArityMismatch, "nil value for key %d", key)
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Init(key db.Key, value tensor.Value) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := checkKey(key, value); err != nil {
		return err
	}
	if !s.db.SupportsFeature(db.FeatureInit) {
		return store.NewError(store.RetCUnsupportedOperation, "Init operation is not supported")
	}
	return mapError(key, s.db.Init(key, value))
}

func (s *storeImpl) Push(key db.Key, value tensor.Value) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := checkKey(key, value); err != nil {
		return err
	}
	if !s.db.SupportsFeature(db.FeatureUpdate) {
		return store.NewError(store.RetCUnsupportedOperation, "Push operation is not supported")
	}

	merge := s.currentUpdater()
	_, err := s.db.Update(key, func(stored tensor.Value) error {
		// shapes are checked for every updater, not only for the default sum
		if err := tensor.CheckShape(stored, value); err != nil {
			return err
		}
		return merge(value, stored)
	})
	if err != nil {
		Logger.Debugf("push to key %d failed: %v", key, err)
	}
	return mapError(key, err)
}

func (s *storeImpl) Pull(key db.Key, out tensor.Value) (uint64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if err := checkKey(key, out); err != nil {
		return 0, err
	}
	if !s.db.SupportsFeature(db.FeatureRead) {
		return 0, store.NewError(store.RetCUnsupportedOperation, "Pull operation is not supported")
	}

	var gen uint64
	err := s.db.Read(key, func(stored tensor.Value, generation uint64) error {
		gen = generation
		return out.CopyFrom(stored)
	})
	return gen, mapError(key, err)
}

func (s *storeImpl) Snapshot(key db.Key) (tensor.Value, uint64, error) {
	if err := s.checkOpen(); err != nil {
		return nil, 0, err
	}
	if key < 0 {
		return nil, 0, store.Errorf(store.RetCArityMismatch, "invalid key %d", key)
	}
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, 0, store.NewError(store.RetCUnsupportedOperation, "Snapshot operation is not supported")
	}
	value, gen, err := s.db.Get(key)
	if err != nil {
		return nil, 0, mapError(key, err)
	}
	return value, gen, nil
}

func (s *storeImpl) SetUpdater(fn store.Updater) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if fn == nil {
		s.updater.Store(nil)
		return nil
	}
	s.updater.Store(&fn)
	return nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	if err := s.checkOpen(); err != nil {
		return db.DatabaseInfo{}, err
	}
	return s.db.GetInfo(), nil
}

func (s *storeImpl) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

// --------------------------------------------------------------------------
// Validation (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Validate(key db.Key, value tensor.Value, mustExist bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := checkKey(key, value); err != nil {
		return err
	}
	if !mustExist {
		if s.db.Has(key) {
			return store.Errorf(store.RetCDuplicateKey, "key %d was already initialized", key)
		}
		return nil
	}
	err := s.db.Read(key, func(stored tensor.Value, _ uint64) error {
		return tensor.CheckShape(stored, value)
	})
	return mapError(key, err)
}
