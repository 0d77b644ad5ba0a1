package client

import (
	"encoding/json"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/tensor"
	"github.com/ValentinKolb/tKV/rpc/common"
	"github.com/ValentinKolb/tKV/rpc/serializer"
	"github.com/ValentinKolb/tKV/rpc/transport"
	"github.com/google/uuid"
)

// NewRPCStore creates a store.IStore that forwards every operation to the coordinator
// serving shardId. The transport is connected with config before the store is returned.
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {

	if err := transport.Connect(config); err != nil {
		return nil, store.Errorf(store.RetCTransportError, "failed to connect: %v", err)
	}

	workerID := uuid.New()
	Logger.Infof("Worker %s connected to shard %d", workerID, shardId)

	return &rpcStore{
		rpcClientAdapter: rpcClientAdapter{
			shardId:    shardId,
			workerID:   []byte(workerID.String()),
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (s *rpcStore) Init(key db.Key, value tensor.Value) error {
	data, err := encode(key, value)
	if err != nil {
		return err
	}
	_, err = s.invokeRPCRequest(common.NewInitRequest(int64(key), data))
	return err
}

func (s *rpcStore) Push(key db.Key, value tensor.Value) error {
	data, err := encode(key, value)
	if err != nil {
		return err
	}
	_, err = s.invokeRPCRequest(common.NewPushRequest(int64(key), data))
	return err
}

func (s *rpcStore) Pull(key db.Key, out tensor.Value) (uint64, error) {
	if out == nil {
		return 0, store.Errorf(store.RetCArityMismatch, "nil value for key %d", key)
	}

	snapshot, gen, err := s.Snapshot(key)
	if err != nil {
		return 0, err
	}
	if err := out.CopyFrom(snapshot); err != nil {
		return 0, store.Errorf(store.RetCShapeMismatch, "key %d: %v", key, err)
	}
	return gen, nil
}

// Snapshot fetches the value of key without knowing its shape (see store.ISnapshotter)
func (s *rpcStore) Snapshot(key db.Key) (tensor.Value, uint64, error) {
	resp, err := s.invokeRPCRequest(common.NewPullRequest(int64(key)))
	if err != nil {
		return nil, 0, err
	}

	snapshot, err := tensor.Decode(resp.Value)
	if err != nil {
		return nil, 0, store.Errorf(store.RetCTransportError, "failed to decode value of key %d: %v", key, err)
	}
	return snapshot, resp.Generation, nil
}

// Validate asks the coordinator whether key could be init-ed (mustExist false) or
// pushed with a value of the shape of value (see store.IValidator). Only the shape is sent.
func (s *rpcStore) Validate(key db.Key, value tensor.Value, mustExist bool) error {
	if key < 0 {
		return store.Errorf(store.RetCArityMismatch, "invalid key %d", key)
	}
	if value == nil {
		return store.Errorf(store.RetCArityMismatch, "nil value for key %d", key)
	}
	shape := ""
	if mustExist {
		shape = value.Shape().String()
	}
	_, err := s.invokeRPCRequest(common.NewValidateRequest(int64(key), shape))
	return err
}

// SetUpdater is not supported, updaters are configured on the coordinator
func (s *rpcStore) SetUpdater(store.Updater) error {
	return store.NewError(store.RetCUnsupportedOperation, fixedUpdaterReason)
}

func (s *rpcStore) GetDBInfo() (db.DatabaseInfo, error) {
	resp, err := s.invokeRPCRequest(common.NewInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}

	var info db.DatabaseInfo
	if err := json.Unmarshal(resp.Value, &info); err != nil {
		return db.DatabaseInfo{}, store.Errorf(store.RetCTransportError, "failed to decode info: %v", err)
	}
	return info, nil
}

func (s *rpcStore) Close() error {
	if err := s.transport.Close(); err != nil {
		return store.Errorf(store.RetCTransportError, "failed to close transport: %v", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// encode validates and encodes a value for the wire
func encode(key db.Key, value tensor.Value) ([]byte, error) {
	if key < 0 {
		return nil, store.Errorf(store.RetCArityMismatch, "invalid key %d", key)
	}
	if value == nil {
		return nil, store.Errorf(store.RetCArityMismatch, "nil value for key %d", key)
	}
	data, err := value.MarshalBinary()
	if err != nil {
		return nil, store.Errorf(store.RetCInternalError, "failed to encode value of key %d: %v", key, err)
	}
	return data, nil
}
