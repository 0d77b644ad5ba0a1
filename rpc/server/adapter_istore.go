package server

import (
	"encoding/json"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/tensor"
	"github.com/ValentinKolb/tKV/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, s store.IStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse(store.RetCInternalError, "handler: store is nil")
	}

	if len(req.Meta) > 0 {
		Logger.Debugf("%s request for key %d from worker %s", req.MsgType, req.Key, req.Meta)
	}

	switch req.MsgType {
	case common.MsgTInit:
		value, err := decodeValue(req)
		if err != nil {
			return common.NewInitResponse(err)
		}
		// stored values live on the coordinator's default device
		return common.NewInitResponse(s.Init(db.Key(req.Key), value.ToContext(tensor.CPU(0))))

	case common.MsgTPush:
		value, err := decodeValue(req)
		if err != nil {
			return common.NewPushResponse(err)
		}
		return common.NewPushResponse(s.Push(db.Key(req.Key), value))

	case common.MsgTPull:
		snapshotter, ok := s.(store.ISnapshotter)
		if !ok {
			return common.NewPullResponse(nil, 0, store.NewError(store.RetCUnsupportedOperation, "store does not support snapshots"))
		}
		value, gen, err := snapshotter.Snapshot(db.Key(req.Key))
		if err != nil {
			return common.NewPullResponse(nil, 0, err)
		}
		data, err := value.MarshalBinary()
		if err != nil {
			return common.NewPullResponse(nil, 0, store.Errorf(store.RetCInternalError, "failed to encode key %d: %v", req.Key, err))
		}
		return common.NewPullResponse(data, gen, nil)

	case common.MsgTValidate:
		validator, ok := s.(store.IValidator)
		if !ok {
			return common.NewValidateResponse(nil)
		}
		if len(req.Value) == 0 {
			return common.NewValidateResponse(validator.Validate(db.Key(req.Key), tensor.New(tensor.Shape{}, tensor.CPU(0)), false))
		}
		shape, err := tensor.ParseShape(string(req.Value))
		if err != nil {
			return common.NewValidateResponse(store.Errorf(store.RetCTransportError, "invalid shape for key %d: %v", req.Key, err))
		}
		return common.NewValidateResponse(validator.Validate(db.Key(req.Key), tensor.New(shape, tensor.CPU(0)), true))

	case common.MsgTInfo:
		info, err := s.GetDBInfo()
		if err != nil {
			return common.NewInfoResponse(nil, err)
		}
		data, err := json.Marshal(info)
		if err != nil {
			return common.NewInfoResponse(nil, store.Errorf(store.RetCInternalError, "failed to encode info: %v", err))
		}
		return common.NewInfoResponse(data, nil)

	default:
		return common.NewErrorResponse(store.RetCUnsupportedOperation,
			"RPC IStoreAdapter - Unsupported message type: "+req.MsgType.String())
	}
}

// decodeValue decodes the tensor carried by req
func decodeValue(req *common.Message) (*tensor.Dense, error) {
	if len(req.Value) == 0 {
		return nil, store.Errorf(store.RetCArityMismatch, "missing value for key %d", req.Key)
	}
	value, err := tensor.Decode(req.Value)
	if err != nil {
		return nil, store.Errorf(store.RetCTransportError, "invalid value for key %d: %v", req.Key, err)
	}
	return value, nil
}
