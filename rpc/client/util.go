package client

import (
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/rpc/common"
	"github.com/ValentinKolb/tKV/rpc/serializer"
	"github.com/ValentinKolb/tKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
type rpcClientAdapter struct {
	shardId    uint64
	workerID   []byte
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest sends req to the shard of the adapter and returns the response.
// Failures of the RPC machinery are returned as RetCTransportError, errors raised by
// the coordinator keep their original code.
func (a *rpcClientAdapter) invokeRPCRequest(req *common.Message) (*common.Message, error) {
	req.Meta = a.workerID

	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, store.Errorf(store.RetCInternalError, "failed to serialize %s request: %v", req.MsgType, err)
	}

	respBytes, err := a.transport.Send(a.shardId, reqBytes)
	if err != nil {
		return nil, store.Errorf(store.RetCTransportError, "%s request to shard %d failed: %v", req.MsgType, a.shardId, err)
	}

	resp := &common.Message{}
	if err := a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, store.Errorf(store.RetCTransportError, "failed to decode %s response: %v", req.MsgType, err)
	}

	if err := resp.ResponseError(); err != nil {
		return nil, err
	}
	if resp.MsgType == common.MsgTError {
		return nil, store.NewError(store.RetCInternalError, "coordinator returned an error without message")
	}

	if resp.MsgType != req.MsgType {
		return nil, store.Errorf(store.RetCTransportError, "unexpected message type %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}
