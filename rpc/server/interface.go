package server

import (
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes a Message and the store of the addressed shard as parameters.
	// Errors are reported in the response, never returned
	Handle(req *common.Message, store store.IStore) (resp *common.Message)
}
