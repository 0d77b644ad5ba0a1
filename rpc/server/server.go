package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/db/engines/maple"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/store/lstore"
	"github.com/ValentinKolb/tKV/lib/updater"
	"github.com/ValentinKolb/tKV/rpc/common"
	"github.com/ValentinKolb/tKV/rpc/serializer"
	"github.com/ValentinKolb/tKV/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server
// It contains the store it encapsulates and the adapter that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// RPCServer is the coordinator. It holds the authoritative table of every configured
// shard and answers the requests of the workers.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]

	metrics       *metrics.Set
	mu            sync.Mutex // protects metricsServer
	metricsServer *http.Server

	closeOnce sync.Once
}

// NewRPCServer creates a new RPC server and the stores of all configured shards.
// The stores are usable right away (see Store), requests are served after Serve is called.
//
// Usage:
//
//	s, err := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//	if err != nil {
//		panic(err)
//	}
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) (*RPCServer, error) {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	if len(config.Shards) == 0 {
		return nil, fmt.Errorf("no shards configured")
	}

	dbFactory := func() db.Table { return maple.NewMapleDB(nil) }
	shards := xsync.NewMapOf[uint64, serverShard]()

	for _, shardConfig := range config.Shards {
		if _, loaded := shards.Load(shardConfig.ShardID); loaded {
			return nil, fmt.Errorf("shard %d is configured more than once", shardConfig.ShardID)
		}

		fn, err := updater.Parse(shardConfig.Updater)
		if err != nil {
			return nil, fmt.Errorf("shard %d: %w", shardConfig.ShardID, err)
		}

		s := lstore.NewLocalStore(dbFactory)
		if err := s.SetUpdater(fn); err != nil {
			return nil, fmt.Errorf("shard %d: %w", shardConfig.ShardID, err)
		}

		shards.Store(shardConfig.ShardID, serverShard{
			Store:   s,
			Adapter: NewIStoreServerAdapter(),
		})
		Logger.Infof("created local store for shard %d", shardConfig.ShardID)
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     shards,
		metrics:    metrics.NewSet(),
	}, nil
}

// Store returns the store of a shard. A worker running in the coordinator process
// uses it with kvstore.NewWithStore instead of going through the transport.
func (s *RPCServer) Store(shardID uint64) (store.IStore, bool) {
	shard, ok := s.shards.Load(shardID)
	if !ok {
		return nil, false
	}
	return shard.Store, true
}

// Serve starts the metrics endpoint (if configured) and the transport layer.
// It blocks until Close is called or the transport fails.
func (s *RPCServer) Serve() error {
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}

	Logger.Infof("Starting RPC Server")
	Logger.Infof(s.config.String())

	if s.config.MetricsEndpoint != "" {
		s.startMetricsServer()
	}

	s.transport.RegisterHandler(s.handle)
	return s.transport.Listen(s.config)
}

// Close stops the transport and the metrics endpoint and closes all stores
// Close may be called more than once
func (s *RPCServer) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		if err := s.transport.Close(); err != nil {
			errs = append(errs, err)
		}

		s.mu.Lock()
		metricsServer := s.metricsServer
		s.mu.Unlock()
		if metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		s.shards.Range(func(id uint64, shard serverShard) bool {
			if err := shard.Store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("shard %d: %w", id, err))
			}
			return true
		})
		Logger.Infof("RPC Server stopped")
	})
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handle is the transport handler of the server
func (s *RPCServer) handle(shardId uint64, req []byte) []byte {
	start := time.Now()
	var msg common.Message
	var resp *common.Message

	if err := s.serializer.Deserialize(req, &msg); err != nil {
		resp = common.NewErrorResponse(store.RetCTransportError, fmt.Sprintf("failed to deserialize request: %s", err))
	} else if shard, ok := s.shards.Load(shardId); !ok {
		resp = common.NewErrorResponse(store.RetCInvalidOperation, fmt.Sprintf("shard %d not found", shardId))
	} else {
		resp = shard.Adapter.Handle(&msg, shard.Store)
	}

	s.observe(shardId, msg.MsgType, resp, start)

	data, err := s.serializer.Serialize(*resp)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		data, _ = s.serializer.Serialize(*common.NewErrorResponse(store.RetCInternalError,
			fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return data
}

// observe records the metrics of one request
func (s *RPCServer) observe(shardId uint64, msgType common.MessageType, resp *common.Message, start time.Time) {
	labels := fmt.Sprintf(`{shard=%q,type=%q}`, strconv.FormatUint(shardId, 10), msgType.String())

	s.metrics.GetOrCreateCounter("tkv_requests_total" + labels).Inc()
	if resp.Code != uint64(store.RetCSuccess) || resp.MsgType == common.MsgTError {
		s.metrics.GetOrCreateCounter("tkv_request_errors_total" + labels).Inc()
	}
	s.metrics.GetOrCreateHistogram("tkv_request_duration_seconds" + labels).Update(time.Since(start).Seconds())
}

// startMetricsServer exposes the metrics in Prometheus format at MetricsEndpoint/metrics
func (s *RPCServer) startMetricsServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		s.metrics.WritePrometheus(w)
		metrics.WritePrometheus(w, true)
	})

	metricsServer := &http.Server{Addr: s.config.MetricsEndpoint, Handler: mux}
	s.mu.Lock()
	s.metricsServer = metricsServer
	s.mu.Unlock()

	go func() {
		Logger.Infof("Serving metrics on %s/metrics", s.config.MetricsEndpoint)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics endpoint failed: %v", err)
		}
	}()
}
