package common

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/tKV/lib/updater"
)

// --------------------------------------------------------------------------
// Shared socket configuration
// --------------------------------------------------------------------------

// SocketConf holds generic socket buffer settings (0 = OS default)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific settings
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int // 0 = disabled
	TCPLingerSec    int // -1 = OS default
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerShard describes one table served by the coordinator
type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Updater is the updater description of the shard (see updater.Parse), empty means sum
	Updater string
}

// ServerTransportConfig holds the listener settings of the coordinator
type ServerTransportConfig struct {
	Endpoint       string
	WorkersPerConn int // concurrent requests per connection, 1 answers each connection in order
	BufferSize     int // read buffer per request
	SocketConf
	TCPConf
}

// ServerConfig holds all configuration parameters of the coordinator.
type ServerConfig struct {
	Shards []ServerShard

	// 0 disables all read and write deadlines
	TimeoutSecond int64

	Transport ServerTransportConfig

	// Logging configuration
	LogLevel string

	// Prometheus metrics endpoint (e.g. ":9090"), empty disables metrics
	MetricsEndpoint string
}

// ParseShards parses a shard list such as "100=store,200=store(max)".
// The store type must be "store", the optional argument is an updater description.
func ParseShards(s string) ([]ServerShard, error) {
	var shards []ServerShard
	seen := make(map[uint64]bool)

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		idStr, kind, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid shard %q, expected ID=store or ID=store(<updater>)", part)
		}
		id, err := strconv.ParseUint(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid shard id %q: %v", idStr, err)
		}
		if seen[id] {
			return nil, fmt.Errorf("shard %d is configured more than once", id)
		}
		seen[id] = true

		kind = strings.TrimSpace(kind)
		shard := ServerShard{ShardID: id}
		switch {
		case kind == "store":
		case strings.HasPrefix(kind, "store(") && strings.HasSuffix(kind, ")"):
			shard.Updater = strings.TrimSpace(kind[len("store(") : len(kind)-1])
			if _, err := updater.Parse(shard.Updater); err != nil {
				return nil, fmt.Errorf("shard %d: %v", id, err)
			}
		default:
			return nil, fmt.Errorf("invalid shard type %q for shard %d", kind, id)
		}
		shards = append(shards, shard)
	}

	if len(shards) == 0 {
		return nil, fmt.Errorf("no shards configured")
	}
	return shards, nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("Buffer Size", strconv.Itoa(c.Transport.BufferSize))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Metrics")
	if c.MetricsEndpoint == "" {
		addField("Endpoint", "disabled")
	} else {
		addField("Endpoint", c.MetricsEndpoint+"/metrics")
	}

	addSection("Shards")
	for _, shard := range c.Shards {
		u := shard.Updater
		if u == "" {
			u = "sum"
		}
		addField(strconv.FormatUint(shard.ShardID, 10), fmt.Sprintf("store (updater %s)", u))
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the connection settings of a worker
type ClientTransportConfig struct {
	Endpoints              []string
	ConnectionsPerEndpoint int
	SocketConf
	TCPConf
}

type ClientConfig struct {
	// 0 disables the request timeout
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))

	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
