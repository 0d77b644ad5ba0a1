// Package tcp provides the TCP connectors for the base transport. Socket buffer
// sizes, TCP_NODELAY, keep-alive and linger are applied from SocketConf and
// TCPConf on both sides of a connection.
//
// The default server read buffer is 512 KB.
package tcp
