// Package client implements the client side of the TPC transport: the
// logical connection to a server and the connector that upgrades it to a
// set of parallel per-core channels.
//
// The package focuses on:
//
//   - Connection: the client-visible logical connection. It survives
//     independently of the channel-establishment outcome; when no TPC
//     channels are installed, all traffic routes through it (fallback/smart
//     routing).
//
//   - TpcChannelConnector: a per-connection, short-lived orchestrator that
//     establishes one channel per target port concurrently, writes the
//     identity handshake on each, and either installs the complete channel
//     array on the connection or tears everything down exactly once.
//
// The connector depends only on narrow interfaces (IConnection,
// common.IExecutor, ChannelCreator), so the establishment protocol can be
// tested without real sockets.
package client
