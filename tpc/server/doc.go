// Package server implements the server side of the TPC transport.
//
// A Server opens one listen socket per reactor, so every accepted channel
// is owned by exactly one event loop for its whole lifetime. The first
// frame on every accepted channel must be the client's identity handshake;
// the channel is then registered under the client UUID and all further
// frames are dispatched to the configured Handler.
package server
