// Package cmd implements the command-line interface for the memgrid TPC
// transport engine. It provides a hierarchical command structure with
// operations for running the server and benchmarking it from a client.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the memgrid server
//   - bench: Echo round-trip benchmark against a running server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See memgrid -help for a list of all commands.
package cmd
