// Package common provides the shared configuration and logging infrastructure
// for the thread-per-core (TPC) transport engine. It defines the configuration
// structs consumed by the engine, server and client layers, a custom logger
// factory used across all memgrid packages, and a bounded worker pool used for
// concurrent channel establishment.
//
// The package focuses on:
//   - Configuration structs with validation and pretty-printing (EngineConfig,
//     ClientConfig)
//   - A logger factory implementing the dragonboat logger.ILogger interface
//     with a uniform output format
//   - A fixed-size worker pool (IExecutor) for off-loop connect attempts
package common
