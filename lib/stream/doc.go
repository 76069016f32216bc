// Package stream implements the change-stream source boundary: a Source
// pulls records from a driver client and emits them into a bounded,
// multi-ordinal Outbox that the downstream pipeline drains.
//
// Source and Outbox are owned by a single pipeline goroutine and are not
// safe for concurrent use; the driver client behind ISourceClient is the
// only component doing I/O.
package stream
