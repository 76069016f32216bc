// Package engine implements the thread-per-core transport engine: a set of
// single-threaded reactors, the non-blocking async socket they own and the
// single-use builder that constructs sockets on their owning reactor.
//
// The package focuses on:
//   - Reactor: an event loop bound to one goroutine (locked to an OS thread,
//     optionally pinned to a CPU core) that owns a set of sockets. All I/O
//     callbacks and submitted tasks run on that goroutine, one at a time, in
//     submission order.
//   - AsyncSocket: a non-blocking socket with a read callback and a bounded
//     write queue. Its mutable I/O state is touched exclusively by the owning
//     reactor's goroutine; Write may be called from any goroutine and hands
//     frames over through the queue.
//   - AsyncSocketBuilder: a single-use factory enforcing that socket
//     construction happens on the owning reactor goroutine, regardless of
//     which goroutine invokes Build.
//   - AsyncServerSocket: the per-reactor accept socket used by the server
//     side of the engine.
//
// Readiness notification uses epoll on Linux; on other platforms the engine
// still runs task-only reactors, but socket I/O is unsupported.
package engine
