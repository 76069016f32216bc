// Package nearcache batches near-cache invalidation events.
//
// Mutating a grid entry invalidates the near caches of every client
// holding it. Sending one event per mutation does not scale, so the
// BatchInvalidator accumulates invalidations per cache and hands them to a
// flush handler when a batch fills up or the flush interval elapses,
// whichever comes first.
package nearcache
