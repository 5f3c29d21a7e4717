// Package batch applies one edit set to a selection of catalog items.
//
// A run validates its request up front, takes the single-writer lock in the
// state directory and then processes items strictly in order. Every item is
// merged and rewritten on its own: a failure is recorded on that item and the
// run moves on. Cancellation is checked between items and marks the current
// and remaining items cancelled instead of failing the run. Progress is
// published to the store after every item and the finished run is written to
// the journal when one is configured.
//
// Plan resolves the same per-item writes without touching the filesystem,
// which backs dry runs.
package batch
