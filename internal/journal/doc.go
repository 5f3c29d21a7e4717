// Package journal persists the history of batch runs in SQLite.
//
// Each run stores its identifier, timing, write mode, roots and outcome
// counts, plus one row per processed item with its status and failure
// reason. The schema is created from embedded migrations on Open; the
// database lives in the state directory next to the log file.
package journal
