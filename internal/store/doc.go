// Package store provides the observable key/value store that coordinates
// state between the catalog scanner, the batch processor and the CLI.
//
// A Store is constructed once by the command context and injected into the
// components that need it. Writers compare each new value against the one it
// replaces and only report real changes; subscribers registered with
// Subscribe receive those change batches after the store lock has been
// released, so a subscriber may read or write the store from its callback.
package store
