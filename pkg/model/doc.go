// Package model implements the published peripheral model of a device.
//
// # Hierarchy
//
//	Registry (one per device uid)
//	└── Component (one per kind: network, gimbal, recorder, ...)
//	    └── Field -> value
//
// A Component is created once per device and reused across reconnects. It is
// either published (visible to consumers) or not; unpublished components keep
// their fields but consumers should ignore them.
//
// # Batched Updates
//
// Mutations go through a Tx. A Tx stages field writes and publication
// changes; Commit applies them atomically and emits at most one Change
// notification, listing every field whose value actually changed:
//
//	tx := comp.Begin()
//	defer tx.Commit()
//	tx.Set(FieldLinkQuality, 4)
//	tx.Publish()
//
// Commit is idempotent, so a deferred Commit also covers early-return paths.
//
// # Observers
//
// Observers subscribe to a component or to the whole registry. They run on
// the goroutine that commits, after the component lock is released, and must
// not start a new Tx on the same device synchronously.
package model
