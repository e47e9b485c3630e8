// Package store persists setting values for the host.
//
// Values live in namespaces. Two kinds of namespace exist per component:
//
//	device/<uid>/<component>     capabilities reported by one device,
//	                             kept across reconnects, cleared on forget
//	preset/<profile>/<component> user intent, independent of the device,
//	                             switchable at runtime
//
// A Settings handle stages writes to one namespace; Commit flushes them to the
// Backend in one call. Values are encoded as CBOR, so any type the wire codec
// can encode can be stored: scalars (ReadValue/WriteValue), sets
// (ReadSet/WriteSet), numeric ranges (ReadRange/WriteRange) and keyed ranges
// (ReadMultiRange/WriteMultiRange).
//
// Backends:
//   - MemoryBackend: process lifetime only (tests, offline settings disabled)
//   - FileBackend: one JSON document on disk
//   - SQLiteBackend: one table in a SQLite database
package store
