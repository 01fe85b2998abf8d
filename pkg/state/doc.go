// Package state persists state map snapshots outside the process.
//
// A Store loads and saves one snapshot per Ref. The root statemap package stays
// persistence-agnostic; callers pick a Store (MemoryStore for session-like
// storage, FileStore for YAML files on disk) and commit what they load into a
// statemap.Slot.
//
// Deterministic keys:
//
//	Ref.Identifier() returns `domain` or `domain/partition`. FileStore maps the
//	identifier onto `<root>/<identifier>.yaml`.
//
// Concurrency:
//
//	Every successful Save assigns a fresh Meta.SnapshotID and Meta.ETag. A Save
//	carrying a non-empty ETag fails with ErrETagMismatch when the stored
//	snapshot has moved on. Mutate wraps load, mutate, and save in that check.
package state
