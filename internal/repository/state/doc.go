// Package state implements persistence for the panel Snapshot.
//
// FileRepository stores the snapshot as protobuf JSON on disk; SQLiteRepository
// keeps it in the system_state and sensors tables. Both satisfy Repository,
// which the server service depends on.
package state
