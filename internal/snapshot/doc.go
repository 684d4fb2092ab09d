// Package snapshot implements the Snapshot file collaborator: whole-table
// dump and restore of the record store against a datastore URI, with an
// in-memory no-op for deployments that don't want persistence.
//
// Two backends are registered via New:
//
//	memory://         NopSnapshotter, Load returns nothing, Save discards
//	file://<path>     JSONFile, atomic write via temp file + rename
package snapshot
