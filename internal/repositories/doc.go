// Package repositories implements SQLite persistence for pipeline run history.
//
// Key Implementations:
//   - [RunRepository] : run outcomes, stage counts and the albums each run selected
//
// Sequence numbers provide stable, human-readable ordering (run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
