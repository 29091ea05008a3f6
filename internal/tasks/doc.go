// Package tasks builds the monthly release playlist.
//
// # Stages
//
//  1. [ReleaseAggregator] discovers followed artists, their releases inside the window and
//     the tracks of each release. Releases are deduplicated by name and primary artist;
//     release dates that are not full calendar dates are skipped.
//  2. [PlaylistWriter] creates "New Monthly Releases - MM-DD-YYYY" and adds the tracks in
//     at most [MaxTracksPerRequest] URIs per call ([SplitChunks]).
//
// [Pipeline] runs the authorization code exchange followed by both stages. Every request
// is sequential and the first failure aborts the run; nothing is written to the provider
// before aggregation has finished.
//
// # Progress Reporting
//
// Operations accept an optional channel of [ProgressUpdate]. Sends are non-blocking: a full
// or nil channel drops the update rather than stalling the pipeline.
//
// # History
//
// An optional [RunRecorder] (repositories.RunRepository) stores each run's outcome. Recorder
// failures are logged and never fail the run.
//
// [NewSession] wires an auth manager, executor, aggregator, writer and pipeline for one user.
package tasks
