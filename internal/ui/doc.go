// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through one release run:
//  1. [LoadingView] : Followed artists, albums and tracks are collected
//  2. [AlbumListView] : Browse and filter the releases that will be added
//  3. [ConfirmView] : Confirm the playlist write
//  4. [WritingView] : Monitor playlist creation and batched track inserts
//  5. [ResultView] : Show the playlist link or the failure
//
// Progress flows through a channel from the pipeline goroutine and is relayed into the
// update loop one message at a time, so the pipeline never blocks on rendering.
package ui
