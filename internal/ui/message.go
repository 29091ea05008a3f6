package ui

import "github.com/desertthunder/nrx/internal/tasks"

// progressUpdateMsg carries one [tasks.ProgressUpdate] into the update loop.
type progressUpdateMsg tasks.ProgressUpdate

type previewCompleteMsg struct {
	aggregation *tasks.Aggregation
	err         error
}

type publishCompleteMsg struct {
	result *tasks.Result
	err    error
}
