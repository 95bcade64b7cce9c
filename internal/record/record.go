package record

import (
	"time"
)

// Pipeline identifies one of the two independent build flows.
type Pipeline string

const (
	// PipelineURL is the URL-to-package build flow.
	PipelineURL Pipeline = "url"
	// PipelineZip is the project-archive build flow.
	PipelineZip Pipeline = "zip"
)

var pipelines = map[Pipeline]struct{}{
	PipelineURL: {},
	PipelineZip: {},
}

// PipelineFromString converts a string to a Pipeline and checks if it is a known pipeline.
func PipelineFromString(s string) (pipeline Pipeline, known bool) {
	pipeline = Pipeline(s)
	_, known = pipelines[pipeline]
	return pipeline, known
}

// Status represents the persisted build status as a string.
// A missing record stands for idle, so idle is never persisted.
type Status string

const (
	// StatusProgress indicates that a build was started and has not finished.
	StatusProgress Status = "progress"
	// StatusResult indicates that a build finished and produced a download.
	StatusResult Status = "result"
	// StatusError indicates that a build failed.
	StatusError Status = "error"
)

var statuses = map[Status]struct{}{
	StatusProgress: {},
	StatusResult:   {},
	StatusError:    {},
}

// StatusFromString converts a string to a Status and checks if it is a known status.
func StatusFromString(s string) (status Status, known bool) {
	status = Status(s)
	_, known = statuses[status]
	return status, known
}

// IsTerminal reports whether the status ends a build without further
// automatic transitions.
func (s Status) IsTerminal() bool {
	return s == StatusResult || s == StatusError
}

const (
	// MaxRecordAge is how long a non-result record may sit in the store
	// before a read discards it as stale.
	MaxRecordAge = 5 * time.Minute
	// MaxLogAge is how long a session log buffer stays readable.
	// Kept separate from MaxRecordAge on purpose.
	MaxLogAge = 10 * time.Minute
	// DefaultExpiresIn is the download window in seconds assumed when a
	// result record carries none. Shared by both pipelines.
	DefaultExpiresIn = 120
	// MaxLogEntries bounds the session log buffer.
	MaxLogEntries = 50
)

// BuildRecord is the persisted snapshot of a pipeline's last known status.
// It survives process restarts and drives reload recovery.
type BuildRecord struct {
	Pipeline  Pipeline
	Status    Status
	SavedAt   time.Time
	SessionID string

	// DownloadURL and ExpiresIn are set only when Status is StatusResult.
	DownloadURL string
	ExpiresIn   int

	// Message is set only when Status is StatusError.
	Message string
}

// RemainingSeconds returns how many seconds of the download window are left
// at now, never negative. A record without ExpiresIn falls back to
// DefaultExpiresIn.
func (r *BuildRecord) RemainingSeconds(now time.Time) int {
	expiresIn := r.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = DefaultExpiresIn
	}
	elapsed := int(now.Sub(r.SavedAt) / time.Second)
	remaining := expiresIn - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the download window has fully lapsed at now.
func (r *BuildRecord) Expired(now time.Time) bool {
	return r.Status == StatusResult && r.RemainingSeconds(now) == 0
}
