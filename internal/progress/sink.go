// Package progress carries ingestion progress events to whoever watches
// them. Sinks are best-effort: callers log a failed Notify and move on,
// an unreachable sink never aborts ingestion.
package progress

import "context"

// Stages of an ingestion session.
const (
	StageFetching   = "fetching"
	StageProcessing = "processing"
	StageComplete   = "complete"
	StageError      = "error"
)

// Event is one progress update for an ingestion session. Counts are
// committed counts only.
type Event struct {
	SessionID string `json:"session_id"`
	Stage     string `json:"stage"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Saved     int    `json:"saved"`
	Updated   int    `json:"updated"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Message   string `json:"message,omitempty"`
}

// Sink receives progress events.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}
