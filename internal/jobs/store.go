package jobs

import "context"

// Job states. "unknown" is reserved for the not-found sentinel returned by
// the status endpoint and is never stored.
const (
	StateProcessing = "processing"
	StateCompleted  = "completed"
	StateFailed     = "failed"
	StateUnknown    = "unknown"
)

// Status is the snapshot of one import job's progress.
type Status struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// Unknown is the sentinel returned for job ids that were never issued (or
// that have been evicted). Callers cannot distinguish those cases.
func Unknown() Status {
	return Status{Status: StateUnknown, Progress: 0, Message: "Job not found"}
}

// Store is a keyed registry of job progress. Each entry has a single writer
// (the pipeline owning that job id) and arbitrarily many concurrent readers;
// implementations must replace entries atomically so a reader never observes
// a partially applied update.
type Store interface {
	Set(ctx context.Context, jobID string, status Status) error
	// Get returns the stored status and true, or the zero Status and false
	// when the job id is not present.
	Get(ctx context.Context, jobID string) (Status, bool, error)
}
