package model

import (
	"sync/atomic"
	"time"
)

// FailureReason names why a single item was not processed.
type FailureReason string

const (
	// FailureNotFound means the item no longer existed when its task ran.
	FailureNotFound FailureReason = "not_found"
	// FailureInterrupted means the task was cancelled before it could finish.
	FailureInterrupted FailureReason = "interrupted"
	// FailurePersistence means loading or saving the item failed.
	FailurePersistence FailureReason = "persistence"
	// FailureNotScheduled means the task never reached a worker.
	FailureNotScheduled FailureReason = "not_scheduled"
	// FailureAbandoned means the task finished without reporting an outcome.
	FailureAbandoned FailureReason = "abandoned"
)

// OutcomeState is the state of one outcome slot.
type OutcomeState uint8

const (
	OutcomePending OutcomeState = iota
	OutcomeSucceeded
	OutcomeFailed
)

// ItemOutcome is the terminal result of processing one item.
type ItemOutcome struct {
	ItemID string
	State  OutcomeState
	Item   *Item
	Reason FailureReason
	Err    error
}

// Succeeded reports whether the outcome carries a persisted item.
func (o ItemOutcome) Succeeded() bool {
	return o.State == OutcomeSucceeded && o.Item != nil
}

// Success builds a successful outcome.
func Success(item *Item) ItemOutcome {
	id := ""
	if item != nil {
		id = item.ID
	}
	return ItemOutcome{ItemID: id, State: OutcomeSucceeded, Item: item}
}

// Failure builds a failed outcome.
func Failure(itemID string, reason FailureReason, err error) ItemOutcome {
	return ItemOutcome{ItemID: itemID, State: OutcomeFailed, Reason: reason, Err: err}
}

// BatchRunStatus is the overall status of a finished batch run.
type BatchRunStatus string

const (
	BatchRunStatusCompleted      BatchRunStatus = "COMPLETED"
	BatchRunStatusPartialFailure BatchRunStatus = "PARTIAL_FAILURE"
	BatchRunStatusFailed         BatchRunStatus = "FAILED"
)

// Valid reports whether the status is supported.
func (s BatchRunStatus) Valid() bool {
	switch s {
	case BatchRunStatusCompleted, BatchRunStatusPartialFailure, BatchRunStatusFailed:
		return true
	default:
		return false
	}
}

// BatchRun holds the state of one engine invocation.
//
// Every snapshot position owns one outcome slot. A slot is written by exactly
// one task, and slots are only read by Finalize once all tasks are terminal.
type BatchRun struct {
	ID        string
	StartedAt time.Time

	ids       []string
	outcomes  []ItemOutcome
	recorded  []atomic.Bool
	finalized atomic.Bool
}

// NewBatchRun creates a run over a snapshot of item IDs.
func NewBatchRun(id string, ids []string, startedAt time.Time) *BatchRun {
	snapshot := make([]string, len(ids))
	copy(snapshot, ids)
	outcomes := make([]ItemOutcome, len(snapshot))
	for i, itemID := range snapshot {
		outcomes[i] = ItemOutcome{ItemID: itemID, State: OutcomePending}
	}
	return &BatchRun{
		ID:        id,
		StartedAt: startedAt,
		ids:       snapshot,
		outcomes:  outcomes,
		recorded:  make([]atomic.Bool, len(snapshot)),
	}
}

// Size returns the number of items in the snapshot.
func (r *BatchRun) Size() int { return len(r.ids) }

// ItemID returns the item ID at a snapshot position.
func (r *BatchRun) ItemID(slot int) string { return r.ids[slot] }

// Record stores the outcome for a slot. It returns false if the slot was
// already recorded, the run is finalized, or the slot is out of range.
func (r *BatchRun) Record(slot int, outcome ItemOutcome) bool {
	if slot < 0 || slot >= len(r.outcomes) || r.finalized.Load() {
		return false
	}
	if !r.recorded[slot].CompareAndSwap(false, true) {
		return false
	}
	if outcome.ItemID == "" {
		outcome.ItemID = r.ids[slot]
	}
	r.outcomes[slot] = outcome
	return true
}

// Finalize freezes the run and assembles its result. Slots never recorded are
// reported as abandoned failures. Callers must only invoke Finalize after every
// dispatched task is terminal.
func (r *BatchRun) Finalize(finishedAt time.Time, runErr error) *BatchResult {
	r.finalized.Store(true)

	items := make([]*Item, 0, len(r.outcomes))
	var failures []ItemOutcome
	for i := range r.outcomes {
		o := r.outcomes[i]
		if o.State == OutcomePending {
			o = Failure(r.ids[i], FailureAbandoned, nil)
		}
		if o.Succeeded() {
			items = append(items, o.Item)
			continue
		}
		if o.State != OutcomeFailed {
			o = Failure(r.ids[i], FailureAbandoned, o.Err)
		}
		failures = append(failures, o)
	}

	summary := BatchRunSummary{
		ID:         r.ID,
		Total:      len(r.ids),
		Succeeded:  len(items),
		Failed:     len(failures),
		Failures:   summarizeFailures(failures),
		StartedAt:  r.StartedAt,
		FinishedAt: finishedAt,
	}
	switch {
	case runErr != nil:
		summary.Status = BatchRunStatusFailed
		msg := runErr.Error()
		summary.Error = &msg
	case len(failures) > 0:
		summary.Status = BatchRunStatusPartialFailure
	default:
		summary.Status = BatchRunStatusCompleted
	}

	return &BatchResult{Items: items, Failures: failures, Summary: summary}
}

func summarizeFailures(failures []ItemOutcome) []BatchFailure {
	out := make([]BatchFailure, 0, len(failures))
	for _, f := range failures {
		bf := BatchFailure{ItemID: f.ItemID, Reason: f.Reason}
		if f.Err != nil {
			bf.Error = f.Err.Error()
		}
		out = append(out, bf)
	}
	return out
}

// BatchResult is the finalized, read-only outcome of a batch run.
type BatchResult struct {
	// Items holds successfully processed items in snapshot order.
	Items    []*Item
	Failures []ItemOutcome
	Summary  BatchRunSummary
}

// BatchFailure is the persisted form of a failed outcome.
type BatchFailure struct {
	ItemID string        `json:"item_id"`
	Reason FailureReason `json:"reason"`
	Error  string        `json:"error,omitempty"`
}

// BatchRunSummary is the persisted record of a finished batch run.
type BatchRunSummary struct {
	ID         string         `json:"id"          db:"id"`
	Status     BatchRunStatus `json:"status"      db:"status"`
	Total      int            `json:"total"       db:"total"`
	Succeeded  int            `json:"succeeded"   db:"succeeded"`
	Failed     int            `json:"failed"      db:"failed"`
	Failures   []BatchFailure `json:"failures"    db:"failures"`
	Error      *string        `json:"error,omitempty" db:"error"`
	StartedAt  time.Time      `json:"started_at"  db:"started_at"`
	FinishedAt time.Time      `json:"finished_at" db:"finished_at"`
}

// Duration returns the wall-clock duration of the run.
func (s BatchRunSummary) Duration() time.Duration {
	if s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// BatchRunListOptions controls paging for listing batch runs.
type BatchRunListOptions struct {
	Limit  int
	Offset int
	Status *BatchRunStatus
}
