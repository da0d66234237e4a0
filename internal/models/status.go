package models

// JobStatus tracks an import job through its lifecycle.
//
// Jobs move QUEUED → RUNNING → WAITING_REVIEW → IMPORTING → DONE.
// Any non-terminal status may fall to FAILED; DONE and FAILED are terminal.
type JobStatus string

const (
	JobQueued        JobStatus = "QUEUED"
	JobRunning       JobStatus = "RUNNING"
	JobWaitingReview JobStatus = "WAITING_REVIEW"
	JobImporting     JobStatus = "IMPORTING"
	JobDone          JobStatus = "DONE"
	JobFailed        JobStatus = "FAILED"
)

// CanTransition reports whether moving from s to the given status is legal.
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobQueued:
		return to == JobRunning || to == JobFailed
	case JobRunning:
		return to == JobWaitingReview || to == JobFailed
	case JobWaitingReview:
		return to == JobImporting || to == JobFailed
	case JobImporting:
		return to == JobDone || to == JobFailed
	default:
		return false
	}
}

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobDone || s == JobFailed
}

// ItemStatus tracks the match and insert outcome of a single playlist entry.
//
// Items start PENDING, land on MATCHED, UNCERTAIN, or NOT_FOUND after the
// match stage, and move to INSERTED, DUPLICATE, or FAILED after finalize.
type ItemStatus string

const (
	ItemPending   ItemStatus = "PENDING"
	ItemMatched   ItemStatus = "MATCHED"
	ItemUncertain ItemStatus = "UNCERTAIN"
	ItemNotFound  ItemStatus = "NOT_FOUND"
	ItemInserted  ItemStatus = "INSERTED"
	ItemDuplicate ItemStatus = "DUPLICATE"
	ItemFailed    ItemStatus = "FAILED"
)

// NeedsReview reports whether the item should surface in the review queue.
//
// NOT_FOUND items are reviewable alongside UNCERTAIN ones so a missing match
// can be rescued with a manual override before finalize.
func (s ItemStatus) NeedsReview() bool {
	return s == ItemUncertain || s == ItemNotFound
}
