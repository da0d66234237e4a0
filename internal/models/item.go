package models

import (
	"fmt"
	"time"
)

// ImportItem is one playlist entry within an import job.
//
// The item keeps the source track snapshot, the annotated candidate list
// from the match stage, and the reviewer's override when one was applied.
type ImportItem struct {
	id                  string
	sequence            int
	jobID               string
	position            int
	track               SourceTrack
	candidates          []Candidate
	bestCandidateID     string
	overrideCandidateID string
	score               float64
	status              ItemStatus
	createdAt           time.Time
	updatedAt           time.Time
	deletedAt           *time.Time
}

// NewImportItem creates a new ImportItem in the PENDING state.
func NewImportItem(sequence int, jobID string, position int, track SourceTrack) *ImportItem {
	now := time.Now()
	return &ImportItem{
		sequence:  sequence,
		jobID:     jobID,
		position:  position,
		track:     track,
		status:    ItemPending,
		createdAt: now,
		updatedAt: now,
	}
}

func (i *ImportItem) ID() string { return i.id }

func (i *ImportItem) Sequence() int { return i.sequence }

func (i *ImportItem) JobID() string { return i.jobID }

func (i *ImportItem) Position() int { return i.position }

func (i *ImportItem) Track() SourceTrack { return i.track }

func (i *ImportItem) Candidates() []Candidate { return i.candidates }

func (i *ImportItem) BestCandidateID() string { return i.bestCandidateID }

func (i *ImportItem) OverrideCandidateID() string { return i.overrideCandidateID }

func (i *ImportItem) Score() float64 { return i.score }

func (i *ImportItem) Status() ItemStatus { return i.status }

func (i *ImportItem) CreatedAt() time.Time { return i.createdAt }

func (i *ImportItem) UpdatedAt() time.Time { return i.updatedAt }

func (i *ImportItem) DeletedAt() *time.Time { return i.deletedAt }

func (i *ImportItem) SetID(id string) { i.id = id }

func (i *ImportItem) SetTrack(track SourceTrack) { i.track = track }

func (i *ImportItem) SetCandidates(candidates []Candidate) { i.candidates = candidates }

func (i *ImportItem) SetBestCandidateID(id string) { i.bestCandidateID = id }

func (i *ImportItem) SetOverrideCandidateID(id string) { i.overrideCandidateID = id }

func (i *ImportItem) SetScore(score float64) { i.score = score }

func (i *ImportItem) SetStatus(status ItemStatus) { i.status = status }

func (i *ImportItem) SetUpdatedAt(t time.Time) { i.updatedAt = t }

func (i *ImportItem) SetDeletedAt(t *time.Time) { i.deletedAt = t }

// ChosenID returns the candidate ID the finalize stage should insert.
//
// A reviewer override wins over the scored best candidate. Returns an
// empty string when the item has nothing to insert.
func (i *ImportItem) ChosenID() string {
	if i.overrideCandidateID != "" {
		return i.overrideCandidateID
	}
	return i.bestCandidateID
}

// Validate checks that the item has the required fields and a known status.
func (i *ImportItem) Validate() error {
	if i.jobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if i.position < 0 {
		return fmt.Errorf("position must be non-negative")
	}
	switch i.status {
	case ItemPending, ItemMatched, ItemUncertain, ItemNotFound, ItemInserted, ItemDuplicate, ItemFailed:
	default:
		return fmt.Errorf("unknown item status: %s", i.status)
	}
	return nil
}
