package models

import (
	"fmt"
	"time"
)

// ImportJob tracks one playlist import from a source provider to a target.
//
// The job carries denormalized playlist metadata (name, track count) so
// listings never have to call back out to the source catalog, plus the
// final [ImportReport] once the write stage completes.
type ImportJob struct {
	id                 string
	sequence           int
	userID             string
	sourceProvider     Provider
	sourcePlaylistID   string
	sourcePlaylistName string
	targetProvider     Provider
	targetPlaylistID   string
	status             JobStatus
	totalTracks        int
	errorMessage       string
	report             *ImportReport
	startedAt          *time.Time
	completedAt        *time.Time
	createdAt          time.Time
	updatedAt          time.Time
	deletedAt          *time.Time
}

// NewImportJob creates a new ImportJob in the QUEUED state.
func NewImportJob(sequence int, userID string, source Provider, sourcePlaylistID string, target Provider) *ImportJob {
	now := time.Now()
	return &ImportJob{
		sequence:         sequence,
		userID:           userID,
		sourceProvider:   source,
		sourcePlaylistID: sourcePlaylistID,
		targetProvider:   target,
		status:           JobQueued,
		createdAt:        now,
		updatedAt:        now,
	}
}

func (j *ImportJob) ID() string { return j.id }

func (j *ImportJob) Sequence() int { return j.sequence }

func (j *ImportJob) UserID() string { return j.userID }

func (j *ImportJob) SourceProvider() Provider { return j.sourceProvider }

func (j *ImportJob) SourcePlaylistID() string { return j.sourcePlaylistID }

func (j *ImportJob) SourcePlaylistName() string { return j.sourcePlaylistName }

func (j *ImportJob) TargetProvider() Provider { return j.targetProvider }

func (j *ImportJob) TargetPlaylistID() string { return j.targetPlaylistID }

func (j *ImportJob) Status() JobStatus { return j.status }

func (j *ImportJob) TotalTracks() int { return j.totalTracks }

func (j *ImportJob) ErrorMessage() string { return j.errorMessage }

func (j *ImportJob) Report() *ImportReport { return j.report }

func (j *ImportJob) StartedAt() *time.Time { return j.startedAt }

func (j *ImportJob) CompletedAt() *time.Time { return j.completedAt }

func (j *ImportJob) CreatedAt() time.Time { return j.createdAt }

func (j *ImportJob) UpdatedAt() time.Time { return j.updatedAt }

func (j *ImportJob) DeletedAt() *time.Time { return j.deletedAt }

func (j *ImportJob) SetID(id string) { j.id = id }

func (j *ImportJob) SetSourcePlaylistName(name string) { j.sourcePlaylistName = name }

func (j *ImportJob) SetTargetPlaylistID(id string) { j.targetPlaylistID = id }

func (j *ImportJob) SetStatus(status JobStatus) { j.status = status }

func (j *ImportJob) SetTotalTracks(n int) { j.totalTracks = n }

func (j *ImportJob) SetErrorMessage(msg string) { j.errorMessage = msg }

func (j *ImportJob) SetReport(report *ImportReport) { j.report = report }

func (j *ImportJob) SetStartedAt(t *time.Time) { j.startedAt = t }

func (j *ImportJob) SetCompletedAt(t *time.Time) { j.completedAt = t }

func (j *ImportJob) SetUpdatedAt(t time.Time) { j.updatedAt = t }

func (j *ImportJob) SetDeletedAt(t *time.Time) { j.deletedAt = t }

// Validate checks that the job has the required fields and a known status.
func (j *ImportJob) Validate() error {
	if j.userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if !j.sourceProvider.IsSource() {
		return fmt.Errorf("provider cannot be used as a source: %s", j.sourceProvider)
	}
	if !j.targetProvider.IsTarget() {
		return fmt.Errorf("provider cannot be used as a target: %s", j.targetProvider)
	}
	if j.sourcePlaylistID == "" {
		return fmt.Errorf("source playlist ID is required")
	}
	switch j.status {
	case JobQueued, JobRunning, JobWaitingReview, JobImporting, JobDone, JobFailed:
	default:
		return fmt.Errorf("unknown job status: %s", j.status)
	}
	return nil
}

// ImportReport summarizes the outcome of a finished import.
//
// Counts satisfy inserted + duplicates + failed + skipped == total for
// every completed job. Skipped covers entries that never reached the
// target: no match found, or rejected during review. Duplicate entries
// are listed separately from missed ones so a squashed track is never
// mistaken for a lost one.
type ImportReport struct {
	SourceName       string        `json:"source_name"`
	TargetPlaylistID string        `json:"target_playlist_id"`
	TotalTracks      int           `json:"total_tracks"`
	Matched          int           `json:"matched"`
	Inserted         int           `json:"inserted"`
	Duplicates       int           `json:"duplicates"`
	Failed           int           `json:"failed"`
	Skipped          int           `json:"skipped"`
	Missed           []MissedTrack `json:"missed,omitempty"`
	DuplicateTracks  []MissedTrack `json:"duplicate_tracks,omitempty"`
}

// MissedTrack describes a source entry that did not land on the target.
type MissedTrack struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Reason string `json:"reason"`
}
