package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/portage/internal/match"
	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/shared"
)

// RunMatch executes the match stage for a queued job.
//
// The QUEUED → RUNNING transition is claimed first, so two workers handed
// the same job ID race on the compare-and-set and the loser returns without
// touching anything. Any failure after the claim moves the job to FAILED.
func (e *PipelineEngine) RunMatch(ctx context.Context, jobID string, progress chan<- ProgressUpdate) error {
	if err := e.jobs.TransitionStatus(jobID, models.JobQueued, models.JobRunning); err != nil {
		return err
	}

	job, err := e.jobs.Get(jobID)
	if err != nil {
		return err
	}

	now := time.Now()
	job.SetStartedAt(&now)
	if err := e.jobs.Update(job); err != nil {
		return err
	}

	if err := e.matchJob(ctx, job, progress); err != nil {
		e.failJob(jobID, err)
		return err
	}
	return nil
}

// matchJob enumerates the source playlist, searches the target catalog,
// and persists one classified item per track before parking the job in
// WAITING_REVIEW.
func (e *PipelineEngine) matchJob(ctx context.Context, job *models.ImportJob, progress chan<- ProgressUpdate) error {
	source, err := e.sourceFor(ctx, job.UserID(), job.SourceProvider())
	if err != nil {
		return err
	}

	e.sendProgress(progress, fetchSourceUpdate(1, 1, source.Name()))
	tracks, name, err := source.EnumeratePlaylist(ctx, job.SourcePlaylistID())
	if err != nil {
		return fmt.Errorf("failed to enumerate source playlist: %w", err)
	}
	if len(tracks) == 0 {
		return fmt.Errorf("%w: playlist %s has no tracks", shared.ErrInvalidInput, job.SourcePlaylistID())
	}

	job.SetSourcePlaylistName(name)
	job.SetTotalTracks(len(tracks))
	if err := e.jobs.Update(job); err != nil {
		return err
	}
	e.sendProgress(progress, foundPlaylistUpdate(name, len(tracks)))

	target, err := e.targetFor(ctx, job.UserID(), job.TargetProvider())
	if err != nil {
		return err
	}

	resolved, _, err := e.SearchAll(ctx, progress, target, tracks, SearchOpts{
		Workers: e.pipeline.SearchWorkers,
		Limit:   e.pipeline.SearchLimit,
		QPS:     e.pipeline.QPS,
	})
	if err != nil {
		return err
	}

	for i := range tracks {
		item := models.NewImportItem(0, job.ID(), i, tracks[i])

		best, status := match.Match(tracks[i], resolved[i].Candidates)
		item.SetCandidates(resolved[i].Candidates)
		item.SetStatus(status)
		if best != nil {
			item.SetBestCandidateID(best.ID)
			item.SetScore(best.Score)
		}

		if err := e.items.Create(item); err != nil {
			return fmt.Errorf("failed to persist import item: %w", err)
		}
		e.sendProgress(progress, matchedTrackUpdate(i+1, len(tracks), tracks[i].Title, status))
	}

	return e.jobs.TransitionStatus(job.ID(), models.JobRunning, models.JobWaitingReview)
}

// RunFinalize executes the finalize stage for a reviewed job.
//
// The caller is responsible for the WAITING_REVIEW → IMPORTING transition;
// RunFinalize refuses jobs in any other state so a stale queue entry can
// never re-import a finished job.
func (e *PipelineEngine) RunFinalize(ctx context.Context, jobID string, progress chan<- ProgressUpdate) error {
	job, err := e.jobs.Get(jobID)
	if err != nil {
		return err
	}
	if job.Status() != models.JobImporting {
		return fmt.Errorf("job %s is %s, not %s: %w", jobID, job.Status(), models.JobImporting, shared.ErrInvalidTransition)
	}

	if err := e.finalizeJob(ctx, job, progress); err != nil {
		e.failJob(jobID, err)
		return err
	}
	return nil
}

// finalizeJob writes the accepted tracks to the target playlist, reconciles
// item statuses against the write outcome, and records the completion report.
//
// The created playlist ID is persisted before any track is written, so a
// crash mid-write resumes into the same playlist instead of creating a
// second one. Re-runs skip tracks already present.
func (e *PipelineEngine) finalizeJob(ctx context.Context, job *models.ImportJob, progress chan<- ProgressUpdate) error {
	items, err := e.items.ListByJob(job.ID())
	if err != nil {
		return err
	}

	accepted := make([]*models.ImportItem, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.Status() != models.ItemMatched {
			continue
		}
		if item.ChosenID() == "" {
			item.SetStatus(models.ItemNotFound)
			if err := e.items.Update(item); err != nil {
				return err
			}
			continue
		}
		accepted = append(accepted, item)
		ids = append(ids, item.ChosenID())
	}

	target, err := e.targetFor(ctx, job.UserID(), job.TargetProvider())
	if err != nil {
		return err
	}

	playlistID := job.TargetPlaylistID()
	if playlistID == "" {
		title := job.SourcePlaylistName()
		if title == "" {
			title = "Imported Playlist"
		}

		e.sendProgress(progress, creatingPlaylistUpdate(target.Name()))
		created, err := target.CreatePlaylist(ctx, title, fmt.Sprintf("Imported from %s", job.SourceProvider().DisplayName()), models.PrivacyPrivate)
		if err != nil {
			return fmt.Errorf("failed to create playlist: %w", err)
		}

		playlistID = created
		job.SetTargetPlaylistID(created)
		if err := e.jobs.Update(job); err != nil {
			return err
		}
		e.sendProgress(progress, createPlaylistUpdate(title, created))
		e.sleep(secondsToDuration(e.pipeline.PostCreateSleep))
	}

	write, err := e.WriteTracks(ctx, progress, target, playlistID, ids, WriteOpts{
		BatchSize: e.pipeline.BatchSize,
		SleepSecs: e.pipeline.SleepSecs,
		QPS:       e.pipeline.QPS,
	})
	if err != nil {
		return err
	}

	failed := make(map[string]struct{}, len(write.FailedIDs))
	for _, id := range write.FailedIDs {
		failed[id] = struct{}{}
	}

	// Two items choosing the same candidate insert it once; every
	// occurrence after the first is a duplicate.
	seen := map[string]struct{}{}
	for k, item := range accepted {
		id := ids[k]

		status := models.ItemInserted
		if _, dup := seen[id]; dup {
			status = models.ItemDuplicate
		} else if _, ok := failed[id]; ok {
			status = models.ItemFailed
		} else if _, ok := write.PreExisting[id]; ok {
			status = models.ItemDuplicate
		}
		seen[id] = struct{}{}

		item.SetStatus(status)
		if err := e.items.Update(item); err != nil {
			return err
		}
	}

	report := &models.ImportReport{
		SourceName:       job.SourcePlaylistName(),
		TargetPlaylistID: playlistID,
		TotalTracks:      len(items),
	}
	for _, item := range items {
		switch item.Status() {
		case models.ItemInserted:
			report.Inserted++
			report.Matched++
		case models.ItemDuplicate:
			report.Duplicates++
			report.Matched++
			report.DuplicateTracks = append(report.DuplicateTracks, missedEntry(item, "duplicate target track"))
		case models.ItemFailed:
			report.Failed++
			report.Matched++
			report.Missed = append(report.Missed, missedEntry(item, "insert failed"))
		case models.ItemUncertain:
			report.Skipped++
			report.Missed = append(report.Missed, missedEntry(item, "uncertain match not confirmed"))
		case models.ItemNotFound:
			report.Skipped++
			report.Missed = append(report.Missed, missedEntry(item, "no match found"))
		default:
			report.Skipped++
		}
	}

	job.SetReport(report)
	now := time.Now()
	job.SetCompletedAt(&now)
	if err := e.jobs.Update(job); err != nil {
		return err
	}
	if err := e.jobs.TransitionStatus(job.ID(), models.JobImporting, models.JobDone); err != nil {
		return err
	}

	e.sendProgress(progress, finalizedUpdate(report.Inserted, report.Failed))
	return nil
}

// missedEntry builds the report line for a track that did not land.
func missedEntry(item *models.ImportItem, reason string) models.MissedTrack {
	track := item.Track()
	return models.MissedTrack{
		Title:  track.Title,
		Artist: track.PrimaryArtist(),
		Reason: reason,
	}
}

// failJob moves a job to FAILED from whatever non-terminal state it is in,
// recording the cause. Context cancellation is recorded as a cancellation
// rather than a provider failure.
func (e *PipelineEngine) failJob(jobID string, cause error) {
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		cause = fmt.Errorf("%w: %v", shared.ErrJobCanceled, cause)
	}

	job, err := e.jobs.Get(jobID)
	if err != nil {
		e.logger.Error("failed to load job for failure bookkeeping", "job", jobID, "error", err)
		return
	}
	if job.Status().IsTerminal() {
		return
	}

	if err := e.jobs.TransitionStatus(jobID, job.Status(), models.JobFailed); err != nil {
		e.logger.Error("failed to mark job failed", "job", jobID, "error", err)
		return
	}

	job.SetStatus(models.JobFailed)
	job.SetErrorMessage(cause.Error())
	now := time.Now()
	job.SetCompletedAt(&now)
	if err := e.jobs.Update(job); err != nil {
		e.logger.Error("failed to record job failure", "job", jobID, "error", err)
	}
}

// Recover re-enqueues work left behind by a previous process: QUEUED jobs
// restart the match stage and IMPORTING jobs resume the finalize stage.
// RUNNING jobs are failed because their search state died with the process;
// re-running the match would duplicate their persisted items.
func (e *PipelineEngine) Recover(q *Queue) (int, error) {
	recovered := 0

	queued, err := e.jobs.List(map[string]any{"status": string(models.JobQueued)})
	if err != nil {
		return recovered, err
	}
	for _, job := range queued {
		if q.Submit(QueuedJob{JobID: job.ID(), Stage: StageMatch}) {
			recovered++
		}
	}

	importing, err := e.jobs.List(map[string]any{"status": string(models.JobImporting)})
	if err != nil {
		return recovered, err
	}
	for _, job := range importing {
		if q.Submit(QueuedJob{JobID: job.ID(), Stage: StageFinalize}) {
			recovered++
		}
	}

	running, err := e.jobs.List(map[string]any{"status": string(models.JobRunning)})
	if err != nil {
		return recovered, err
	}
	for _, job := range running {
		e.logger.Warn("marking interrupted job failed", "job", job.ID())
		e.failJob(job.ID(), fmt.Errorf("%w: interrupted during matching", shared.ErrJobCanceled))
	}

	return recovered, nil
}

// Process runs one queued stage. It is the queue's handler function.
func (e *PipelineEngine) Process(ctx context.Context, job QueuedJob) {
	var err error
	switch job.Stage {
	case StageFinalize:
		err = e.RunFinalize(ctx, job.JobID, nil)
	default:
		err = e.RunMatch(ctx, job.JobID, nil)
	}
	if err != nil {
		e.logger.Error("job stage failed", "job", job.JobID, "stage", job.Stage, "error", err)
	}
}
