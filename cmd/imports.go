package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/portage/internal/formatter"
	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/services"
	"github.com/desertthunder/portage/internal/shared"
	"github.com/desertthunder/portage/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ImportsCreate creates one QUEUED job per playlist reference and, unless
// --no-run is set, runs the match stage inline so the job lands in
// WAITING_REVIEW before the command returns.
func (r *Runner) ImportsCreate(ctx context.Context, cmd *cli.Command) error {
	if err := r.openStore(); err != nil {
		return err
	}
	user, err := r.localUser()
	if err != nil {
		return err
	}

	target, err := models.ParseProvider(cmd.String("target"))
	if err != nil || !target.IsTarget() {
		return fmt.Errorf("%w: target must be one of ytmusic, tidal, qobuz", shared.ErrInvalidArgument)
	}

	ids := []string{}
	for _, ref := range strings.Split(cmd.String("playlist"), ",") {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		id, err := services.ExtractPlaylistID(ref)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: playlist is required", shared.ErrMissingArgument)
	}

	for _, id := range ids {
		job := models.NewImportJob(0, user.ID(), models.ProviderSpotify, id, target)
		if err := r.jobs.Create(job); err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}
		r.writePlain("Created job %s (playlist %s → %s)\n", job.ID(), id, target)

		if cmd.Bool("no-run") {
			continue
		}

		if err := r.runStage(ctx, job.ID(), tasks.StageMatch); err != nil {
			return err
		}

		updated, err := r.jobs.Get(job.ID())
		if err != nil {
			return err
		}
		r.writePlain("Job %s is %s", updated.ID(), updated.Status())
		if updated.Status() == models.JobWaitingReview {
			r.writePlain(" — run 'portage review %s' to decide uncertain matches", updated.ID())
		}
		r.writePlain("\n")
	}
	return nil
}

// runStage executes a pipeline stage inline, streaming progress to the
// terminal the way the background workers would log it.
func (r *Runner) runStage(ctx context.Context, jobID string, stage tasks.Stage) error {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.writePlain("  %s\n", update.Message)
		}
	}()

	var err error
	switch stage {
	case tasks.StageMatch:
		err = r.engine.RunMatch(ctx, jobID, progressCh)
	case tasks.StageFinalize:
		err = r.engine.RunFinalize(ctx, jobID, progressCh)
	}
	close(progressCh)
	<-done
	return err
}

// ImportsList prints the owner's jobs, newest first.
func (r *Runner) ImportsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.openStore(); err != nil {
		return err
	}
	user, err := r.localUser()
	if err != nil {
		return err
	}

	jobs, err := r.jobs.List(map[string]any{"user_id": user.ID()})
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	if len(jobs) == 0 {
		return r.writePlain("No import jobs yet\n")
	}

	return r.writePlain("%s\n", formatter.JobTable(jobs))
}

// ImportsShow prints one job with its per-status item counts.
func (r *Runner) ImportsShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.openStore(); err != nil {
		return err
	}
	user, err := r.localUser()
	if err != nil {
		return err
	}

	job, err := r.ownedJob(cmd.StringArg("id"), user)
	if err != nil {
		return err
	}

	stats, err := r.items.CountByStatus(job.ID())
	if err != nil {
		return fmt.Errorf("failed to count items: %w", err)
	}

	return r.writePlain("%s", formatter.JobDetail(job, stats))
}

// ImportsFinalize moves a reviewed job to IMPORTING and runs the finalize
// stage inline, then prints the completion report.
func (r *Runner) ImportsFinalize(ctx context.Context, cmd *cli.Command) error {
	if err := r.openStore(); err != nil {
		return err
	}
	user, err := r.localUser()
	if err != nil {
		return err
	}

	job, err := r.ownedJob(cmd.StringArg("id"), user)
	if err != nil {
		return err
	}

	if err := r.jobs.TransitionStatus(job.ID(), models.JobWaitingReview, models.JobImporting); err != nil {
		return err
	}

	r.writePlain("Finalizing job %s → %s\n", job.ID(), job.TargetProvider())
	if err := r.runStage(ctx, job.ID(), tasks.StageFinalize); err != nil {
		return err
	}

	updated, err := r.jobs.Get(job.ID())
	if err != nil {
		return err
	}
	if updated.Report() == nil {
		return r.writePlainln("Job %s is %s", updated.ID(), updated.Status())
	}

	r.writePlainln("Job %s is %s", updated.ID(), updated.Status())
	return r.writePlain("%s", formatter.Report(updated.Report()))
}

// ImportsReport prints the persisted completion report for a job.
func (r *Runner) ImportsReport(ctx context.Context, cmd *cli.Command) error {
	if err := r.openStore(); err != nil {
		return err
	}
	user, err := r.localUser()
	if err != nil {
		return err
	}

	job, err := r.ownedJob(cmd.StringArg("id"), user)
	if err != nil {
		return err
	}

	report := job.Report()
	if report == nil {
		return fmt.Errorf("%w: job %s has no report yet", shared.ErrNotFound, job.ID())
	}

	if cmd.Bool("csv") {
		path, err := formatter.WriteReportCSV(report, job.ID(), cmd.String("output"))
		if err != nil {
			return err
		}
		return r.writePlain("✓ Missed tracks written to %s\n", path)
	}

	if cmd.Bool("json") {
		data, err := formatter.ReportJSON(report)
		if err != nil {
			return err
		}
		r.output.Write(data)
		return r.writePlain("\n")
	}

	return r.writePlain("%s", formatter.Report(report))
}
