package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/shared"
	"github.com/desertthunder/portage/internal/tasks"
	"github.com/desertthunder/portage/internal/ui"
	"github.com/urfave/cli/v3"
)

// Review launches the interactive TUI for deciding a job's uncertain
// matches and, once the queue is clear, finalizing it.
func (r *Runner) Review(ctx context.Context, cmd *cli.Command) error {
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
	if job.Status() != models.JobWaitingReview {
		return fmt.Errorf("%w: job %s is %s, not WAITING_REVIEW", shared.ErrInvalidTransition, job.ID(), job.Status())
	}

	// Logs go to a file while the TUI owns the terminal.
	logFile, err := os.OpenFile("portage-review.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	fileLogger := shared.NewLogger(logFile)

	engine := tasks.NewPipelineEngine(r.config, r.connections, r.jobs, r.items, fileLogger)
	model := ui.NewModel(ctx, job, r.jobs, r.items, engine)

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
