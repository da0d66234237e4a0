package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/portage/internal/formatter"
	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/shared"
	"github.com/desertthunder/portage/internal/tasks"
	"github.com/urfave/cli/v3"
)

// TransferRun performs a synchronous source → target migration that skips
// the review queue: each track's heuristic pick is taken as final.
func (r *Runner) TransferRun(ctx context.Context, cmd *cli.Command) error {
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

	r.logger.Info("starting transfer", "playlist", cmd.String("playlist"), "target", target)
	r.writePlain("Starting playlist transfer → %s\n\n", target)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchSource:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.SearchTracks, tasks.MatchTracks:
				if update.Step == 0 {
					r.writePlain("\n🔍 %s\n", update.Message)
				} else {
					r.writePlain("   %s\n", update.Message)
				}
			case tasks.CreatePlaylist, tasks.WriteTracks:
				r.writePlain("\n📝 %s\n", update.Message)
			case tasks.Finalize:
				r.writePlain("\n✓ %s\n", update.Message)
			}
		}
	}()

	result, err := r.engine.Transfer(ctx, tasks.TransferOpts{
		UserID:      user.ID(),
		PlaylistRef: cmd.String("playlist"),
		Target:      target,
		Title:       cmd.String("title"),
		Privacy:     models.ParsePrivacy(cmd.String("privacy")),
	}, progressCh)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n═══════════════════════════════════════\n")
	return r.writePlain("%s", formatter.TransferSummary(result))
}
