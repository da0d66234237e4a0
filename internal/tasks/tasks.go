// package tasks implements the playlist import pipeline: matching, review
// handoff, and finalize, plus the synchronous transfer path.
//
// The core abstraction is ImportEngine, which runs the match and finalize
// stages of background jobs and the direct transfer operation. Operations
// emit progress updates via channels for non-blocking status reporting to
// CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/repositories"
	"github.com/desertthunder/portage/internal/services"
	"github.com/desertthunder/portage/internal/shared"
)

// TransferOpts configures a synchronous transfer run.
type TransferOpts struct {
	UserID      string          // Owner whose connections are used
	PlaylistRef string          // Source playlist URL or bare ID
	Target      models.Provider // Target catalog
	Title       string          // Playlist title override (default: source name)
	Privacy     models.Privacy  // Playlist visibility (default: PRIVATE)
}

// TransferResult contains all data from a synchronous transfer run.
type TransferResult struct {
	SourceName       string               // Source playlist display name
	TargetPlaylistID string               // Created playlist ID on the target
	TotalTracks      int                  // Tracks read from the source
	Matched          int                  // Tracks resolved to a target candidate
	Inserted         int                  // Tracks actually appended
	Failed           int                  // Tracks the target rejected
	MatchPercentage  float64              // Matched / total as a percentage
	Missed           []models.MissedTrack // Tracks with no usable candidate
}

// ImportEngine defines the import pipeline operations.
type ImportEngine interface {
	// RunMatch executes the match stage: enumerate the source playlist,
	// search the target catalog, classify every track, and park the job
	// for review. Refuses jobs that are not QUEUED.
	RunMatch(ctx context.Context, jobID string, progress chan<- ProgressUpdate) error

	// RunFinalize executes the finalize stage: create the target playlist,
	// write the accepted tracks, and persist the completion report.
	// Refuses jobs that are not IMPORTING.
	RunFinalize(ctx context.Context, jobID string, progress chan<- ProgressUpdate) error

	// Transfer performs a synchronous source → target migration that skips
	// the review queue, taking each track's heuristic pick as final.
	Transfer(ctx context.Context, opts TransferOpts, progress chan<- ProgressUpdate) (*TransferResult, error)
}

// PipelineEngine implements ImportEngine against the SQLite job store and
// the provider adapters resolved from each user's stored connections.
type PipelineEngine struct {
	config      *shared.Config
	pipeline    shared.PipelineConfig
	logger      *log.Logger
	connections *repositories.ConnectionRepository
	jobs        *repositories.JobRepository
	items       *repositories.ItemRepository

	// Adapter constructors, swappable in tests.
	newSource func(ctx context.Context, provider models.Provider, config *shared.Config, credentials map[string]string, onRefresh services.TokenRefreshCallback) (services.Source, error)
	newTarget func(ctx context.Context, provider models.Provider, config *shared.Config, credentials map[string]string, onRefresh services.TokenRefreshCallback) (services.Target, error)

	// sleep is swappable so tests never block on pacing pauses.
	sleep func(time.Duration)
}

// NewPipelineEngine creates a new PipelineEngine with the provided stores.
func NewPipelineEngine(
	config *shared.Config,
	connections *repositories.ConnectionRepository,
	jobs *repositories.JobRepository,
	items *repositories.ItemRepository,
	logger *log.Logger,
) *PipelineEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PipelineEngine{
		config:      config,
		pipeline:    config.Pipeline.Normalize(),
		logger:      logger,
		connections: connections,
		jobs:        jobs,
		items:       items,
		newSource:   services.NewSource,
		newTarget:   services.NewTarget,
		sleep:       time.Sleep,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PipelineEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// sourceFor resolves the authenticated source adapter for a user's stored
// connection. Rotated tokens are persisted back through the connection store.
func (e *PipelineEngine) sourceFor(ctx context.Context, userID string, provider models.Provider) (services.Source, error) {
	conn, err := e.connections.GetByUserProvider(userID, provider)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s before importing", shared.ErrAuthMissing, provider)
	}
	return e.newSource(ctx, provider, e.config, conn.Credentials(), e.rotationCallback(userID, provider))
}

// targetFor resolves the authenticated target adapter for a user's stored
// connection.
func (e *PipelineEngine) targetFor(ctx context.Context, userID string, provider models.Provider) (services.Target, error) {
	conn, err := e.connections.GetByUserProvider(userID, provider)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s before importing", shared.ErrAuthMissing, provider)
	}
	return e.newTarget(ctx, provider, e.config, conn.Credentials(), e.rotationCallback(userID, provider))
}

// rotationCallback returns a callback that merges rotated credentials into
// the stored bag so a refreshed token survives the process.
func (e *PipelineEngine) rotationCallback(userID string, provider models.Provider) services.TokenRefreshCallback {
	return func(rotated map[string]string) {
		merged := map[string]string{}
		if conn, err := e.connections.GetByUserProvider(userID, provider); err == nil {
			for k, v := range conn.Credentials() {
				merged[k] = v
			}
		}
		for k, v := range rotated {
			merged[k] = v
		}
		if _, err := e.connections.Upsert(userID, provider, merged); err != nil {
			e.logger.Error("failed to persist rotated credentials", "provider", provider, "error", err)
		}
	}
}

// Transfer performs a synchronous source → target playlist migration.
//
// The heuristic pick from the searcher is taken as final for every track,
// so nothing lands in the review queue and no job rows are written. This is
// the quick path for operators who trust the matcher.
func (e *PipelineEngine) Transfer(ctx context.Context, opts TransferOpts, progress chan<- ProgressUpdate) (*TransferResult, error) {
	playlistID, err := services.ExtractPlaylistID(opts.PlaylistRef)
	if err != nil {
		return nil, err
	}
	if !opts.Target.IsTarget() {
		return nil, fmt.Errorf("%w: %s cannot receive playlists", shared.ErrInvalidArgument, opts.Target)
	}

	source, err := e.sourceFor(ctx, opts.UserID, models.ProviderSpotify)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, fetchSourceUpdate(1, 1, source.Name()))
	tracks, name, err := source.EnumeratePlaylist(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate source playlist: %w", err)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: playlist %s has no tracks", shared.ErrInvalidInput, playlistID)
	}

	result := &TransferResult{
		SourceName:  name,
		TotalTracks: len(tracks),
	}

	e.sendProgress(progress, foundPlaylistUpdate(name, len(tracks)))

	target, err := e.targetFor(ctx, opts.UserID, opts.Target)
	if err != nil {
		return nil, err
	}

	resolved, _, err := e.SearchAll(ctx, progress, target, tracks, SearchOpts{
		Workers: e.pipeline.SearchWorkers,
		Limit:   e.pipeline.SearchLimit,
		QPS:     e.pipeline.QPS,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(tracks))
	for i, track := range tracks {
		if resolved[i].Best != nil {
			ids = append(ids, resolved[i].Best.ID)
			continue
		}
		result.Missed = append(result.Missed, models.MissedTrack{
			Title:  track.Title,
			Artist: track.PrimaryArtist(),
			Reason: "no match found",
		})
	}
	result.Matched = len(ids)
	if result.TotalTracks > 0 {
		result.MatchPercentage = float64(result.Matched) / float64(result.TotalTracks) * 100
	}

	title := opts.Title
	if title == "" {
		title = name
	}
	if title == "" {
		title = "Imported Playlist"
	}
	privacy := opts.Privacy
	if privacy == "" {
		privacy = models.PrivacyPrivate
	}

	e.sendProgress(progress, creatingPlaylistUpdate(target.Name()))
	created, err := target.CreatePlaylist(ctx, title, fmt.Sprintf("Imported from %s", source.Name()), privacy)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	result.TargetPlaylistID = created
	e.sendProgress(progress, createPlaylistUpdate(title, created))
	e.sleep(secondsToDuration(e.pipeline.PostCreateSleep))

	write, err := e.WriteTracks(ctx, progress, target, created, ids, WriteOpts{
		BatchSize: e.pipeline.BatchSize,
		SleepSecs: e.pipeline.SleepSecs,
		QPS:       e.pipeline.QPS,
	})
	if err != nil {
		return result, err
	}

	result.Inserted = write.Inserted
	result.Failed = len(write.FailedIDs)
	e.sendProgress(progress, finalizedUpdate(result.Inserted, result.Failed))
	return result, nil
}

// secondsToDuration converts a fractional seconds knob into a Duration.
func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}
