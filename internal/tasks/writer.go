package tasks

import (
	"context"
	"time"

	"github.com/desertthunder/portage/internal/services"
	"golang.org/x/time/rate"
)

// WriteOpts contains configuration for resilient playlist writes.
type WriteOpts struct {
	BatchSize int     // Tracks per insert call (default: 60)
	SleepSecs float64 // Pause between batches in seconds (default: 0.3)
	QPS       float64 // Insert requests per second (default: 5)
}

// WriteResult summarizes a write pass against the target playlist.
//
// Every unique non-empty input ID lands in exactly one bucket:
// inserted, pre-existing, or failed.
type WriteResult struct {
	Inserted    int                 // Tracks newly appended
	PreExisting map[string]struct{} // IDs already on the playlist before the run
	FailedIDs   []string            // IDs the target rejected individually
}

// WriteTracks appends track IDs to the target playlist in batches,
// skipping IDs already present so re-running a partially failed write
// never duplicates playlist entries.
//
// A rejected batch is split in half and each half retried, recursively,
// so one poisoned ID costs its batch a few extra calls instead of the
// whole batch. Only context cancellation aborts the pass; everything
// else degrades to per-ID failures in the result.
func (e *PipelineEngine) WriteTracks(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	target services.Target,
	playlistID string,
	ids []string,
	opts WriteOpts,
) (*WriteResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 60
	}
	if opts.SleepSecs <= 0 {
		opts.SleepSecs = 0.3
	}
	if opts.QPS <= 0 {
		opts.QPS = 5.0
	}

	// One limiter covers every adapter call of the write pass, the
	// membership lookup included.
	limiter := stageLimiter(opts.QPS)
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}

	existing, err := target.ExistingItems(ctx, playlistID)
	if err != nil {
		e.logger.Warn("could not list existing playlist items, assuming empty", "playlist", playlistID, "error", err)
		existing = map[string]struct{}{}
	}

	result := &WriteResult{PreExisting: map[string]struct{}{}}
	unique, _ := DedupeIDs(ids)
	sleepFor := secondsToDuration(opts.SleepSecs)

	for start := 0; start < len(unique); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(unique) {
			end = len(unique)
		}

		chunk := make([]string, 0, end-start)
		for _, id := range unique[start:end] {
			if _, ok := existing[id]; ok {
				result.PreExisting[id] = struct{}{}
				continue
			}
			chunk = append(chunk, id)
		}

		e.sendProgress(prog, writeChunkUpdate(end, len(unique)))
		if err := e.writeChunk(ctx, limiter, target, playlistID, chunk, existing, result, sleepFor); err != nil {
			return result, err
		}

		if end < len(unique) {
			e.sleep(sleepFor)
		}
	}

	return result, nil
}

// writeChunk inserts one batch, splitting in half on failure until the
// poisoned IDs are isolated. Inserted IDs join the existing set so later
// chunks and re-runs treat them as present.
func (e *PipelineEngine) writeChunk(
	ctx context.Context,
	limiter *rate.Limiter,
	target services.Target,
	playlistID string,
	chunk []string,
	existing map[string]struct{},
	result *WriteResult,
	sleepFor time.Duration,
) error {
	if len(chunk) == 0 {
		return nil
	}

	if err := limiter.Wait(ctx); err != nil {
		return err
	}

	err := target.AddItems(ctx, playlistID, chunk)
	if err == nil {
		for _, id := range chunk {
			existing[id] = struct{}{}
		}
		result.Inserted += len(chunk)
		return nil
	}

	if len(chunk) == 1 {
		e.logger.Warn("track rejected by target", "playlist", playlistID, "track", chunk[0], "error", err)
		result.FailedIDs = append(result.FailedIDs, chunk[0])
		return nil
	}

	e.logger.Warn("batch insert failed, splitting", "playlist", playlistID, "size", len(chunk), "error", err)
	mid := len(chunk) / 2
	if err := e.writeChunk(ctx, limiter, target, playlistID, chunk[:mid], existing, result, sleepFor); err != nil {
		return err
	}
	e.sleep(sleepFor)
	return e.writeChunk(ctx, limiter, target, playlistID, chunk[mid:], existing, result, sleepFor)
}

// DedupeIDs splits ids into the unique non-empty sequence, first occurrence
// order preserved, and the duplicate occurrences that were dropped.
func DedupeIDs(ids []string) (unique []string, duplicates []string) {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			duplicates = append(duplicates, id)
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique, duplicates
}
