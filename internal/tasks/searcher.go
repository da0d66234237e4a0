package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/desertthunder/portage/internal/match"
	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/services"
	"github.com/desertthunder/portage/internal/shared"
	"golang.org/x/time/rate"
)

// keepCandidates caps how many candidates are persisted per track.
// Review surfaces only ever show a handful, so anything past the
// fifth result is noise in the database.
const keepCandidates = 5

// stageLimiter builds the rate limiter one pipeline stage shares across
// its adapter calls: qps tokens per second with a bucket of
// max(2*qps, 1), so a fresh worker pool drains the accumulated capacity
// immediately instead of serializing its first wave at 1/qps intervals.
func stageLimiter(qps float64) *rate.Limiter {
	burst := int(2 * qps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(qps), burst)
}

// SearchOpts contains configuration for the concurrent catalog search.
type SearchOpts struct {
	Workers int     // Concurrent search workers (default: 8)
	Limit   int     // Candidates requested per track (default: 7)
	QPS     float64 // Search requests per second (default: 5)
}

// Resolved holds the search outcome for one source track.
type Resolved struct {
	Candidates []models.Candidate // Up to keepCandidates, in catalog order
	Best       *models.Candidate  // Heuristic pick, nil when nothing usable
}

// SearchStats summarizes a search pass over a playlist.
type SearchStats struct {
	Found  int // Tracks with at least one candidate
	Missed int // Tracks with none
}

// searchJob and searchResult carry the track index through the worker
// pool so results can be reassembled in playlist order.
type searchJob struct {
	index int
	track models.SourceTrack
}

type searchResult struct {
	index int
	slot  Resolved
}

// SearchAll searches the target catalog for every source track concurrently,
// with rate limiting and order-preserving result collection.
//
// A track that yields no usable candidates gets an empty slot rather than
// failing the pass; per-track search errors are logged and absorbed the same
// way. The pass as a whole fails only on context cancellation or when not a
// single track resolved, which almost always means dead credentials rather
// than an obscure playlist.
func (e *PipelineEngine) SearchAll(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	target services.Target,
	tracks []models.SourceTrack,
	opts SearchOpts,
) ([]Resolved, SearchStats, error) {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.Limit <= 0 {
		opts.Limit = 7
	}
	if opts.QPS <= 0 {
		opts.QPS = 5.0
	}

	resolved := make([]Resolved, len(tracks))
	stats := SearchStats{}
	if len(tracks) == 0 {
		return resolved, stats, nil
	}
	if opts.Workers > len(tracks) {
		opts.Workers = len(tracks)
	}

	limiter := stageLimiter(opts.QPS)

	jobs := make(chan searchJob, len(tracks))
	results := make(chan searchResult, len(tracks))

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go e.searchWorker(ctx, &wg, limiter, target, jobs, results, opts)
	}

	e.sendProgress(prog, searchTracksUpdate(0, len(tracks), nil))
	for i, track := range tracks {
		jobs <- searchJob{index: i, track: track}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		resolved[res.index] = res.slot

		if len(res.slot.Candidates) > 0 {
			stats.Found++
		} else {
			stats.Missed++
		}

		track := tracks[res.index]
		e.sendProgress(prog, searchTracksUpdate(completed, len(tracks), &track))
	}

	if err := ctx.Err(); err != nil {
		return resolved, stats, err
	}
	if stats.Found == 0 {
		return resolved, stats, fmt.Errorf("%w: nothing found on %s, verify credentials and catalog availability", shared.ErrMatchExhausted, target.Name())
	}
	return resolved, stats, nil
}

// searchWorker is a worker goroutine that resolves tracks from the jobs channel.
func (e *PipelineEngine) searchWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	target services.Target,
	jobs <-chan searchJob,
	results chan<- searchResult,
	opts SearchOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := limiter.Wait(ctx); err != nil {
			return
		}

		results <- searchResult{index: job.index, slot: e.searchOne(ctx, target, job.track, opts.Limit)}
	}
}

// searchOne runs a single catalog search and trims the response to the
// kept candidate window. Errors degrade to an empty slot.
func (e *PipelineEngine) searchOne(ctx context.Context, target services.Target, track models.SourceTrack, limit int) Resolved {
	query := services.BuildSearchQuery(track)
	if query == "" {
		return Resolved{}
	}

	candidates, err := target.Search(ctx, query, limit)
	if err != nil {
		e.logger.Warn("catalog search failed", "track", track.Title, "error", err)
		return Resolved{}
	}

	kept := make([]models.Candidate, 0, keepCandidates)
	for _, c := range candidates {
		if c.ID == "" {
			continue
		}
		kept = append(kept, c)
		if len(kept) == keepCandidates {
			break
		}
	}
	if len(kept) == 0 {
		return Resolved{}
	}

	return Resolved{Candidates: kept, Best: heuristicPick(track, kept)}
}

// heuristicPick selects the candidate the transfer path inserts without
// review: the first whose normalized title appears in the source title and
// whose artists overlap the primary source artist. Falls back to the
// catalog's top result, which is usually right for popular tracks.
func heuristicPick(track models.SourceTrack, candidates []models.Candidate) *models.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	srcTitle := match.Normalize(track.Title)
	srcArtist := match.Normalize(track.PrimaryArtist())

	for i := range candidates {
		title := match.Normalize(candidates[i].Title)
		if title == "" || !strings.Contains(srcTitle, title) {
			continue
		}

		artists := match.Normalize(strings.Join(candidates[i].Artists, " "))
		if srcArtist == "" || strings.Contains(artists, srcArtist) || strings.Contains(srcArtist, artists) {
			return &candidates[i]
		}
	}
	return &candidates[0]
}
