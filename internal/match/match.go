// package match implements track normalization, similarity scoring, and
// candidate classification for cross-catalog playlist imports.
//
// Matching is purely textual plus a duration sanity check. An ISRC hit
// short-circuits everything because the identifier keys the exact
// recording across catalogs.
package match

import (
	"regexp"
	"strings"

	"github.com/desertthunder/portage/internal/models"
	"github.com/pmezard/go-difflib/difflib"
)

// Score weights and classification thresholds. These are part of the
// external contract: tuning them changes which imports need review.
const (
	weightTitle    = 0.50
	weightArtist   = 0.35
	weightDuration = 0.15

	matchedThreshold   = 0.90 // strictly above → MATCHED
	uncertainThreshold = 0.75 // at or above → UNCERTAIN
)

var (
	featRe     = regexp.MustCompile(`\(feat[^)]*\)`)
	bracketRe  = regexp.MustCompile(`\[[^\]]*\]`)
	remasterRe = regexp.MustCompile(`\s*-\s*remaster.*$`)
	punctRe    = regexp.MustCompile(`[^\p{L}\p{N}_\s\-:&]`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// Normalize reduces a title or artist string to a comparable form:
// lowercased, feat. clauses and bracketed qualifiers removed, trailing
// remaster suffixes stripped, punctuation dropped except hyphen, colon,
// and ampersand, whitespace collapsed.
//
// Normalize is total and idempotent; empty input yields an empty string.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = featRe.ReplaceAllString(s, "")
	s = bracketRe.ReplaceAllString(s, "")
	s = remasterRe.ReplaceAllString(s, "")
	s = punctRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ratio computes the Ratcliff/Obershelp similarity of two strings at
// rune granularity, matching difflib's SequenceMatcher behavior.
func ratio(a, b string) float64 {
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}

// Score computes the similarity of a source track and a candidate in [0,1].
//
// Equal non-empty ISRCs short-circuit to 1.0. Otherwise the score is a
// weighted blend of title similarity, best pairwise artist similarity,
// and a coarse duration agreement bucket.
func Score(src models.SourceTrack, cand models.Candidate) float64 {
	srcISRC := strings.ToUpper(strings.TrimSpace(src.ISRC))
	candISRC := strings.ToUpper(strings.TrimSpace(cand.ISRC))
	if srcISRC != "" && srcISRC == candISRC {
		return 1.0
	}

	title := ratio(Normalize(src.Title), Normalize(cand.Title))
	artist := artistScore(src.Artists, cand.Artists)
	duration := durationScore(src.DurationMS, cand.DurationSec)

	return weightTitle*title + weightArtist*artist + weightDuration*duration
}

// artistScore takes the maximum pairwise ratio over the cross product of
// normalized artist names. Either side empty scores 0.
func artistScore(src, cand []string) float64 {
	if len(src) == 0 || len(cand) == 0 {
		return 0.0
	}

	best := 0.0
	for _, s := range src {
		ns := Normalize(s)
		for _, c := range cand {
			if r := ratio(ns, Normalize(c)); r > best {
				best = r
			}
		}
	}
	return best
}

// durationScore buckets the absolute duration difference. Source duration
// is in milliseconds, candidate duration in seconds. A missing duration
// on either side is treated as agreement.
func durationScore(srcMS, candSec int) float64 {
	if srcMS <= 0 || candSec <= 0 {
		return 1.0
	}

	diff := srcMS - candSec*1000
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff <= 5000:
		return 1.0
	case diff <= 15000:
		return 0.5
	default:
		return 0.0
	}
}

// Match scores every candidate against the source track and classifies
// the best one. Candidates are annotated in place with their scores so
// the review surface can display them.
//
// The best candidate is the highest-scoring one, first seen winning
// ties. Classification follows the thresholds: above 0.90 MATCHED,
// 0.75 to 0.90 UNCERTAIN, below 0.75 NOT_FOUND with no candidate
// returned. An empty candidate list is NOT_FOUND.
func Match(src models.SourceTrack, candidates []models.Candidate) (*models.Candidate, models.ItemStatus) {
	if len(candidates) == 0 {
		return nil, models.ItemNotFound
	}

	bestIdx := 0
	bestScore := -1.0
	for i := range candidates {
		s := Score(src, candidates[i])
		candidates[i].Score = s
		if s > bestScore {
			bestScore = s
			bestIdx = i
		}
	}

	switch {
	case bestScore > matchedThreshold:
		return &candidates[bestIdx], models.ItemMatched
	case bestScore >= uncertainThreshold:
		return &candidates[bestIdx], models.ItemUncertain
	default:
		return nil, models.ItemNotFound
	}
}
