package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/portage/internal/formatter"
	"github.com/desertthunder/portage/internal/models"
)

var (
	_ list.Item = reviewItem{}
	_ list.Item = candidateItem{}
)

// reviewItem wraps [models.ImportItem] to implement [list.Item].
type reviewItem struct {
	item *models.ImportItem
}

func (r reviewItem) FilterValue() string { return r.item.Track().Title }
func (r reviewItem) Title() string {
	track := r.item.Track()
	if artist := track.PrimaryArtist(); artist != "" {
		return fmt.Sprintf("%s - %s", artist, track.Title)
	}
	return track.Title
}

func (r reviewItem) Description() string {
	desc := fmt.Sprintf("#%d • %s • score %.2f", r.item.Position()+1, r.item.Status(), r.item.Score())
	if n := len(r.item.Candidates()); n > 0 {
		desc = fmt.Sprintf("%s • %d candidates", desc, n)
	}
	return desc
}

// candidateItem wraps [models.Candidate] to implement [list.Item]. The
// current pick is starred.
type candidateItem struct {
	candidate models.Candidate
	chosen    bool
}

func (c candidateItem) FilterValue() string { return c.candidate.Title }
func (c candidateItem) Title() string {
	title := c.candidate.Title
	if len(c.candidate.Artists) > 0 {
		title = fmt.Sprintf("%s - %s", strings.Join(c.candidate.Artists, ", "), c.candidate.Title)
	}
	if c.chosen {
		return "★ " + title
	}
	return title
}

func (c candidateItem) Description() string {
	desc := fmt.Sprintf("%s • score %.2f", c.candidate.ID, c.candidate.Score)
	if c.candidate.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, c.candidate.Album)
	}
	if c.candidate.DurationSec > 0 {
		desc = fmt.Sprintf("%s • %s", desc, formatter.FormatDuration(c.candidate.DurationSec))
	}
	return desc
}
