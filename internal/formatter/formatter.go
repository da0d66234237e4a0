// package formatter renders import jobs, review queues, and completion reports for terminal and API output
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/shared"
	"github.com/desertthunder/portage/internal/tasks"
)

const timeLayout = "2006-01-02 15:04"

// ReportView is the display form of a finished import's report: missed and
// duplicate tracks grouped under their counts alongside the insert total.
// The HTTP report endpoint and the CLI report command both emit this shape.
type ReportView struct {
	TargetPlaylistID string      `json:"target_playlist_id"`
	Missed           MissedGroup `json:"missed"`
	InsertedCount    int         `json:"inserted_count"`
}

// MissedGroup lists the tracks that never landed on the target, with
// duplicates broken out so a squashed track is not read as a lost one.
type MissedGroup struct {
	Count      int            `json:"count"`
	Tracks     []string       `json:"tracks"`
	Duplicates DuplicateGroup `json:"duplicates"`
}

type DuplicateGroup struct {
	Count int      `json:"count"`
	Items []string `json:"items"`
}

// NewReportView shapes a persisted report for display.
//
// Duplicates.Count comes from the stored counter rather than the listed
// items so reports written before duplicate listing keep a correct count.
func NewReportView(report *models.ImportReport) ReportView {
	view := ReportView{
		TargetPlaylistID: report.TargetPlaylistID,
		InsertedCount:    report.Inserted,
		Missed: MissedGroup{
			Tracks:     []string{},
			Duplicates: DuplicateGroup{Count: report.Duplicates, Items: []string{}},
		},
	}

	for _, track := range report.Missed {
		view.Missed.Tracks = append(view.Missed.Tracks, TrackLabel(track))
	}
	view.Missed.Count = len(view.Missed.Tracks)

	for _, track := range report.DuplicateTracks {
		view.Missed.Duplicates.Items = append(view.Missed.Duplicates.Items, TrackLabel(track))
	}

	return view
}

// TrackLabel renders a reported track as "Artist - Title (reason)", omitting
// whichever parts are absent.
func TrackLabel(track models.MissedTrack) string {
	label := track.Title
	if track.Artist != "" {
		label = track.Artist + " - " + track.Title
	}
	if track.Reason != "" {
		label += " (" + track.Reason + ")"
	}
	return label
}

// ReportJSON renders the report view as indented JSON.
func ReportJSON(report *models.ImportReport) ([]byte, error) {
	return shared.MarshalJSON(NewReportView(report), true)
}

// Report converts a completion report to plain text with numbered missed and
// duplicate track listings.
func Report(report *models.ImportReport) string {
	var buf bytes.Buffer
	view := NewReportView(report)

	if report.SourceName != "" {
		buf.WriteString(fmt.Sprintf("Source: %s\n", report.SourceName))
	}
	target := view.TargetPlaylistID
	if target == "" {
		target = "(not created)"
	}
	buf.WriteString(fmt.Sprintf("Target playlist: %s\n", target))
	buf.WriteString(fmt.Sprintf("Tracks: %d total, %d matched\n", report.TotalTracks, report.Matched))
	buf.WriteString(fmt.Sprintf("Inserted: %d\n", view.InsertedCount))
	buf.WriteString(fmt.Sprintf("Duplicates: %d\n", report.Duplicates))
	buf.WriteString(fmt.Sprintf("Failed: %d\n", report.Failed))
	buf.WriteString(fmt.Sprintf("Skipped: %d\n", report.Skipped))

	if view.Missed.Count > 0 {
		buf.WriteString(fmt.Sprintf("\nMissed (%d):\n", view.Missed.Count))
		for i, label := range view.Missed.Tracks {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, label))
		}
	}

	if len(view.Missed.Duplicates.Items) > 0 {
		buf.WriteString(fmt.Sprintf("\nDuplicates (%d):\n", view.Missed.Duplicates.Count))
		for i, label := range view.Missed.Duplicates.Items {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, label))
		}
	}

	return buf.String()
}

// JobTable renders import jobs as a bordered table, one row per job in the
// order given.
func JobTable(jobs []*models.ImportJob) string {
	if len(jobs) == 0 {
		return "No import jobs yet."
	}

	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID(),
			string(job.Status()),
			sourceLabel(job),
			string(job.TargetProvider()),
			strconv.Itoa(job.TotalTracks()),
			job.CreatedAt().Format(timeLayout),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "STATUS", "SOURCE", "TARGET", "TRACKS", "CREATED").
		Rows(rows...).
		Render()
}

// sourceLabel prefers the fetched playlist name over the raw reference.
func sourceLabel(job *models.ImportJob) string {
	if name := job.SourcePlaylistName(); name != "" {
		return name
	}
	return fmt.Sprintf("%s:%s", job.SourceProvider(), job.SourcePlaylistID())
}

// JobDetail renders one job with its per-status item counts.
func JobDetail(job *models.ImportJob, stats map[models.ItemStatus]int) string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Job: %s\n", job.ID()))
	buf.WriteString(fmt.Sprintf("Status: %s\n", job.Status()))
	buf.WriteString(fmt.Sprintf("Source: %s playlist %s\n", job.SourceProvider(), job.SourcePlaylistID()))
	if job.SourcePlaylistName() != "" {
		buf.WriteString(fmt.Sprintf("Name: %s\n", job.SourcePlaylistName()))
	}
	buf.WriteString(fmt.Sprintf("Target: %s\n", job.TargetProvider()))
	if job.TargetPlaylistID() != "" {
		buf.WriteString(fmt.Sprintf("Target playlist: %s\n", job.TargetPlaylistID()))
	}
	buf.WriteString(fmt.Sprintf("Tracks: %d\n", job.TotalTracks()))
	if job.ErrorMessage() != "" {
		buf.WriteString(fmt.Sprintf("Error: %s\n", job.ErrorMessage()))
	}
	buf.WriteString(fmt.Sprintf("Created: %s\n", job.CreatedAt().Format(timeLayout)))
	if t := job.StartedAt(); t != nil {
		buf.WriteString(fmt.Sprintf("Started: %s\n", t.Format(timeLayout)))
	}
	if t := job.CompletedAt(); t != nil {
		buf.WriteString(fmt.Sprintf("Completed: %s\n", t.Format(timeLayout)))
	}

	if len(stats) > 0 {
		buf.WriteString("\nItems:\n")
		for _, status := range itemStatusOrder {
			if n := stats[status]; n > 0 {
				buf.WriteString(fmt.Sprintf("  %s: %d\n", status, n))
			}
		}
	}

	return buf.String()
}

// itemStatusOrder fixes the listing order of item counts in JobDetail.
var itemStatusOrder = []models.ItemStatus{
	models.ItemPending,
	models.ItemMatched,
	models.ItemUncertain,
	models.ItemNotFound,
	models.ItemInserted,
	models.ItemDuplicate,
	models.ItemFailed,
}

// ReviewList renders the queue of items awaiting a confirm or reject call.
// Each entry shows the source track followed by its candidates, with the
// current pick starred.
func ReviewList(items []*models.ImportItem) string {
	if len(items) == 0 {
		return "Nothing waiting for review."
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Awaiting review: %d\n", len(items)))

	for _, item := range items {
		track := item.Track()
		label := track.Title
		if artist := track.PrimaryArtist(); artist != "" {
			label = artist + " - " + track.Title
		}
		buf.WriteString(fmt.Sprintf("\n%d. %s [%s]\n", item.Position()+1, label, item.Status()))

		for _, candidate := range item.Candidates() {
			marker := "  "
			if candidate.ID == item.ChosenID() {
				marker = "* "
			}
			duration := ""
			if candidate.DurationSec > 0 {
				duration = fmt.Sprintf(" [%s]", FormatDuration(candidate.DurationSec))
			}
			buf.WriteString(fmt.Sprintf("   %s%s  %s - %s%s (%.2f)\n",
				marker, candidate.ID, strings.Join(candidate.Artists, ", "), candidate.Title, duration, candidate.Score))
		}
	}

	return buf.String()
}

// FormatDuration converts whole seconds to a m:ss display string.
func FormatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// TransferSummary renders the outcome of a synchronous transfer run.
func TransferSummary(result *tasks.TransferResult) string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Transfer complete: %s\n", result.SourceName))
	buf.WriteString(fmt.Sprintf("Target playlist: %s\n", result.TargetPlaylistID))
	buf.WriteString(fmt.Sprintf("Matched %d/%d tracks (%.1f%%)\n", result.Matched, result.TotalTracks, result.MatchPercentage))
	buf.WriteString(fmt.Sprintf("Inserted: %d\n", result.Inserted))
	if result.Failed > 0 {
		buf.WriteString(fmt.Sprintf("Failed: %d\n", result.Failed))
	}

	if len(result.Missed) > 0 {
		buf.WriteString(fmt.Sprintf("\nMissed (%d):\n", len(result.Missed)))
		for i, track := range result.Missed {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, TrackLabel(track)))
		}
	}

	return buf.String()
}

// ReportToCSV converts a report's missed and duplicate tracks to CSV format
// with columns: Title, Artist, Reason, Section
func ReportToCSV(report *models.ImportReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Title", "Artist", "Reason", "Section"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range report.Missed {
		if err := writer.Write([]string{track.Title, track.Artist, track.Reason, "missed"}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	for _, track := range report.DuplicateTracks {
		if err := writer.Write([]string{track.Title, track.Artist, track.Reason, "duplicate"}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteReportCSV writes the missed-track CSV to disk.
//
// Defaults to {jobID}_missed.csv as the filename.
func WriteReportCSV(report *models.ImportReport, jobID, filepath string) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("%s_missed.csv", jobID)
	}

	data, err := ReportToCSV(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return filepath, nil
}
