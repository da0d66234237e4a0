package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/tasks"
)

var (
	_ tea.Msg = itemsLoadedMsg{}
	_ tea.Msg = decisionAppliedMsg{}
	_ tea.Msg = progressUpdateMsg{}
	_ tea.Msg = finalizeDoneMsg{}
)

// itemsLoadedMsg delivers the review queue fetched at startup.
type itemsLoadedMsg struct {
	items []*models.ImportItem
	err   error
}

// decisionAppliedMsg reports a persisted confirm or reject decision.
type decisionAppliedMsg struct {
	item *models.ImportItem
	err  error
}

// progressUpdateMsg relays one [tasks.ProgressUpdate] from the finalize run.
type progressUpdateMsg tasks.ProgressUpdate

// finalizeDoneMsg carries the outcome once the finalize stage ends.
type finalizeDoneMsg struct {
	report *models.ImportReport
	err    error
}
