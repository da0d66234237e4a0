package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/portage/internal/formatter"
	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/repositories"
	"github.com/desertthunder/portage/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ReviewListView ViewState = iota
	CandidateView
	ConfirmFinalizeView
	FinalizeView
	ResultView
)

// Model represents the review TUI application state.
//
// Decisions are persisted through the item store as they are made, so the
// reviewer can quit mid-pass without losing anything.
type Model struct {
	ctx    context.Context
	view   ViewState
	job    *models.ImportJob
	jobs   *repositories.JobRepository
	items  *repositories.ItemRepository
	engine tasks.ImportEngine

	width  int
	height int
	loaded bool

	queue      []*models.ImportItem
	confirmed  int
	rejected   int
	reviewList list.Model
	candidates list.Model
	current    *models.ImportItem

	progressChan chan tasks.ProgressUpdate
	finalizeErr  chan error
	progress     tasks.ProgressUpdate
	report       *models.ImportReport
	notice       string
	err          error

	help help.Model
	keys keyMap
}

// NewModel creates a review TUI for a job that is waiting on decisions.
//
// The caller is expected to have checked that the job is WAITING_REVIEW;
// finalize fails with a transition error otherwise.
func NewModel(ctx context.Context, job *models.ImportJob, jobs *repositories.JobRepository, items *repositories.ItemRepository, engine tasks.ImportEngine) *Model {
	return &Model{
		ctx:    ctx,
		view:   ReviewListView,
		job:    job,
		jobs:   jobs,
		items:  items,
		engine: engine,
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init loads the job's review queue.
func (m *Model) Init() tea.Cmd {
	return m.loadItems()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.reviewList.Width() == 0 {
			m.reviewList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.candidates.Width() == 0 {
			m.candidates.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ReviewListView:
			return m.handleReviewListKeys(msg)
		case CandidateView:
			return m.handleCandidateKeys(msg)
		case ConfirmFinalizeView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case itemsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.queue = msg.items
		entries := make([]list.Item, len(msg.items))
		for i, item := range msg.items {
			entries[i] = reviewItem{item: item}
		}
		m.reviewList = list.New(entries, list.NewDefaultDelegate(), 0, 0)
		m.reviewList.Title = m.listTitle()
		m.reviewList.SetFilteringEnabled(false)
		m.reviewList.SetSize(m.width-4, m.height-8)
		m.loaded = true
		return m, nil

	case decisionAppliedMsg:
		if msg.err != nil {
			m.notice = styles.err.Render(fmt.Sprintf("decision failed: %v", msg.err))
			return m, nil
		}
		m.removeFromQueue(msg.item.ID())
		if msg.item.Status() == models.ItemMatched {
			m.confirmed++
		} else {
			m.rejected++
		}
		m.notice = styles.statusStyle(msg.item.Status()).
			Render(fmt.Sprintf("%s → %s", reviewItem{item: msg.item}.Title(), msg.item.Status()))
		if len(m.queue) == 0 {
			m.notice = styles.ok.Render("All tracks decided. Press f to finalize.")
		}
		m.view = ReviewListView
		m.current = nil
		return m, nil

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case finalizeDoneMsg:
		m.report = msg.report
		if msg.err != nil {
			m.err = msg.err
		}
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case ReviewListView:
		return m.renderReviewList()
	case CandidateView:
		return m.renderCandidates()
	case ConfirmFinalizeView:
		return m.renderConfirmFinalize()
	case FinalizeView:
		return m.renderFinalize()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleReviewListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "f":
		m.view = ConfirmFinalizeView
		return m, nil
	}

	if !m.loaded {
		return m, nil
	}

	switch msg.String() {
	case "enter":
		if item := m.selectedItem(); item != nil {
			m.openCandidates(item)
		}
		return m, nil
	case "y":
		item := m.selectedItem()
		if item == nil {
			return m, nil
		}
		if item.ChosenID() == "" {
			m.notice = styles.warn.Render("no candidate to confirm, open the track and pick one")
			return m, nil
		}
		return m, m.confirmItem(item, "")
	case "n":
		if item := m.selectedItem(); item != nil {
			return m, m.rejectItem(item)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.reviewList, cmd = m.reviewList.Update(msg)
	return m, cmd
}

func (m *Model) handleCandidateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = ReviewListView
		m.current = nil
		return m, nil
	case "n":
		if m.current != nil {
			return m, m.rejectItem(m.current)
		}
		return m, nil
	case "enter", "y":
		if m.current == nil {
			return m, nil
		}
		if selected, ok := m.candidates.SelectedItem().(candidateItem); ok {
			return m, m.confirmItem(m.current, selected.candidate.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.candidates, cmd = m.candidates.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n", "esc":
		m.view = ReviewListView
		return m, nil
	case "y":
		m.view = FinalizeView
		return m, m.startFinalize()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "enter":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	if !m.loaded {
		return m, nil
	}

	var cmd tea.Cmd
	switch m.view {
	case ReviewListView:
		m.reviewList, cmd = m.reviewList.Update(msg)
	case CandidateView:
		m.candidates, cmd = m.candidates.Update(msg)
	}
	return m, cmd
}

// loadItems fetches the job's items and keeps the ones awaiting a decision.
func (m *Model) loadItems() tea.Cmd {
	return func() tea.Msg {
		all, err := m.items.ListByJob(m.job.ID())
		if err != nil {
			return itemsLoadedMsg{err: err}
		}

		var queue []*models.ImportItem
		for _, item := range all {
			if item.Status().NeedsReview() {
				queue = append(queue, item)
			}
		}
		return itemsLoadedMsg{items: queue}
	}
}

// confirmItem persists a MATCHED decision. A non-empty candidateID records
// the reviewer's pick as an override; an empty one keeps the heuristic best.
func (m *Model) confirmItem(item *models.ImportItem, candidateID string) tea.Cmd {
	return func() tea.Msg {
		if candidateID != "" {
			item.SetOverrideCandidateID(candidateID)
		}
		item.SetStatus(models.ItemMatched)
		if err := m.items.Update(item); err != nil {
			return decisionAppliedMsg{err: err}
		}
		return decisionAppliedMsg{item: item}
	}
}

// rejectItem persists a NOT_FOUND decision, clearing any pick so the track
// reads as deliberately left behind.
func (m *Model) rejectItem(item *models.ImportItem) tea.Cmd {
	return func() tea.Msg {
		item.SetOverrideCandidateID("")
		item.SetBestCandidateID("")
		item.SetStatus(models.ItemNotFound)
		if err := m.items.Update(item); err != nil {
			return decisionAppliedMsg{err: err}
		}
		return decisionAppliedMsg{item: item}
	}
}

// startFinalize moves the job to IMPORTING and runs the finalize stage in
// the background, streaming progress through the channel.
func (m *Model) startFinalize() tea.Cmd {
	if err := m.jobs.TransitionStatus(m.job.ID(), models.JobWaitingReview, models.JobImporting); err != nil {
		m.err = err
		m.view = ResultView
		return nil
	}

	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.finalizeErr = make(chan error, 1)

	go func() {
		m.finalizeErr <- m.engine.RunFinalize(m.ctx, m.job.ID(), m.progressChan)
		close(m.progressChan)
	}()

	return m.waitForProgress()
}

// waitForProgress relays the next progress update, or the final outcome once
// the engine closes the channel.
func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.progressChan
		if ok {
			return progressUpdateMsg(update)
		}

		if err := <-m.finalizeErr; err != nil {
			return finalizeDoneMsg{err: err}
		}

		job, err := m.jobs.Get(m.job.ID())
		if err != nil {
			return finalizeDoneMsg{err: err}
		}
		return finalizeDoneMsg{report: job.Report()}
	}
}

func (m *Model) selectedItem() *models.ImportItem {
	selected := m.reviewList.SelectedItem()
	if selected == nil {
		return nil
	}
	if entry, ok := selected.(reviewItem); ok {
		return entry.item
	}
	return nil
}

func (m *Model) openCandidates(item *models.ImportItem) {
	m.current = item
	entries := make([]list.Item, len(item.Candidates()))
	for i, candidate := range item.Candidates() {
		entries[i] = candidateItem{candidate: candidate, chosen: candidate.ID == item.ChosenID()}
	}
	m.candidates = list.New(entries, list.NewDefaultDelegate(), 0, 0)
	m.candidates.Title = fmt.Sprintf("Candidates for '%s'", reviewItem{item: item}.Title())
	m.candidates.SetFilteringEnabled(false)
	m.candidates.SetSize(m.width-4, m.height-8)
	m.view = CandidateView
}

func (m *Model) removeFromQueue(itemID string) {
	for i, item := range m.queue {
		if item.ID() == itemID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}

	entries := make([]list.Item, len(m.queue))
	for i, item := range m.queue {
		entries[i] = reviewItem{item: item}
	}
	m.reviewList.SetItems(entries)
}

func (m *Model) listTitle() string {
	name := m.job.SourcePlaylistName()
	if name == "" {
		name = m.job.SourcePlaylistID()
	}
	return fmt.Sprintf("Review '%s'", name)
}

func (m *Model) renderReviewList() string {
	if !m.loaded {
		return styles.help.Render("Loading review queue...")
	}

	helpKeys := []key.Binding{m.keys.enter, m.keys.confirm, m.keys.reject, m.keys.finalize, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	body := m.reviewList.View()
	if len(m.queue) == 0 {
		body = styles.ok.Render("All tracks decided.")
	}

	if m.notice != "" {
		return fmt.Sprintf("%s\n%s\n\n%s", body, m.notice, helpView)
	}
	return fmt.Sprintf("%s\n\n%s", body, helpView)
}

func (m *Model) renderCandidates() string {
	pickKey := key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "pick"),
	)
	helpKeys := []key.Binding{pickKey, m.keys.reject, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.candidates.View(), helpView)
}

func (m *Model) renderConfirmFinalize() string {
	title := styles.title.Render("Finalize import?")

	undecided := fmt.Sprintf("Undecided: %d (skipped at finalize)", len(m.queue))
	if len(m.queue) > 0 {
		undecided = styles.warn.Render(undecided)
	}
	info := fmt.Sprintf("\nJob: %s\nConfirmed: %d\nRejected: %d\n%s\n", m.job.ID(), m.confirmed, m.rejected, undecided)

	yesKey := key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "finalize"))
	noKey := key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "back"))
	helpKeys := []key.Binding{yesKey, noKey, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderFinalize() string {
	title := styles.title.Render("Finalizing Import")

	var phase string
	switch m.progress.Phase {
	case tasks.CreatePlaylist:
		phase = "Creating the target playlist..."
	case tasks.WriteTracks:
		phase = fmt.Sprintf("Inserting tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Finalize:
		phase = "Writing the report..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})

	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Import failed: %v", m.err)), helpView)
	}
	if m.report == nil {
		return fmt.Sprintf("%s\n\n%s", styles.warn.Render("No report available"), helpView)
	}

	title := styles.ok.Render("✓ Import Complete")
	return fmt.Sprintf("%s\n\n%s\n%s", title, formatter.Report(m.report), helpView)
}
