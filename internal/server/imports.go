package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/portage/internal/formatter"
	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/repositories"
	"github.com/desertthunder/portage/internal/services"
	"github.com/desertthunder/portage/internal/shared"
	"github.com/desertthunder/portage/internal/tasks"
)

// ImportsHandler serves the import job API: job creation and listing, the
// review surface, the finalize trigger, and the completion report.
//
// Every route is scoped to the session user resolved by [TenantMiddleware];
// jobs owned by other users read as not found.
type ImportsHandler struct {
	jobs   *repositories.JobRepository
	items  *repositories.ItemRepository
	queue  *tasks.Queue
	logger *log.Logger
}

// NewImportsHandler creates an ImportsHandler backed by the given stores.
//
// The queue may be nil, in which case created jobs stay QUEUED until a
// worker process picks them up through startup recovery.
func NewImportsHandler(jobs *repositories.JobRepository, items *repositories.ItemRepository, queue *tasks.Queue, logger *log.Logger) *ImportsHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ImportsHandler{jobs: jobs, items: items, queue: queue, logger: logger}
}

// Routes returns the path patterns this handler serves.
func (h *ImportsHandler) Routes() []string {
	return []string{"/api/imports", "/api/imports/"}
}

// ServeHTTP dispatches on method and sub-path:
//
//	POST /api/imports                 create jobs from a playlist reference
//	GET  /api/imports                 list the owner's jobs, newest first
//	GET  /api/imports/{id}            job detail with item-status counts
//	GET  /api/imports/{id}/review     items awaiting a reviewer decision
//	POST /api/imports/{id}/review     apply confirm/reject decisions
//	POST /api/imports/{id}/finalize   move the job to IMPORTING and enqueue it
//	GET  /api/imports/{id}/report     completion report for a finished job
func (h *ImportsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no session")
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/imports"), "/")
	if rest == "" {
		switch r.Method {
		case http.MethodPost:
			h.create(w, r, user)
		case http.MethodGet:
			h.list(w, user)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	jobID, action, _ := strings.Cut(rest, "/")
	job, err := h.jobs.Get(jobID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if job.UserID() != user.ID() {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.show(w, job)
	case action == "review" && r.Method == http.MethodGet:
		h.listReview(w, job)
	case action == "review" && r.Method == http.MethodPost:
		h.applyReview(w, r, job)
	case action == "finalize" && r.Method == http.MethodPost:
		h.finalize(w, job)
	case action == "report" && r.Method == http.MethodGet:
		h.report(w, job)
	case action == "" || action == "review" || action == "finalize" || action == "report":
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// jobPayload is the JSON rendering of an import job.
type jobPayload struct {
	ID                 string     `json:"id"`
	Status             string     `json:"status"`
	SourceProvider     string     `json:"source_provider"`
	SourcePlaylistID   string     `json:"source_playlist_id"`
	SourcePlaylistName string     `json:"source_playlist_name,omitempty"`
	TargetProvider     string     `json:"target_provider"`
	TargetPlaylistID   string     `json:"target_playlist_id,omitempty"`
	TotalTracks        int        `json:"total_tracks"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

func renderJob(job *models.ImportJob) jobPayload {
	return jobPayload{
		ID:                 job.ID(),
		Status:             string(job.Status()),
		SourceProvider:     job.SourceProvider().String(),
		SourcePlaylistID:   job.SourcePlaylistID(),
		SourcePlaylistName: job.SourcePlaylistName(),
		TargetProvider:     job.TargetProvider().String(),
		TargetPlaylistID:   job.TargetPlaylistID(),
		TotalTracks:        job.TotalTracks(),
		ErrorMessage:       job.ErrorMessage(),
		CreatedAt:          job.CreatedAt(),
		StartedAt:          job.StartedAt(),
		CompletedAt:        job.CompletedAt(),
	}
}

type createImportRequest struct {
	Playlist string `json:"playlist"`
	Target   string `json:"target"`
}

// create accepts a playlist URL or comma-joined playlist ids plus a target
// provider and creates one QUEUED job per playlist.
func (h *ImportsHandler) create(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req createImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target, err := models.ParseProvider(req.Target)
	if err != nil || !target.IsTarget() {
		writeError(w, http.StatusBadRequest, "target must be one of ytmusic, tidal, qobuz")
		return
	}

	ids := []string{}
	for _, ref := range strings.Split(req.Playlist, ",") {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}

		id, err := services.ExtractPlaylistID(ref)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "playlist is required")
		return
	}

	created := []jobPayload{}
	for _, id := range ids {
		job := models.NewImportJob(0, user.ID(), models.ProviderSpotify, id, target)
		if err := h.jobs.Create(job); err != nil {
			writeStoreError(w, err)
			return
		}

		h.submit(tasks.QueuedJob{JobID: job.ID(), Stage: tasks.StageMatch})
		created = append(created, renderJob(job))
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": created})
}

// list returns the owner's jobs, newest first.
func (h *ImportsHandler) list(w http.ResponseWriter, user *models.User) {
	jobs, err := h.jobs.List(map[string]any{"user_id": user.ID()})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	payloads := []jobPayload{}
	for _, job := range jobs {
		payloads = append(payloads, renderJob(job))
	}

	writeJSON(w, http.StatusOK, map[string]any{"jobs": payloads})
}

// show returns the job plus per-status item counts.
func (h *ImportsHandler) show(w http.ResponseWriter, job *models.ImportJob) {
	counts, err := h.items.CountByStatus(job.ID())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	stats := map[string]int{}
	for status, n := range counts {
		stats[string(status)] = n
	}

	writeJSON(w, http.StatusOK, map[string]any{"job": renderJob(job), "stats": stats})
}

// reviewItemPayload is the JSON rendering of an item awaiting review.
type reviewItemPayload struct {
	ID              string             `json:"id"`
	Position        int                `json:"position"`
	Status          string             `json:"status"`
	Track           models.SourceTrack `json:"track"`
	Candidates      []models.Candidate `json:"candidates,omitempty"`
	BestCandidateID string             `json:"best_candidate_id,omitempty"`
	Score           float64            `json:"score"`
}

// listReview returns the job's UNCERTAIN and NOT_FOUND items with their
// stored candidates so a reviewer can decide each one.
func (h *ImportsHandler) listReview(w http.ResponseWriter, job *models.ImportJob) {
	items, err := h.items.ListByJob(job.ID())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	payloads := []reviewItemPayload{}
	for _, item := range items {
		if !item.Status().NeedsReview() {
			continue
		}

		payloads = append(payloads, reviewItemPayload{
			ID:              item.ID(),
			Position:        item.Position(),
			Status:          string(item.Status()),
			Track:           item.Track(),
			Candidates:      item.Candidates(),
			BestCandidateID: item.BestCandidateID(),
			Score:           item.Score(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"job_id": job.ID(), "items": payloads})
}

type reviewDecision struct {
	ItemID     string `json:"item_id"`
	Action     string `json:"action"`
	OverrideID string `json:"override_id,omitempty"`
}

type reviewRequest struct {
	Decisions []reviewDecision `json:"decisions"`
}

type decisionError struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

// applyReview applies confirm/reject decisions to the job's items. Failed
// decisions are reported per item and never abort the batch.
func (h *ImportsHandler) applyReview(w http.ResponseWriter, r *http.Request, job *models.ImportJob) {
	if job.Status() != models.JobWaitingReview {
		writeError(w, http.StatusConflict, fmt.Sprintf("job is %s, decisions only apply while %s", job.Status(), models.JobWaitingReview))
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	applied := 0
	failures := []decisionError{}
	for _, decision := range req.Decisions {
		if err := h.applyDecision(job, decision); err != nil {
			failures = append(failures, decisionError{ItemID: decision.ItemID, Error: err.Error()})
			continue
		}
		applied++
	}

	writeJSON(w, http.StatusOK, map[string]any{"applied": applied, "errors": failures})
}

// applyDecision resolves and updates a single item. Items belonging to a
// different job read as not found.
func (h *ImportsHandler) applyDecision(job *models.ImportJob, decision reviewDecision) error {
	item, err := h.items.Get(decision.ItemID)
	if err != nil || item.JobID() != job.ID() {
		return fmt.Errorf("item not found")
	}

	switch decision.Action {
	case "confirm":
		if decision.OverrideID != "" {
			item.SetOverrideCandidateID(decision.OverrideID)
		} else if item.BestCandidateID() == "" {
			return fmt.Errorf("no candidate to confirm, supply an override id")
		}
		item.SetStatus(models.ItemMatched)
	case "reject":
		item.SetOverrideCandidateID("")
		item.SetBestCandidateID("")
		item.SetStatus(models.ItemNotFound)
	default:
		return fmt.Errorf("unknown action %q", decision.Action)
	}

	return h.items.Update(item)
}

// finalize moves the job from WAITING_REVIEW to IMPORTING and enqueues the
// finalize stage. The compare-and-set transition rejects any other state.
func (h *ImportsHandler) finalize(w http.ResponseWriter, job *models.ImportJob) {
	if err := h.jobs.TransitionStatus(job.ID(), models.JobWaitingReview, models.JobImporting); err != nil {
		writeStoreError(w, err)
		return
	}

	h.submit(tasks.QueuedJob{JobID: job.ID(), Stage: tasks.StageFinalize})
	writeJSON(w, http.StatusAccepted, map[string]any{"id": job.ID(), "status": string(models.JobImporting)})
}

// report returns the completion report persisted at finalize, shaped by
// [formatter.NewReportView] so the API and CLI emit the same structure.
func (h *ImportsHandler) report(w http.ResponseWriter, job *models.ImportJob) {
	if job.Report() == nil {
		writeError(w, http.StatusNotFound, "report not available until the job finishes")
		return
	}

	writeJSON(w, http.StatusOK, formatter.NewReportView(job.Report()))
}

// submit hands a job to the queue, tolerating a missing or full queue.
// Unsubmitted jobs are re-enqueued by startup recovery.
func (h *ImportsHandler) submit(job tasks.QueuedJob) {
	if h.queue == nil {
		return
	}
	if !h.queue.Submit(job) {
		h.logger.Warn("job queue full, job waits for recovery", "job_id", job.JobID, "stage", job.Stage.String())
	}
}
