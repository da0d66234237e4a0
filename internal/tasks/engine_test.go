package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/repositories"
	"github.com/desertthunder/portage/internal/services"
	"github.com/desertthunder/portage/internal/shared"
)

type mockSource struct {
	name     string
	playlist string
	tracks   []models.SourceTrack
	enumErr  error
}

func (m *mockSource) EnumeratePlaylist(ctx context.Context, playlistID string) ([]models.SourceTrack, string, error) {
	if m.enumErr != nil {
		return nil, "", m.enumErr
	}
	return m.tracks, m.playlist, nil
}

func (m *mockSource) Name() string {
	if m.name == "" {
		return "Spotify"
	}
	return m.name
}

type mockTarget struct {
	mu            sync.Mutex
	name          string
	searchResults map[string][]models.Candidate
	searchErr     error
	searchErrFor  map[string]error
	searchCalls   int
	createID      string
	createErr     error
	createCalls   int
	createdTitle  string
	createdDesc   string
	createdPriv   models.Privacy
	existing      map[string]struct{}
	existingErr   error
	failIDs       map[string]struct{} // AddItems rejects batches containing these
	addCalls      [][]string          // Every AddItems batch, including rejected ones
	inserted      []string            // IDs from successful AddItems calls
}

func (m *mockTarget) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	m.mu.Lock()
	m.searchCalls++
	m.mu.Unlock()

	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if err, ok := m.searchErrFor[query]; ok {
		return nil, err
	}

	results := m.searchResults[query]
	if limit < len(results) {
		results = results[:limit]
	}
	out := make([]models.Candidate, len(results))
	copy(out, results)
	return out, nil
}

func (m *mockTarget) CreatePlaylist(ctx context.Context, title, description string, privacy models.Privacy) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return "", m.createErr
	}
	m.createCalls++
	m.createdTitle = title
	m.createdDesc = description
	m.createdPriv = privacy
	if m.createID == "" {
		return "new_playlist", nil
	}
	return m.createID, nil
}

func (m *mockTarget) ExistingItems(ctx context.Context, playlistID string) (map[string]struct{}, error) {
	if m.existingErr != nil {
		return nil, m.existingErr
	}
	out := map[string]struct{}{}
	for id := range m.existing {
		out[id] = struct{}{}
	}
	return out, nil
}

func (m *mockTarget) AddItems(ctx context.Context, playlistID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := make([]string, len(ids))
	copy(batch, ids)
	m.addCalls = append(m.addCalls, batch)

	for _, id := range ids {
		if _, ok := m.failIDs[id]; ok {
			return fmt.Errorf("%w: track %s rejected", shared.ErrTargetConflict, id)
		}
	}
	m.inserted = append(m.inserted, ids...)
	return nil
}

func (m *mockTarget) Name() string {
	if m.name == "" {
		return "TIDAL"
	}
	return m.name
}

type engineFixture struct {
	engine *PipelineEngine
	conns  *repositories.ConnectionRepository
	jobs   *repositories.JobRepository
	items  *repositories.ItemRepository
	userID string
}

func setupEngine(t *testing.T, source services.Source, target services.Target) *engineFixture {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	users := repositories.NewUserRepository(db)
	conns := repositories.NewConnectionRepository(db)
	jobs := repositories.NewJobRepository(db)
	items := repositories.NewItemRepository(db)

	user := models.NewUser(0, "local", "Local")
	if err := users.Create(user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	for _, provider := range []models.Provider{models.ProviderSpotify, models.ProviderTidal} {
		if _, err := conns.Upsert(user.ID(), provider, map[string]string{"access_token": "tok"}); err != nil {
			t.Fatalf("failed to connect %s: %v", provider, err)
		}
	}

	config := &shared.Config{}
	config.Pipeline.QPS = 1000
	config.Pipeline.SearchWorkers = 4

	engine := NewPipelineEngine(config, conns, jobs, items, shared.NewLogger(io.Discard))
	engine.sleep = func(time.Duration) {}
	if source != nil {
		engine.newSource = func(context.Context, models.Provider, *shared.Config, map[string]string, services.TokenRefreshCallback) (services.Source, error) {
			return source, nil
		}
	}
	if target != nil {
		engine.newTarget = func(context.Context, models.Provider, *shared.Config, map[string]string, services.TokenRefreshCallback) (services.Target, error) {
			return target, nil
		}
	}

	return &engineFixture{engine: engine, conns: conns, jobs: jobs, items: items, userID: user.ID()}
}

func createJob(t *testing.T, f *engineFixture) *models.ImportJob {
	t.Helper()
	job := models.NewImportJob(0, f.userID, models.ProviderSpotify, "pl123", models.ProviderTidal)
	if err := f.jobs.Create(job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return job
}

func advanceJob(t *testing.T, f *engineFixture, id string, path ...models.JobStatus) {
	t.Helper()
	for i := 0; i+1 < len(path); i++ {
		if err := f.jobs.TransitionStatus(id, path[i], path[i+1]); err != nil {
			t.Fatalf("failed to advance job to %s: %v", path[i+1], err)
		}
	}
}

// importingJob creates a job and walks it to IMPORTING, returning the
// reloaded model so updates carry the stored status.
func importingJob(t *testing.T, f *engineFixture) *models.ImportJob {
	t.Helper()
	job := createJob(t, f)
	advanceJob(t, f, job.ID(), models.JobQueued, models.JobRunning, models.JobWaitingReview, models.JobImporting)

	reloaded, err := f.jobs.Get(job.ID())
	if err != nil {
		t.Fatalf("failed to reload job: %v", err)
	}
	return reloaded
}

func createItem(t *testing.T, f *engineFixture, jobID string, position int, status models.ItemStatus, best, override string) *models.ImportItem {
	t.Helper()
	track := models.SourceTrack{
		SourceID:   fmt.Sprintf("sp%d", position),
		Title:      fmt.Sprintf("Song %d", position),
		Artists:    []string{"Artist"},
		DurationMS: 200000,
		Position:   position,
	}
	item := models.NewImportItem(0, jobID, position, track)
	item.SetStatus(status)
	item.SetBestCandidateID(best)
	item.SetOverrideCandidateID(override)
	if err := f.items.Create(item); err != nil {
		t.Fatalf("failed to create item: %v", err)
	}
	return item
}

func TestPipelineEngine_RunMatch(t *testing.T) {
	tracks := []models.SourceTrack{
		{SourceID: "sp1", Title: "Song A", Artists: []string{"Artist A"}, DurationMS: 200000, Position: 0},
		{SourceID: "sp2", Title: "Song B", Artists: []string{"Artist B"}, DurationMS: 180000, Position: 1},
		{SourceID: "sp3", Title: "Song C", Artists: []string{"Artist C"}, DurationMS: 240000, Position: 2},
	}

	t.Run("Classifies And Parks For Review", func(t *testing.T) {
		source := &mockSource{playlist: "Road Trip", tracks: tracks}
		target := &mockTarget{searchResults: map[string][]models.Candidate{
			"Song A Artist A": {{ID: "t1", Title: "Song A", Artists: []string{"Artist A"}, DurationSec: 200}},
			"Song B Artist B": {{ID: "t2", Title: "Song B", Artists: []string{"Artist B"}, DurationSec: 180}},
			// Song C yields nothing
		}}
		f := setupEngine(t, source, target)
		job := createJob(t, f)

		progressCh := make(chan ProgressUpdate, 100)
		if err := f.engine.RunMatch(context.Background(), job.ID(), progressCh); err != nil {
			t.Fatalf("RunMatch() error = %v", err)
		}
		close(progressCh)

		got, err := f.jobs.Get(job.ID())
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Status() != models.JobWaitingReview {
			t.Errorf("job status = %v, want %v", got.Status(), models.JobWaitingReview)
		}
		if got.SourcePlaylistName() != "Road Trip" {
			t.Errorf("source playlist name = %q, want %q", got.SourcePlaylistName(), "Road Trip")
		}
		if got.TotalTracks() != 3 {
			t.Errorf("total tracks = %d, want 3", got.TotalTracks())
		}
		if got.StartedAt() == nil {
			t.Error("started at should be set")
		}

		items, err := f.items.ListByJob(job.ID())
		if err != nil {
			t.Fatalf("ListByJob() error = %v", err)
		}
		if len(items) != 3 {
			t.Fatalf("item count = %d, want 3", len(items))
		}
		if items[0].Status() != models.ItemMatched || items[0].BestCandidateID() != "t1" {
			t.Errorf("item 0 = %v/%q, want MATCHED/t1", items[0].Status(), items[0].BestCandidateID())
		}
		if items[0].Score() <= 0.90 {
			t.Errorf("item 0 score = %v, want > 0.90", items[0].Score())
		}
		if items[1].Status() != models.ItemMatched || items[1].BestCandidateID() != "t2" {
			t.Errorf("item 1 = %v/%q, want MATCHED/t2", items[1].Status(), items[1].BestCandidateID())
		}
		if items[2].Status() != models.ItemNotFound {
			t.Errorf("item 2 status = %v, want %v", items[2].Status(), models.ItemNotFound)
		}
		if items[2].BestCandidateID() != "" {
			t.Errorf("item 2 best candidate = %q, want empty", items[2].BestCandidateID())
		}

		phases := []Phase{}
		for update := range progressCh {
			phases = append(phases, update.Phase)
		}
		if len(phases) == 0 || phases[0] != FetchSource {
			t.Errorf("first progress phase = %v, want %v", phases, FetchSource)
		}
	})

	t.Run("Uncertain Match Keeps Candidate", func(t *testing.T) {
		source := &mockSource{playlist: "Mix", tracks: tracks[:1]}
		// Same title and artist but half a minute off lands between the thresholds.
		target := &mockTarget{searchResults: map[string][]models.Candidate{
			"Song A Artist A": {{ID: "t9", Title: "Song A", Artists: []string{"Artist A"}, DurationSec: 230}},
		}}
		f := setupEngine(t, source, target)
		job := createJob(t, f)

		if err := f.engine.RunMatch(context.Background(), job.ID(), nil); err != nil {
			t.Fatalf("RunMatch() error = %v", err)
		}

		items, err := f.items.ListByJob(job.ID())
		if err != nil {
			t.Fatalf("ListByJob() error = %v", err)
		}
		if items[0].Status() != models.ItemUncertain {
			t.Errorf("item status = %v, want %v", items[0].Status(), models.ItemUncertain)
		}
		if items[0].BestCandidateID() != "t9" {
			t.Errorf("best candidate = %q, want t9", items[0].BestCandidateID())
		}
		if items[0].Score() < 0.75 || items[0].Score() > 0.90 {
			t.Errorf("score = %v, want within [0.75, 0.90]", items[0].Score())
		}
	})

	t.Run("Refuses Non Queued Job", func(t *testing.T) {
		f := setupEngine(t, &mockSource{tracks: tracks}, &mockTarget{})
		job := createJob(t, f)
		advanceJob(t, f, job.ID(), models.JobQueued, models.JobRunning)

		err := f.engine.RunMatch(context.Background(), job.ID(), nil)
		if !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("RunMatch() error = %v, want ErrInvalidTransition", err)
		}

		got, _ := f.jobs.Get(job.ID())
		if got.Status() != models.JobRunning {
			t.Errorf("job status = %v, want unchanged %v", got.Status(), models.JobRunning)
		}
	})

	t.Run("Source Failure Fails Job", func(t *testing.T) {
		source := &mockSource{enumErr: errors.New("spotify: 500")}
		f := setupEngine(t, source, &mockTarget{})
		job := createJob(t, f)

		if err := f.engine.RunMatch(context.Background(), job.ID(), nil); err == nil {
			t.Fatal("RunMatch() expected error")
		}

		got, _ := f.jobs.Get(job.ID())
		if got.Status() != models.JobFailed {
			t.Errorf("job status = %v, want %v", got.Status(), models.JobFailed)
		}
		if got.ErrorMessage() == "" {
			t.Error("error message should be recorded")
		}
		if got.CompletedAt() == nil {
			t.Error("completed at should be set on failure")
		}
	})

	t.Run("Empty Playlist Fails Job", func(t *testing.T) {
		source := &mockSource{playlist: "Empty"}
		f := setupEngine(t, source, &mockTarget{})
		job := createJob(t, f)

		err := f.engine.RunMatch(context.Background(), job.ID(), nil)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("RunMatch() error = %v, want ErrInvalidInput", err)
		}

		got, _ := f.jobs.Get(job.ID())
		if got.Status() != models.JobFailed {
			t.Errorf("job status = %v, want %v", got.Status(), models.JobFailed)
		}
	})

	t.Run("Missing Target Connection Fails Job", func(t *testing.T) {
		source := &mockSource{playlist: "Mix", tracks: tracks}
		f := setupEngine(t, source, &mockTarget{})

		conn, err := f.conns.GetByUserProvider(f.userID, models.ProviderTidal)
		if err != nil {
			t.Fatalf("GetByUserProvider() error = %v", err)
		}
		if err := f.conns.Delete(conn.ID()); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}

		job := createJob(t, f)
		err = f.engine.RunMatch(context.Background(), job.ID(), nil)
		if !errors.Is(err, shared.ErrAuthMissing) {
			t.Errorf("RunMatch() error = %v, want ErrAuthMissing", err)
		}

		got, _ := f.jobs.Get(job.ID())
		if got.Status() != models.JobFailed {
			t.Errorf("job status = %v, want %v", got.Status(), models.JobFailed)
		}
		if !strings.Contains(got.ErrorMessage(), "connect") {
			t.Errorf("error message = %q, should mention connecting the provider", got.ErrorMessage())
		}
	})
}

func TestPipelineEngine_RunFinalize(t *testing.T) {
	t.Run("Writes Accepted And Completes", func(t *testing.T) {
		target := &mockTarget{createID: "tidal_pl"}
		f := setupEngine(t, nil, target)

		job := importingJob(t, f)
		job.SetSourcePlaylistName("Road Trip")
		if err := f.jobs.Update(job); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		createItem(t, f, job.ID(), 0, models.ItemMatched, "t1", "")
		createItem(t, f, job.ID(), 1, models.ItemMatched, "t2", "")
		createItem(t, f, job.ID(), 2, models.ItemUncertain, "t3", "")
		createItem(t, f, job.ID(), 3, models.ItemNotFound, "", "")

		if err := f.engine.RunFinalize(context.Background(), job.ID(), nil); err != nil {
			t.Fatalf("RunFinalize() error = %v", err)
		}

		got, err := f.jobs.Get(job.ID())
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Status() != models.JobDone {
			t.Errorf("job status = %v, want %v", got.Status(), models.JobDone)
		}
		if got.TargetPlaylistID() != "tidal_pl" {
			t.Errorf("target playlist = %q, want tidal_pl", got.TargetPlaylistID())
		}
		if got.CompletedAt() == nil {
			t.Error("completed at should be set")
		}

		report := got.Report()
		if report == nil {
			t.Fatal("report should be set")
		}
		if report.TotalTracks != 4 || report.Matched != 2 || report.Inserted != 2 {
			t.Errorf("report counts = %d/%d/%d, want total 4 matched 2 inserted 2",
				report.TotalTracks, report.Matched, report.Inserted)
		}
		if report.Skipped != 2 || len(report.Missed) != 2 {
			t.Errorf("report skipped = %d missed = %d, want 2 and 2", report.Skipped, len(report.Missed))
		}
		if report.Inserted+report.Duplicates+report.Failed+report.Skipped != report.TotalTracks {
			t.Errorf("report counts do not add up: %+v", report)
		}

		if target.createCalls != 1 {
			t.Errorf("create calls = %d, want 1", target.createCalls)
		}
		if target.createdTitle != "Road Trip" {
			t.Errorf("created title = %q, want Road Trip", target.createdTitle)
		}
		if target.createdPriv != models.PrivacyPrivate {
			t.Errorf("created privacy = %v, want %v", target.createdPriv, models.PrivacyPrivate)
		}
		if !strings.Contains(target.createdDesc, "Spotify") {
			t.Errorf("created description = %q, should name the source", target.createdDesc)
		}
		if len(target.inserted) != 2 || target.inserted[0] != "t1" || target.inserted[1] != "t2" {
			t.Errorf("inserted = %v, want [t1 t2]", target.inserted)
		}

		items, _ := f.items.ListByJob(job.ID())
		wantStatuses := []models.ItemStatus{models.ItemInserted, models.ItemInserted, models.ItemUncertain, models.ItemNotFound}
		for i, want := range wantStatuses {
			if items[i].Status() != want {
				t.Errorf("item %d status = %v, want %v", i, items[i].Status(), want)
			}
		}
	})

	t.Run("Override Wins Over Best", func(t *testing.T) {
		target := &mockTarget{}
		f := setupEngine(t, nil, target)
		job := importingJob(t, f)
		createItem(t, f, job.ID(), 0, models.ItemMatched, "t1", "t9")

		if err := f.engine.RunFinalize(context.Background(), job.ID(), nil); err != nil {
			t.Fatalf("RunFinalize() error = %v", err)
		}

		if len(target.inserted) != 1 || target.inserted[0] != "t9" {
			t.Errorf("inserted = %v, want [t9]", target.inserted)
		}
	})

	t.Run("Duplicate Choices Insert Once", func(t *testing.T) {
		target := &mockTarget{}
		f := setupEngine(t, nil, target)
		job := importingJob(t, f)
		createItem(t, f, job.ID(), 0, models.ItemMatched, "t1", "")
		createItem(t, f, job.ID(), 1, models.ItemMatched, "t1", "")

		if err := f.engine.RunFinalize(context.Background(), job.ID(), nil); err != nil {
			t.Fatalf("RunFinalize() error = %v", err)
		}

		if len(target.inserted) != 1 {
			t.Errorf("inserted = %v, want a single t1", target.inserted)
		}

		items, _ := f.items.ListByJob(job.ID())
		if items[0].Status() != models.ItemInserted {
			t.Errorf("item 0 status = %v, want %v", items[0].Status(), models.ItemInserted)
		}
		if items[1].Status() != models.ItemDuplicate {
			t.Errorf("item 1 status = %v, want %v", items[1].Status(), models.ItemDuplicate)
		}

		got, _ := f.jobs.Get(job.ID())
		if got.Report().Inserted != 1 || got.Report().Duplicates != 1 {
			t.Errorf("report inserted/duplicates = %d/%d, want 1/1", got.Report().Inserted, got.Report().Duplicates)
		}
		if len(got.Report().DuplicateTracks) != 1 {
			t.Errorf("report duplicate tracks = %d, want 1", len(got.Report().DuplicateTracks))
		}
	})

	t.Run("Preexisting Tracks Become Duplicates", func(t *testing.T) {
		target := &mockTarget{existing: map[string]struct{}{"t1": {}}}
		f := setupEngine(t, nil, target)
		job := importingJob(t, f)
		job.SetTargetPlaylistID("resume_pl")
		if err := f.jobs.Update(job); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		createItem(t, f, job.ID(), 0, models.ItemMatched, "t1", "")
		createItem(t, f, job.ID(), 1, models.ItemMatched, "t2", "")

		if err := f.engine.RunFinalize(context.Background(), job.ID(), nil); err != nil {
			t.Fatalf("RunFinalize() error = %v", err)
		}

		if target.createCalls != 0 {
			t.Errorf("create calls = %d, want 0 when playlist already exists", target.createCalls)
		}
		if len(target.inserted) != 1 || target.inserted[0] != "t2" {
			t.Errorf("inserted = %v, want [t2]", target.inserted)
		}

		items, _ := f.items.ListByJob(job.ID())
		if items[0].Status() != models.ItemDuplicate {
			t.Errorf("item 0 status = %v, want %v", items[0].Status(), models.ItemDuplicate)
		}
	})

	t.Run("Rejected Insert Marks Item Failed", func(t *testing.T) {
		target := &mockTarget{failIDs: map[string]struct{}{"t2": {}}}
		f := setupEngine(t, nil, target)
		job := importingJob(t, f)
		createItem(t, f, job.ID(), 0, models.ItemMatched, "t1", "")
		createItem(t, f, job.ID(), 1, models.ItemMatched, "t2", "")

		if err := f.engine.RunFinalize(context.Background(), job.ID(), nil); err != nil {
			t.Fatalf("RunFinalize() error = %v", err)
		}

		items, _ := f.items.ListByJob(job.ID())
		if items[1].Status() != models.ItemFailed {
			t.Errorf("item 1 status = %v, want %v", items[1].Status(), models.ItemFailed)
		}

		got, _ := f.jobs.Get(job.ID())
		report := got.Report()
		if report.Failed != 1 {
			t.Errorf("report failed = %d, want 1", report.Failed)
		}
		found := false
		for _, missed := range report.Missed {
			if missed.Reason == "insert failed" {
				found = true
			}
		}
		if !found {
			t.Errorf("report missed = %v, want an insert failed entry", report.Missed)
		}
	})

	t.Run("All Rejected Still Completes", func(t *testing.T) {
		target := &mockTarget{}
		f := setupEngine(t, nil, target)
		job := importingJob(t, f)
		createItem(t, f, job.ID(), 0, models.ItemNotFound, "", "")

		if err := f.engine.RunFinalize(context.Background(), job.ID(), nil); err != nil {
			t.Fatalf("RunFinalize() error = %v", err)
		}

		got, _ := f.jobs.Get(job.ID())
		if got.Status() != models.JobDone {
			t.Errorf("job status = %v, want %v", got.Status(), models.JobDone)
		}
		if got.Report().Inserted != 0 || got.Report().Skipped != 1 {
			t.Errorf("report = %+v, want inserted 0 skipped 1", got.Report())
		}
	})

	t.Run("Refuses Non Importing Job", func(t *testing.T) {
		f := setupEngine(t, nil, &mockTarget{})
		job := createJob(t, f)
		advanceJob(t, f, job.ID(), models.JobQueued, models.JobRunning, models.JobWaitingReview)

		err := f.engine.RunFinalize(context.Background(), job.ID(), nil)
		if !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("RunFinalize() error = %v, want ErrInvalidTransition", err)
		}

		got, _ := f.jobs.Get(job.ID())
		if got.Status() != models.JobWaitingReview {
			t.Errorf("job status = %v, want unchanged %v", got.Status(), models.JobWaitingReview)
		}
	})

	t.Run("Create Failure Fails Job", func(t *testing.T) {
		target := &mockTarget{createErr: errors.New("quota exceeded")}
		f := setupEngine(t, nil, target)
		job := importingJob(t, f)
		createItem(t, f, job.ID(), 0, models.ItemMatched, "t1", "")

		if err := f.engine.RunFinalize(context.Background(), job.ID(), nil); err == nil {
			t.Fatal("RunFinalize() expected error")
		}

		got, _ := f.jobs.Get(job.ID())
		if got.Status() != models.JobFailed {
			t.Errorf("job status = %v, want %v", got.Status(), models.JobFailed)
		}
		if !strings.Contains(got.ErrorMessage(), "create") {
			t.Errorf("error message = %q, should mention playlist creation", got.ErrorMessage())
		}
	})
}

func TestPipelineEngine_Transfer(t *testing.T) {
	tracks := []models.SourceTrack{
		{SourceID: "sp1", Title: "Song A", Artists: []string{"Artist A"}, DurationMS: 200000, Position: 0},
		{SourceID: "sp2", Title: "Song B", Artists: []string{"Artist B"}, DurationMS: 180000, Position: 1},
	}

	t.Run("Migrates Without Review", func(t *testing.T) {
		source := &mockSource{playlist: "Road Trip", tracks: tracks}
		target := &mockTarget{
			createID: "tidal_pl",
			searchResults: map[string][]models.Candidate{
				"Song A Artist A": {{ID: "t1", Title: "Song A", Artists: []string{"Artist A"}, DurationSec: 200}},
				"Song B Artist B": {{ID: "t2", Title: "Song B", Artists: []string{"Artist B"}, DurationSec: 180}},
			},
		}
		f := setupEngine(t, source, target)

		result, err := f.engine.Transfer(context.Background(), TransferOpts{
			UserID:      f.userID,
			PlaylistRef: "https://open.spotify.com/playlist/pl123?si=abc",
			Target:      models.ProviderTidal,
		}, nil)
		if err != nil {
			t.Fatalf("Transfer() error = %v", err)
		}

		if result.SourceName != "Road Trip" {
			t.Errorf("source name = %q, want Road Trip", result.SourceName)
		}
		if result.TargetPlaylistID != "tidal_pl" {
			t.Errorf("target playlist = %q, want tidal_pl", result.TargetPlaylistID)
		}
		if result.TotalTracks != 2 || result.Matched != 2 || result.Inserted != 2 {
			t.Errorf("counts = %d/%d/%d, want 2/2/2", result.TotalTracks, result.Matched, result.Inserted)
		}
		if result.MatchPercentage != 100 {
			t.Errorf("match percentage = %v, want 100", result.MatchPercentage)
		}
		if target.createdTitle != "Road Trip" {
			t.Errorf("created title = %q, want the source playlist name", target.createdTitle)
		}
		if target.createdPriv != models.PrivacyPrivate {
			t.Errorf("created privacy = %v, want %v", target.createdPriv, models.PrivacyPrivate)
		}
		if len(target.inserted) != 2 {
			t.Errorf("inserted = %v, want both tracks", target.inserted)
		}
	})

	t.Run("Reports Missed Tracks", func(t *testing.T) {
		source := &mockSource{playlist: "Mix", tracks: tracks}
		target := &mockTarget{searchResults: map[string][]models.Candidate{
			"Song A Artist A": {{ID: "t1", Title: "Song A", Artists: []string{"Artist A"}, DurationSec: 200}},
		}}
		f := setupEngine(t, source, target)

		result, err := f.engine.Transfer(context.Background(), TransferOpts{
			UserID:      f.userID,
			PlaylistRef: "pl123",
			Target:      models.ProviderTidal,
		}, nil)
		if err != nil {
			t.Fatalf("Transfer() error = %v", err)
		}

		if result.Matched != 1 {
			t.Errorf("matched = %d, want 1", result.Matched)
		}
		if result.MatchPercentage != 50 {
			t.Errorf("match percentage = %v, want 50", result.MatchPercentage)
		}
		if len(result.Missed) != 1 || result.Missed[0].Title != "Song B" {
			t.Errorf("missed = %v, want Song B", result.Missed)
		}
		if result.Missed[0].Reason != "no match found" {
			t.Errorf("missed reason = %q, want no match found", result.Missed[0].Reason)
		}
	})

	t.Run("Honors Title And Privacy", func(t *testing.T) {
		source := &mockSource{playlist: "Mix", tracks: tracks[:1]}
		target := &mockTarget{searchResults: map[string][]models.Candidate{
			"Song A Artist A": {{ID: "t1", Title: "Song A", Artists: []string{"Artist A"}, DurationSec: 200}},
		}}
		f := setupEngine(t, source, target)

		_, err := f.engine.Transfer(context.Background(), TransferOpts{
			UserID:      f.userID,
			PlaylistRef: "pl123",
			Target:      models.ProviderTidal,
			Title:       "Custom Name",
			Privacy:     models.PrivacyPublic,
		}, nil)
		if err != nil {
			t.Fatalf("Transfer() error = %v", err)
		}

		if target.createdTitle != "Custom Name" {
			t.Errorf("created title = %q, want Custom Name", target.createdTitle)
		}
		if target.createdPriv != models.PrivacyPublic {
			t.Errorf("created privacy = %v, want %v", target.createdPriv, models.PrivacyPublic)
		}
	})

	t.Run("Rejects Source As Target", func(t *testing.T) {
		f := setupEngine(t, &mockSource{tracks: tracks}, &mockTarget{})

		_, err := f.engine.Transfer(context.Background(), TransferOpts{
			UserID:      f.userID,
			PlaylistRef: "pl123",
			Target:      models.ProviderSpotify,
		}, nil)
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("Transfer() error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("Rejects Malformed Playlist Ref", func(t *testing.T) {
		f := setupEngine(t, &mockSource{tracks: tracks}, &mockTarget{})

		_, err := f.engine.Transfer(context.Background(), TransferOpts{
			UserID:      f.userID,
			PlaylistRef: "spotify.com/bad/ref",
			Target:      models.ProviderTidal,
		}, nil)
		if !errors.Is(err, shared.ErrInvalidPlaylistURL) {
			t.Errorf("Transfer() error = %v, want ErrInvalidPlaylistURL", err)
		}
	})
}

func TestPipelineEngine_Recover(t *testing.T) {
	f := setupEngine(t, &mockSource{}, &mockTarget{})

	queued := createJob(t, f)
	importing := importingJob(t, f)
	interrupted := createJob(t, f)
	advanceJob(t, f, interrupted.ID(), models.JobQueued, models.JobRunning)

	var mu sync.Mutex
	handled := []QueuedJob{}
	q := NewQueue(1, 8, func(ctx context.Context, job QueuedJob) {
		mu.Lock()
		handled = append(handled, job)
		mu.Unlock()
	}, shared.NewLogger(io.Discard))

	recovered, err := f.engine.Recover(q)
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if recovered != 2 {
		t.Errorf("recovered = %d, want 2", recovered)
	}

	q.Start(context.Background())
	q.Stop()

	if len(handled) != 2 {
		t.Fatalf("handled = %d jobs, want 2", len(handled))
	}
	stages := map[string]Stage{}
	for _, h := range handled {
		stages[h.JobID] = h.Stage
	}
	if stages[queued.ID()] != StageMatch {
		t.Errorf("queued job stage = %v, want %v", stages[queued.ID()], StageMatch)
	}
	if stages[importing.ID()] != StageFinalize {
		t.Errorf("importing job stage = %v, want %v", stages[importing.ID()], StageFinalize)
	}

	failed, err := f.jobs.Get(interrupted.ID())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if failed.Status() != models.JobFailed {
		t.Errorf("interrupted job status = %v, want %v", failed.Status(), models.JobFailed)
	}
	if !strings.Contains(failed.ErrorMessage(), "interrupted") {
		t.Errorf("error message = %q, should mention the interruption", failed.ErrorMessage())
	}
}

func TestPipelineEngine_Process(t *testing.T) {
	source := &mockSource{playlist: "Mix", tracks: []models.SourceTrack{
		{SourceID: "sp1", Title: "Song A", Artists: []string{"Artist A"}, DurationMS: 200000},
	}}
	target := &mockTarget{searchResults: map[string][]models.Candidate{
		"Song A Artist A": {{ID: "t1", Title: "Song A", Artists: []string{"Artist A"}, DurationSec: 200}},
	}}
	f := setupEngine(t, source, target)
	job := createJob(t, f)

	f.engine.Process(context.Background(), QueuedJob{JobID: job.ID(), Stage: StageMatch})

	got, err := f.jobs.Get(job.ID())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status() != models.JobWaitingReview {
		t.Errorf("job status = %v, want %v", got.Status(), models.JobWaitingReview)
	}
}
