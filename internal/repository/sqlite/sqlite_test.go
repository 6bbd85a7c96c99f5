package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	dbfs "github.com/garnizeh/preptrack/db"
	dbpkg "github.com/garnizeh/preptrack/internal/db"
	sqlite "github.com/garnizeh/preptrack/internal/repository/sqlite"
	"github.com/garnizeh/preptrack/pkg/models"
	"github.com/garnizeh/preptrack/pkg/repository"
)

func setupRepo(t *testing.T) *sqlite.SQLiteRepo {
	t.Helper()
	ctx := context.Background()
	d, err := dbpkg.New(ctx, filepath.Join(t.TempDir(), "repo.db"), nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return sqlite.New(d, nil)
}

func ptr[T any](v T) *T { return &v }

func TestQuestionProgressUpsert(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	got, err := repo.GetQuestionProgress(ctx, "s1", "q1")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for missing row; got %#v, %v", got, err)
	}

	p, err := repo.UpsertQuestionProgress(ctx, "s1", "q1", models.QuestionProgressPatch{Notes: ptr("draft"), HintsRevealed: ptr(2)})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if p.Notes != "draft" || p.HintsRevealed != 2 || p.Completed || p.TimeSpentSeconds != 0 {
		t.Fatalf("unexpected row after insert: %#v", p)
	}
	if p.Created == 0 || p.Updated == 0 {
		t.Fatalf("expected timestamps to be set: %#v", p)
	}

	// partial patch leaves other fields alone; hints never go down
	p, err = repo.UpsertQuestionProgress(ctx, "s1", "q1", models.QuestionProgressPatch{Completed: ptr(true), HintsRevealed: ptr(1)})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !p.Completed || p.Notes != "draft" || p.HintsRevealed != 2 {
		t.Fatalf("unexpected merge result: %#v", p)
	}

	p, err = repo.UpsertQuestionProgress(ctx, "s1", "q1", models.QuestionProgressPatch{HintsRevealed: ptr(4), TimeSpentSeconds: ptr(int64(90)), Completed: ptr(false)})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if p.HintsRevealed != 4 || p.TimeSpentSeconds != 90 || p.Completed {
		t.Fatalf("unexpected merge result: %#v", p)
	}
}

func TestProjectLifecycle(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.EnsureProjectCompletion(ctx, "s1", "p1"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	p, err := repo.GetProjectCompletion(ctx, "s1", "p1")
	if err != nil || p == nil {
		t.Fatalf("get after ensure: %#v, %v", p, err)
	}
	if p.Status != models.ProjectNotStarted || p.StartedAt != nil {
		t.Fatalf("ensure should create a not-started row: %#v", p)
	}

	started, err := repo.StartProjectCompletion(ctx, "s1", "p1", at)
	if err != nil || !started {
		t.Fatalf("start: %v, %v", started, err)
	}
	started, err = repo.StartProjectCompletion(ctx, "s1", "p1", at.Add(time.Hour))
	if err != nil || started {
		t.Fatalf("second start should be a no-op: %v, %v", started, err)
	}

	p, _ = repo.GetProjectCompletion(ctx, "s1", "p1")
	if p.Status != models.ProjectInProgress || p.StartedAt == nil || !p.StartedAt.Equal(at) {
		t.Fatalf("unexpected row after start: %#v", p)
	}

	present, err := repo.ToggleStep(ctx, "s1", "p1", 2)
	if err != nil || !present {
		t.Fatalf("toggle on: %v, %v", present, err)
	}
	present, err = repo.ToggleStep(ctx, "s1", "p1", 2)
	if err != nil || present {
		t.Fatalf("toggle off: %v, %v", present, err)
	}
	if err := repo.AddSteps(ctx, "s1", "p1", []int{0, 1, 1}); err != nil {
		t.Fatalf("add steps: %v", err)
	}
	if _, err := repo.ToggleReviewedQuestion(ctx, "s1", "p1", "iq-1"); err != nil {
		t.Fatalf("toggle reviewed: %v", err)
	}
	if err := repo.AddReviewedQuestions(ctx, "s1", "p1", []string{"iq-1", "iq-2"}); err != nil {
		t.Fatalf("add reviewed: %v", err)
	}

	done := at.Add(2 * time.Hour)
	if err := repo.SetProjectStatus(ctx, "s1", "p1", models.ProjectCompleted, &done); err != nil {
		t.Fatalf("set status: %v", err)
	}
	later := at.Add(5 * time.Hour)
	if err := repo.SetProjectStatus(ctx, "s1", "p1", models.ProjectCompleted, &later); err != nil {
		t.Fatalf("set status again: %v", err)
	}
	// a completed row never moves back
	if err := repo.SetProjectStatus(ctx, "s1", "p1", models.ProjectInProgress, nil); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := repo.SetResumeStyle(ctx, "s1", "p1", models.ResumeImpact); err != nil {
		t.Fatalf("set style: %v", err)
	}
	if err := repo.SetBulletsCopied(ctx, "s1", "p1"); err != nil {
		t.Fatalf("set bullets: %v", err)
	}

	p, err = repo.GetProjectCompletion(ctx, "s1", "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Status != models.ProjectCompleted {
		t.Fatalf("expected completed, got %s", p.Status)
	}
	if p.CompletedAt == nil || !p.CompletedAt.Equal(done) {
		t.Fatalf("expected first completion time to stick, got %v", p.CompletedAt)
	}
	if fmt.Sprint(p.CompletedSteps) != "[0 1]" {
		t.Fatalf("unexpected steps: %v", p.CompletedSteps)
	}
	if fmt.Sprint(p.ReviewedQuestions) != "[iq-1 iq-2]" {
		t.Fatalf("unexpected reviewed: %v", p.ReviewedQuestions)
	}
	if p.SelectedResumeStyle == nil || *p.SelectedResumeStyle != models.ResumeImpact || !p.BulletsCopied {
		t.Fatalf("unexpected resume fields: %#v", p)
	}
}

func TestSetMembersRequireProjectRow(t *testing.T) {
	repo := setupRepo(t)
	if _, err := repo.ToggleStep(context.Background(), "s1", "missing", 0); err == nil {
		t.Fatalf("expected foreign key failure for a step without a project row")
	}
}

func TestListAndRollup(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(48 * time.Hour)

	for _, id := range []string{"b", "a", "c"} {
		if _, err := repo.StartProjectCompletion(ctx, "s1", id, t1); err != nil {
			t.Fatalf("start %s: %v", id, err)
		}
	}
	_ = repo.AddReviewedQuestions(ctx, "s1", "a", []string{"x", "y"})
	_ = repo.AddReviewedQuestions(ctx, "s1", "b", []string{"x"})
	_ = repo.SetProjectStatus(ctx, "s1", "a", models.ProjectCompleted, &t1)
	_ = repo.SetProjectStatus(ctx, "s1", "b", models.ProjectCompleted, &t2)
	_ = repo.SetProjectStatus(ctx, "s1", "c", models.ProjectTutorialComplete, nil)
	if _, err := repo.StartProjectCompletion(ctx, "other", "a", t1); err != nil {
		t.Fatalf("start other: %v", err)
	}

	list, err := repo.ListProjectCompletions(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].ProjectID != "a" || list[2].ProjectID != "c" {
		t.Fatalf("unexpected list: %#v", list)
	}
	if len(list[0].ReviewedQuestions) != 2 || list[2].CompletedSteps == nil {
		t.Fatalf("sets not loaded: %#v", list)
	}

	r, err := repo.RollupProjects(ctx, "s1")
	if err != nil {
		t.Fatalf("rollup: %v", err)
	}
	if r.CompletedProjects != 2 || r.TotalQuestionsReviewed != 3 {
		t.Fatalf("unexpected rollup: %#v", r)
	}
	if r.LastCompletedAt == nil || !r.LastCompletedAt.Equal(t2) {
		t.Fatalf("unexpected last completed: %v", r.LastCompletedAt)
	}

	empty, err := repo.RollupProjects(ctx, "nobody")
	if err != nil || empty.CompletedProjects != 0 || empty.LastCompletedAt != nil {
		t.Fatalf("unexpected empty rollup: %#v, %v", empty, err)
	}

	if _, err := repo.UpsertQuestionProgress(ctx, "q-only", "q1", models.QuestionProgressPatch{Completed: ptr(true)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	sessions, err := repo.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if fmt.Sprint(sessions) != "[other q-only s1]" {
		t.Fatalf("unexpected sessions: %v", sessions)
	}
}

func TestAggregateSaveAndGet(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	got, err := repo.GetAggregate(ctx, "s1")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %#v, %v", got, err)
	}

	call := time.Date(2026, 5, 4, 15, 30, 0, 0, time.UTC)
	a := &models.AggregateProgress{
		SessionID:          "s1",
		ReadinessScore:     55,
		Status:             models.ReadinessInProgress,
		ResumeBulletsCount: 3,
		ExpertCallBooked:   true,
		ExpertCallDate:     &call,
	}
	if err := repo.SaveAggregate(ctx, a); err != nil {
		t.Fatalf("save: %v", err)
	}
	if a.Updated == 0 {
		t.Fatalf("expected Updated to be set")
	}

	a.ReadinessScore = 80
	if err := repo.SaveAggregate(ctx, a); err != nil {
		t.Fatalf("save again: %v", err)
	}

	got, err = repo.GetAggregate(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReadinessScore != 80 || got.Status != models.ReadinessInProgress || !got.ExpertCallBooked {
		t.Fatalf("unexpected aggregate: %#v", got)
	}
	if got.ExpertCallDate == nil || !got.ExpertCallDate.Equal(call) || got.ResumeLastUpdated != nil {
		t.Fatalf("unexpected dates: %#v", got)
	}

	if err := repo.SaveAggregate(ctx, nil); err == nil {
		t.Fatalf("expected error saving nil aggregate")
	}
}

func TestWithinTxRollsBack(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.WithinTx(ctx, func(s repository.Store) error {
		if _, err := s.UpsertQuestionProgress(ctx, "s1", "q1", models.QuestionProgressPatch{Completed: ptr(true)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := repo.GetQuestionProgress(ctx, "s1", "q1")
	if err != nil || got != nil {
		t.Fatalf("expected rollback to leave no row; got %#v, %v", got, err)
	}
}

func TestConcurrentStepToggles(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	if _, err := repo.StartProjectCompletion(ctx, "s1", "p1", time.Now()); err != nil {
		t.Fatalf("start: %v", err)
	}

	const steps = 8
	var wg sync.WaitGroup
	errs := make(chan error, steps)
	for i := range steps {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			errs <- repo.WithinTx(ctx, func(s repository.Store) error {
				_, err := s.ToggleStep(ctx, "s1", "p1", step)
				return err
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("toggle failed: %v", err)
		}
	}

	p, err := repo.GetProjectCompletion(ctx, "s1", "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(p.CompletedSteps) != steps {
		t.Fatalf("expected %d steps, got %v", steps, p.CompletedSteps)
	}
}
