// Package mock provides an in-memory repository.TxStore for tests. It follows the same
// merge and set rules as the SQLite implementation and can be told to fail specific
// operations to exercise rollback paths.
package mock

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/garnizeh/preptrack/pkg/models"
	"github.com/garnizeh/preptrack/pkg/repository"
)

// ErrInjected is a convenience error for Fail.
var ErrInjected = errors.New("injected storage failure")

type key struct{ session, id string }

type project struct {
	rec      models.ProjectCompletion
	steps    map[int]struct{}
	reviewed map[string]struct{}
}

type state struct {
	questions  map[key]models.QuestionProgress
	projects   map[key]*project
	aggregates map[string]models.AggregateProgress
}

func newState() *state {
	return &state{
		questions:  map[key]models.QuestionProgress{},
		projects:   map[key]*project{},
		aggregates: map[string]models.AggregateProgress{},
	}
}

func (s *state) clone() *state {
	out := &state{
		questions:  maps.Clone(s.questions),
		projects:   make(map[key]*project, len(s.projects)),
		aggregates: maps.Clone(s.aggregates),
	}
	for k, p := range s.projects {
		out.projects[k] = &project{rec: p.rec, steps: maps.Clone(p.steps), reviewed: maps.Clone(p.reviewed)}
	}
	return out
}

// Store is safe for concurrent use. Transactions hold the store lock for their whole
// duration, so they are fully serialized.
type Store struct {
	mu       sync.Mutex
	st       *state
	failures map[string]error
}

var _ repository.TxStore = (*Store)(nil)

func New() *Store {
	return &Store{st: newState(), failures: map[string]error{}}
}

// Fail makes every later call of the named method (e.g. "SaveAggregate") return err.
// A nil err clears the failure.
func (s *Store) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures["WithinTx"]; err != nil {
		return err
	}

	tx := &Store{st: s.st.clone(), failures: s.failures}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

func (s *Store) GetQuestionProgress(_ context.Context, sessionID, questionID string) (*models.QuestionProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["GetQuestionProgress"]; err != nil {
		return nil, err
	}

	q, ok := s.st.questions[key{sessionID, questionID}]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (s *Store) UpsertQuestionProgress(_ context.Context, sessionID, questionID string, patch models.QuestionProgressPatch) (*models.QuestionProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["UpsertQuestionProgress"]; err != nil {
		return nil, err
	}

	ts := time.Now().UTC().UnixMilli()
	k := key{sessionID, questionID}
	q, ok := s.st.questions[k]
	if !ok {
		q = models.QuestionProgress{SessionID: sessionID, QuestionID: questionID, Created: ts}
	}
	q.Apply(patch)
	q.Updated = ts
	s.st.questions[k] = q
	return &q, nil
}

func (s *Store) GetProjectCompletion(_ context.Context, sessionID, projectID string) (*models.ProjectCompletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["GetProjectCompletion"]; err != nil {
		return nil, err
	}

	p, ok := s.st.projects[key{sessionID, projectID}]
	if !ok {
		return nil, nil
	}
	rec := p.snapshot()
	return &rec, nil
}

func (s *Store) ListProjectCompletions(_ context.Context, sessionID string) ([]models.ProjectCompletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["ListProjectCompletions"]; err != nil {
		return nil, err
	}

	var out []models.ProjectCompletion
	for k, p := range s.st.projects {
		if k.session == sessionID {
			out = append(out, p.snapshot())
		}
	}
	slices.SortFunc(out, func(a, b models.ProjectCompletion) int {
		switch {
		case a.ProjectID < b.ProjectID:
			return -1
		case a.ProjectID > b.ProjectID:
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *Store) EnsureProjectCompletion(_ context.Context, sessionID, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["EnsureProjectCompletion"]; err != nil {
		return err
	}

	s.ensure(sessionID, projectID, models.ProjectNotStarted, nil)
	return nil
}

func (s *Store) StartProjectCompletion(_ context.Context, sessionID, projectID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["StartProjectCompletion"]; err != nil {
		return false, err
	}

	at = at.UTC()
	p, created := s.ensure(sessionID, projectID, models.ProjectInProgress, &at)
	if created {
		return true, nil
	}
	if p.rec.Status != models.ProjectNotStarted {
		return false, nil
	}
	p.rec.Status = models.ProjectInProgress
	if p.rec.StartedAt == nil {
		p.rec.StartedAt = &at
	}
	return true, nil
}

func (s *Store) ToggleStep(_ context.Context, sessionID, projectID string, step int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["ToggleStep"]; err != nil {
		return false, err
	}

	p, err := s.project(sessionID, projectID)
	if err != nil {
		return false, err
	}
	return toggle(p.steps, step), nil
}

func (s *Store) ToggleReviewedQuestion(_ context.Context, sessionID, projectID, questionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["ToggleReviewedQuestion"]; err != nil {
		return false, err
	}

	p, err := s.project(sessionID, projectID)
	if err != nil {
		return false, err
	}
	return toggle(p.reviewed, questionID), nil
}

func (s *Store) AddSteps(_ context.Context, sessionID, projectID string, steps []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["AddSteps"]; err != nil {
		return err
	}

	p, err := s.project(sessionID, projectID)
	if err != nil {
		return err
	}
	for _, st := range steps {
		p.steps[st] = struct{}{}
	}
	return nil
}

func (s *Store) AddReviewedQuestions(_ context.Context, sessionID, projectID string, questionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["AddReviewedQuestions"]; err != nil {
		return err
	}

	p, err := s.project(sessionID, projectID)
	if err != nil {
		return err
	}
	for _, q := range questionIDs {
		p.reviewed[q] = struct{}{}
	}
	return nil
}

func (s *Store) SetProjectStatus(_ context.Context, sessionID, projectID string, status models.ProjectStatus, completedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["SetProjectStatus"]; err != nil {
		return err
	}

	p, ok := s.st.projects[key{sessionID, projectID}]
	if !ok {
		return nil
	}
	if p.rec.Status == models.ProjectCompleted && status != models.ProjectCompleted {
		return nil
	}
	p.rec.Status = status
	if p.rec.CompletedAt == nil && completedAt != nil {
		t := completedAt.UTC()
		p.rec.CompletedAt = &t
	}
	return nil
}

func (s *Store) SetResumeStyle(_ context.Context, sessionID, projectID string, style models.ResumeStyle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["SetResumeStyle"]; err != nil {
		return err
	}

	if p, ok := s.st.projects[key{sessionID, projectID}]; ok {
		p.rec.SelectedResumeStyle = &style
	}
	return nil
}

func (s *Store) SetBulletsCopied(_ context.Context, sessionID, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["SetBulletsCopied"]; err != nil {
		return err
	}

	if p, ok := s.st.projects[key{sessionID, projectID}]; ok {
		p.rec.BulletsCopied = true
	}
	return nil
}

func (s *Store) GetAggregate(_ context.Context, sessionID string) (*models.AggregateProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["GetAggregate"]; err != nil {
		return nil, err
	}

	a, ok := s.st.aggregates[sessionID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) SaveAggregate(_ context.Context, a *models.AggregateProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["SaveAggregate"]; err != nil {
		return err
	}
	if a == nil {
		return errors.New("aggregate is nil")
	}

	a.Updated = time.Now().UTC().UnixMilli()
	s.st.aggregates[a.SessionID] = *a
	return nil
}

func (s *Store) RollupProjects(_ context.Context, sessionID string) (models.ProjectRollup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["RollupProjects"]; err != nil {
		return models.ProjectRollup{}, err
	}

	var out models.ProjectRollup
	for k, p := range s.st.projects {
		if k.session != sessionID {
			continue
		}
		out.TotalQuestionsReviewed += len(p.reviewed)
		if p.rec.Status != models.ProjectCompleted {
			continue
		}
		out.CompletedProjects++
		if c := p.rec.CompletedAt; c != nil && (out.LastCompletedAt == nil || c.After(*out.LastCompletedAt)) {
			t := *c
			out.LastCompletedAt = &t
		}
	}
	return out, nil
}

func (s *Store) ListSessions(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["ListSessions"]; err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	for k := range s.st.questions {
		seen[k.session] = struct{}{}
	}
	for k := range s.st.projects {
		seen[k.session] = struct{}{}
	}
	for id := range s.st.aggregates {
		seen[id] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

func (s *Store) ensure(sessionID, projectID string, status models.ProjectStatus, startedAt *time.Time) (*project, bool) {
	k := key{sessionID, projectID}
	if p, ok := s.st.projects[k]; ok {
		return p, false
	}

	ts := time.Now().UTC().UnixMilli()
	p := &project{
		rec: models.ProjectCompletion{
			SessionID: sessionID,
			ProjectID: projectID,
			Status:    status,
			StartedAt: startedAt,
			Created:   ts,
			Updated:   ts,
		},
		steps:    map[int]struct{}{},
		reviewed: map[string]struct{}{},
	}
	s.st.projects[k] = p
	return p, true
}

// project mirrors the foreign key on the SQLite set tables.
func (s *Store) project(sessionID, projectID string) (*project, error) {
	p, ok := s.st.projects[key{sessionID, projectID}]
	if !ok {
		return nil, errors.New("FOREIGN KEY constraint failed")
	}
	return p, nil
}

func (p *project) snapshot() models.ProjectCompletion {
	rec := p.rec
	rec.CompletedSteps = slices.Sorted(maps.Keys(p.steps))
	rec.ReviewedQuestions = slices.Sorted(maps.Keys(p.reviewed))
	if rec.CompletedSteps == nil {
		rec.CompletedSteps = []int{}
	}
	if rec.ReviewedQuestions == nil {
		rec.ReviewedQuestions = []string{}
	}
	return rec
}

func toggle[K comparable](set map[K]struct{}, member K) bool {
	if _, ok := set[member]; ok {
		delete(set, member)
		return false
	}
	set[member] = struct{}{}
	return true
}
