package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/garnizeh/preptrack/pkg/models"
	"github.com/garnizeh/preptrack/pkg/repository"
)

// tracker applies project mutations inside an open transaction. It never writes the
// aggregate; the service recomputes that afterwards in the same transaction.
type tracker struct {
	store repository.Store
	now   time.Time
}

// NextStatus is the project status after a step change, given how many of the
// template's totalSteps are now checked. Completed is terminal; everything else is
// derived from step coverage and never falls back to not-started.
func NextStatus(current models.ProjectStatus, covered, totalSteps int) models.ProjectStatus {
	if current == models.ProjectCompleted {
		return models.ProjectCompleted
	}
	if totalSteps > 0 && covered >= totalSteps {
		return models.ProjectTutorialComplete
	}
	return models.ProjectInProgress
}

// coveredSteps counts members of steps inside [0, totalSteps).
func coveredSteps(steps []int, totalSteps int) int {
	n := 0
	for _, s := range steps {
		if s >= 0 && s < totalSteps {
			n++
		}
	}
	return n
}

func (t tracker) start(ctx context.Context, sessionID, projectID string) (*models.ProjectCompletion, error) {
	if _, err := t.store.StartProjectCompletion(ctx, sessionID, projectID, t.now); err != nil {
		return nil, err
	}
	return t.get(ctx, sessionID, projectID)
}

func (t tracker) toggleStep(ctx context.Context, sessionID, projectID string, step, totalSteps int) (*models.ProjectCompletion, error) {
	if _, err := t.store.StartProjectCompletion(ctx, sessionID, projectID, t.now); err != nil {
		return nil, err
	}
	if _, err := t.store.ToggleStep(ctx, sessionID, projectID, step); err != nil {
		return nil, err
	}
	return t.settleStatus(ctx, sessionID, projectID, totalSteps)
}

func (t tracker) toggleReviewedQuestion(ctx context.Context, sessionID, projectID, questionID string) (*models.ProjectCompletion, error) {
	if _, err := t.store.StartProjectCompletion(ctx, sessionID, projectID, t.now); err != nil {
		return nil, err
	}
	if _, err := t.store.ToggleReviewedQuestion(ctx, sessionID, projectID, questionID); err != nil {
		return nil, err
	}
	return t.get(ctx, sessionID, projectID)
}

func (t tracker) selectResumeStyle(ctx context.Context, sessionID, projectID string, style models.ResumeStyle) (*models.ProjectCompletion, error) {
	if err := t.store.EnsureProjectCompletion(ctx, sessionID, projectID); err != nil {
		return nil, err
	}
	if err := t.store.SetResumeStyle(ctx, sessionID, projectID, style); err != nil {
		return nil, err
	}
	return t.get(ctx, sessionID, projectID)
}

func (t tracker) markBulletsCopied(ctx context.Context, sessionID, projectID string) (*models.ProjectCompletion, error) {
	if err := t.store.EnsureProjectCompletion(ctx, sessionID, projectID); err != nil {
		return nil, err
	}
	if err := t.store.SetBulletsCopied(ctx, sessionID, projectID); err != nil {
		return nil, err
	}
	return t.get(ctx, sessionID, projectID)
}

// markComplete is the user-declared terminal transition. It unions the full step range
// into the set and keeps the first completion time on repeats.
func (t tracker) markComplete(ctx context.Context, sessionID, projectID string, totalSteps int) (*models.ProjectCompletion, error) {
	if _, err := t.store.StartProjectCompletion(ctx, sessionID, projectID, t.now); err != nil {
		return nil, err
	}

	all := make([]int, totalSteps)
	for i := range all {
		all[i] = i
	}
	if err := t.store.AddSteps(ctx, sessionID, projectID, all); err != nil {
		return nil, err
	}

	completedAt := t.now
	if err := t.store.SetProjectStatus(ctx, sessionID, projectID, models.ProjectCompleted, &completedAt); err != nil {
		return nil, err
	}

	return t.get(ctx, sessionID, projectID)
}

// sync unions client-held sets into the stored ones and re-derives the status.
func (t tracker) sync(ctx context.Context, sessionID, projectID string, steps []int, reviewed []string, totalSteps int) (*models.ProjectCompletion, error) {
	if _, err := t.store.StartProjectCompletion(ctx, sessionID, projectID, t.now); err != nil {
		return nil, err
	}
	if len(steps) > 0 {
		if err := t.store.AddSteps(ctx, sessionID, projectID, steps); err != nil {
			return nil, err
		}
	}
	if len(reviewed) > 0 {
		if err := t.store.AddReviewedQuestions(ctx, sessionID, projectID, reviewed); err != nil {
			return nil, err
		}
	}
	return t.settleStatus(ctx, sessionID, projectID, totalSteps)
}

func (t tracker) settleStatus(ctx context.Context, sessionID, projectID string, totalSteps int) (*models.ProjectCompletion, error) {
	p, err := t.get(ctx, sessionID, projectID)
	if err != nil {
		return nil, err
	}

	next := NextStatus(p.Status, coveredSteps(p.CompletedSteps, totalSteps), totalSteps)
	if next != p.Status {
		if err := t.store.SetProjectStatus(ctx, sessionID, projectID, next, nil); err != nil {
			return nil, err
		}
		p.Status = next
	}
	return p, nil
}

func (t tracker) get(ctx context.Context, sessionID, projectID string) (*models.ProjectCompletion, error) {
	p, err := t.store.GetProjectCompletion(ctx, sessionID, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("project %s/%s missing after write", sessionID, projectID)
	}
	return p, nil
}

// DefaultProject is what an untouched (session, project) pair reports.
func DefaultProject(sessionID, projectID string) models.ProjectCompletion {
	return models.ProjectCompletion{
		SessionID:         sessionID,
		ProjectID:         projectID,
		Status:            models.ProjectNotStarted,
		CompletedSteps:    []int{},
		ReviewedQuestions: []string{},
	}
}
