package progress

import (
	"context"

	"github.com/garnizeh/preptrack/pkg/models"
)

// GetProject returns the stored completion record or a not-started default.
func (s *Service) GetProject(ctx context.Context, sessionID, projectID string) (*models.ProjectCompletion, error) {
	if err := validateProject(sessionID, projectID); err != nil {
		return nil, err
	}

	p, err := s.store.GetProjectCompletion(ctx, sessionID, projectID)
	if err != nil {
		return nil, storageErr("get project", err)
	}
	if p == nil {
		d := DefaultProject(sessionID, projectID)
		return &d, nil
	}
	return p, nil
}

// ListProjects returns every project the session has interacted with.
func (s *Service) ListProjects(ctx context.Context, sessionID string) ([]models.ProjectCompletion, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}

	ps, err := s.store.ListProjectCompletions(ctx, sessionID)
	if err != nil {
		return nil, storageErr("list projects", err)
	}
	if ps == nil {
		ps = []models.ProjectCompletion{}
	}
	return ps, nil
}

// StartProject is the explicit start: the record becomes in-progress with startedAt set.
func (s *Service) StartProject(ctx context.Context, sessionID, projectID string) (*ProjectResult, error) {
	if err := validateProject(sessionID, projectID); err != nil {
		return nil, err
	}
	if _, err := s.stepCount(ctx, projectID); err != nil {
		return nil, err
	}

	return s.mutateProject(ctx, "start project", sessionID, func(t tracker) (*models.ProjectCompletion, error) {
		return t.start(ctx, sessionID, projectID)
	})
}

// ToggleStep flips tutorial step membership and re-derives the project status.
func (s *Service) ToggleStep(ctx context.Context, sessionID, projectID string, step int) (*ProjectResult, error) {
	if err := validateProject(sessionID, projectID); err != nil {
		return nil, err
	}
	total, err := s.stepCount(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if step < 0 || step >= total {
		return nil, invalid("step", "%d outside [0, %d)", step, total)
	}

	return s.mutateProject(ctx, "toggle step", sessionID, func(t tracker) (*models.ProjectCompletion, error) {
		return t.toggleStep(ctx, sessionID, projectID, step, total)
	})
}

// ToggleReviewedQuestion flips membership of an interview question in the reviewed set.
func (s *Service) ToggleReviewedQuestion(ctx context.Context, sessionID, projectID, questionID string) (*ProjectResult, error) {
	if err := validateProject(sessionID, projectID); err != nil {
		return nil, err
	}
	if err := validateID("question_id", questionID); err != nil {
		return nil, err
	}

	return s.mutateProject(ctx, "toggle reviewed question", sessionID, func(t tracker) (*models.ProjectCompletion, error) {
		return t.toggleReviewedQuestion(ctx, sessionID, projectID, questionID)
	})
}

func (s *Service) SelectResumeStyle(ctx context.Context, sessionID, projectID string, style models.ResumeStyle) (*ProjectResult, error) {
	if err := validateProject(sessionID, projectID); err != nil {
		return nil, err
	}
	if !style.Valid() {
		return nil, invalid("style", "%q is not one of technical, impact, fullStack", style)
	}

	return s.mutateProject(ctx, "select resume style", sessionID, func(t tracker) (*models.ProjectCompletion, error) {
		return t.selectResumeStyle(ctx, sessionID, projectID, style)
	})
}

func (s *Service) MarkBulletsCopied(ctx context.Context, sessionID, projectID string) (*ProjectResult, error) {
	if err := validateProject(sessionID, projectID); err != nil {
		return nil, err
	}

	return s.mutateProject(ctx, "mark bullets copied", sessionID, func(t tracker) (*models.ProjectCompletion, error) {
		return t.markBulletsCopied(ctx, sessionID, projectID)
	})
}

// MarkProjectComplete declares the project done, checking every step.
func (s *Service) MarkProjectComplete(ctx context.Context, sessionID, projectID string) (*ProjectResult, error) {
	if err := validateProject(sessionID, projectID); err != nil {
		return nil, err
	}
	total, err := s.stepCount(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return s.mutateProject(ctx, "mark project complete", sessionID, func(t tracker) (*models.ProjectCompletion, error) {
		return t.markComplete(ctx, sessionID, projectID, total)
	})
}

// SyncProject unions client-cached step and reviewed-question sets into the stored
// record. It only ever adds members.
func (s *Service) SyncProject(ctx context.Context, sessionID, projectID string, steps []int, reviewed []string) (*ProjectResult, error) {
	if err := validateProject(sessionID, projectID); err != nil {
		return nil, err
	}
	total, err := s.stepCount(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, st := range steps {
		if st < 0 || st >= total {
			return nil, invalid("completed_steps", "%d outside [0, %d)", st, total)
		}
	}
	for _, q := range reviewed {
		if err := validateID("reviewed_questions", q); err != nil {
			return nil, err
		}
	}
	steps = UnionSteps(nil, steps)
	reviewed = UnionQuestions(nil, reviewed)

	return s.mutateProject(ctx, "sync project", sessionID, func(t tracker) (*models.ProjectCompletion, error) {
		return t.sync(ctx, sessionID, projectID, steps, reviewed, total)
	})
}

func validateProject(sessionID, projectID string) error {
	if err := validateSession(sessionID); err != nil {
		return err
	}
	return validateID("project_id", projectID)
}
