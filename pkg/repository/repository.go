package repository

import (
	"context"
	"time"

	"github.com/garnizeh/preptrack/pkg/models"
)

// Repository interfaces for the tracking records. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
//
// Read methods return (nil, nil) when no row exists.

type QuestionProgressRepo interface {
	GetQuestionProgress(ctx context.Context, sessionID, questionID string) (*models.QuestionProgress, error)
	// UpsertQuestionProgress merges patch into the stored row, creating it if needed.
	// HintsRevealed is merged with max, never overwritten.
	UpsertQuestionProgress(ctx context.Context, sessionID, questionID string, patch models.QuestionProgressPatch) (*models.QuestionProgress, error)
}

type ProjectCompletionRepo interface {
	GetProjectCompletion(ctx context.Context, sessionID, projectID string) (*models.ProjectCompletion, error)
	ListProjectCompletions(ctx context.Context, sessionID string) ([]models.ProjectCompletion, error)
	// EnsureProjectCompletion creates a not-started row if none exists.
	EnsureProjectCompletion(ctx context.Context, sessionID, projectID string) error
	// StartProjectCompletion creates the row as in-progress with startedAt=at if it is
	// absent, and moves a not-started row to in-progress. It reports whether it wrote.
	StartProjectCompletion(ctx context.Context, sessionID, projectID string, at time.Time) (bool, error)
	// ToggleStep flips membership of step and reports whether it is now present.
	ToggleStep(ctx context.Context, sessionID, projectID string, step int) (bool, error)
	ToggleReviewedQuestion(ctx context.Context, sessionID, projectID, questionID string) (bool, error)
	// AddSteps and AddReviewedQuestions union members into the sets.
	AddSteps(ctx context.Context, sessionID, projectID string, steps []int) error
	AddReviewedQuestions(ctx context.Context, sessionID, projectID string, questionIDs []string) error
	// SetProjectStatus never moves a completed row away from completed, and only fills
	// completed_at when it is still empty.
	SetProjectStatus(ctx context.Context, sessionID, projectID string, status models.ProjectStatus, completedAt *time.Time) error
	SetResumeStyle(ctx context.Context, sessionID, projectID string, style models.ResumeStyle) error
	SetBulletsCopied(ctx context.Context, sessionID, projectID string) error
}

type AggregateRepo interface {
	GetAggregate(ctx context.Context, sessionID string) (*models.AggregateProgress, error)
	SaveAggregate(ctx context.Context, a *models.AggregateProgress) error
	// RollupProjects scans every ProjectCompletion of the session.
	RollupProjects(ctx context.Context, sessionID string) (models.ProjectRollup, error)
	// ListSessions returns every session that owns at least one tracking record.
	ListSessions(ctx context.Context) ([]string, error)
}

// Store is the full set of tracking repositories.
type Store interface {
	QuestionProgressRepo
	ProjectCompletionRepo
	AggregateRepo
}

// TxStore runs fn against a Store bound to a single transaction. Either everything fn
// wrote is committed or nothing is.
type TxStore interface {
	Store
	WithinTx(ctx context.Context, fn func(s Store) error) error
}
