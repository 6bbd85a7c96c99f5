package progress

import (
	"context"
	"time"

	"github.com/garnizeh/preptrack/pkg/models"
	"github.com/garnizeh/preptrack/pkg/repository"
)

// Readiness weights. Together they add up to MaxScore.
const (
	MaxScore = 100

	FirstProjectPoints  = 30
	SecondProjectPoints = 20
	ReviewPoints        = 25
	ExpertCallPoints    = 25

	// ReviewTarget is the number of reviewed interview questions that earns all of
	// ReviewPoints; fewer earn a proportional share.
	ReviewTarget = 6

	// BulletsPerProject is how many resume bullets a completed project yields.
	BulletsPerProject = 3
)

// ScoreInputs are the only facts the readiness score depends on.
type ScoreInputs struct {
	CompletedProjects int
	QuestionsReviewed int
	ExpertCallBooked  bool
}

// Score computes the readiness score. It is pure and monotonic: raising any input
// never lowers the result.
func Score(in ScoreInputs) int {
	score := 0
	if in.CompletedProjects >= 1 {
		score += FirstProjectPoints
	}
	if in.CompletedProjects >= 2 {
		score += SecondProjectPoints
	}
	reviewed := min(max(in.QuestionsReviewed, 0), ReviewTarget)
	score += reviewed * ReviewPoints / ReviewTarget
	if in.ExpertCallBooked {
		score += ExpertCallPoints
	}
	return min(score, MaxScore)
}

// StatusForScore maps a score onto the readiness status.
func StatusForScore(score int) models.ReadinessStatus {
	switch {
	case score <= 0:
		return models.ReadinessNotStarted
	case score >= MaxScore:
		return models.ReadinessReady
	default:
		return models.ReadinessInProgress
	}
}

// DefaultAggregate is what a session with no recorded activity reports.
func DefaultAggregate(sessionID string) models.AggregateProgress {
	return models.AggregateProgress{SessionID: sessionID, Status: models.ReadinessNotStarted}
}

// Derive fills every derived field of current from rollup. The expert call fields are
// not derived and are carried over untouched.
func Derive(current models.AggregateProgress, rollup models.ProjectRollup) models.AggregateProgress {
	next := current
	next.TotalQuestionsReviewed = rollup.TotalQuestionsReviewed
	next.ResumeBulletsCount = rollup.CompletedProjects * BulletsPerProject
	next.ResumeLastUpdated = rollup.LastCompletedAt
	next.ReadinessScore = Score(ScoreInputs{
		CompletedProjects: rollup.CompletedProjects,
		QuestionsReviewed: rollup.TotalQuestionsReviewed,
		ExpertCallBooked:  current.ExpertCallBooked,
	})
	next.Status = StatusForScore(next.ReadinessScore)
	return next
}

// aggregator is the only writer of AggregateProgress rows.
type aggregator struct {
	store repository.Store
}

// recompute rebuilds the session aggregate from a full scan of its project rows and
// saves it.
func (a aggregator) recompute(ctx context.Context, sessionID string) (*models.AggregateProgress, error) {
	return a.rebuild(ctx, sessionID, nil)
}

func (a aggregator) bookExpertCall(ctx context.Context, sessionID string, date time.Time) (*models.AggregateProgress, error) {
	d := date.UTC()
	return a.rebuild(ctx, sessionID, func(agg *models.AggregateProgress) {
		agg.ExpertCallBooked = true
		agg.ExpertCallDate = &d
	})
}

// rebuild applies mutate to the stored (non-derived) fields, then re-derives the rest.
func (a aggregator) rebuild(ctx context.Context, sessionID string, mutate func(*models.AggregateProgress)) (*models.AggregateProgress, error) {
	current, err := a.store.GetAggregate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		d := DefaultAggregate(sessionID)
		current = &d
	}
	if mutate != nil {
		mutate(current)
	}

	rollup, err := a.store.RollupProjects(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	next := Derive(*current, rollup)
	if err := a.store.SaveAggregate(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}
