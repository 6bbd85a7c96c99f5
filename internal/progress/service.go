// Package progress implements per-session progress tracking: question progress, project
// completion and the readiness aggregate derived from them.
//
// Every public mutation runs one fine-grained change and one aggregate recompute inside a
// single store transaction, and returns both so a client cache can reconcile without a
// second round trip.
package progress

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garnizeh/preptrack/internal/catalog"
	"github.com/garnizeh/preptrack/internal/session"
	"github.com/garnizeh/preptrack/pkg/models"
	"github.com/garnizeh/preptrack/pkg/repository"
)

// MaxNotesBytes bounds the notes stored per question.
const MaxNotesBytes = 64 * 1024

// QuestionResult is the reply of every question mutation.
type QuestionResult struct {
	Progress  models.QuestionProgress  `json:"progress"`
	Aggregate models.AggregateProgress `json:"aggregate"`
}

// ProjectResult is the reply of every project mutation.
type ProjectResult struct {
	Project   models.ProjectCompletion `json:"project"`
	Aggregate models.AggregateProgress `json:"aggregate"`
}

type Service struct {
	store   repository.TxStore
	catalog catalog.Catalog
	logger  *slog.Logger
	clock   func() time.Time
}

func NewService(store repository.TxStore, cat catalog.Catalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		catalog: cat,
		logger:  logger,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *Service) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

// GetAggregate returns the session rollup, or the not-started default when the session
// has no recorded activity.
func (s *Service) GetAggregate(ctx context.Context, sessionID string) (*models.AggregateProgress, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}

	agg, err := s.store.GetAggregate(ctx, sessionID)
	if err != nil {
		return nil, storageErr("get aggregate", err)
	}
	if agg == nil {
		d := DefaultAggregate(sessionID)
		return &d, nil
	}
	return agg, nil
}

// BookExpertCall records that the session booked an expert call for date.
func (s *Service) BookExpertCall(ctx context.Context, sessionID string, date time.Time) (*models.AggregateProgress, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, invalid("expert_call_date", "required")
	}

	var out *models.AggregateProgress
	err := s.store.WithinTx(ctx, func(st repository.Store) error {
		agg, err := aggregator{store: st}.bookExpertCall(ctx, sessionID, date)
		out = agg
		return err
	})
	if err != nil {
		return nil, storageErr("book expert call", err)
	}

	s.logger.Info("expert call booked", "session", session.Fingerprint(sessionID), "score", out.ReadinessScore)
	return out, nil
}

// Recompute rebuilds one session aggregate from its source rows.
func (s *Service) Recompute(ctx context.Context, sessionID string) (*models.AggregateProgress, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}

	var out *models.AggregateProgress
	err := s.store.WithinTx(ctx, func(st repository.Store) error {
		agg, err := aggregator{store: st}.recompute(ctx, sessionID)
		out = agg
		return err
	})
	if err != nil {
		return nil, storageErr("recompute", err)
	}
	return out, nil
}

// RecomputeAll repairs every session aggregate, running up to concurrency sessions at
// once. It returns how many sessions were rebuilt before the first failure.
func (s *Service) RecomputeAll(ctx context.Context, concurrency int) (int, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return 0, storageErr("list sessions", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	done := make(chan struct{}, len(sessions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, id := range sessions {
		g.Go(func() error {
			if _, err := s.Recompute(gctx, id); err != nil {
				return err
			}
			done <- struct{}{}
			return nil
		})
	}
	err = g.Wait()
	close(done)

	n := len(done)
	s.logger.Info("recomputed aggregates", "sessions", n, "total", len(sessions))
	return n, err
}

// mutateQuestion runs fn and the aggregate recompute in one transaction.
func (s *Service) mutateQuestion(ctx context.Context, op, sessionID string, fn func(st repository.Store) (*models.QuestionProgress, error)) (*QuestionResult, error) {
	var out QuestionResult
	err := s.store.WithinTx(ctx, func(st repository.Store) error {
		p, err := fn(st)
		if err != nil {
			return err
		}
		agg, err := aggregator{store: st}.recompute(ctx, sessionID)
		if err != nil {
			return err
		}
		out = QuestionResult{Progress: *p, Aggregate: *agg}
		return nil
	})
	if err != nil {
		return nil, s.fail(op, sessionID, err)
	}

	s.logger.Debug(op, "session", session.Fingerprint(sessionID), "question", out.Progress.QuestionID)
	return &out, nil
}

// mutateProject runs fn against a tracker and the aggregate recompute in one transaction.
func (s *Service) mutateProject(ctx context.Context, op, sessionID string, fn func(t tracker) (*models.ProjectCompletion, error)) (*ProjectResult, error) {
	var out ProjectResult
	err := s.store.WithinTx(ctx, func(st repository.Store) error {
		p, err := fn(tracker{store: st, now: s.clock()})
		if err != nil {
			return err
		}
		agg, err := aggregator{store: st}.recompute(ctx, sessionID)
		if err != nil {
			return err
		}
		out = ProjectResult{Project: *p, Aggregate: *agg}
		return nil
	})
	if err != nil {
		return nil, s.fail(op, sessionID, err)
	}

	s.logger.Debug(op,
		"session", session.Fingerprint(sessionID),
		"project", out.Project.ProjectID,
		"status", out.Project.Status,
		"score", out.Aggregate.ReadinessScore,
	)
	return &out, nil
}

func (s *Service) fail(op, sessionID string, err error) error {
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, catalog.ErrUnknownProject) {
		return err
	}
	s.logger.Error(op+" failed", "session", session.Fingerprint(sessionID), "err", err)
	return storageErr(op, err)
}

func (s *Service) stepCount(ctx context.Context, projectID string) (int, error) {
	n, err := s.catalog.StepCount(ctx, projectID)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownProject) {
			return 0, err
		}
		return 0, storageErr("catalog lookup", err)
	}
	return n, nil
}

func validateSession(id string) error {
	if err := session.Validate(id); err != nil {
		return invalid("session", "%v", err)
	}
	return nil
}

func validateID(field, id string) error {
	if !session.ValidID(id) {
		return invalid(field, "must be 1-%d printable characters without spaces", session.MaxLen)
	}
	return nil
}
