package progress

import (
	"context"

	"github.com/garnizeh/preptrack/pkg/models"
	"github.com/garnizeh/preptrack/pkg/repository"
)

// GetQuestionProgress returns the stored record or an empty default. Unknown question
// ids are not an error; the catalog is authoritative elsewhere.
func (s *Service) GetQuestionProgress(ctx context.Context, sessionID, questionID string) (*models.QuestionProgress, error) {
	if err := validateQuestion(sessionID, questionID); err != nil {
		return nil, err
	}

	p, err := s.store.GetQuestionProgress(ctx, sessionID, questionID)
	if err != nil {
		return nil, storageErr("get question progress", err)
	}
	if p == nil {
		return &models.QuestionProgress{SessionID: sessionID, QuestionID: questionID}, nil
	}
	return p, nil
}

// UpsertQuestionProgress merges any subset of fields into the record.
func (s *Service) UpsertQuestionProgress(ctx context.Context, sessionID, questionID string, patch models.QuestionProgressPatch) (*QuestionResult, error) {
	if err := validateQuestion(sessionID, questionID); err != nil {
		return nil, err
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	return s.mutateQuestion(ctx, "upsert question progress", sessionID, func(st repository.Store) (*models.QuestionProgress, error) {
		return st.UpsertQuestionProgress(ctx, sessionID, questionID, patch)
	})
}

// RevealHint records that hints up to revealed have been shown. A nil revealed means
// "the next one": the stored count plus one.
func (s *Service) RevealHint(ctx context.Context, sessionID, questionID string, revealed *int) (*QuestionResult, error) {
	if err := validateQuestion(sessionID, questionID); err != nil {
		return nil, err
	}
	if revealed != nil && *revealed < 0 {
		return nil, invalid("hints_revealed", "must be >= 0")
	}

	return s.mutateQuestion(ctx, "reveal hint", sessionID, func(st repository.Store) (*models.QuestionProgress, error) {
		n := revealed
		if n == nil {
			current, err := st.GetQuestionProgress(ctx, sessionID, questionID)
			if err != nil {
				return nil, err
			}
			next := 1
			if current != nil {
				next = current.HintsRevealed + 1
			}
			n = &next
		}
		return st.UpsertQuestionProgress(ctx, sessionID, questionID, models.QuestionProgressPatch{HintsRevealed: n})
	})
}

func (s *Service) SaveNotes(ctx context.Context, sessionID, questionID, notes string) (*QuestionResult, error) {
	return s.UpsertQuestionProgress(ctx, sessionID, questionID, models.QuestionProgressPatch{Notes: &notes})
}

func (s *Service) MarkQuestionComplete(ctx context.Context, sessionID, questionID string, completed bool) (*QuestionResult, error) {
	return s.UpsertQuestionProgress(ctx, sessionID, questionID, models.QuestionProgressPatch{Completed: &completed})
}

// RecordTimeSpent stores the total seconds the UI timer has measured for the question.
func (s *Service) RecordTimeSpent(ctx context.Context, sessionID, questionID string, seconds int64) (*QuestionResult, error) {
	return s.UpsertQuestionProgress(ctx, sessionID, questionID, models.QuestionProgressPatch{TimeSpentSeconds: &seconds})
}

// SyncQuestionProgress folds a client-cached record into the stored one with
// MergeQuestionProgress and returns the authoritative result.
func (s *Service) SyncQuestionProgress(ctx context.Context, sessionID, questionID string, client models.QuestionProgress) (*QuestionResult, error) {
	if err := validateQuestion(sessionID, questionID); err != nil {
		return nil, err
	}
	if err := validatePatch(patchFrom(client)); err != nil {
		return nil, err
	}

	return s.mutateQuestion(ctx, "sync question progress", sessionID, func(st repository.Store) (*models.QuestionProgress, error) {
		stored, err := st.GetQuestionProgress(ctx, sessionID, questionID)
		if err != nil {
			return nil, err
		}
		base := models.QuestionProgress{SessionID: sessionID, QuestionID: questionID}
		if stored != nil {
			base = *stored
		}
		merged := MergeQuestionProgress(base, client)
		return st.UpsertQuestionProgress(ctx, sessionID, questionID, patchFrom(merged))
	})
}

func validateQuestion(sessionID, questionID string) error {
	if err := validateSession(sessionID); err != nil {
		return err
	}
	return validateID("question_id", questionID)
}

func validatePatch(p models.QuestionProgressPatch) error {
	if p.Empty() {
		return invalid("progress", "no fields to update")
	}
	if p.TimeSpentSeconds != nil && *p.TimeSpentSeconds < 0 {
		return invalid("time_spent_seconds", "must be >= 0")
	}
	if p.HintsRevealed != nil && *p.HintsRevealed < 0 {
		return invalid("hints_revealed", "must be >= 0")
	}
	if p.Notes != nil && len(*p.Notes) > MaxNotesBytes {
		return invalid("notes", "longer than %d bytes", MaxNotesBytes)
	}
	return nil
}
