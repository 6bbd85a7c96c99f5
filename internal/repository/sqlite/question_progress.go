package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/preptrack/pkg/models"
)

const questionProgressColumns = `session_id, question_id, completed, time_spent_seconds, notes, viewed_answer, hints_revealed, created, updated`

// GetQuestionProgress returns the stored row or nil when the pair has no activity yet.
func (r *SQLiteRepo) GetQuestionProgress(ctx context.Context, sessionID, questionID string) (*models.QuestionProgress, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+questionProgressColumns+` FROM question_progress WHERE session_id = ? AND question_id = ?`, sessionID, questionID)
	p, err := scanQuestionProgress(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get question progress: %w", err)
	}
	return p, nil
}

// UpsertQuestionProgress merges patch in a single statement. Absent patch fields bind as
// NULL and COALESCE back to the stored value; hints_revealed takes the larger of the two.
func (r *SQLiteRepo) UpsertQuestionProgress(ctx context.Context, sessionID, questionID string, patch models.QuestionProgressPatch) (*models.QuestionProgress, error) {
	ts := now()
	_, err := r.q.ExecContext(ctx, `
INSERT INTO question_progress (session_id, question_id, completed, time_spent_seconds, notes, viewed_answer, hints_revealed, created, updated)
VALUES (@session, @question, COALESCE(@completed, 0), COALESCE(@time_spent, 0), COALESCE(@notes, ''), COALESCE(@viewed, 0), COALESCE(@hints, 0), @now, @now)
ON CONFLICT (session_id, question_id) DO UPDATE SET
	completed          = COALESCE(@completed, completed),
	time_spent_seconds = COALESCE(@time_spent, time_spent_seconds),
	notes              = COALESCE(@notes, notes),
	viewed_answer      = COALESCE(@viewed, viewed_answer),
	hints_revealed     = MAX(hints_revealed, COALESCE(@hints, 0)),
	updated            = @now`,
		sql.Named("session", sessionID),
		sql.Named("question", questionID),
		sql.Named("completed", optBool(patch.Completed)),
		sql.Named("time_spent", optInt64(patch.TimeSpentSeconds)),
		sql.Named("notes", optString(patch.Notes)),
		sql.Named("viewed", optBool(patch.ViewedAnswer)),
		sql.Named("hints", optInt(patch.HintsRevealed)),
		sql.Named("now", ts),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert question progress: %w", err)
	}

	p, err := r.GetQuestionProgress(ctx, sessionID, questionID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("upsert question progress: row %s/%s vanished", sessionID, questionID)
	}
	return p, nil
}

func scanQuestionProgress(row *sql.Row) (*models.QuestionProgress, error) {
	var p models.QuestionProgress
	if err := row.Scan(&p.SessionID, &p.QuestionID, &p.Completed, &p.TimeSpentSeconds, &p.Notes, &p.ViewedAnswer, &p.HintsRevealed, &p.Created, &p.Updated); err != nil {
		return nil, err
	}
	return &p, nil
}
