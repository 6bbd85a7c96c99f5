package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/preptrack/pkg/models"
)

func (r *SQLiteRepo) GetAggregate(ctx context.Context, sessionID string) (*models.AggregateProgress, error) {
	row := r.q.QueryRowContext(ctx, `
SELECT session_id, readiness_score, status, resume_bullets_count, resume_last_updated,
       total_questions_reviewed, expert_call_booked, expert_call_date, updated
FROM aggregate_progress WHERE session_id = ?`, sessionID)

	var (
		a             models.AggregateProgress
		status        string
		resumeUpdated sql.NullInt64
		callDate      sql.NullInt64
	)
	if err := row.Scan(&a.SessionID, &a.ReadinessScore, &status, &a.ResumeBulletsCount, &resumeUpdated,
		&a.TotalQuestionsReviewed, &a.ExpertCallBooked, &callDate, &a.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get aggregate: %w", err)
	}
	a.Status = models.ReadinessStatus(status)
	a.ResumeLastUpdated = fromMillis(resumeUpdated)
	a.ExpertCallDate = fromMillis(callDate)
	return &a, nil
}

func (r *SQLiteRepo) SaveAggregate(ctx context.Context, a *models.AggregateProgress) error {
	if a == nil {
		return fmt.Errorf("aggregate is nil")
	}

	ts := now()
	_, err := r.q.ExecContext(ctx, `
INSERT INTO aggregate_progress (session_id, readiness_score, status, resume_bullets_count, resume_last_updated,
                                total_questions_reviewed, expert_call_booked, expert_call_date, updated)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (session_id) DO UPDATE SET
	readiness_score          = excluded.readiness_score,
	status                   = excluded.status,
	resume_bullets_count     = excluded.resume_bullets_count,
	resume_last_updated      = excluded.resume_last_updated,
	total_questions_reviewed = excluded.total_questions_reviewed,
	expert_call_booked       = excluded.expert_call_booked,
	expert_call_date         = excluded.expert_call_date,
	updated                  = excluded.updated`,
		a.SessionID, a.ReadinessScore, string(a.Status), a.ResumeBulletsCount, toMillis(a.ResumeLastUpdated),
		a.TotalQuestionsReviewed, a.ExpertCallBooked, toMillis(a.ExpertCallDate), ts)
	if err != nil {
		return fmt.Errorf("save aggregate: %w", err)
	}
	a.Updated = ts
	return nil
}

// RollupProjects counts straight from the source rows. Reviewed questions are one row per
// (project, question), so COUNT(*) is the sum of the per-project set sizes.
func (r *SQLiteRepo) RollupProjects(ctx context.Context, sessionID string) (models.ProjectRollup, error) {
	var (
		out           models.ProjectRollup
		lastCompleted sql.NullInt64
	)
	row := r.q.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM project_completions WHERE session_id = @s AND status = 'completed'),
	(SELECT COUNT(*) FROM project_reviewed_questions WHERE session_id = @s),
	(SELECT MAX(completed_at) FROM project_completions WHERE session_id = @s AND status = 'completed')`,
		sql.Named("s", sessionID))
	if err := row.Scan(&out.CompletedProjects, &out.TotalQuestionsReviewed, &lastCompleted); err != nil {
		return models.ProjectRollup{}, fmt.Errorf("rollup projects: %w", err)
	}
	out.LastCompletedAt = fromMillis(lastCompleted)
	return out, nil
}

func (r *SQLiteRepo) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
SELECT session_id FROM question_progress
UNION SELECT session_id FROM project_completions
UNION SELECT session_id FROM aggregate_progress
ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
