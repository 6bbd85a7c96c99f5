package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/preptrack/pkg/models"
)

const projectColumns = `session_id, project_id, status, started_at, completed_at, selected_resume_style, bullets_copied, created, updated`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepo) GetProjectCompletion(ctx context.Context, sessionID, projectID string) (*models.ProjectCompletion, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM project_completions WHERE session_id = ? AND project_id = ?`, sessionID, projectID)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get project completion: %w", err)
	}

	if p.CompletedSteps, err = r.listSteps(ctx, sessionID, projectID); err != nil {
		return nil, err
	}
	if p.ReviewedQuestions, err = r.listReviewed(ctx, sessionID, projectID); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjectCompletions returns every project row of the session ordered by project id,
// with their sets loaded.
func (r *SQLiteRepo) ListProjectCompletions(ctx context.Context, sessionID string) ([]models.ProjectCompletion, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+projectColumns+` FROM project_completions WHERE session_id = ? ORDER BY project_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list project completions: %w", err)
	}
	defer rows.Close()

	var out []models.ProjectCompletion
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project completion: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	steps, err := r.stepsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	reviewed, err := r.reviewedBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].CompletedSteps = nonNilInts(steps[out[i].ProjectID])
		out[i].ReviewedQuestions = nonNilStrings(reviewed[out[i].ProjectID])
	}

	return out, nil
}

func (r *SQLiteRepo) EnsureProjectCompletion(ctx context.Context, sessionID, projectID string) error {
	ts := now()
	if _, err := r.q.ExecContext(ctx, `INSERT INTO project_completions (session_id, project_id, status, created, updated) VALUES (?, ?, 'not-started', ?, ?) ON CONFLICT DO NOTHING`, sessionID, projectID, ts, ts); err != nil {
		return fmt.Errorf("ensure project completion: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) StartProjectCompletion(ctx context.Context, sessionID, projectID string, at time.Time) (bool, error) {
	ts := now()
	res, err := r.q.ExecContext(ctx, `
INSERT INTO project_completions (session_id, project_id, status, started_at, created, updated)
VALUES (?, ?, 'in-progress', ?, ?, ?)
ON CONFLICT (session_id, project_id) DO UPDATE SET
	status     = 'in-progress',
	started_at = COALESCE(started_at, excluded.started_at),
	updated    = excluded.updated
WHERE status = 'not-started'`,
		sessionID, projectID, at.UTC().UnixMilli(), ts, ts)
	if err != nil {
		return false, fmt.Errorf("start project completion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteRepo) ToggleStep(ctx context.Context, sessionID, projectID string, step int) (bool, error) {
	return r.toggleMember(ctx, "project_completed_steps", "step_index", sessionID, projectID, step)
}

func (r *SQLiteRepo) ToggleReviewedQuestion(ctx context.Context, sessionID, projectID, questionID string) (bool, error) {
	return r.toggleMember(ctx, "project_reviewed_questions", "question_id", sessionID, projectID, questionID)
}

// toggleMember removes the member if present, otherwise inserts it. Each member is its own
// row, so toggles of different members never overwrite each other.
func (r *SQLiteRepo) toggleMember(ctx context.Context, table, column, sessionID, projectID string, member any) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM `+table+` WHERE session_id = ? AND project_id = ? AND `+column+` = ?`, sessionID, projectID, member)
	if err != nil {
		return false, fmt.Errorf("toggle %s: %w", table, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	present := removed == 0
	if present {
		if _, err := r.q.ExecContext(ctx, `INSERT INTO `+table+` (session_id, project_id, `+column+`, created) VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`, sessionID, projectID, member, now()); err != nil {
			return false, fmt.Errorf("toggle %s: %w", table, err)
		}
	}

	if err := r.touchProject(ctx, sessionID, projectID); err != nil {
		return false, err
	}
	return present, nil
}

func (r *SQLiteRepo) AddSteps(ctx context.Context, sessionID, projectID string, steps []int) error {
	ts := now()
	for _, s := range steps {
		if _, err := r.q.ExecContext(ctx, `INSERT INTO project_completed_steps (session_id, project_id, step_index, created) VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`, sessionID, projectID, s, ts); err != nil {
			return fmt.Errorf("add step %d: %w", s, err)
		}
	}
	return r.touchProject(ctx, sessionID, projectID)
}

func (r *SQLiteRepo) AddReviewedQuestions(ctx context.Context, sessionID, projectID string, questionIDs []string) error {
	ts := now()
	for _, q := range questionIDs {
		if _, err := r.q.ExecContext(ctx, `INSERT INTO project_reviewed_questions (session_id, project_id, question_id, created) VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`, sessionID, projectID, q, ts); err != nil {
			return fmt.Errorf("add reviewed question %q: %w", q, err)
		}
	}
	return r.touchProject(ctx, sessionID, projectID)
}

// SetProjectStatus writes status and, when the row has none yet, completed_at. A
// completed row is never moved to another status here.
func (r *SQLiteRepo) SetProjectStatus(ctx context.Context, sessionID, projectID string, status models.ProjectStatus, completedAt *time.Time) error {
	_, err := r.q.ExecContext(ctx, `
UPDATE project_completions
SET status = ?, completed_at = COALESCE(completed_at, ?), updated = ?
WHERE session_id = ? AND project_id = ? AND (status != 'completed' OR ? = 'completed')`,
		string(status), toMillis(completedAt), now(), sessionID, projectID, string(status))
	if err != nil {
		return fmt.Errorf("set project status: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) SetResumeStyle(ctx context.Context, sessionID, projectID string, style models.ResumeStyle) error {
	if _, err := r.q.ExecContext(ctx, `UPDATE project_completions SET selected_resume_style = ?, updated = ? WHERE session_id = ? AND project_id = ?`, string(style), now(), sessionID, projectID); err != nil {
		return fmt.Errorf("set resume style: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) SetBulletsCopied(ctx context.Context, sessionID, projectID string) error {
	if _, err := r.q.ExecContext(ctx, `UPDATE project_completions SET bullets_copied = 1, updated = ? WHERE session_id = ? AND project_id = ?`, now(), sessionID, projectID); err != nil {
		return fmt.Errorf("set bullets copied: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) touchProject(ctx context.Context, sessionID, projectID string) error {
	if _, err := r.q.ExecContext(ctx, `UPDATE project_completions SET updated = ? WHERE session_id = ? AND project_id = ?`, now(), sessionID, projectID); err != nil {
		return fmt.Errorf("touch project: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) listSteps(ctx context.Context, sessionID, projectID string) ([]int, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT step_index FROM project_completed_steps WHERE session_id = ? AND project_id = ? ORDER BY step_index`, sessionID, projectID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	out := []int{}
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) listReviewed(ctx context.Context, sessionID, projectID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT question_id FROM project_reviewed_questions WHERE session_id = ? AND project_id = ? ORDER BY question_id`, sessionID, projectID)
	if err != nil {
		return nil, fmt.Errorf("list reviewed questions: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) stepsBySession(ctx context.Context, sessionID string) (map[string][]int, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT project_id, step_index FROM project_completed_steps WHERE session_id = ? ORDER BY project_id, step_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session steps: %w", err)
	}
	defer rows.Close()

	out := map[string][]int{}
	for rows.Next() {
		var project string
		var s int
		if err := rows.Scan(&project, &s); err != nil {
			return nil, err
		}
		out[project] = append(out[project], s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) reviewedBySession(ctx context.Context, sessionID string) (map[string][]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT project_id, question_id FROM project_reviewed_questions WHERE session_id = ? ORDER BY project_id, question_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session reviewed questions: %w", err)
	}
	defer rows.Close()

	out := map[string][]string{}
	for rows.Next() {
		var project, q string
		if err := rows.Scan(&project, &q); err != nil {
			return nil, err
		}
		out[project] = append(out[project], q)
	}
	return out, rows.Err()
}

func scanProject(row rowScanner) (*models.ProjectCompletion, error) {
	var (
		p           models.ProjectCompletion
		status      string
		startedAt   sql.NullInt64
		completedAt sql.NullInt64
		style       sql.NullString
	)
	if err := row.Scan(&p.SessionID, &p.ProjectID, &status, &startedAt, &completedAt, &style, &p.BulletsCopied, &p.Created, &p.Updated); err != nil {
		return nil, err
	}
	p.Status = models.ProjectStatus(status)
	p.StartedAt = fromMillis(startedAt)
	p.CompletedAt = fromMillis(completedAt)
	if style.Valid {
		s := models.ResumeStyle(style.String)
		p.SelectedResumeStyle = &s
	}
	return &p, nil
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
