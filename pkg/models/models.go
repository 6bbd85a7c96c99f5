package models

import (
	"slices"
	"time"
)

// Domain models matching the database schema in db/migrations/0001_init.sql

// ProjectStatus is the lifecycle state of a ProjectCompletion.
type ProjectStatus string

const (
	ProjectNotStarted       ProjectStatus = "not-started"
	ProjectInProgress       ProjectStatus = "in-progress"
	ProjectTutorialComplete ProjectStatus = "tutorial-complete"
	ProjectCompleted        ProjectStatus = "completed"
)

// ReadinessStatus summarizes an AggregateProgress score.
type ReadinessStatus string

const (
	ReadinessNotStarted ReadinessStatus = "not-started"
	ReadinessInProgress ReadinessStatus = "in-progress"
	ReadinessReady      ReadinessStatus = "ready"
)

// ResumeStyle is the flavor of resume bullets a user picked for a project.
type ResumeStyle string

const (
	ResumeTechnical ResumeStyle = "technical"
	ResumeImpact    ResumeStyle = "impact"
	ResumeFullStack ResumeStyle = "fullStack"
)

// Valid reports whether s is one of the known styles.
func (s ResumeStyle) Valid() bool {
	switch s {
	case ResumeTechnical, ResumeImpact, ResumeFullStack:
		return true
	}
	return false
}

type QuestionProgress struct {
	SessionID        string `json:"session_id" db:"session_id"`
	QuestionID       string `json:"question_id" db:"question_id"`
	Completed        bool   `json:"completed" db:"completed"`
	TimeSpentSeconds int64  `json:"time_spent_seconds" db:"time_spent_seconds"`
	Notes            string `json:"notes" db:"notes"`
	ViewedAnswer     bool   `json:"viewed_answer" db:"viewed_answer"`
	HintsRevealed    int    `json:"hints_revealed" db:"hints_revealed"`
	Created          int64  `json:"created,omitempty" db:"created"`
	Updated          int64  `json:"updated,omitempty" db:"updated"`
}

// QuestionProgressPatch carries the subset of fields an upsert sets. Nil means
// "leave as is".
type QuestionProgressPatch struct {
	Completed        *bool   `json:"completed,omitempty"`
	TimeSpentSeconds *int64  `json:"time_spent_seconds,omitempty"`
	Notes            *string `json:"notes,omitempty"`
	ViewedAnswer     *bool   `json:"viewed_answer,omitempty"`
	HintsRevealed    *int    `json:"hints_revealed,omitempty"`
}

// Empty reports whether the patch sets nothing.
func (p QuestionProgressPatch) Empty() bool {
	return p.Completed == nil && p.TimeSpentSeconds == nil && p.Notes == nil &&
		p.ViewedAnswer == nil && p.HintsRevealed == nil
}

// Apply merges p into q. Every field is last-write-wins except HintsRevealed, which
// only ever grows: a stale client must not hide hints the user has already seen.
func (q *QuestionProgress) Apply(p QuestionProgressPatch) {
	if p.Completed != nil {
		q.Completed = *p.Completed
	}
	if p.TimeSpentSeconds != nil {
		q.TimeSpentSeconds = *p.TimeSpentSeconds
	}
	if p.Notes != nil {
		q.Notes = *p.Notes
	}
	if p.ViewedAnswer != nil {
		q.ViewedAnswer = *p.ViewedAnswer
	}
	if p.HintsRevealed != nil {
		q.HintsRevealed = max(q.HintsRevealed, *p.HintsRevealed)
	}
}

type ProjectCompletion struct {
	SessionID           string        `json:"session_id" db:"session_id"`
	ProjectID           string        `json:"project_id" db:"project_id"`
	Status              ProjectStatus `json:"status" db:"status"`
	StartedAt           *time.Time    `json:"started_at,omitempty" db:"started_at"`
	CompletedAt         *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	CompletedSteps      []int         `json:"completed_steps" db:"-"`
	ReviewedQuestions   []string      `json:"reviewed_questions" db:"-"`
	SelectedResumeStyle *ResumeStyle  `json:"selected_resume_style,omitempty" db:"selected_resume_style"`
	BulletsCopied       bool          `json:"bullets_copied" db:"bullets_copied"`
	Created             int64         `json:"created,omitempty" db:"created"`
	Updated             int64         `json:"updated,omitempty" db:"updated"`
}

// HasStep reports whether step is in the completed set.
func (p *ProjectCompletion) HasStep(step int) bool {
	return slices.Contains(p.CompletedSteps, step)
}

// HasReviewed reports whether the interview question is in the reviewed set.
func (p *ProjectCompletion) HasReviewed(questionID string) bool {
	return slices.Contains(p.ReviewedQuestions, questionID)
}

type AggregateProgress struct {
	SessionID              string          `json:"session_id" db:"session_id"`
	ReadinessScore         int             `json:"readiness_score" db:"readiness_score"`
	Status                 ReadinessStatus `json:"status" db:"status"`
	ResumeBulletsCount     int             `json:"resume_bullets_count" db:"resume_bullets_count"`
	ResumeLastUpdated      *time.Time      `json:"resume_last_updated,omitempty" db:"resume_last_updated"`
	TotalQuestionsReviewed int             `json:"total_questions_reviewed" db:"total_questions_reviewed"`
	ExpertCallBooked       bool            `json:"expert_call_booked" db:"expert_call_booked"`
	ExpertCallDate         *time.Time      `json:"expert_call_date,omitempty" db:"expert_call_date"`
	Updated                int64           `json:"updated,omitempty" db:"updated"`
}

// ProjectRollup is what the aggregate needs to know about one session's projects.
type ProjectRollup struct {
	CompletedProjects      int
	TotalQuestionsReviewed int
	LastCompletedAt        *time.Time
}
