package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/garnizeh/preptrack/internal/progress"
	"github.com/garnizeh/preptrack/internal/session"
	"github.com/garnizeh/preptrack/pkg/models"
)

type ProgressHandler struct {
	svc *progress.Service
}

func NewProgressHandler(svc *progress.Service) *ProgressHandler {
	return &ProgressHandler{svc: svc}
}

type hintRequest struct {
	HintsRevealed *int `json:"hints_revealed,omitempty"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type completeRequest struct {
	Completed *bool `json:"completed,omitempty"`
}

type timeSpentRequest struct {
	TimeSpentSeconds int64 `json:"time_spent_seconds"`
}

type expertCallRequest struct {
	Date string `json:"date"`
}

type resumeStyleRequest struct {
	Style models.ResumeStyle `json:"style"`
}

type projectSyncRequest struct {
	CompletedSteps    []int    `json:"completed_steps"`
	ReviewedQuestions []string `json:"reviewed_questions"`
}

func sessionID(r *http.Request) string {
	id, _ := session.FromContext(r.Context())
	return id
}

func (h *ProgressHandler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	agg, err := h.svc.GetAggregate(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, agg, http.StatusOK)
}

func (h *ProgressHandler) BookExpertCall(w http.ResponseWriter, r *http.Request) {
	var req expertCallRequest
	if err := decodeBody(r.Context(), r, "expert_call", &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		http.Error(w, "date must be RFC 3339", http.StatusBadRequest)
		return
	}

	agg, err := h.svc.BookExpertCall(r.Context(), sessionID(r), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, agg, http.StatusOK)
}

func (h *ProgressHandler) GetQuestionProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetQuestionProgress(r.Context(), sessionID(r), mux.Vars(r)["questionID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, p, http.StatusOK)
}

func (h *ProgressHandler) UpsertQuestionProgress(w http.ResponseWriter, r *http.Request) {
	var patch models.QuestionProgressPatch
	if err := decodeBody(r.Context(), r, "question_patch", &patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.svc.UpsertQuestionProgress(r.Context(), sessionID(r), mux.Vars(r)["questionID"], patch)
	h.questionResult(w, r, res, err)
}

// RevealHint accepts an optional body; without one the next hint is revealed.
func (h *ProgressHandler) RevealHint(w http.ResponseWriter, r *http.Request) {
	var req hintRequest
	if err := decodeBody(r.Context(), r, "hint", &req); err != nil && !errors.Is(err, errEmptyBody) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.svc.RevealHint(r.Context(), sessionID(r), mux.Vars(r)["questionID"], req.HintsRevealed)
	h.questionResult(w, r, res, err)
}

func (h *ProgressHandler) SaveNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decodeBody(r.Context(), r, "notes", &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.svc.SaveNotes(r.Context(), sessionID(r), mux.Vars(r)["questionID"], req.Notes)
	h.questionResult(w, r, res, err)
}

// MarkQuestionComplete defaults to completed=true when no body is sent.
func (h *ProgressHandler) MarkQuestionComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeBody(r.Context(), r, "complete", &req); err != nil && !errors.Is(err, errEmptyBody) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}

	res, err := h.svc.MarkQuestionComplete(r.Context(), sessionID(r), mux.Vars(r)["questionID"], completed)
	h.questionResult(w, r, res, err)
}

func (h *ProgressHandler) RecordTimeSpent(w http.ResponseWriter, r *http.Request) {
	var req timeSpentRequest
	if err := decodeBody(r.Context(), r, "time_spent", &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.svc.RecordTimeSpent(r.Context(), sessionID(r), mux.Vars(r)["questionID"], req.TimeSpentSeconds)
	h.questionResult(w, r, res, err)
}

func (h *ProgressHandler) SyncQuestionProgress(w http.ResponseWriter, r *http.Request) {
	var client models.QuestionProgress
	if err := decodeBody(r.Context(), r, "question_sync", &client); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.svc.SyncQuestionProgress(r.Context(), sessionID(r), mux.Vars(r)["questionID"], client)
	h.questionResult(w, r, res, err)
}

func (h *ProgressHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListProjects(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"items": ps}, http.StatusOK)
}

func (h *ProgressHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProject(r.Context(), sessionID(r), mux.Vars(r)["projectID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, p, http.StatusOK)
}

func (h *ProgressHandler) StartProject(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.StartProject(r.Context(), sessionID(r), mux.Vars(r)["projectID"])
	h.projectResult(w, r, res, err)
}

func (h *ProgressHandler) ToggleStep(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	step, err := strconv.Atoi(vars["step"])
	if err != nil {
		http.Error(w, "step must be an integer", http.StatusBadRequest)
		return
	}

	res, err := h.svc.ToggleStep(r.Context(), sessionID(r), vars["projectID"], step)
	h.projectResult(w, r, res, err)
}

func (h *ProgressHandler) ToggleReviewedQuestion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	res, err := h.svc.ToggleReviewedQuestion(r.Context(), sessionID(r), vars["projectID"], vars["qaID"])
	h.projectResult(w, r, res, err)
}

func (h *ProgressHandler) SelectResumeStyle(w http.ResponseWriter, r *http.Request) {
	var req resumeStyleRequest
	if err := decodeBody(r.Context(), r, "resume_style", &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.svc.SelectResumeStyle(r.Context(), sessionID(r), mux.Vars(r)["projectID"], req.Style)
	h.projectResult(w, r, res, err)
}

func (h *ProgressHandler) MarkBulletsCopied(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.MarkBulletsCopied(r.Context(), sessionID(r), mux.Vars(r)["projectID"])
	h.projectResult(w, r, res, err)
}

func (h *ProgressHandler) MarkProjectComplete(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.MarkProjectComplete(r.Context(), sessionID(r), mux.Vars(r)["projectID"])
	h.projectResult(w, r, res, err)
}

func (h *ProgressHandler) SyncProject(w http.ResponseWriter, r *http.Request) {
	var req projectSyncRequest
	if err := decodeBody(r.Context(), r, "project_sync", &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.svc.SyncProject(r.Context(), sessionID(r), mux.Vars(r)["projectID"], req.CompletedSteps, req.ReviewedQuestions)
	h.projectResult(w, r, res, err)
}

func (h *ProgressHandler) questionResult(w http.ResponseWriter, r *http.Request, res *progress.QuestionResult, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

func (h *ProgressHandler) projectResult(w http.ResponseWriter, r *http.Request, res *progress.ProjectResult, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}
