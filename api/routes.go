package api

import (
	"github.com/gorilla/mux"

	"github.com/garnizeh/preptrack/internal/config"
	"github.com/garnizeh/preptrack/internal/progress"
)

func SetupRoutes(cfg *config.Config, version, buildTime string, svc *progress.Service) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Create handlers
	systemHandler := &SystemHandler{}
	progressHandler := NewProgressHandler(svc)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")

	// API v1 session-scoped routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(SessionMiddleware(cfg.Session))

	apiV1.HandleFunc("/progress", progressHandler.GetAggregate).Methods("GET")
	apiV1.HandleFunc("/progress/expert-call", progressHandler.BookExpertCall).Methods("POST")

	// Question progress endpoints
	questions := apiV1.PathPrefix("/questions/{questionID}").Subrouter()
	questions.HandleFunc("/progress", progressHandler.GetQuestionProgress).Methods("GET")
	questions.HandleFunc("/progress", progressHandler.UpsertQuestionProgress).Methods("PATCH")
	questions.HandleFunc("/progress/sync", progressHandler.SyncQuestionProgress).Methods("POST")
	questions.HandleFunc("/hints", progressHandler.RevealHint).Methods("POST")
	questions.HandleFunc("/notes", progressHandler.SaveNotes).Methods("PUT")
	questions.HandleFunc("/complete", progressHandler.MarkQuestionComplete).Methods("POST")
	questions.HandleFunc("/time", progressHandler.RecordTimeSpent).Methods("POST")

	// Project completion endpoints
	apiV1.HandleFunc("/projects", progressHandler.ListProjects).Methods("GET")
	apiV1.HandleFunc("/projects/{projectID}", progressHandler.GetProject).Methods("GET")
	projects := apiV1.PathPrefix("/projects/{projectID}").Subrouter()
	projects.HandleFunc("/start", progressHandler.StartProject).Methods("POST")
	projects.HandleFunc("/steps/{step}/toggle", progressHandler.ToggleStep).Methods("POST")
	projects.HandleFunc("/questions/{qaID}/toggle", progressHandler.ToggleReviewedQuestion).Methods("POST")
	projects.HandleFunc("/resume-style", progressHandler.SelectResumeStyle).Methods("PUT")
	projects.HandleFunc("/bullets-copied", progressHandler.MarkBulletsCopied).Methods("POST")
	projects.HandleFunc("/complete", progressHandler.MarkProjectComplete).Methods("POST")
	projects.HandleFunc("/sync", progressHandler.SyncProject).Methods("POST")

	return r
}
