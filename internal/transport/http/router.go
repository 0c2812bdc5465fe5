// Package httptransport is the thin HTTP layer over the registry and exam
// instances. Handlers delegate to domain services without embedding
// business logic so transport concerns remain isolated.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"examledger/internal/platform/middleware"
	"examledger/internal/registry"
)

// Handler carries the wired services the routes dispatch into.
type Handler struct {
	logger    *slog.Logger
	registry  *registry.Service
	validator middleware.Validator
}

func NewHandler(reg *registry.Service, validator middleware.Validator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		registry:  reg,
		validator: validator,
	}
}

// NewRouter wires all endpoints. Verification and directory reads are
// public; anything acting as a ledger identity requires a bearer token.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.Logger(h.logger))

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Public verifier surface.
	r.Get("/exams", h.handleListExams)
	r.Get("/exams/{code}", h.handleGetExam)
	r.Get("/exams/{code}/tokens/{id}/uri", h.handleTokenURI)
	r.Get("/participants/{address}/history", h.handleHistory)
	r.Get("/credentials/{participant}/{certificateID}", h.handleVerifyCredential)

	// Caller-identified surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireCaller(h.validator, h.logger))
		r.Post("/exams", h.handleCreateExam)
		r.Get("/exams/available", h.handleListAvailable)
		r.Post("/exams/{code}/enroll", h.handleEnroll)
		r.Post("/exams/{code}/sponsor", h.handleSponsor)
		r.Post("/exams/{code}/submit", h.handleSubmit)
		r.Get("/exams/{code}/status", h.handleStatus)
		r.Put("/exams/{code}/credential-uri", h.handleSetCredentialURI)
		r.Post("/exams/{code}/withdraw", h.handleExamWithdraw)
		r.Post("/registry/withdraw", h.handleRegistryWithdraw)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
