package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"examledger/internal/credential"
	"examledger/internal/exam"
	"examledger/internal/payment"
	"examledger/internal/platform/middleware"
	"examledger/pkg/domain"
	dErrors "examledger/pkg/domain-errors"
)

type createExamRequest struct {
	Code            string `json:"code"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	TotalQuestions  int    `json:"total_questions"`
	MinimumScore    int    `json:"minimum_score"`
	NativeCost      uint64 `json:"native_cost"`
	TokenCost       uint64 `json:"token_cost"`
	TokenName       string `json:"token_name"`
	TokenSymbol     string `json:"token_symbol"`

	// FeePaid is the native value attached to the call; it must equal the
	// registry's creation fee exactly.
	FeePaid uint64 `json:"fee_paid"`
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	caller := domain.Address(middleware.GetCaller(r.Context()))

	var req createExamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	cfg := exam.Config{
		Code:            domain.ExamCode(req.Code),
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		TotalQuestions:  req.TotalQuestions,
		MinimumScore:    req.MinimumScore,
		NativeCost:      payment.Amount(req.NativeCost),
		TokenCost:       payment.Amount(req.TokenCost),
	}
	tokenCfg := credential.Config{Name: req.TokenName, Symbol: req.TokenSymbol}

	record, err := h.registry.CreateExam(r.Context(), caller, payment.Amount(req.FeePaid), cfg, tokenCfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	code := domain.ExamCode(chi.URLParam(r, "code"))
	record, err := h.registry.GetExamByCode(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)
	result, err := h.registry.ListExams(r.Context(), page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListAvailable(w http.ResponseWriter, r *http.Request) {
	caller := domain.Address(middleware.GetCaller(r.Context()))
	records, err := h.registry.ListAvailableExams(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exams": records})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	participant := domain.Address(chi.URLParam(r, "address"))
	entries, err := h.registry.HistoryFor(r.Context(), participant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (h *Handler) handleVerifyCredential(w http.ResponseWriter, r *http.Request) {
	participant := domain.Address(chi.URLParam(r, "participant"))
	certificateID := domain.CertificateID(chi.URLParam(r, "certificateID"))
	view, err := h.registry.VerifyCredential(r.Context(), participant, certificateID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRegistryWithdraw(w http.ResponseWriter, r *http.Request) {
	caller := domain.Address(middleware.GetCaller(r.Context()))
	amount, err := h.registry.WithdrawFees(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"amount": uint64(amount)})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
