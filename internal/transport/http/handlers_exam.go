package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"examledger/internal/exam"
	"examledger/internal/payment"
	"examledger/internal/platform/middleware"
	"examledger/pkg/domain"
	dErrors "examledger/pkg/domain-errors"
)

func (h *Handler) instance(r *http.Request) (*exam.Instance, error) {
	code := domain.ExamCode(chi.URLParam(r, "code"))
	return h.registry.InstanceByCode(code)
}

type enrollRequest struct {
	// Method selects the payment path: "native" or "token".
	Method string `json:"method"`
	// Value is the attached native value for the native path.
	Value uint64 `json:"value"`
	// Amount is the token amount for the token path, in whole units.
	Amount uint64 `json:"amount"`
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	instance, err := h.instance(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caller := domain.Address(middleware.GetCaller(r.Context()))

	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	switch req.Method {
	case "native":
		err = instance.EnrollNative(r.Context(), caller, payment.Amount(req.Value))
	case "token":
		err = instance.EnrollWithToken(r.Context(), caller, payment.Amount(req.Amount))
	default:
		err = dErrors.New(dErrors.CodeValidation, "method must be native or token")
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": domain.StatusEnrolled.String()})
}

type sponsorRequest struct {
	Participant string `json:"participant"`
}

func (h *Handler) handleSponsor(w http.ResponseWriter, r *http.Request) {
	instance, err := h.instance(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caller := domain.Address(middleware.GetCaller(r.Context()))

	var req sponsorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if err := instance.EnrollByOwner(r.Context(), caller, domain.Address(req.Participant)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": domain.StatusEnrolled.String()})
}

type submitRequest struct {
	TimeTaken      string `json:"time_taken"`
	SubmittedAt    string `json:"submitted_at"`
	CorrectAnswers int    `json:"correct_answers"`
	Score          int    `json:"score"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	instance, err := h.instance(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caller := domain.Address(middleware.GetCaller(r.Context()))

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	result := exam.Result{
		TimeTaken:      req.TimeTaken,
		SubmittedAt:    req.SubmittedAt,
		CorrectAnswers: req.CorrectAnswers,
		Score:          req.Score,
	}
	status, err := instance.SubmitResult(r.Context(), caller, result)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"status": status.String()}
	if status == domain.StatusPassed {
		if id, err := instance.TokenOf(caller); err == nil {
			resp["token_id"] = id
			resp["certificate_id"] = instance.Record().Config.Code.String() + strconv.FormatUint(id, 10)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	instance, err := h.instance(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caller := domain.Address(middleware.GetCaller(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         instance.Status(caller).String(),
		"result":         instance.ResultOf(caller),
		"token_received": uint64(instance.TokenReceived()),
	})
}

func (h *Handler) handleTokenURI(w http.ResponseWriter, r *http.Request) {
	instance, err := h.instance(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "token id must be numeric"))
		return
	}
	uri, err := instance.Token().TokenURI(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uri": uri})
}

type setURIRequest struct {
	URI string `json:"uri"`
}

func (h *Handler) handleSetCredentialURI(w http.ResponseWriter, r *http.Request) {
	instance, err := h.instance(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caller := domain.Address(middleware.GetCaller(r.Context()))

	var req setURIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if err := instance.SetCredentialBaseURI(caller, req.URI); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type withdrawRequest struct {
	// Currency selects the balance to sweep: "native" or "token".
	Currency string `json:"currency"`
}

func (h *Handler) handleExamWithdraw(w http.ResponseWriter, r *http.Request) {
	instance, err := h.instance(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caller := domain.Address(middleware.GetCaller(r.Context()))

	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	var amount payment.Amount
	switch req.Currency {
	case "native":
		amount, err = instance.WithdrawNative(r.Context(), caller)
	case "token":
		amount, err = instance.WithdrawToken(r.Context(), caller)
	default:
		err = dErrors.New(dErrors.CodeValidation, "currency must be native or token")
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"amount": uint64(amount)})
}
