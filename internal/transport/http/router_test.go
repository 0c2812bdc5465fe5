package httptransport

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"examledger/internal/events"
	"examledger/internal/exam"
	"examledger/internal/payment"
	"examledger/internal/platform/token"
	"examledger/internal/registry"
	"examledger/pkg/domain"
	"examledger/pkg/testutil"
)

const (
	ownerAddr   = "owner:root"
	creatorAddr = "user:alice"
	studentAddr = "user:bob"
)

type RouterSuite struct {
	suite.Suite
	native *payment.MemoryLedger
	rail   *payment.MemoryLedger
	svc    *registry.Service
	tokens *token.Manager
	router http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	log := slog.New(slog.DiscardHandler)
	s.native = payment.NewMemoryLedger()
	s.rail = payment.NewMemoryLedger()
	sink := events.NewMemorySink()

	svc, err := registry.NewService(registry.Params{
		Owner:         ownerAddr,
		CreationFee:   1,
		CredentialURI: "https://meta.example/cred",
		Native:        s.native,
		Rail:          s.rail,
		Deployer: registry.NewTemplateDeployer(exam.Template{
			Native: s.native,
			Events: sink,
			Logger: log,
		}),
		Store:  registry.NewMemoryStore(),
		Events: sink,
		Logger: log,
	})
	s.Require().NoError(err)
	s.svc = svc

	s.tokens = token.NewManager("test-signing-key", time.Hour)
	s.router = NewRouter(NewHandler(svc, s.tokens, log))

	s.native.Credit(creatorAddr, 100)
	s.native.Credit(studentAddr, 100)
	s.rail.Credit(studentAddr, 100)
}

func (s *RouterSuite) authorize(req *http.Request, address string) *http.Request {
	signed, err := s.tokens.Issue(address)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+signed)
	return req
}

func (s *RouterSuite) createExam(code string) {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/exams", map[string]any{
		"code":          code,
		"title":         "Exam " + code,
		"description":   "Covers " + code,
		"minimum_score": 70,
		"native_cost":   1,
		"token_cost":    2,
		"token_name":    code + " Credential",
		"token_symbol":  "CRD",
		"fee_paid":      1,
	})
	rr := testutil.DoRequest(s.router, s.authorize(req, creatorAddr))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
}

func (s *RouterSuite) enroll(code string) {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/exams/"+code+"/enroll", map[string]any{
		"method": "native",
		"value":  1,
	})
	rr := testutil.DoRequest(s.router, s.authorize(req, studentAddr))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
}

// ============================================================
// Authentication boundary
// ============================================================

func (s *RouterSuite) TestAuthRequired() {
	s.Run("missing token is rejected", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/exams", map[string]any{})
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("garbage token is rejected", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/exams", map[string]any{})
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("public reads need no token", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/exams", nil)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusOK, rr.Code)
	})
}

func (s *RouterSuite) TestHealth() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusOK, rr.Code)

	var body map[string]string
	testutil.DecodeJSON(s.T(), rr, &body)
	s.Equal("ok", body["status"])
}

// ============================================================
// Exam directory
// ============================================================

func (s *RouterSuite) TestCreateAndGetExam() {
	s.createExam("MATH101")

	s.Run("get by code", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/exams/MATH101", nil))
		s.Require().Equal(http.StatusOK, rr.Code)

		var record exam.Record
		testutil.DecodeJSON(s.T(), rr, &record)
		s.Equal(domain.ExamCode("MATH101"), record.Config.Code)
		s.Equal(domain.Address(creatorAddr), record.Creator)
	})

	s.Run("missing code is 404", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/exams/GHOST99", nil))
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("duplicate code is 409 with the stable code", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/exams", map[string]any{
			"code": "MATH101", "title": "Algebra Again", "minimum_score": 70,
			"token_name": "Dup", "token_symbol": "DUP", "fee_paid": 1,
		})
		rr := testutil.DoRequest(s.router, s.authorize(req, creatorAddr))
		s.Equal(http.StatusConflict, rr.Code)

		var body map[string]string
		testutil.DecodeJSON(s.T(), rr, &body)
		s.Equal("duplicate_code", body["error"])
	})
}

func (s *RouterSuite) TestListExamsPagination() {
	s.createExam("MATH101")
	s.createExam("CHEM200")

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/exams?page=1&page_size=1", nil))
	s.Require().Equal(http.StatusOK, rr.Code)

	var page registry.Page
	testutil.DecodeJSON(s.T(), rr, &page)
	s.Len(page.Exams, 1)
	s.Equal(2, page.TotalPages)
	s.True(page.HasNext)
}

// ============================================================
// Enrollment and submission
// ============================================================

func (s *RouterSuite) TestEnrollAndSubmit() {
	s.createExam("MATH101")
	s.enroll("MATH101")

	s.Run("wrong fee maps to 402", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/exams/MATH101/enroll", map[string]any{
			"method": "native", "value": 5,
		})
		other := s.authorize(req, "user:carol")
		rr := testutil.DoRequest(s.router, other)
		s.Equal(http.StatusPaymentRequired, rr.Code)
	})

	s.Run("passing submit returns the credential identifiers", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/exams/MATH101/submit", map[string]any{
			"score": 85, "correct_answers": 17, "time_taken": "40m", "submitted_at": "2026-08-30T10:00:00Z",
		})
		rr := testutil.DoRequest(s.router, s.authorize(req, studentAddr))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

		var body map[string]any
		testutil.DecodeJSON(s.T(), rr, &body)
		s.Equal("passed", body["status"])
		s.Equal("MATH1011", body["certificate_id"])
	})

	s.Run("resubmission maps to 409", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/exams/MATH101/submit", map[string]any{"score": 90})
		rr := testutil.DoRequest(s.router, s.authorize(req, studentAddr))
		s.Equal(http.StatusConflict, rr.Code)
	})

	s.Run("status endpoint reflects the terminal state", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/exams/MATH101/status", nil)
		rr := testutil.DoRequest(s.router, s.authorize(req, studentAddr))
		s.Require().Equal(http.StatusOK, rr.Code)

		var body map[string]any
		testutil.DecodeJSON(s.T(), rr, &body)
		s.Equal("passed", body["status"])
	})
}

// ============================================================
// Verification surface
// ============================================================

func (s *RouterSuite) TestVerifyCredential() {
	s.createExam("MATH101")
	s.enroll("MATH101")

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/exams/MATH101/submit", map[string]any{
		"score": 85, "submitted_at": "2026-08-30T10:00:00Z",
	})
	rr := testutil.DoRequest(s.router, s.authorize(req, studentAddr))
	s.Require().Equal(http.StatusOK, rr.Code)

	s.Run("valid credential resolves publicly", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/credentials/"+studentAddr+"/MATH1011", nil))
		s.Require().Equal(http.StatusOK, rr.Code)

		var view registry.CertificateView
		testutil.DecodeJSON(s.T(), rr, &view)
		s.Equal(domain.ExamCode("MATH101"), view.ExamCode)
		s.Equal("2026-08-30T10:00:00Z", view.SubmittedAt)
	})

	s.Run("unknown credential is 404", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/credentials/"+studentAddr+"/MATH1019", nil))
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("history lists the pass", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/participants/"+studentAddr+"/history", nil))
		s.Require().Equal(http.StatusOK, rr.Code)

		var body struct {
			History []registry.HistoryEntry `json:"history"`
		}
		testutil.DecodeJSON(s.T(), rr, &body)
		s.Require().Len(body.History, 1)
		s.Equal(domain.StatusPassed, body.History[0].Status)
	})
}

func (s *RouterSuite) TestTokenURI() {
	s.createExam("MATH101")
	s.enroll("MATH101")
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/exams/MATH101/submit", map[string]any{"score": 85})
	s.Require().Equal(http.StatusOK, testutil.DoRequest(s.router, s.authorize(req, studentAddr)).Code)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/exams/MATH101/tokens/1/uri", nil))
	s.Require().Equal(http.StatusOK, rr.Code)

	var body map[string]string
	testutil.DecodeJSON(s.T(), rr, &body)
	s.Equal("https://meta.example/cred", body["uri"])
}

// ============================================================
// Withdrawals
// ============================================================

func (s *RouterSuite) TestWithdrawals() {
	s.createExam("MATH101")
	s.enroll("MATH101")

	s.Run("exam owner sweeps enrollment fees", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/exams/MATH101/withdraw", map[string]any{"currency": "native"})
		rr := testutil.DoRequest(s.router, s.authorize(req, creatorAddr))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

		var body map[string]uint64
		testutil.DecodeJSON(s.T(), rr, &body)
		s.Equal(uint64(1), body["amount"])
	})

	s.Run("non-owner withdrawal maps to 403", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/exams/MATH101/withdraw", map[string]any{"currency": "native"})
		rr := testutil.DoRequest(s.router, s.authorize(req, studentAddr))
		s.Equal(http.StatusForbidden, rr.Code)
	})

	s.Run("registry owner sweeps creation fees", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registry/withdraw", nil)
		rr := testutil.DoRequest(s.router, s.authorize(req, ownerAddr))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

		var body map[string]uint64
		testutil.DecodeJSON(s.T(), rr, &body)
		s.Equal(uint64(1), body["amount"])
	})
}
