package registry

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"examledger/internal/credential"
	"examledger/internal/events"
	"examledger/internal/exam"
	"examledger/internal/payment"
	"examledger/pkg/domain"
	dErrors "examledger/pkg/domain-errors"
)

const (
	registryOwner = domain.Address("owner:root")
	creator       = domain.Address("user:alice")
	student       = domain.Address("user:bob")
	creationFee   = payment.Amount(1)
)

type ServiceSuite struct {
	suite.Suite
	ctx    context.Context
	native *payment.MemoryLedger
	rail   *payment.MemoryLedger
	sink   *events.MemorySink
	store  *MemoryStore
	svc    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.native = payment.NewMemoryLedger()
	s.rail = payment.NewMemoryLedger()
	s.sink = events.NewMemorySink()
	s.store = NewMemoryStore()

	log := slog.New(slog.DiscardHandler)
	svc, err := NewService(Params{
		Owner:         registryOwner,
		CreationFee:   creationFee,
		CredentialURI: "https://meta.example/cred",
		Native:        s.native,
		Rail:          s.rail,
		Deployer: NewTemplateDeployer(exam.Template{
			Native: s.native,
			Events: s.sink,
			Logger: log,
		}),
		Store:  s.store,
		Events: s.sink,
		Logger: log,
	})
	s.Require().NoError(err)
	s.svc = svc

	s.native.Credit(creator, 100)
	s.native.Credit(student, 100)
	s.rail.Credit(student, 100)
}

func (s *ServiceSuite) createExam(code string, nativeCost, tokenCost payment.Amount, minScore int) exam.Record {
	record, err := s.svc.CreateExam(s.ctx, creator, creationFee, exam.Config{
		Code:            domain.ExamCode(code),
		Title:           "Exam " + code,
		Description:     "Covers " + code,
		DurationMinutes: 60,
		TotalQuestions:  20,
		MinimumScore:    minScore,
		NativeCost:      nativeCost,
		TokenCost:       tokenCost,
	}, credential.Config{Name: code + " Credential", Symbol: code[:3]})
	s.Require().NoError(err)
	return record
}

// ============================================================
// Exam creation
// ============================================================

func (s *ServiceSuite) TestCreateExam() {
	record := s.createExam("MATH101", 1, 2, 70)

	s.Run("record carries the instance address", func() {
		s.NotEmpty(record.Instance)
		s.Equal(creator, record.Creator)
		s.False(record.CreatedAt.IsZero())
	})

	s.Run("creation fee lands on the registry account", func() {
		s.Equal(creationFee, s.native.BalanceOf(s.ctx, s.svc.Address()))
		s.Equal(payment.Amount(99), s.native.BalanceOf(s.ctx, creator))
	})

	s.Run("exam is retrievable by code", func() {
		got, err := s.svc.GetExamByCode(s.ctx, "MATH101")
		s.Require().NoError(err)
		s.Equal(record.Instance, got.Instance)
	})

	s.Run("live instance handle is available", func() {
		instance, err := s.svc.InstanceByCode("MATH101")
		s.Require().NoError(err)
		s.Equal(record.Instance, instance.Address())
	})

	s.Run("creation event emitted once", func() {
		s.Len(s.sink.OfType(events.TypeExamCreated), 1)
	})
}

func (s *ServiceSuite) TestCreateExamRejections() {
	s.createExam("MATH101", 1, 2, 70)

	cases := []struct {
		name string
		fn   func() error
		code dErrors.Code
	}{
		{
			name: "duplicate code",
			fn: func() error {
				_, err := s.svc.CreateExam(s.ctx, creator, creationFee, exam.Config{
					Code: "MATH101", Title: "Algebra Again", MinimumScore: 70, NativeCost: 1,
				}, credential.Config{Name: "Dup", Symbol: "DUP"})
				return err
			},
			code: dErrors.CodeDuplicateCode,
		},
		{
			name: "short code",
			fn: func() error {
				_, err := s.svc.CreateExam(s.ctx, creator, creationFee, exam.Config{
					Code: "AB", Title: "Too Short", MinimumScore: 50, NativeCost: 1,
				}, credential.Config{Name: "Short", Symbol: "SHT"})
				return err
			},
			code: dErrors.CodeValidation,
		},
		{
			name: "minimum score above 100",
			fn: func() error {
				_, err := s.svc.CreateExam(s.ctx, creator, creationFee, exam.Config{
					Code: "BIO200", Title: "Biology Intro", MinimumScore: 101, NativeCost: 1,
				}, credential.Config{Name: "Bio", Symbol: "BIO"})
				return err
			},
			code: dErrors.CodeValidation,
		},
		{
			name: "wrong creation fee",
			fn: func() error {
				_, err := s.svc.CreateExam(s.ctx, creator, creationFee+1, exam.Config{
					Code: "BIO200", Title: "Biology Intro", MinimumScore: 50, NativeCost: 1,
				}, credential.Config{Name: "Bio", Symbol: "BIO"})
				return err
			},
			code: dErrors.CodeInsufficientFee,
		},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			before := s.native.BalanceOf(s.ctx, creator)
			err := tc.fn()
			s.True(dErrors.Is(err, tc.code), "got %v", err)
			s.Equal(before, s.native.BalanceOf(s.ctx, creator), "no fee charged on failure")
		})
	}
}

// ============================================================
// Listing and pagination
// ============================================================

func (s *ServiceSuite) TestListExams() {
	codes := make([]domain.ExamCode, 0, 5)
	for i := 0; i < 5; i++ {
		code := domain.ExamCode(fmt.Sprintf("EXAM%03d", i))
		s.createExam(string(code), 1, 1, 50)
		codes = append(codes, code)
	}

	s.Run("pages concatenate to creation order", func() {
		var seen []domain.ExamCode
		page, err := s.svc.ListExams(s.ctx, 1, 2)
		s.Require().NoError(err)
		s.Equal(3, page.TotalPages)
		s.False(page.HasPrev)
		s.True(page.HasNext)
		for p := 1; p <= page.TotalPages; p++ {
			pg, err := s.svc.ListExams(s.ctx, p, 2)
			s.Require().NoError(err)
			for _, r := range pg.Exams {
				seen = append(seen, r.Config.Code)
			}
		}
		s.Equal(codes, seen)
	})

	s.Run("last page has no next", func() {
		page, err := s.svc.ListExams(s.ctx, 3, 2)
		s.Require().NoError(err)
		s.Len(page.Exams, 1)
		s.True(page.HasPrev)
		s.False(page.HasNext)
	})

	s.Run("page past the end is empty, not an error", func() {
		page, err := s.svc.ListExams(s.ctx, 9, 2)
		s.Require().NoError(err)
		s.Empty(page.Exams)
	})

	s.Run("page zero is invalid", func() {
		_, err := s.svc.ListExams(s.ctx, 0, 2)
		s.True(dErrors.Is(err, dErrors.CodeInvalidPage))
	})
}

func (s *ServiceSuite) TestListAvailableExams() {
	s.createExam("MATH101", 1, 1, 70)
	s.createExam("CHEM200", 1, 1, 50)
	s.createExam("PHYS300", 1, 1, 60)

	instance, err := s.svc.InstanceByCode("MATH101")
	s.Require().NoError(err)
	s.Require().NoError(instance.EnrollNative(s.ctx, student, 1))

	s.Run("enrolled exams stay available until submitted", func() {
		available, err := s.svc.ListAvailableExams(s.ctx, student)
		s.Require().NoError(err)
		s.Len(available, 3)
	})

	s.Run("submitted exams drop out", func() {
		_, err := instance.SubmitResult(s.ctx, student, exam.Result{Score: 90})
		s.Require().NoError(err)
		available, err := s.svc.ListAvailableExams(s.ctx, student)
		s.Require().NoError(err)
		s.Len(available, 2)
		for _, r := range available {
			s.NotEqual(domain.ExamCode("MATH101"), r.Config.Code)
		}
	})
}

// ============================================================
// Transition reporting and authorization
// ============================================================

func (s *ServiceSuite) TestRecordTransitionUnauthorized() {
	s.createExam("MATH101", 1, 1, 70)

	// A reporter the registry never deployed must be turned away even when
	// it names a real exam code.
	err := s.svc.RecordTransition(s.ctx, "exam:rogue", student, "MATH101", exam.Result{}, domain.StatusEnrolled, "")
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))

	history, err := s.svc.HistoryFor(s.ctx, student)
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *ServiceSuite) TestRecordTransitionUnknownExam() {
	record := s.createExam("MATH101", 1, 1, 70)

	err := s.svc.RecordTransition(s.ctx, record.Instance, student, "GHOST99", exam.Result{}, domain.StatusEnrolled, "")
	s.True(dErrors.Is(err, dErrors.CodeUnknownExam))
}

// ============================================================
// End-to-end lifecycles
// ============================================================

func (s *ServiceSuite) TestPassingLifecycle() {
	s.createExam("MATH101", 1, 2, 70)
	instance, err := s.svc.InstanceByCode("MATH101")
	s.Require().NoError(err)

	s.Require().NoError(instance.EnrollNative(s.ctx, student, 1))

	status, err := instance.SubmitResult(s.ctx, student, exam.Result{
		Score:          85,
		CorrectAnswers: 17,
		TimeTaken:      "40m",
		SubmittedAt:    "2026-08-30T10:00:00Z",
	})
	s.Require().NoError(err)
	s.Equal(domain.StatusPassed, status)

	s.Run("history reflects the pass with the full result", func() {
		history, err := s.svc.HistoryFor(s.ctx, student)
		s.Require().NoError(err)
		s.Require().Len(history, 1)
		s.Equal(domain.StatusPassed, history[0].Status)
		s.Equal(85, history[0].Result.Score)
		s.Equal("Exam MATH101", history[0].Title)
	})

	s.Run("credential verifies to the exam it was earned on", func() {
		certID, err := instance.TokenOf(student)
		s.Require().NoError(err)
		view, err := s.svc.VerifyCredential(s.ctx, student, domain.CertificateID(fmt.Sprintf("MATH101%d", certID)))
		s.Require().NoError(err)
		s.Equal(student, view.Participant)
		s.Equal(domain.ExamCode("MATH101"), view.ExamCode)
		s.Equal("Exam MATH101", view.ExamTitle)
		s.Equal("2026-08-30T10:00:00Z", view.SubmittedAt)
	})

	s.Run("lifecycle events emitted exactly once each", func() {
		s.Len(s.sink.OfType(events.TypeParticipantEnrolled), 1)
		s.Len(s.sink.OfType(events.TypeExamSubmitted), 1)
		s.Len(s.sink.OfType(events.TypeCredentialLinked), 1)
	})
}

func (s *ServiceSuite) TestFailingLifecycle() {
	s.createExam("MATH101", 1, 2, 70)
	instance, err := s.svc.InstanceByCode("MATH101")
	s.Require().NoError(err)

	s.Require().NoError(instance.EnrollNative(s.ctx, student, 1))

	status, err := instance.SubmitResult(s.ctx, student, exam.Result{Score: 50, CorrectAnswers: 10})
	s.Require().NoError(err)
	s.Equal(domain.StatusFailed, status)

	s.Run("no credential exists", func() {
		_, err := instance.TokenOf(student)
		s.Error(err)
		s.Empty(s.sink.OfType(events.TypeCredentialLinked))
	})

	s.Run("history records the fail", func() {
		history, err := s.svc.HistoryFor(s.ctx, student)
		s.Require().NoError(err)
		s.Require().Len(history, 1)
		s.Equal(domain.StatusFailed, history[0].Status)
	})

	s.Run("resubmission is rejected, even with a passing score", func() {
		_, err := instance.SubmitResult(s.ctx, student, exam.Result{Score: 95})
		s.True(dErrors.Is(err, dErrors.CodeAlreadySubmitted))
	})
}

func (s *ServiceSuite) TestWrongFeeLeavesStateUntouched() {
	s.createExam("MATH101", 1, 2, 70)
	instance, err := s.svc.InstanceByCode("MATH101")
	s.Require().NoError(err)

	err = instance.EnrollNative(s.ctx, student, 2)
	s.True(dErrors.Is(err, dErrors.CodeWrongFee))
	s.Equal(domain.StatusNotEnrolled, instance.Status(student))
	s.Equal(payment.Amount(100), s.native.BalanceOf(s.ctx, student))

	history, err := s.svc.HistoryFor(s.ctx, student)
	s.Require().NoError(err)
	s.Empty(history)

	// Retry with the exact fee succeeds.
	s.Require().NoError(instance.EnrollNative(s.ctx, student, 1))
	s.Equal(domain.StatusEnrolled, instance.Status(student))
}

func (s *ServiceSuite) TestTokenEnrollmentLifecycle() {
	s.createExam("MATH101", 1, 2, 70)
	instance, err := s.svc.InstanceByCode("MATH101")
	s.Require().NoError(err)

	s.Require().NoError(instance.EnrollWithToken(s.ctx, student, 2))
	s.Equal(payment.Amount(2), s.rail.BalanceOf(s.ctx, creator))

	status, err := instance.SubmitResult(s.ctx, student, exam.Result{Score: 70})
	s.Require().NoError(err)
	s.Equal(domain.StatusPassed, status)
}

// ============================================================
// Credential verification
// ============================================================

func (s *ServiceSuite) TestVerifyCredentialNotFound() {
	s.createExam("MATH101", 1, 2, 70)

	_, err := s.svc.VerifyCredential(s.ctx, student, "MATH1011")
	s.True(dErrors.Is(err, dErrors.CodeCredentialNotFound))
}

func (s *ServiceSuite) TestVerifyCredentialWrongHolder() {
	s.createExam("MATH101", 1, 2, 70)
	instance, err := s.svc.InstanceByCode("MATH101")
	s.Require().NoError(err)
	s.Require().NoError(instance.EnrollNative(s.ctx, student, 1))
	_, err = instance.SubmitResult(s.ctx, student, exam.Result{Score: 90})
	s.Require().NoError(err)

	// The certificate is real but belongs to someone else.
	_, err = s.svc.VerifyCredential(s.ctx, creator, "MATH1011")
	s.True(dErrors.Is(err, dErrors.CodeCredentialNotFound))
}

// ============================================================
// Fee withdrawal
// ============================================================

func (s *ServiceSuite) TestWithdrawFees() {
	s.createExam("MATH101", 1, 2, 70)
	s.createExam("CHEM200", 1, 2, 50)

	s.Run("non-owner is rejected", func() {
		_, err := s.svc.WithdrawFees(s.ctx, creator)
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	s.Run("owner sweeps accumulated creation fees", func() {
		amount, err := s.svc.WithdrawFees(s.ctx, registryOwner)
		s.Require().NoError(err)
		s.Equal(payment.Amount(2), amount)
		s.Equal(payment.Amount(2), s.native.BalanceOf(s.ctx, registryOwner))
		s.Len(s.sink.OfType(events.TypeFeesWithdrawn), 1)
	})

	s.Run("empty balance fails", func() {
		_, err := s.svc.WithdrawFees(s.ctx, registryOwner)
		s.True(dErrors.Is(err, dErrors.CodeNothingToWithdraw))
	})
}
