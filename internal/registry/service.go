// Package registry is the single source of truth for exam identity,
// creation, and cross-exam participant history. It is the only path by
// which an exam instance comes into existence, so every entry in its
// allow-list corresponds to exactly one directory entry.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"examledger/internal/credential"
	"examledger/internal/events"
	"examledger/internal/exam"
	"examledger/internal/payment"
	"examledger/internal/registry/cache"
	"examledger/internal/registry/metrics"
	"examledger/pkg/domain"
	dErrors "examledger/pkg/domain-errors"
)

// Service implements the registry. Registry-level operations that touch the
// directory or the fee balance (CreateExam, WithdrawFees, instance lookup)
// serialize on one mutex; transition reporting from instances relies on the
// store's own consistency plus each instance's per-participant ordering.
type Service struct {
	mu sync.Mutex

	addr        domain.Address
	owner       domain.Address
	creationFee payment.Amount
	baseURI     string

	native   payment.Rail
	rail     payment.Rail
	deployer Deployer
	store    Store
	cache    *cache.CertificateCache
	pub      events.Publisher
	met      *metrics.Metrics
	log      *slog.Logger

	// Live instance handles by code. Recognition is persisted in the store;
	// the handles themselves only exist in process.
	instances map[domain.ExamCode]*exam.Instance
}

// Params carries the service dependencies. Cache, Events, Metrics, and
// Logger are optional; everything else is required.
type Params struct {
	Address       domain.Address
	Owner         domain.Address
	CreationFee   payment.Amount
	CredentialURI string
	Native        payment.Rail
	Rail          payment.Rail
	Deployer      Deployer
	Store         Store
	Cache         *cache.CertificateCache
	Events        events.Publisher
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

func NewService(p Params) (*Service, error) {
	if p.Store == nil {
		return nil, errors.New("registry store is required")
	}
	if p.Deployer == nil {
		return nil, errors.New("deployer is required")
	}
	if p.Native == nil || p.Rail == nil {
		return nil, errors.New("native ledger and payment rail are required")
	}
	if p.Owner.IsZero() {
		return nil, errors.New("owner address is required")
	}
	addr := p.Address
	if addr.IsZero() {
		addr = "registry"
	}
	return &Service{
		addr:        addr,
		owner:       p.Owner,
		creationFee: p.CreationFee,
		baseURI:     p.CredentialURI,
		native:      p.Native,
		rail:        p.Rail,
		deployer:    p.Deployer,
		store:       p.Store,
		cache:       p.Cache,
		pub:         p.Events,
		met:         p.Metrics,
		log:         p.Logger,
		instances:   make(map[domain.ExamCode]*exam.Instance),
	}, nil
}

// Address returns the registry's ledger identity, the account creation fees
// accumulate on.
func (s *Service) Address() domain.Address { return s.addr }

// CreationFee returns the fixed native fee charged per exam creation.
func (s *Service) CreationFee() payment.Amount { return s.creationFee }

// CreateExam validates the configuration, charges the fixed creation fee,
// deploys a fresh instance from the template, and registers it. The new
// instance address is marked recognized, so it may report transitions from
// now on.
func (s *Service) CreateExam(ctx context.Context, caller domain.Address, value payment.Amount, cfg exam.Config, tokenCfg credential.Config) (exam.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := cfg.Validate(); err != nil {
		return exam.Record{}, err
	}
	if tokenCfg.Name == "" || tokenCfg.Symbol == "" {
		return exam.Record{}, dErrors.New(dErrors.CodeValidation, "credential token name and symbol are required")
	}
	if caller.IsZero() {
		return exam.Record{}, dErrors.New(dErrors.CodeValidation, "creator address is required")
	}
	if _, err := s.store.GetExam(ctx, cfg.Code); err == nil {
		return exam.Record{}, dErrors.New(dErrors.CodeDuplicateCode, "exam code already registered")
	}
	if value != s.creationFee {
		return exam.Record{}, dErrors.New(dErrors.CodeInsufficientFee, "creation fee must be paid exactly")
	}

	// Fee moves first: every validation that could reject the caller has
	// already run, and a later persistence failure refunds it.
	if err := s.native.Transfer(ctx, caller, s.addr, value); err != nil {
		return exam.Record{}, dErrors.Wrap(dErrors.CodeTransferFailed, "creation fee rejected", err)
	}

	record, err := s.deployAndRegister(ctx, caller, cfg, tokenCfg)
	if err != nil {
		if refundErr := s.native.Transfer(ctx, s.addr, caller, value); refundErr != nil && s.log != nil {
			s.log.ErrorContext(ctx, "creation fee refund failed",
				"exam_code", cfg.Code,
				"creator", caller,
				"error", refundErr,
			)
		}
		return exam.Record{}, err
	}

	s.met.IncExamCreated()
	s.emit(ctx, events.Event{
		Type:        events.TypeExamCreated,
		Instance:    record.Instance,
		Participant: caller,
		ExamCode:    record.Config.Code,
		Amount:      value,
	})
	return record, nil
}

func (s *Service) deployAndRegister(ctx context.Context, creator domain.Address, cfg exam.Config, tokenCfg credential.Config) (exam.Record, error) {
	instance, err := s.deployer.Deploy(ctx)
	if err != nil {
		return exam.Record{}, dErrors.Wrap(dErrors.CodeInternal, "deploy exam instance", err)
	}
	record := exam.Record{
		Config:      cfg,
		TokenConfig: tokenCfg,
		Creator:     creator,
		Instance:    instance.Address(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := instance.Initialize(s, s.rail, s.baseURI, record); err != nil {
		return exam.Record{}, dErrors.Wrap(dErrors.CodeInternal, "initialize exam instance", err)
	}
	if err := s.store.SaveExam(ctx, record); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return exam.Record{}, dErrors.New(dErrors.CodeDuplicateCode, "exam code already registered")
		}
		return exam.Record{}, dErrors.Wrap(dErrors.CodeInternal, "save exam record", err)
	}
	if err := s.store.Recognize(ctx, instance.Address()); err != nil {
		if delErr := s.store.DeleteExam(ctx, cfg.Code); delErr != nil && s.log != nil {
			s.log.ErrorContext(ctx, "directory rollback failed", "exam_code", cfg.Code, "error", delErr)
		}
		return exam.Record{}, dErrors.Wrap(dErrors.CodeInternal, "recognize exam instance", err)
	}
	s.instances[cfg.Code] = instance
	return record, nil
}

// GetExamByCode returns the full exam record for a registered code.
func (s *Service) GetExamByCode(ctx context.Context, code domain.ExamCode) (exam.Record, error) {
	record, err := s.store.GetExam(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return exam.Record{}, dErrors.New(dErrors.CodeNotFound, "exam code not registered")
		}
		return exam.Record{}, dErrors.Wrap(dErrors.CodeInternal, "get exam", err)
	}
	return record, nil
}

// InstanceByCode resolves the live instance handle for a registered code.
func (s *Service) InstanceByCode(code domain.ExamCode) (*exam.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if instance, ok := s.instances[code]; ok {
		return instance, nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "exam code not registered")
}

// ListExams returns one 1-indexed page of the directory in creation order.
// A page beyond the data yields an empty slice, not an error.
func (s *Service) ListExams(ctx context.Context, page, pageSize int) (Page, error) {
	if page < 1 || pageSize <= 0 {
		return Page{}, dErrors.New(dErrors.CodeInvalidPage, "page must be >= 1 and page size > 0")
	}
	records, total, err := s.store.ListExams(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return Page{}, dErrors.Wrap(dErrors.CodeInternal, "list exams", err)
	}
	totalPages := (total + pageSize - 1) / pageSize
	return Page{
		Exams:      records,
		Page:       page,
		TotalPages: totalPages,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	}, nil
}

// ListAvailableExams returns the exams the caller can still act on: those
// it has not enrolled in plus those awaiting its submission. Concluded
// exams are hidden.
func (s *Service) ListAvailableExams(ctx context.Context, caller domain.Address) ([]exam.Record, error) {
	const batch = 100
	available := []exam.Record{}
	for offset := 0; ; offset += batch {
		records, total, err := s.store.ListExams(ctx, offset, batch)
		if err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInternal, "list exams", err)
		}
		for _, record := range records {
			entry, err := s.store.HistoryEntry(ctx, caller, record.Config.Code)
			if errors.Is(err, ErrNotFound) || (err == nil && entry.Status == domain.StatusEnrolled) {
				available = append(available, record)
				continue
			}
			if err != nil {
				return nil, dErrors.Wrap(dErrors.CodeInternal, "read history", err)
			}
		}
		if offset+batch >= total {
			return available, nil
		}
	}
}

// RecordTransition is the write path for participant history. Only a
// recognized exam instance may call it, and only for a registered code. An
// Enrolled transition appends a fresh entry; terminal transitions mutate
// the entry already indexed for the pair, linking the certificate mapping
// in the same call when a pass minted one. A non-nil return means nothing
// was recorded: a partial write is compensated before the error surfaces,
// so the reporting instance can roll back its own state and retry cleanly.
func (s *Service) RecordTransition(ctx context.Context, instance, participant domain.Address, code domain.ExamCode, result exam.Result, status domain.ParticipantStatus, certificateID domain.CertificateID) error {
	record, err := s.authorizeInstance(ctx, instance, code)
	if err != nil {
		return err
	}
	if certificateID != "" && status != domain.StatusPassed {
		return dErrors.New(dErrors.CodeValidation, "certificate id requires a passed status")
	}
	if status == domain.StatusEnrolled {
		entry := HistoryEntry{
			Instance:    record.Instance,
			ExamCode:    code,
			Title:       record.Config.Title,
			Description: record.Config.Description,
			Result:      result,
			Status:      status,
		}
		if err := s.store.AppendHistory(ctx, participant, entry); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "append history", err)
		}
	} else {
		// An Enrolled entry must already exist; a miss here is a bug in the
		// reporting instance, not a user-facing condition.
		if err := s.store.UpdateHistory(ctx, participant, code, result, status); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "update history: terminal transition without enrollment", err)
		}
	}
	if certificateID != "" {
		if err := s.store.LinkCredential(ctx, participant, code, certificateID); err != nil {
			// Compensate the terminal write: the pair goes back to Enrolled
			// so the instance's retry does not trip already_submitted here.
			if revErr := s.store.UpdateHistory(ctx, participant, code, exam.Result{}, domain.StatusEnrolled); revErr != nil && s.log != nil {
				s.log.ErrorContext(ctx, "history compensation failed",
					"exam_code", code,
					"participant", participant,
					"error", revErr,
				)
			}
			return dErrors.Wrap(dErrors.CodeInternal, "link credential", err)
		}
		s.emit(ctx, events.Event{
			Type:          events.TypeCredentialLinked,
			Instance:      instance,
			Participant:   participant,
			ExamCode:      code,
			CertificateID: certificateID,
		})
	}
	s.met.IncHistoryWrite(status.String())
	return nil
}

func (s *Service) authorizeInstance(ctx context.Context, instance domain.Address, code domain.ExamCode) (exam.Record, error) {
	recognized, err := s.store.IsRecognized(ctx, instance)
	if err != nil {
		return exam.Record{}, dErrors.Wrap(dErrors.CodeInternal, "check allow-list", err)
	}
	if !recognized {
		return exam.Record{}, dErrors.New(dErrors.CodeUnauthorized, "caller is not a recognized exam instance")
	}
	record, err := s.store.GetExam(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return exam.Record{}, dErrors.New(dErrors.CodeUnknownExam, "exam code not registered")
		}
		return exam.Record{}, dErrors.Wrap(dErrors.CodeInternal, "get exam", err)
	}
	return record, nil
}

// VerifyCredential resolves a (participant, certificateId) pair to the
// certificate view verifiers display.
func (s *Service) VerifyCredential(ctx context.Context, participant domain.Address, certificateID domain.CertificateID) (CertificateView, error) {
	start := time.Now()
	defer func() { s.met.ObserveVerifyLatency(time.Since(start)) }()

	var view CertificateView
	if s.cache != nil {
		hit, err := s.cache.Get(ctx, participant, certificateID, &view)
		if err != nil && s.log != nil {
			s.log.WarnContext(ctx, "certificate cache read failed", "error", err)
		}
		if hit {
			return view, nil
		}
	}

	code, err := s.store.ExamForCertificate(ctx, participant, certificateID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return CertificateView{}, dErrors.New(dErrors.CodeCredentialNotFound, "credential not mapped")
		}
		return CertificateView{}, dErrors.Wrap(dErrors.CodeInternal, "resolve credential", err)
	}
	record, err := s.store.GetExam(ctx, code)
	if err != nil {
		return CertificateView{}, dErrors.Wrap(dErrors.CodeInternal, "get exam", err)
	}
	entry, err := s.store.HistoryEntry(ctx, participant, code)
	if err != nil {
		return CertificateView{}, dErrors.Wrap(dErrors.CodeInternal, "read history", err)
	}
	view = CertificateView{
		Participant:   participant,
		ExamCode:      code,
		ExamTitle:     record.Config.Title,
		Description:   record.Config.Description,
		CertificateID: certificateID,
		SubmittedAt:   entry.Result.SubmittedAt,
		Instance:      record.Instance,
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, participant, certificateID, view); err != nil && s.log != nil {
			s.log.WarnContext(ctx, "certificate cache write failed", "error", err)
		}
	}
	return view, nil
}

// HistoryFor returns everything a participant has done across all exams,
// in enrollment order.
func (s *Service) HistoryFor(ctx context.Context, participant domain.Address) ([]HistoryEntry, error) {
	entries, err := s.store.HistoryFor(ctx, participant)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "read history", err)
	}
	return entries, nil
}

// WithdrawFees sweeps the registry's accumulated native balance to the
// owner. No partial withdrawal: the whole balance moves or the operation
// fails and the caller retries it in full.
func (s *Service) WithdrawFees(ctx context.Context, caller domain.Address) (payment.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if caller != s.owner {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "only the registry owner may withdraw fees")
	}
	balance := s.native.BalanceOf(ctx, s.addr)
	if balance == 0 {
		return 0, dErrors.New(dErrors.CodeNothingToWithdraw, "nothing to withdraw")
	}
	if err := s.native.Transfer(ctx, s.addr, s.owner, balance); err != nil {
		return 0, dErrors.Wrap(dErrors.CodeTransferFailed, "fee withdrawal rejected", err)
	}
	s.met.IncFeesWithdrawn()
	s.emit(ctx, events.Event{
		Type:        events.TypeFeesWithdrawn,
		Participant: s.owner,
		Amount:      balance,
	})
	return balance, nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Emit(ctx, event); err != nil && s.log != nil {
		s.log.ErrorContext(ctx, "event emit failed",
			"type", event.Type,
			"exam_code", event.ExamCode,
			"error", err,
		)
	}
}

var _ exam.Recorder = (*Service)(nil)
