// Package exam owns the lifecycle of exactly one exam: its configuration,
// enrolled participants, submitted results, and credential issuance. Each
// instance is independent of every other; the registry is only consulted to
// report transitions and resolve the payment rail.
package exam

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"examledger/internal/credential"
	"examledger/internal/events"
	"examledger/internal/exam/metrics"
	"examledger/internal/payment"
	"examledger/pkg/domain"
	dErrors "examledger/pkg/domain-errors"
)

// Recorder is the slice of the registry an instance reports into. Only
// recognized instances may call it; the instance passes its own address as
// proof of identity. The call is the commit point of every state-changing
// operation: until it returns nil the instance treats the operation as not
// having happened and unwinds its local state.
type Recorder interface {
	// RecordTransition writes the participant's new status, and for a pass
	// additionally links the given certificate id. A non-empty certificateID
	// is only legal with StatusPassed.
	RecordTransition(ctx context.Context, instance, participant domain.Address, code domain.ExamCode, result Result, status domain.ParticipantStatus, certificateID domain.CertificateID) error
}

// Template is the descriptor a deployment clones new instances from. It
// carries the ambient collaborators every instance shares; per-exam identity
// arrives later through Initialize.
type Template struct {
	Native  payment.Rail
	Events  events.Publisher
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Instance is one deployed exam. Its state is uninitialized until
// Initialize is called exactly once.
type Instance struct {
	mu sync.Mutex

	addr   domain.Address
	native payment.Rail
	pub    events.Publisher
	met    *metrics.Metrics
	log    *slog.Logger

	initialized bool
	owner       domain.Address
	registry    Recorder
	rail        payment.Rail
	record      Record

	status  map[domain.Address]domain.ParticipantStatus
	results map[domain.Address]Result
	tokens  map[domain.Address]uint64

	token         *credential.Token
	tokenReceived payment.Amount
}

// NewFromTemplate constructs a fresh, independently addressed instance from
// the template. The result is inert until Initialize runs.
func NewFromTemplate(tpl Template) *Instance {
	return &Instance{
		addr:    domain.Address("exam:" + uuid.NewString()),
		native:  tpl.Native,
		pub:     tpl.Events,
		met:     tpl.Metrics,
		log:     tpl.Logger,
		status:  make(map[domain.Address]domain.ParticipantStatus),
		results: make(map[domain.Address]Result),
		tokens:  make(map[domain.Address]uint64),
	}
}

// Initialize sets the immutable identity fields and hands ownership to the
// exam's creator. Calling it twice fails; there is no reinitialization.
func (i *Instance) Initialize(registry Recorder, rail payment.Rail, baseURI string, record Record) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.initialized {
		return dErrors.New(dErrors.CodeValidation, "instance already initialized")
	}
	if registry == nil || rail == nil {
		return dErrors.New(dErrors.CodeValidation, "registry and payment rail are required")
	}
	record.Instance = i.addr
	i.registry = registry
	i.rail = rail
	i.record = record
	i.owner = record.Creator
	i.token = credential.NewToken(record.TokenConfig, baseURI)
	i.initialized = true
	return nil
}

// Address returns the instance's ledger identity.
func (i *Instance) Address() domain.Address { return i.addr }

// Owner returns the exam creator, who holds the owner-only entry points.
func (i *Instance) Owner() domain.Address {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.owner
}

// Record returns the exam identity this instance was initialized with.
func (i *Instance) Record() Record {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.record
}

// Status reports the participant's lifecycle position for this exam.
func (i *Instance) Status(participant domain.Address) domain.ParticipantStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	if s, ok := i.status[participant]; ok {
		return s
	}
	return domain.StatusNotEnrolled
}

// ResultOf returns the submitted result for a participant. Empty until a
// submission lands.
func (i *Instance) ResultOf(participant domain.Address) Result {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.results[participant]
}

// EnrollNative enrolls the caller, paying the configured native cost. The
// attached value must match the cost exactly.
func (i *Instance) EnrollNative(ctx context.Context, caller domain.Address, value payment.Amount) error {
	i.mu.Lock()
	if err := i.enrollGate(caller); err != nil {
		i.mu.Unlock()
		return err
	}
	if value != i.record.Config.NativeCost {
		i.mu.Unlock()
		return dErrors.New(dErrors.CodeWrongFee, "attached value must equal the native cost")
	}

	// Status first, transfer second: the rail may hand control to untrusted
	// code, which must never observe this participant as still enrollable.
	i.status[caller] = domain.StatusEnrolled
	i.results[caller] = Result{}
	i.mu.Unlock()

	if err := i.native.Transfer(ctx, caller, i.addr, value); err != nil {
		i.rollbackEnrollment(caller)
		return dErrors.Wrap(dErrors.CodeTransferFailed, "native payment rejected", err)
	}
	if err := i.finishEnrollment(ctx, caller, "native", value); err != nil {
		i.rollbackEnrollment(caller)
		i.refund(ctx, i.native, i.addr, caller, value)
		return err
	}
	return nil
}

// EnrollWithToken enrolls the caller, moving the configured token cost from
// the caller to the exam owner through the payment rail.
func (i *Instance) EnrollWithToken(ctx context.Context, caller domain.Address, amount payment.Amount) error {
	i.mu.Lock()
	if err := i.enrollGate(caller); err != nil {
		i.mu.Unlock()
		return err
	}
	if amount != i.record.Config.TokenCost {
		i.mu.Unlock()
		return dErrors.New(dErrors.CodeWrongAmount, "amount must equal the token cost")
	}
	scaled := amount * i.rail.Unit()
	owner := i.owner

	i.status[caller] = domain.StatusEnrolled
	i.results[caller] = Result{}
	i.mu.Unlock()

	if err := i.rail.TransferFrom(ctx, caller, owner, scaled); err != nil {
		i.rollbackEnrollment(caller)
		return dErrors.Wrap(dErrors.CodeTransferFailed, "token payment rejected", err)
	}

	i.mu.Lock()
	i.tokenReceived += scaled
	i.mu.Unlock()
	if err := i.finishEnrollment(ctx, caller, "token", amount); err != nil {
		i.rollbackEnrollment(caller)
		i.mu.Lock()
		i.tokenReceived -= scaled
		i.mu.Unlock()
		i.refund(ctx, i.rail, owner, caller, scaled)
		return err
	}
	return nil
}

// EnrollByOwner enrolls a participant without payment. Sponsored and free
// seats go through here.
func (i *Instance) EnrollByOwner(ctx context.Context, caller, participant domain.Address) error {
	i.mu.Lock()
	if !i.initialized {
		i.mu.Unlock()
		return dErrors.New(dErrors.CodeValidation, "instance not initialized")
	}
	if caller != i.owner {
		i.mu.Unlock()
		return dErrors.New(dErrors.CodeUnauthorized, "only the exam owner may sponsor enrollments")
	}
	if err := i.enrollGate(participant); err != nil {
		i.mu.Unlock()
		return err
	}
	i.status[participant] = domain.StatusEnrolled
	i.results[participant] = Result{}
	i.mu.Unlock()
	if err := i.finishEnrollment(ctx, participant, "sponsored", 0); err != nil {
		i.rollbackEnrollment(participant)
		return err
	}
	return nil
}

// enrollGate holds the shared enrollment preconditions. Caller holds i.mu.
func (i *Instance) enrollGate(participant domain.Address) error {
	if !i.initialized {
		return dErrors.New(dErrors.CodeValidation, "instance not initialized")
	}
	if participant.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "participant address is required")
	}
	if s, ok := i.status[participant]; ok && s != domain.StatusNotEnrolled {
		return dErrors.New(dErrors.CodeAlreadyEnrolled, "participant already enrolled")
	}
	return nil
}

func (i *Instance) rollbackEnrollment(participant domain.Address) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.status, participant)
	delete(i.results, participant)
}

// refund returns value moved by an operation whose registry report failed.
// A rejected refund only logs: the rollback of local state must not depend
// on the rail cooperating twice.
func (i *Instance) refund(ctx context.Context, rail payment.Rail, from, to domain.Address, amount payment.Amount) {
	if err := rail.Transfer(ctx, from, to, amount); err != nil && i.log != nil {
		i.log.ErrorContext(ctx, "refund after failed enrollment report",
			"exam_code", i.record.Config.Code,
			"participant", to,
			"amount", amount,
			"error", err,
		)
	}
}

func (i *Instance) finishEnrollment(ctx context.Context, participant domain.Address, path string, amount payment.Amount) error {
	code := i.record.Config.Code
	if err := i.registry.RecordTransition(ctx, i.addr, participant, code, Result{}, domain.StatusEnrolled, ""); err != nil {
		return fmt.Errorf("report enrollment: %w", err)
	}
	i.met.IncEnrollment(code.String(), path)
	i.emit(ctx, events.Event{
		Type:        events.TypeParticipantEnrolled,
		Instance:    i.addr,
		Participant: participant,
		ExamCode:    code,
		Status:      domain.StatusEnrolled,
		Amount:      amount,
	})
	return nil
}

// SubmitResult records the caller's outcome exactly once, decides pass or
// fail against the configured minimum score, and mints the credential on a
// pass. A second call for the same participant fails with already_submitted
// regardless of input.
func (i *Instance) SubmitResult(ctx context.Context, caller domain.Address, result Result) (domain.ParticipantStatus, error) {
	i.mu.Lock()
	if !i.initialized {
		i.mu.Unlock()
		return "", dErrors.New(dErrors.CodeValidation, "instance not initialized")
	}
	switch i.status[caller] {
	case domain.StatusEnrolled:
	case domain.StatusPassed, domain.StatusFailed:
		i.mu.Unlock()
		return "", dErrors.New(dErrors.CodeAlreadySubmitted, "result already submitted")
	default:
		i.mu.Unlock()
		return "", dErrors.New(dErrors.CodeNotEnrolled, "participant is not enrolled")
	}
	if result.Score < 0 || result.Score > 100 {
		i.mu.Unlock()
		return "", dErrors.New(dErrors.CodeScoreOutOfRange, "score must be between 0 and 100")
	}

	final := domain.StatusFailed
	if result.Score >= i.record.Config.MinimumScore {
		final = domain.StatusPassed
	}
	i.results[caller] = result
	i.status[caller] = final
	code := i.record.Config.Code

	var certificateID domain.CertificateID
	if final == domain.StatusPassed {
		id := i.token.Mint(caller)
		i.tokens[caller] = id
		certificateID = domain.CertificateID(code.String() + strconv.FormatUint(id, 10))
	}
	i.mu.Unlock()

	if err := i.registry.RecordTransition(ctx, i.addr, caller, code, result, final, certificateID); err != nil {
		i.rollbackSubmission(caller)
		return "", fmt.Errorf("report submission: %w", err)
	}
	i.met.IncSubmission(code.String(), final.String())
	i.emit(ctx, events.Event{
		Type:        events.TypeExamSubmitted,
		Instance:    i.addr,
		Participant: caller,
		ExamCode:    code,
		Status:      final,
	})
	if final == domain.StatusPassed {
		i.met.IncCredentialMinted(code.String())
	}
	return final, nil
}

// rollbackSubmission restores a participant to Enrolled after the registry
// rejected the submission report, burning any token minted in the attempt so
// a retry observes no trace of it.
func (i *Instance) rollbackSubmission(participant domain.Address) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status[participant] = domain.StatusEnrolled
	i.results[participant] = Result{}
	if id, ok := i.tokens[participant]; ok {
		i.token.Burn(id)
		delete(i.tokens, participant)
	}
}

// Token exposes the credential ownership surface for holders and indexers.
func (i *Instance) Token() *credential.Token {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.token
}

// TokenOf returns the credential id minted to a participant, if any.
func (i *Instance) TokenOf(participant domain.Address) (uint64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	id, ok := i.tokens[participant]
	if !ok {
		return 0, dErrors.New(dErrors.CodeCredentialNotFound, "no credential minted for participant")
	}
	return id, nil
}

// SetCredentialBaseURI replaces the metadata base URI. Owner only.
func (i *Instance) SetCredentialBaseURI(caller domain.Address, uri string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if caller != i.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "only the exam owner may set the base URI")
	}
	i.token.SetBaseURI(uri)
	return nil
}

// TokenReceived reports the accumulated token income recorded through the
// enrollment path. Advisory only: WithdrawToken sweeps the rail's live
// balance, which can diverge when value is sent to the instance directly.
func (i *Instance) TokenReceived() payment.Amount {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.tokenReceived
}

// WithdrawNative sweeps the instance's native balance to the owner.
func (i *Instance) WithdrawNative(ctx context.Context, caller domain.Address) (payment.Amount, error) {
	return i.withdraw(ctx, caller, i.native)
}

// WithdrawToken sweeps the rail-reported token balance of the instance to
// the owner. The rail balance, not the bookkeeping counter, is
// authoritative.
func (i *Instance) WithdrawToken(ctx context.Context, caller domain.Address) (payment.Amount, error) {
	return i.withdraw(ctx, caller, i.rail)
}

func (i *Instance) withdraw(ctx context.Context, caller domain.Address, rail payment.Rail) (payment.Amount, error) {
	i.mu.Lock()
	if !i.initialized {
		i.mu.Unlock()
		return 0, dErrors.New(dErrors.CodeValidation, "instance not initialized")
	}
	if caller != i.owner {
		i.mu.Unlock()
		return 0, dErrors.New(dErrors.CodeUnauthorized, "only the exam owner may withdraw")
	}
	owner := i.owner
	i.mu.Unlock()

	balance := rail.BalanceOf(ctx, i.addr)
	if balance == 0 {
		return 0, dErrors.New(dErrors.CodeNothingToWithdraw, "nothing to withdraw")
	}
	// No partial withdrawal: the whole balance moves or the call fails and
	// the caller retries the whole operation.
	if err := rail.Transfer(ctx, i.addr, owner, balance); err != nil {
		return 0, dErrors.Wrap(dErrors.CodeTransferFailed, "withdrawal rejected", err)
	}
	i.emit(ctx, events.Event{
		Type:     events.TypeFeesWithdrawn,
		Instance: i.addr,
		ExamCode: i.record.Config.Code,
		Amount:   balance,
	})
	return balance, nil
}

func (i *Instance) emit(ctx context.Context, event events.Event) {
	if i.pub == nil {
		return
	}
	if err := i.pub.Emit(ctx, event); err != nil && i.log != nil {
		i.log.ErrorContext(ctx, "event emit failed",
			"type", event.Type,
			"exam_code", event.ExamCode,
			"error", err,
		)
	}
}
