// Package login sequences one phone login: phone, one-time code, optional
// secondary password, session.
//
// The Machine is event-driven and single-owner. Transition methods validate and
// change state synchronously and hand back a Call; the owner runs the Call off
// its UI goroutine and feeds the Result back through Apply. Results are tagged
// with the attempt ID and a generation so replies for a discarded or superseded
// request never touch the live attempt. A Machine is not safe for concurrent use.
package login

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/naveenspark/nftvault/pkg/client"
	"github.com/naveenspark/nftvault/pkg/domain"
)

// DefaultTimeout bounds each backend request.
const DefaultTimeout = 20 * time.Second

// Backend is the part of the auth service a login drives.
type Backend interface {
	SendCode(ctx context.Context, phone string) (*client.SendCodeResult, error)
	VerifyCode(ctx context.Context, phone, code, phoneCodeHash string) (*client.VerifyResult, error)
	VerifyPassword(ctx context.Context, phone, password string) (*client.VerifyResult, error)
}

// Options configures a Machine. Zero values pick defaults.
type Options struct {
	Timeout time.Duration
	Logger  *zap.Logger
	Clock   clockwork.Clock
}

// Call performs the backend request for one step. It reads no machine state
// and may run on any goroutine.
type Call func(ctx context.Context) Result

// Result is the outcome of a Call, to be passed to Apply.
type Result struct {
	AttemptID uuid.UUID

	gen      uint64
	step     Step
	resend   bool
	sent     *client.SendCodeResult
	verified *client.VerifyResult
	err      error
}

// attempt is the single in-flight authentication.
type attempt struct {
	id            uuid.UUID
	itemID        string
	phone         string
	phoneCodeHash string
	codeType      string
	state         State
	failure       *Failure
	session       *domain.Session
	gen           uint64
}

// Machine owns at most one login attempt.
type Machine struct {
	backend   Backend
	timeout   time.Duration
	logger    *zap.Logger
	clock     clockwork.Clock
	current   *attempt
	observers []func(Transition)
}

// New creates a Machine driving b.
func New(b Backend, opts Options) *Machine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Machine{
		backend: b,
		timeout: opts.Timeout,
		logger:  opts.Logger.Named("login"),
		clock:   opts.Clock,
	}
}

// OnChange registers fn to receive every state change.
func (m *Machine) OnChange(fn func(Transition)) {
	m.observers = append(m.observers, fn)
}

// Start begins a fresh attempt bound to itemID, discarding any previous attempt
// whatever its state.
func (m *Machine) Start(itemID string) (uuid.UUID, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return uuid.Nil, fmt.Errorf("login.Start: %w", ErrEmptyItem)
	}
	if prev := m.current; prev != nil {
		m.logger.Debug("login attempt replaced",
			zap.String("attempt_id", prev.id.String()),
			zap.Stringer("state", prev.state))
	}
	a := &attempt{id: uuid.New(), itemID: itemID, state: StateIdle}
	m.current = a
	m.logger.Info("login attempt started",
		zap.String("attempt_id", a.id.String()),
		zap.String("item_id", itemID))
	return a.id, nil
}

// State returns the state of the live attempt, or StateIdle when there is none.
func (m *Machine) State() State {
	if m.current == nil {
		return StateIdle
	}
	return m.current.state
}

// AttemptID returns the live attempt's ID, or uuid.Nil.
func (m *Machine) AttemptID() uuid.UUID {
	if m.current == nil {
		return uuid.Nil
	}
	return m.current.id
}

// ItemID returns the item the live attempt is bound to.
func (m *Machine) ItemID() string {
	if m.current == nil {
		return ""
	}
	return m.current.itemID
}

// Phone returns the phone number submitted for the live attempt.
func (m *Machine) Phone() string {
	if m.current == nil {
		return ""
	}
	return m.current.phone
}

// CodeType returns the delivery type the backend reported for the code, if any.
func (m *Machine) CodeType() string {
	if m.current == nil {
		return ""
	}
	return m.current.codeType
}

// HasCodeHash reports whether a code has been sent for the live attempt.
func (m *Machine) HasCodeHash() bool {
	return m.current != nil && m.current.phoneCodeHash != ""
}

// Failure returns the failure carried by StateFailed, or nil.
func (m *Machine) Failure() *Failure {
	if m.current == nil || m.current.state != StateFailed {
		return nil
	}
	return m.current.failure
}

// Session returns a copy of the session issued to the live attempt, or nil.
func (m *Machine) Session() *domain.Session {
	if m.current == nil || m.current.state != StateAuthenticated || m.current.session == nil {
		return nil
	}
	s := *m.current.session
	return &s
}

// SubmitPhone requests a one-time code for phone.
// Valid from StateIdle or after a failed phone step.
func (m *Machine) SubmitPhone(phone string) (Call, error) {
	a, err := m.enter("SubmitPhone", StateIdle, StepPhone)
	if err != nil {
		return nil, err
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("login.SubmitPhone: %w", ErrEmptyPhone)
	}
	a.phone = phone
	a.phoneCodeHash = ""
	a.codeType = ""
	return m.sendCode(a, false), nil
}

// RequestNewCode resends a code to the phone already submitted.
// It is only ever invoked by an explicit user action; retries of a wrong code
// go through SubmitCode and never resend.
func (m *Machine) RequestNewCode() (Call, error) {
	a, err := m.enter("RequestNewCode", StateCodePending, StepCode)
	if err != nil {
		return nil, err
	}
	return m.sendCode(a, true), nil
}

// SubmitCode verifies a one-time code.
// Valid from StateCodePending or after a failed code step.
func (m *Machine) SubmitCode(code string) (Call, error) {
	a, err := m.enter("SubmitCode", StateCodePending, StepCode)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("login.SubmitCode: %w", ErrEmptyCode)
	}
	m.advance(a, StateCodeSubmitted, nil)
	b := m.backend
	phone, hash := a.phone, a.phoneCodeHash
	return m.call(a, StepCode, false, func(ctx context.Context, r *Result) {
		r.verified, r.err = b.VerifyCode(ctx, phone, code, hash)
	}), nil
}

// SubmitPassword verifies the secondary password.
// Valid from StatePasswordPending or after a failed password step.
func (m *Machine) SubmitPassword(password string) (Call, error) {
	a, err := m.enter("SubmitPassword", StatePasswordPending, StepPassword)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, fmt.Errorf("login.SubmitPassword: %w", ErrEmptyPassword)
	}
	m.advance(a, StatePasswordSubmitted, nil)
	b := m.backend
	phone := a.phone
	return m.call(a, StepPassword, false, func(ctx context.Context, r *Result) {
		r.verified, r.err = b.VerifyPassword(ctx, phone, password)
	}), nil
}

// Cancel discards the live attempt and returns to StateIdle. Idempotent.
// A request already in flight is not aborted; its Result is dropped by Apply.
func (m *Machine) Cancel() {
	a := m.current
	if a == nil {
		return
	}
	m.current = nil
	m.logger.Info("login attempt cancelled",
		zap.String("attempt_id", a.id.String()),
		zap.Stringer("state", a.state))
	m.notify(Transition{AttemptID: a.id, ItemID: a.itemID, From: a.state, To: StateIdle, Cancelled: true})
}

// Apply feeds a Call's Result back into the machine. It reports false when the
// result belongs to a discarded attempt or a superseded request and was ignored.
func (m *Machine) Apply(r Result) bool {
	a := m.current
	if a == nil || r.AttemptID != a.id || r.gen != a.gen || inFlightStep(a.state) != r.step {
		m.logger.Debug("stale login result dropped",
			zap.String("attempt_id", r.AttemptID.String()),
			zap.Stringer("step", r.step))
		return false
	}

	switch r.step {
	case StepPhone:
		failStep := StepPhone
		if r.resend {
			// A failed resend keeps the earlier hash usable.
			failStep = StepCode
		}
		if r.err != nil {
			m.fail(a, failStep, r.err)
			return true
		}
		if r.sent == nil || r.sent.PhoneCodeHash == "" {
			m.fail(a, failStep, &client.ProtocolError{Reason: "missing phone_code_hash"})
			return true
		}
		a.phoneCodeHash = r.sent.PhoneCodeHash
		a.codeType = r.sent.Type
		m.advance(a, StateCodePending, nil)

	case StepCode:
		if r.err != nil {
			m.fail(a, StepCode, r.err)
			return true
		}
		if r.verified != nil && r.verified.PasswordRequired {
			m.advance(a, StatePasswordPending, nil)
			return true
		}
		m.authenticate(a, StepCode, r.verified)

	case StepPassword:
		if r.err != nil {
			m.fail(a, StepPassword, r.err)
			return true
		}
		m.authenticate(a, StepPassword, r.verified)
	}
	return true
}

// enter returns the live attempt if it may take the given step: it is either
// waiting in pending or failed at that step.
func (m *Machine) enter(op string, pending State, step Step) (*attempt, error) {
	a := m.current
	if a == nil {
		return nil, fmt.Errorf("login.%s: %w", op, ErrNoAttempt)
	}
	if a.state == pending {
		return a, nil
	}
	if a.state == StateFailed && a.failure != nil && a.failure.Step == step {
		return a, nil
	}
	return nil, fmt.Errorf("login.%s: %w from %s", op, ErrInvalidTransition, a.state)
}

func (m *Machine) sendCode(a *attempt, resend bool) Call {
	m.advance(a, StatePhoneSubmitted, nil)
	b := m.backend
	phone := a.phone
	return m.call(a, StepPhone, resend, func(ctx context.Context, r *Result) {
		r.sent, r.err = b.SendCode(ctx, phone)
	})
}

func (m *Machine) call(a *attempt, step Step, resend bool, do func(ctx context.Context, r *Result)) Call {
	a.gen++
	id, gen, timeout := a.id, a.gen, m.timeout
	return func(ctx context.Context) Result {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		r := Result{AttemptID: id, gen: gen, step: step, resend: resend}
		do(ctx, &r)
		return r
	}
}

func (m *Machine) authenticate(a *attempt, step Step, v *client.VerifyResult) {
	if v == nil || v.SessionKey == "" {
		m.fail(a, step, &client.ProtocolError{Reason: "missing session_key"})
		return
	}
	a.session = &domain.Session{
		Key:          v.SessionKey,
		AccountLabel: v.AccountLabel(),
		BoundItemID:  a.itemID,
		IssuedAt:     m.clock.Now(),
	}
	m.logger.Info("login authenticated",
		zap.String("attempt_id", a.id.String()),
		zap.String("item_id", a.itemID))
	m.advance(a, StateAuthenticated, nil)
}

func (m *Machine) fail(a *attempt, step Step, err error) {
	f := newFailure(step, err)
	m.logger.Warn("login step failed",
		zap.String("attempt_id", a.id.String()),
		zap.Stringer("step", step),
		zap.Error(err))
	m.advance(a, StateFailed, f)
}

func (m *Machine) advance(a *attempt, to State, f *Failure) {
	from := a.state
	a.state = to
	a.failure = f
	m.logger.Debug("login transition",
		zap.String("attempt_id", a.id.String()),
		zap.Stringer("from", from),
		zap.Stringer("to", to))
	m.notify(Transition{AttemptID: a.id, ItemID: a.itemID, From: from, To: to, Failure: f})
}

func (m *Machine) notify(t Transition) {
	for _, fn := range m.observers {
		fn(t)
	}
}

func inFlightStep(s State) Step {
	switch s {
	case StatePhoneSubmitted:
		return StepPhone
	case StateCodeSubmitted:
		return StepCode
	case StatePasswordSubmitted:
		return StepPassword
	default:
		return 0
	}
}
