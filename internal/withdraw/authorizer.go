// Package withdraw binds one authenticated login to one pending item withdrawal
// and drives the user's confirmation before anything is submitted.
package withdraw

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/naveenspark/nftvault/internal/login"
	"github.com/naveenspark/nftvault/pkg/client"
	"github.com/naveenspark/nftvault/pkg/domain"
)

// DefaultRetryWindow is how long a session stays usable after a failed submission.
const DefaultRetryWindow = 2 * time.Minute

// Phase is the authorizer's position in a withdrawal.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoggingIn
	PhaseConfirming
	PhaseSubmitting
	PhaseSubmitFailed
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoggingIn:
		return "logging_in"
	case PhaseConfirming:
		return "confirming"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSubmitFailed:
		return "submit_failed"
	case PhaseCompleted:
		return "completed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

var (
	ErrEmptyItem           = errors.New("item id is required")
	ErrNotConfirming       = errors.New("no withdrawal awaiting confirmation")
	ErrNotRetryable        = errors.New("no failed withdrawal to retry")
	ErrNoSession           = errors.New("no authenticated session")
	ErrSessionItemMismatch = errors.New("session was issued for a different item")
	ErrRetryWindowExpired  = errors.New("retry window expired, log in again")
)

// Submitter sends the withdrawal to the custody backend.
type Submitter interface {
	Withdraw(ctx context.Context, req domain.WithdrawalRequest) error
}

// Options configures an Authorizer. Zero values pick defaults.
type Options struct {
	Timeout     time.Duration
	RetryWindow time.Duration
	Logger      *zap.Logger
	Clock       clockwork.Clock
}

// Call performs the withdrawal request. It reads no authorizer state.
type Call func(ctx context.Context) Result

// Result is the outcome of a Call, to be passed to ApplyWithdrawal.
type Result struct {
	gen uint64
	err error
}

// Authorizer coordinates a single pending withdrawal with the login machine it owns.
// Like the machine it is single-owner and not safe for concurrent use.
type Authorizer struct {
	machine     *login.Machine
	submitter   Submitter
	timeout     time.Duration
	retryWindow time.Duration
	logger      *zap.Logger
	clock       clockwork.Clock

	phase    Phase
	itemID   string
	session  *domain.Session
	idemKey  string
	failedAt time.Time
	lastErr  string
	gen      uint64
}

// New creates an Authorizer and subscribes it to m's state changes.
func New(m *login.Machine, s Submitter, opts Options) *Authorizer {
	if opts.Timeout <= 0 {
		opts.Timeout = login.DefaultTimeout
	}
	if opts.RetryWindow <= 0 {
		opts.RetryWindow = DefaultRetryWindow
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	z := &Authorizer{
		machine:     m,
		submitter:   s,
		timeout:     opts.Timeout,
		retryWindow: opts.RetryWindow,
		logger:      opts.Logger.Named("withdraw"),
		clock:       opts.Clock,
	}
	m.OnChange(z.onLogin)
	return z
}

// Login returns the machine driving the current attempt.
func (z *Authorizer) Login() *login.Machine { return z.machine }

// Phase returns the current phase.
func (z *Authorizer) Phase() Phase { return z.phase }

// ItemID returns the pending item, or "".
func (z *Authorizer) ItemID() string { return z.itemID }

// AccountLabel returns the verified account's display label once authenticated.
func (z *Authorizer) AccountLabel() string {
	if z.session == nil {
		return ""
	}
	return z.session.AccountLabel
}

// LastError returns the user-facing message of the last failed submission.
func (z *Authorizer) LastError() string { return z.lastErr }

// Begin opens a fresh login bound to itemID. Any previous attempt and session
// are discarded, whatever their state or item.
func (z *Authorizer) Begin(itemID string) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return fmt.Errorf("withdraw.Begin: %w", ErrEmptyItem)
	}
	z.reset()
	if _, err := z.machine.Start(itemID); err != nil {
		return fmt.Errorf("withdraw.Begin: %w", err)
	}
	z.itemID = itemID
	z.phase = PhaseLoggingIn
	z.logger.Info("withdrawal begun", zap.String("item_id", itemID))
	return nil
}

// Confirm records the user's consent and returns the submission Call.
func (z *Authorizer) Confirm() (Call, error) {
	if z.phase != PhaseConfirming {
		return nil, fmt.Errorf("withdraw.Confirm: %w", ErrNotConfirming)
	}
	if err := z.checkSession(); err != nil {
		return nil, fmt.Errorf("withdraw.Confirm: %w", err)
	}
	z.idemKey = uuid.NewString()
	return z.submit(), nil
}

// Retry resubmits a failed withdrawal with the same session and idempotency key,
// as long as the retry window has not passed.
func (z *Authorizer) Retry() (Call, error) {
	if z.phase != PhaseSubmitFailed {
		return nil, fmt.Errorf("withdraw.Retry: %w", ErrNotRetryable)
	}
	if z.clock.Since(z.failedAt) > z.retryWindow {
		z.logger.Info("retry window expired", zap.String("item_id", z.itemID))
		z.reset()
		return nil, fmt.Errorf("withdraw.Retry: %w", ErrRetryWindowExpired)
	}
	if err := z.checkSession(); err != nil {
		return nil, fmt.Errorf("withdraw.Retry: %w", err)
	}
	return z.submit(), nil
}

// ApplyWithdrawal feeds a submission Result back. It reports false for results
// of a cancelled or superseded submission.
func (z *Authorizer) ApplyWithdrawal(r Result) bool {
	if z.phase != PhaseSubmitting || r.gen != z.gen {
		z.logger.Debug("stale withdrawal result dropped")
		return false
	}
	if r.err != nil {
		z.phase = PhaseSubmitFailed
		// The window runs from the first failure; later failures don't extend it.
		if z.failedAt.IsZero() {
			z.failedAt = z.clock.Now()
		}
		z.lastErr = client.UserMessage(r.err)
		z.logger.Warn("withdrawal failed", zap.String("item_id", z.itemID), zap.Error(r.err))
		return true
	}
	z.logger.Info("withdrawal completed", zap.String("item_id", z.itemID))
	z.session = nil
	z.idemKey = ""
	z.lastErr = ""
	z.phase = PhaseCompleted
	z.machine.Cancel()
	return true
}

// Cancel abandons the pending withdrawal without contacting the backend and
// returns to PhaseIdle. Idempotent.
func (z *Authorizer) Cancel() {
	if z.phase != PhaseIdle {
		z.logger.Info("withdrawal cancelled", zap.String("item_id", z.itemID), zap.Stringer("phase", z.phase))
	}
	z.reset()
}

// onLogin reacts to the login machine's transitions.
func (z *Authorizer) onLogin(t login.Transition) {
	if z.phase != PhaseLoggingIn || t.ItemID != z.itemID {
		return
	}
	switch {
	case t.Cancelled:
		z.itemID = ""
		z.phase = PhaseIdle
	case t.To == login.StateAuthenticated:
		s := z.machine.Session()
		if !s.AuthorizesItem(z.itemID) {
			z.logger.Error("session bound to another item discarded", zap.String("item_id", z.itemID))
			z.reset()
			return
		}
		z.session = s
		z.phase = PhaseConfirming
	}
}

// checkSession enforces that only a session bound to the pending item is used.
func (z *Authorizer) checkSession() error {
	if z.session == nil {
		return ErrNoSession
	}
	if !z.session.AuthorizesItem(z.itemID) {
		z.logger.Error("session bound to another item rejected",
			zap.String("item_id", z.itemID),
			zap.String("session_item_id", z.session.BoundItemID))
		z.reset()
		return ErrSessionItemMismatch
	}
	return nil
}

func (z *Authorizer) submit() Call {
	z.gen++
	z.phase = PhaseSubmitting
	z.lastErr = ""
	req := domain.WithdrawalRequest{
		ItemID:         z.itemID,
		SessionKey:     z.session.Key,
		IdempotencyKey: z.idemKey,
	}
	gen, timeout, s := z.gen, z.timeout, z.submitter
	return func(ctx context.Context) Result {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return Result{gen: gen, err: s.Withdraw(ctx, req)}
	}
}

// reset drops the session and any login, bumping the generation so in-flight
// submissions are ignored.
func (z *Authorizer) reset() {
	z.gen++
	z.phase = PhaseIdle
	z.itemID = ""
	z.session = nil
	z.idemKey = ""
	z.lastErr = ""
	z.failedAt = time.Time{}
	z.machine.Cancel()
}
