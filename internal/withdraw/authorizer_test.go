package withdraw

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/naveenspark/nftvault/internal/login"
	"github.com/naveenspark/nftvault/pkg/client"
	"github.com/naveenspark/nftvault/pkg/domain"
)

type stubBackend struct {
	sessionKey string
}

func (b *stubBackend) SendCode(context.Context, string) (*client.SendCodeResult, error) {
	return &client.SendCodeResult{PhoneCodeHash: "h1"}, nil
}

func (b *stubBackend) VerifyCode(context.Context, string, string, string) (*client.VerifyResult, error) {
	return &client.VerifyResult{SessionKey: b.sessionKey, Username: "ann"}, nil
}

func (b *stubBackend) VerifyPassword(context.Context, string, string) (*client.VerifyResult, error) {
	return &client.VerifyResult{SessionKey: b.sessionKey}, nil
}

type recordingSubmitter struct {
	requests []domain.WithdrawalRequest
	err      error
}

func (s *recordingSubmitter) Withdraw(_ context.Context, req domain.WithdrawalRequest) error {
	s.requests = append(s.requests, req)
	return s.err
}

type fixture struct {
	z     *Authorizer
	sub   *recordingSubmitter
	clock *clockwork.FakeClock
}

func newFixture(t *testing.T, sessionKey string) fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	m := login.New(&stubBackend{sessionKey: sessionKey}, login.Options{Clock: clock})
	sub := &recordingSubmitter{}
	z := New(m, sub, Options{RetryWindow: time.Minute, Clock: clock})
	return fixture{z: z, sub: sub, clock: clock}
}

// authenticate drives the owned machine through phone and code.
func authenticate(t *testing.T, z *Authorizer) {
	t.Helper()
	m := z.Login()
	call, err := m.SubmitPhone("+15551234567")
	if err != nil {
		t.Fatalf("SubmitPhone: %v", err)
	}
	m.Apply(call(context.Background()))
	call, err = m.SubmitCode("000000")
	if err != nil {
		t.Fatalf("SubmitCode: %v", err)
	}
	m.Apply(call(context.Background()))
}

func TestScenarioA_ConfirmSendsBoundSession(t *testing.T) {
	f := newFixture(t, "sk1")
	if err := f.z.Begin("Gem-1"); err != nil {
		t.Fatal(err)
	}
	if f.z.Phase() != PhaseLoggingIn {
		t.Fatalf("phase = %s, want logging_in", f.z.Phase())
	}
	authenticate(t, f.z)
	if f.z.Phase() != PhaseConfirming {
		t.Fatalf("phase = %s, want confirming", f.z.Phase())
	}
	if len(f.sub.requests) != 0 {
		t.Fatal("authentication alone must not submit a withdrawal")
	}
	if f.z.AccountLabel() != "ann" {
		t.Errorf("AccountLabel = %q, want ann", f.z.AccountLabel())
	}

	call, err := f.z.Confirm()
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !f.z.ApplyWithdrawal(call(context.Background())) {
		t.Fatal("result dropped")
	}
	if f.z.Phase() != PhaseCompleted {
		t.Fatalf("phase = %s, want completed", f.z.Phase())
	}
	if len(f.sub.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(f.sub.requests))
	}
	req := f.sub.requests[0]
	if req.ItemID != "Gem-1" || req.SessionKey != "sk1" {
		t.Errorf("request = %+v, want {Gem-1 sk1}", req)
	}
	if req.IdempotencyKey == "" {
		t.Error("expected an idempotency key")
	}
	if f.z.Login().State() != login.StateIdle {
		t.Errorf("login state = %s, want attempt discarded", f.z.Login().State())
	}
}

func TestConfirmCancelDiscardsSession(t *testing.T) {
	f := newFixture(t, "sk1")
	f.z.Begin("Gem-1") //nolint:errcheck
	authenticate(t, f.z)

	f.z.Cancel()
	if f.z.Phase() != PhaseIdle || f.z.ItemID() != "" || f.z.AccountLabel() != "" {
		t.Errorf("after cancel: phase=%s item=%q", f.z.Phase(), f.z.ItemID())
	}
	if len(f.sub.requests) != 0 {
		t.Error("cancel must not contact the backend")
	}
	if _, err := f.z.Confirm(); !errors.Is(err, ErrNotConfirming) {
		t.Errorf("Confirm after cancel error = %v, want ErrNotConfirming", err)
	}
	f.z.Cancel() // idempotent
}

func TestBeginDiscardsPreviousSession(t *testing.T) {
	f := newFixture(t, "sk1")
	f.z.Begin("Gem-1") //nolint:errcheck
	authenticate(t, f.z)

	if err := f.z.Begin("Ring-2"); err != nil {
		t.Fatal(err)
	}
	if f.z.Phase() != PhaseLoggingIn {
		t.Fatalf("phase = %s, want logging_in", f.z.Phase())
	}
	if f.z.AccountLabel() != "" {
		t.Error("session from the previous item leaked into the new withdrawal")
	}
	if _, err := f.z.Confirm(); !errors.Is(err, ErrNotConfirming) {
		t.Errorf("Confirm error = %v, want ErrNotConfirming", err)
	}
	if f.z.Login().ItemID() != "Ring-2" {
		t.Errorf("login bound to %q, want Ring-2", f.z.Login().ItemID())
	}
}

func TestSessionForOtherItemRejected(t *testing.T) {
	f := newFixture(t, "sk1")
	f.z.Begin("Gem-1") //nolint:errcheck
	authenticate(t, f.z)

	f.z.session = &domain.Session{Key: "sk-other", BoundItemID: "Ring-2"}
	_, err := f.z.Confirm()
	if !errors.Is(err, ErrSessionItemMismatch) {
		t.Fatalf("Confirm error = %v, want ErrSessionItemMismatch", err)
	}
	if len(f.sub.requests) != 0 {
		t.Error("mismatched session must never be submitted")
	}
	if f.z.Phase() != PhaseIdle || f.z.session != nil {
		t.Error("mismatched session must be discarded")
	}
}

func TestFailedSubmissionRetry(t *testing.T) {
	f := newFixture(t, "sk1")
	f.z.Begin("Gem-1") //nolint:errcheck
	authenticate(t, f.z)

	f.sub.err = &client.RejectedError{StatusCode: 409, Message: "Item is locked"}
	call, err := f.z.Confirm()
	if err != nil {
		t.Fatal(err)
	}
	f.z.ApplyWithdrawal(call(context.Background()))
	if f.z.Phase() != PhaseSubmitFailed {
		t.Fatalf("phase = %s, want submit_failed", f.z.Phase())
	}
	if f.z.LastError() != "Item is locked" {
		t.Errorf("LastError = %q", f.z.LastError())
	}

	f.sub.err = nil
	f.clock.Advance(30 * time.Second)
	call, err = f.z.Retry()
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	f.z.ApplyWithdrawal(call(context.Background()))
	if f.z.Phase() != PhaseCompleted {
		t.Fatalf("phase = %s, want completed", f.z.Phase())
	}
	if len(f.sub.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(f.sub.requests))
	}
	if f.sub.requests[0].IdempotencyKey != f.sub.requests[1].IdempotencyKey {
		t.Error("retry must reuse the idempotency key")
	}
}

func TestRetryWindowExpires(t *testing.T) {
	f := newFixture(t, "sk1")
	f.z.Begin("Gem-1") //nolint:errcheck
	authenticate(t, f.z)

	f.sub.err = errors.New("connection reset")
	call, _ := f.z.Confirm()
	f.z.ApplyWithdrawal(call(context.Background()))
	if f.z.LastError() != client.ConnectivityMessage {
		t.Errorf("LastError = %q, want connectivity message", f.z.LastError())
	}

	f.clock.Advance(2 * time.Minute)
	if _, err := f.z.Retry(); !errors.Is(err, ErrRetryWindowExpired) {
		t.Fatalf("Retry error = %v, want ErrRetryWindowExpired", err)
	}
	if f.z.Phase() != PhaseIdle {
		t.Errorf("phase = %s, want idle", f.z.Phase())
	}
	if len(f.sub.requests) != 1 {
		t.Errorf("requests = %d, want 1", len(f.sub.requests))
	}
}

func TestRepeatedFailuresDoNotExtendRetryWindow(t *testing.T) {
	f := newFixture(t, "sk1")
	f.z.Begin("Gem-1") //nolint:errcheck
	authenticate(t, f.z)

	f.sub.err = &client.HTTPError{StatusCode: 502, Message: "bad gateway"}
	call, _ := f.z.Confirm()
	f.z.ApplyWithdrawal(call(context.Background()))

	// each retry lands inside a minute of the previous failure
	f.clock.Advance(40 * time.Second)
	call, err := f.z.Retry()
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	f.z.ApplyWithdrawal(call(context.Background()))
	if f.z.Phase() != PhaseSubmitFailed {
		t.Fatalf("phase = %s, want submit_failed", f.z.Phase())
	}

	f.clock.Advance(40 * time.Second)
	if _, err := f.z.Retry(); !errors.Is(err, ErrRetryWindowExpired) {
		t.Fatalf("Retry error = %v, want ErrRetryWindowExpired", err)
	}
	if f.z.Phase() != PhaseIdle || f.z.session != nil {
		t.Error("session must be discarded once the first window has passed")
	}
	if len(f.sub.requests) != 2 {
		t.Errorf("requests = %d, want 2", len(f.sub.requests))
	}
}

func TestCancelDuringSubmitIgnoresLateResult(t *testing.T) {
	f := newFixture(t, "sk1")
	f.z.Begin("Gem-1") //nolint:errcheck
	authenticate(t, f.z)

	call, err := f.z.Confirm()
	if err != nil {
		t.Fatal(err)
	}
	f.z.Cancel()
	if f.z.ApplyWithdrawal(call(context.Background())) {
		t.Fatal("late result applied after cancel")
	}
	if f.z.Phase() != PhaseIdle {
		t.Errorf("phase = %s, want idle", f.z.Phase())
	}
}

func TestLoginCancelReturnsIdle(t *testing.T) {
	f := newFixture(t, "sk1")
	f.z.Begin("Gem-1") //nolint:errcheck
	f.z.Login().Cancel()
	if f.z.Phase() != PhaseIdle || f.z.ItemID() != "" {
		t.Errorf("phase=%s item=%q, want idle with no pending item", f.z.Phase(), f.z.ItemID())
	}
}

func TestBeginValidation(t *testing.T) {
	f := newFixture(t, "sk1")
	if err := f.z.Begin(" "); !errors.Is(err, ErrEmptyItem) {
		t.Errorf("Begin(blank) error = %v, want ErrEmptyItem", err)
	}
	if _, err := f.z.Retry(); !errors.Is(err, ErrNotRetryable) {
		t.Errorf("Retry from idle error = %v, want ErrNotRetryable", err)
	}
}
