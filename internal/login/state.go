package login

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/naveenspark/nftvault/pkg/client"
)

// State is a position in the login flow.
type State int

const (
	StateIdle State = iota
	StatePhoneSubmitted
	StateCodePending
	StateCodeSubmitted
	StatePasswordPending
	StatePasswordSubmitted
	StateAuthenticated
	StateFailed
)

var stateNames = [...]string{
	StateIdle:              "IDLE",
	StatePhoneSubmitted:    "PHONE_SUBMITTED",
	StateCodePending:       "CODE_PENDING",
	StateCodeSubmitted:     "CODE_SUBMITTED",
	StatePasswordPending:   "PASSWORD_PENDING",
	StatePasswordSubmitted: "PASSWORD_SUBMITTED",
	StateAuthenticated:     "AUTHENTICATED",
	StateFailed:            "FAILED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// InFlight reports whether a backend request for the current step is outstanding.
func (s State) InFlight() bool {
	return s == StatePhoneSubmitted || s == StateCodeSubmitted || s == StatePasswordSubmitted
}

// Step identifies which input a failure belongs to, and so which step a retry re-enters.
type Step int

const (
	StepPhone Step = iota + 1
	StepCode
	StepPassword
)

func (s Step) String() string {
	switch s {
	case StepPhone:
		return "phone"
	case StepCode:
		return "code"
	case StepPassword:
		return "password"
	default:
		return "unknown"
	}
}

// Kind classifies a failure.
type Kind int

const (
	// KindConnectivity covers transport errors, timeouts and non-structured HTTP errors.
	KindConnectivity Kind = iota + 1
	// KindRejected is a structured error reply from the backend.
	KindRejected
	// KindProtocol is a reply with an unexpected shape. Shown as connectivity.
	KindProtocol
)

var (
	// ErrNoAttempt is returned by transitions when no attempt has been started.
	ErrNoAttempt = errors.New("no login attempt in progress")
	// ErrInvalidTransition is returned when a transition is not valid from the current state.
	ErrInvalidTransition = errors.New("invalid login transition")
	// ErrEmptyItem is returned by Start for a blank item ID.
	ErrEmptyItem = errors.New("item id is required")
	// ErrEmptyPhone is returned by SubmitPhone for blank input.
	ErrEmptyPhone = errors.New("phone number is required")
	// ErrEmptyCode is returned by SubmitCode for blank input.
	ErrEmptyCode = errors.New("code is required")
	// ErrEmptyPassword is returned by SubmitPassword for empty input.
	ErrEmptyPassword = errors.New("password is required")
)

// Failure is the user-facing error carried by StateFailed.
type Failure struct {
	Step    Step
	Kind    Kind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func newFailure(step Step, err error) *Failure {
	kind := KindConnectivity
	var rej *client.RejectedError
	var perr *client.ProtocolError
	switch {
	case errors.As(err, &rej):
		kind = KindRejected
	case errors.As(err, &perr):
		kind = KindProtocol
	}
	return &Failure{
		Step:    step,
		Kind:    kind,
		Message: client.UserMessage(err),
		Err:     err,
	}
}

// Transition is emitted to observers on every state change.
type Transition struct {
	AttemptID uuid.UUID
	ItemID    string
	From      State
	To        State
	Failure   *Failure
	Cancelled bool
}
