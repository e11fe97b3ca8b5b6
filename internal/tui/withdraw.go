package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/nftvault/internal/login"
	"github.com/naveenspark/nftvault/internal/withdraw"
	"github.com/naveenspark/nftvault/pkg/domain"
)

// -- messages --

type loginResultMsg struct{ r login.Result }

type withdrawResultMsg struct{ r withdraw.Result }

func loginCmd(call login.Call) tea.Cmd {
	return func() tea.Msg {
		return loginResultMsg{r: call(context.Background())}
	}
}

func withdrawCmd(call withdraw.Call) tea.Cmd {
	return func() tea.Msg {
		return withdrawResultMsg{r: call(context.Background())}
	}
}

// -- model --

// withdrawModel renders the login and confirmation steps of one withdrawal.
// All state lives in the Authorizer; the model only holds what is being typed.
type withdrawModel struct {
	auth      *withdraw.Authorizer
	item      domain.Item
	input     string
	notice    string
	closed    bool
	completed bool
	frame     int
}

func newWithdrawModel(auth *withdraw.Authorizer, item domain.Item) withdrawModel {
	return withdrawModel{auth: auth, item: item}
}

// step returns the input the login is waiting for, or 0 while a request is in flight.
func (m withdrawModel) step() login.Step {
	lm := m.auth.Login()
	switch lm.State() {
	case login.StateIdle:
		return login.StepPhone
	case login.StateCodePending:
		return login.StepCode
	case login.StatePasswordPending:
		return login.StepPassword
	case login.StateFailed:
		if f := lm.Failure(); f != nil {
			return f.Step
		}
	}
	return 0
}

func (m withdrawModel) Update(msg tea.Msg) (withdrawModel, tea.Cmd) {
	switch msg := msg.(type) {
	case shimmerTickMsg:
		m.frame++

	case loginResultMsg:
		if m.auth.Login().Apply(msg.r) {
			m.input = ""
		}

	case withdrawResultMsg:
		if m.auth.ApplyWithdrawal(msg.r) && m.auth.Phase() == withdraw.PhaseCompleted {
			m.completed = true
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m withdrawModel) handleKey(msg tea.KeyMsg) (withdrawModel, tea.Cmd) {
	key := msg.String()
	if m.completed || m.auth.Phase() == withdraw.PhaseIdle {
		switch key {
		case "enter", "esc", "q":
			m.closed = true
		}
		return m, nil
	}
	if key == "esc" {
		m.auth.Cancel()
		m.closed = true
		return m, nil
	}

	switch m.auth.Phase() {
	case withdraw.PhaseLoggingIn:
		if msg.Type == tea.KeyRunes && (msg.Paste || len(msg.Runes) > 1) {
			if m.step() != 0 {
				m.input = appendText(m.input, string(msg.Runes))
			}
			return m, nil
		}
		return m.handleLoginKey(key)

	case withdraw.PhaseConfirming:
		switch key {
		case "y":
			call, err := m.auth.Confirm()
			if err != nil {
				m.notice = err.Error()
				return m, nil
			}
			m.notice = ""
			return m, withdrawCmd(call)
		case "n":
			m.auth.Cancel()
			m.closed = true
		}

	case withdraw.PhaseSubmitFailed:
		if key == "r" {
			call, err := m.auth.Retry()
			if errors.Is(err, withdraw.ErrRetryWindowExpired) {
				m.notice = "The retry window has passed. Start the withdrawal again to sign in."
				return m, nil
			}
			if err != nil {
				m.notice = err.Error()
				return m, nil
			}
			m.notice = ""
			return m, withdrawCmd(call)
		}
	}
	return m, nil
}

func (m withdrawModel) handleLoginKey(key string) (withdrawModel, tea.Cmd) {
	step := m.step()
	if step == 0 {
		return m, nil
	}
	lm := m.auth.Login()

	switch key {
	case "enter":
		var (
			call login.Call
			err  error
		)
		switch step {
		case login.StepPhone:
			call, err = lm.SubmitPhone(m.input)
		case login.StepCode:
			call, err = lm.SubmitCode(m.input)
		case login.StepPassword:
			call, err = lm.SubmitPassword(m.input)
		}
		if err != nil {
			m.notice = validationMessage(err)
			return m, nil
		}
		m.notice = ""
		return m, loginCmd(call)

	case "ctrl+r":
		if step != login.StepCode {
			return m, nil
		}
		call, err := lm.RequestNewCode()
		if err != nil {
			m.notice = validationMessage(err)
			return m, nil
		}
		m.input = ""
		m.notice = "requesting a new code..."
		return m, loginCmd(call)
	}

	m.input = editRune(m.input, key)
	return m, nil
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, login.ErrEmptyPhone):
		return "Enter your phone number."
	case errors.Is(err, login.ErrEmptyCode):
		return "Enter the code you received."
	case errors.Is(err, login.ErrEmptyPassword):
		return "Enter your password."
	default:
		return err.Error()
	}
}

func (m withdrawModel) View() string {
	var b strings.Builder

	b.WriteString(" " + sectionHeaderStyle.Render("Withdraw "+m.item.DisplayName()) + "\n")
	if m.item.Link != "" {
		b.WriteString(" " + metaStyle.Render(m.item.Link) + "\n")
	}
	b.WriteString("\n")

	switch {
	case m.completed:
		b.WriteString(" " + successStyle.Render("Withdrawal submitted.") + "\n")
	case m.auth.Phase() == withdraw.PhaseLoggingIn:
		b.WriteString(m.loginView())
	case m.auth.Phase() == withdraw.PhaseConfirming:
		if label := m.auth.AccountLabel(); label != "" {
			b.WriteString(" " + dimStyle.Render("Signed in as "+label+".") + "\n")
		}
		fmt.Fprintf(&b, " Withdraw %s to this account? %s\n",
			selectedStyle.Render(m.item.DisplayName()), accentStyle.Render("y/n"))
	case m.auth.Phase() == withdraw.PhaseSubmitting:
		b.WriteString(" " + dimStyle.Render("submitting withdrawal...") + "\n")
	case m.auth.Phase() == withdraw.PhaseSubmitFailed:
		b.WriteString(" " + errorStyle.Render("Error: "+m.auth.LastError()) + "\n")
	case m.auth.Phase() == withdraw.PhaseIdle:
		b.WriteString(" " + dimStyle.Render("Withdrawal cancelled.") + "\n")
	}

	if m.notice != "" {
		b.WriteString("\n " + warnStyle.Render(m.notice) + "\n")
	}
	return b.String()
}

func (m withdrawModel) loginView() string {
	lm := m.auth.Login()
	var b strings.Builder

	if s := lm.State(); s.InFlight() {
		label := "verifying..."
		if s == login.StatePhoneSubmitted {
			label = "sending code..."
		}
		b.WriteString(" " + dimStyle.Render(label) + "\n")
		return b.String()
	}

	switch m.step() {
	case login.StepPhone:
		b.WriteString(renderInput("Phone number", m.input, "+15551234567", false, m.frame) + "\n")
	case login.StepCode:
		if t := lm.CodeType(); t != "" {
			b.WriteString(" " + dimStyle.Render("A code was sent to "+lm.Phone()+" ("+t+").") + "\n")
		} else {
			b.WriteString(" " + dimStyle.Render("A code was sent to "+lm.Phone()+".") + "\n")
		}
		b.WriteString(renderInput("Code", m.input, "12345", false, m.frame) + "\n")
	case login.StepPassword:
		b.WriteString(" " + dimStyle.Render("This account has a password.") + "\n")
		b.WriteString(renderInput("Password", m.input, "", true, m.frame) + "\n")
	}

	if f := lm.Failure(); lm.State() == login.StateFailed && f != nil {
		b.WriteString("\n " + errorStyle.Render("Error: "+f.Message) + "\n")
	}
	return b.String()
}

func (m withdrawModel) helpKeys() string {
	if m.completed || m.auth.Phase() == withdraw.PhaseIdle {
		return helpBar(helpEntry("enter", "close"))
	}
	switch m.auth.Phase() {
	case withdraw.PhaseConfirming:
		return helpBar(helpEntry("y", "withdraw"), helpEntry("n", "cancel"))
	case withdraw.PhaseSubmitFailed:
		return helpBar(helpEntry("r", "retry"), helpEntry("esc", "cancel"))
	case withdraw.PhaseSubmitting:
		return helpBar(helpEntry("esc", "cancel"))
	}
	if m.step() == login.StepCode {
		return helpBar(helpEntry("enter", "verify"), helpEntry("ctrl+r", "new code"), helpEntry("esc", "cancel"))
	}
	return helpBar(helpEntry("enter", "submit"), helpEntry("esc", "cancel"))
}
