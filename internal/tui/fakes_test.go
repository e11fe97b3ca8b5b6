package tui

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/naveenspark/nftvault/internal/login"
	"github.com/naveenspark/nftvault/internal/withdraw"
	"github.com/naveenspark/nftvault/pkg/client"
	"github.com/naveenspark/nftvault/pkg/domain"
)

type fakeLoader struct {
	items []domain.Item
	err   error
	calls int
}

func (f *fakeLoader) ListInventory(context.Context, string) ([]domain.Item, error) {
	f.calls++
	return f.items, f.err
}

// fakeVault is a scripted login backend and withdrawal submitter.
type fakeVault struct {
	passwordRequired bool
	codeErr          error
	withdrawErr      error
	sendCalls        int
	withdrawals      []domain.WithdrawalRequest
}

func (f *fakeVault) SendCode(context.Context, string) (*client.SendCodeResult, error) {
	f.sendCalls++
	return &client.SendCodeResult{PhoneCodeHash: "hash", Type: "app"}, nil
}

func (f *fakeVault) VerifyCode(context.Context, string, string, string) (*client.VerifyResult, error) {
	if f.codeErr != nil {
		return nil, f.codeErr
	}
	if f.passwordRequired {
		return &client.VerifyResult{PasswordRequired: true}, nil
	}
	return &client.VerifyResult{SessionKey: "sk1", Username: "ann"}, nil
}

func (f *fakeVault) VerifyPassword(context.Context, string, string) (*client.VerifyResult, error) {
	return &client.VerifyResult{SessionKey: "sk2", FirstName: "Ann"}, nil
}

func (f *fakeVault) Withdraw(_ context.Context, req domain.WithdrawalRequest) error {
	f.withdrawals = append(f.withdrawals, req)
	return f.withdrawErr
}

func newTestAuthorizer(t *testing.T, v *fakeVault) *withdraw.Authorizer {
	t.Helper()
	clock := clockwork.NewFakeClock()
	m := login.New(v, login.Options{Clock: clock})
	return withdraw.New(m, v, withdraw.Options{Clock: clock})
}

var testItems = []domain.Item{
	{ID: "Gem-1", Link: "https://vault.example/nft/Gem-1"},
	{ID: "Ring-2", Link: "https://vault.example/nft/Ring-2"},
}
