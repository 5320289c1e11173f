package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/payvault/wallet-service/internal/domain"
	"github.com/payvault/wallet-service/internal/store"
	"github.com/payvault/wallet-service/pkg/paystackclient"
)

type gatewayStub struct {
	calls    int
	failWith error
	lastReq  paystackclient.InitializeRequest
}

func (g *gatewayStub) InitializeTransaction(ctx context.Context, req paystackclient.InitializeRequest) (*paystackclient.InitializeResponse, error) {
	g.calls++
	g.lastReq = req
	if g.failWith != nil {
		return nil, g.failWith
	}
	resp := &paystackclient.InitializeResponse{Status: true}
	resp.Data.AuthorizationURL = "https://checkout.example/" + req.Reference
	resp.Data.Reference = req.Reference
	return resp, nil
}

func TestInitiateFundingRejectsSubMinimumBeforeAnyCall(t *testing.T) {
	repo := newMemRepo()
	gateway := &gatewayStub{}
	svc := NewService(repo, gateway, 100, "https://app.example/dashboard")

	_, err := svc.InitiateFunding(context.Background(), uuid.New(), 50)
	if !errors.Is(err, ErrAmountTooSmall) {
		t.Fatalf("expected ErrAmountTooSmall, got %v", err)
	}
	if gateway.calls != 0 {
		t.Fatalf("gateway must not be called for sub-minimum amount, got %d calls", gateway.calls)
	}
	if len(repo.txs) != 0 {
		t.Fatalf("no transaction may be created for sub-minimum amount")
	}
}

func TestInitiateFundingUnknownAccount(t *testing.T) {
	svc := NewService(newMemRepo(), &gatewayStub{}, 100, "https://app.example/dashboard")

	_, err := svc.InitiateFunding(context.Background(), uuid.New(), 5000)
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestInitiateFundingGatewayFailureLeavesNoTransaction(t *testing.T) {
	repo := newMemRepo()
	userID := repo.seedUser("ada@example.com")
	gateway := &gatewayStub{failWith: errors.New("provider unreachable")}
	svc := NewService(repo, gateway, 100, "https://app.example/dashboard")

	_, err := svc.InitiateFunding(context.Background(), userID, 5000)
	if err == nil {
		t.Fatal("expected gateway failure to surface")
	}
	if len(repo.txs) != 0 {
		t.Fatalf("gateway failure must not leave a dangling transaction, found %d", len(repo.txs))
	}
}

func TestInitiateFundingCreatesPendingTransaction(t *testing.T) {
	repo := newMemRepo()
	userID := repo.seedUser("ada@example.com")
	gateway := &gatewayStub{}
	svc := NewService(repo, gateway, 100, "https://app.example/dashboard")

	session, err := svc.InitiateFunding(context.Background(), userID, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(session.Reference, "REF_") {
		t.Fatalf("expected REF_ prefixed reference, got %q", session.Reference)
	}
	if len(session.Reference) < 25 {
		t.Fatalf("reference too short to be collision-safe: %q", session.Reference)
	}
	if session.CheckoutURL == "" {
		t.Fatal("expected a checkout URL")
	}
	if gateway.lastReq.Email != "ada@example.com" {
		t.Fatalf("gateway should receive the customer email, got %q", gateway.lastReq.Email)
	}

	tx := repo.transaction(session.Reference)
	if tx == nil {
		t.Fatal("expected a transaction record for the reference")
	}
	if tx.Status != domain.StatusPending {
		t.Fatalf("expected pending transaction, got %q", tx.Status)
	}
	if tx.Type != domain.TypeFunding || tx.Amount != 5000 {
		t.Fatalf("unexpected transaction shape: type=%q amount=%d", tx.Type, tx.Amount)
	}
	if repo.balance(userID) != 0 {
		t.Fatal("balance must not change before settlement")
	}
}

func TestRecordSpendDebitsWallet(t *testing.T) {
	repo := newMemRepo()
	userID := repo.seedUser("ada@example.com")
	repo.accounts[userID].WalletBalance = 10000
	svc := NewService(repo, &gatewayStub{}, 100, "")

	tx, err := svc.RecordSpend(context.Background(), userID, domain.SpendRequest{Type: domain.TypeAirtime, Amount: 1500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Amount != -1500 {
		t.Fatalf("debits are recorded as negative amounts, got %d", tx.Amount)
	}
	if tx.Status != domain.StatusSuccess {
		t.Fatalf("spends settle synchronously, got status %q", tx.Status)
	}
	if got := repo.balance(userID); got != 8500 {
		t.Fatalf("expected balance 8500, got %d", got)
	}
}

func TestRecordSpendValidation(t *testing.T) {
	repo := newMemRepo()
	userID := repo.seedUser("ada@example.com")
	repo.accounts[userID].WalletBalance = 1000
	svc := NewService(repo, &gatewayStub{}, 100, "")

	cases := []struct {
		name string
		req  domain.SpendRequest
		want error
	}{
		{"unknown type", domain.SpendRequest{Type: "lottery", Amount: 100}, ErrInvalidSpendType},
		{"funding type", domain.SpendRequest{Type: domain.TypeFunding, Amount: 100}, ErrFundingViaGateway},
		{"zero amount", domain.SpendRequest{Type: domain.TypeData, Amount: 0}, ErrInvalidAmount},
		{"insufficient funds", domain.SpendRequest{Type: domain.TypeData, Amount: 5000}, store.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.RecordSpend(context.Background(), userID, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if got := repo.balance(userID); got != 1000 {
		t.Fatalf("rejected spends must not move the balance, got %d", got)
	}
}
