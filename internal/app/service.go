/**
 * @description
 * This file contains the core business logic for the wallet-service. The
 * `Service` struct orchestrates wallet funding and spending, coordinating
 * between the database repository and the Paystack checkout client.
 *
 * Key features:
 * - Initiates hosted checkout sessions and records pending funding transactions.
 * - Records synchronous wallet debits for purchase flows.
 * - Serves wallet balance snapshots and transaction history.
 *
 * @dependencies
 * - github.com/google/uuid: For transaction row ids.
 * - github.com/matoous/go-nanoid/v2: For globally unique payment references.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/paystackclient: For the payment gateway API.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/payvault/wallet-service/internal/domain"
	"github.com/payvault/wallet-service/internal/store"
	"github.com/payvault/wallet-service/pkg/paystackclient"
)

// Validation errors surfaced to API callers as 400s.
var (
	ErrAmountTooSmall    = errors.New("funding amount below minimum")
	ErrInvalidAmount     = errors.New("amount must be a positive number")
	ErrInvalidSpendType  = errors.New("unknown spend transaction type")
	ErrFundingViaGateway = errors.New("funding transactions are settled via the payment gateway")
)

// CheckoutGateway is the slice of the Paystack client the service depends on.
// Tests substitute a stub; production wires *paystackclient.Client.
type CheckoutGateway interface {
	InitializeTransaction(ctx context.Context, req paystackclient.InitializeRequest) (*paystackclient.InitializeResponse, error)
}

// Service provides the core business logic for the wallet ledger.
type Service struct {
	repo             store.Repository
	gateway          CheckoutGateway
	minFundingAmount int64
	callbackURL      string
}

// NewService creates a new wallet service instance.
func NewService(repo store.Repository, gateway CheckoutGateway, minFundingAmount int64, callbackURL string) *Service {
	return &Service{
		repo:             repo,
		gateway:          gateway,
		minFundingAmount: minFundingAmount,
		callbackURL:      callbackURL,
	}
}

// NewPaymentReference generates a globally unique payment reference. The
// 21-character nanoid body makes collisions cryptographically negligible.
func NewPaymentReference() (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate payment reference: %w", err)
	}
	return "REF_" + id, nil
}

// InitiateFunding validates the requested amount, opens a hosted checkout
// session with the gateway, and records a pending funding transaction keyed
// by a fresh payment reference. The transaction row is only written after the
// gateway accepts the session, so a gateway failure leaves no dangling state
// and the caller can simply retry.
func (s *Service) InitiateFunding(ctx context.Context, userID uuid.UUID, amount int64) (*domain.FundingSession, error) {
	if amount < s.minFundingAmount {
		return nil, fmt.Errorf("%w: minimum is %d", ErrAmountTooSmall, s.minFundingAmount)
	}

	if _, err := s.repo.FindAccountByUserID(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	reference, err := NewPaymentReference()
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.InitializeTransaction(ctx, paystackclient.InitializeRequest{
		Amount:      amount,
		Email:       user.Email,
		Reference:   reference,
		Description: "Wallet Funding",
		CallbackURL: s.callbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize checkout: %w", err)
	}

	txRecord := &domain.Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      domain.TypeFunding,
		Amount:    amount,
		Status:    domain.StatusPending,
		Reference: reference,
	}
	if err := s.repo.CreateTransaction(ctx, txRecord); err != nil {
		return nil, fmt.Errorf("failed to create funding transaction: %w", err)
	}

	log.Printf("level=info component=wallet_service msg=\"funding initiated\" user_id=%s reference=%s amount=%d",
		userID, reference, amount)

	return &domain.FundingSession{
		CheckoutURL: resp.Data.AuthorizationURL,
		Reference:   reference,
	}, nil
}

// RecordSpend applies a synchronous wallet debit for a purchase flow. The
// purchase provider call itself happens outside the ledger; this records its
// monetary effect atomically.
func (s *Service) RecordSpend(ctx context.Context, userID uuid.UUID, req domain.SpendRequest) (*domain.Transaction, error) {
	if !domain.KnownTransactionType(req.Type) {
		return nil, ErrInvalidSpendType
	}
	if req.Type == domain.TypeFunding {
		return nil, ErrFundingViaGateway
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	reference, err := NewPaymentReference()
	if err != nil {
		return nil, err
	}

	txRecord := &domain.Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      req.Type,
		Amount:    -req.Amount,
		Status:    domain.StatusSuccess,
		Reference: reference,
		Metadata:  req.Metadata,
	}
	if err := s.repo.ApplySpend(ctx, txRecord); err != nil {
		return nil, err
	}

	log.Printf("level=info component=wallet_service msg=\"spend recorded\" user_id=%s reference=%s type=%s amount=%d",
		userID, reference, req.Type, req.Amount)
	return txRecord, nil
}

// GetWallet returns the account's balance snapshot.
func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.WalletSummary, error) {
	account, err := s.repo.FindAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.WalletSummary{
		WalletBalance: account.WalletBalance,
		TotalFunding:  account.TotalFunding,
		TotalSpent:    account.TotalSpent,
	}, nil
}

// ListTransactions returns the account's transaction history, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	if _, err := s.repo.FindAccountByUserID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.FindTransactionsByUserID(ctx, userID)
}
