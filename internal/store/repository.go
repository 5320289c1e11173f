/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the wallet-service. Defining an interface
 * decouples the application's business logic from the PostgreSQL implementation
 * and lets tests substitute hand-rolled stubs.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/payvault/wallet-service/internal/domain"
)

// Sentinel errors returned by repository implementations. Callers branch on
// these with errors.Is rather than inspecting database error codes.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAlreadySettled      = errors.New("transaction already settled")
	ErrDuplicateReference  = errors.New("transaction reference already exists")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User and account methods
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)

	// Transaction methods
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	FindTransactionsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)

	// ApplyFundingSettlement marks the referenced pending transaction
	// successful and credits the owning account's wallet_balance and
	// total_funding by amountPaid, all inside one database transaction.
	// It returns ErrAlreadySettled when the transaction is no longer
	// pending, ErrTransactionNotFound when the reference is unknown, and
	// ErrAccountNotFound when the owning account is missing.
	ApplyFundingSettlement(ctx context.Context, reference string, amountPaid int64, metadata json.RawMessage) error

	// MarkFundingFailed moves a pending funding transaction to failed.
	// Settled transactions are left untouched.
	MarkFundingFailed(ctx context.Context, reference string, metadata json.RawMessage) error

	// ApplySpend debits the account's wallet_balance, increments
	// total_spent, and records a successful spend transaction, all inside
	// one database transaction. Returns ErrInsufficientFunds when the
	// balance cannot cover the amount.
	ApplySpend(ctx context.Context, tx *domain.Transaction) error
}
