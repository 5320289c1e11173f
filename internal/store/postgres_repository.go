/**
 * @description
 * PostgreSQL implementation of the `Repository` interface using the pgx
 * connection pool. Ledger mutations are expressed as in-database atomic
 * increments guarded by conditional UPDATEs, so re-running a settlement after
 * a crash or a duplicate delivery can never double-apply a payment.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and connection pooling.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payvault/wallet-service/internal/domain"
)

const uniqueViolationCode = "23505"

// PostgresRepository provides data access methods backed by PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository with the given connection pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := r.db.QueryRow(ctx,
		`SELECT id, email FROM users WHERE id = $1`, userID,
	).Scan(&user.ID, &user.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *PostgresRepository) FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, wallet_balance, total_funding, total_spent, created_at, updated_at
		 FROM accounts WHERE user_id = $1`, userID,
	).Scan(&account.ID, &account.UserID, &account.WalletBalance, &account.TotalFunding,
		&account.TotalSpent, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *PostgresRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	metadata := tx.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	query := `
		INSERT INTO transactions (id, user_id, type, amount, status, reference, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`
	_, err := r.db.Exec(ctx, query, tx.ID, tx.UserID, tx.Type, tx.Amount, tx.Status, tx.Reference, metadata)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, type, amount, status, reference, metadata, created_at, updated_at
		 FROM transactions WHERE reference = $1`, reference,
	).Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Status, &tx.Reference,
		&tx.Metadata, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *PostgresRepository) FindTransactionsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, type, amount, status, reference, metadata, created_at, updated_at
		 FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Status,
			&tx.Reference, &tx.Metadata, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// ApplyFundingSettlement applies a verified payment to the ledger. The status
// guard on the transactions UPDATE makes redelivery a no-op, and the account
// credit is an in-database increment, so concurrent settlement of different
// references for the same account cannot lose updates.
func (r *PostgresRepository) ApplyFundingSettlement(ctx context.Context, reference string, amountPaid int64, metadata json.RawMessage) error {
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var userID uuid.UUID
	err = tx.QueryRow(ctx,
		`UPDATE transactions
		 SET status = 'success', metadata = metadata || $2::jsonb, updated_at = NOW()
		 WHERE reference = $1 AND status = 'pending'
		 RETURNING user_id`, reference, metadata,
	).Scan(&userID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		// No pending row. Distinguish an already-settled transaction from an
		// unknown reference so the worker can discard versus report.
		var status string
		lookupErr := tx.QueryRow(ctx, `SELECT status FROM transactions WHERE reference = $1`, reference).Scan(&status)
		if errors.Is(lookupErr, pgx.ErrNoRows) {
			return ErrTransactionNotFound
		}
		if lookupErr != nil {
			return lookupErr
		}
		return ErrAlreadySettled
	}

	tag, err := tx.Exec(ctx,
		`UPDATE accounts
		 SET wallet_balance = wallet_balance + $1, total_funding = total_funding + $1, updated_at = NOW()
		 WHERE user_id = $2`, amountPaid, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) MarkFundingFailed(ctx context.Context, reference string, metadata json.RawMessage) error {
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE transactions
		 SET status = 'failed', metadata = metadata || $2::jsonb, updated_at = NOW()
		 WHERE reference = $1 AND status = 'pending'`, reference, metadata)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var status string
		lookupErr := r.db.QueryRow(ctx, `SELECT status FROM transactions WHERE reference = $1`, reference).Scan(&status)
		if errors.Is(lookupErr, pgx.ErrNoRows) {
			return ErrTransactionNotFound
		}
		if lookupErr != nil {
			return lookupErr
		}
		return ErrAlreadySettled
	}
	return nil
}

// ApplySpend performs an atomic debit on the account and records the spend
// transaction. The FOR UPDATE lock serializes debits against concurrent
// settlement credits on the same row.
func (r *PostgresRepository) ApplySpend(ctx context.Context, spend *domain.Transaction) error {
	debit := -spend.Amount
	if debit <= 0 {
		return fmt.Errorf("spend amount must be a negative transaction amount, got %d", spend.Amount)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `SELECT wallet_balance FROM accounts WHERE user_id = $1 FOR UPDATE`, spend.UserID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return err
	}
	if balance < debit {
		return ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx,
		`UPDATE accounts
		 SET wallet_balance = wallet_balance - $1, total_spent = total_spent + $1, updated_at = NOW()
		 WHERE user_id = $2`, debit, spend.UserID)
	if err != nil {
		return err
	}

	metadata := spend.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (id, user_id, type, amount, status, reference, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		spend.ID, spend.UserID, spend.Type, spend.Amount, spend.Status, spend.Reference, metadata, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicateReference
		}
		return err
	}

	return tx.Commit(ctx)
}
