package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/payvault/wallet-service/internal/domain"
	"github.com/payvault/wallet-service/internal/store"
)

// memRepo is an in-memory store.Repository with the same idempotency
// semantics as the PostgreSQL implementation: conditional status transitions
// and atomic balance updates under one lock.
type memRepo struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*domain.User
	accounts map[uuid.UUID]*domain.Account
	txs      map[string]*domain.Transaction
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:    make(map[uuid.UUID]*domain.User),
		accounts: make(map[uuid.UUID]*domain.Account),
		txs:      make(map[string]*domain.Transaction),
	}
}

func (m *memRepo) seedUser(email string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID := uuid.New()
	m.users[userID] = &domain.User{ID: userID, Email: email}
	m.accounts[userID] = &domain.Account{ID: uuid.New(), UserID: userID}
	return userID
}

func (m *memRepo) balance(userID uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[userID].WalletBalance
}

func (m *memRepo) transaction(reference string) *domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx, ok := m.txs[reference]; ok {
		copied := *tx
		return &copied
	}
	return nil
}

func (m *memRepo) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *memRepo) FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[userID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *memRepo) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.txs[tx.Reference]; exists {
		return store.ErrDuplicateReference
	}
	copied := *tx
	copied.CreatedAt = time.Now().UTC()
	copied.UpdatedAt = copied.CreatedAt
	m.txs[tx.Reference] = &copied
	return nil
}

func (m *memRepo) FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[reference]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	copied := *tx
	return &copied, nil
}

func (m *memRepo) FindTransactionsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range m.txs {
		if tx.UserID == userID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (m *memRepo) ApplyFundingSettlement(ctx context.Context, reference string, amountPaid int64, metadata json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[reference]
	if !ok {
		return store.ErrTransactionNotFound
	}
	if tx.Status != domain.StatusPending {
		return store.ErrAlreadySettled
	}
	account, ok := m.accounts[tx.UserID]
	if !ok {
		return store.ErrAccountNotFound
	}
	tx.Status = domain.StatusSuccess
	tx.Metadata = metadata
	tx.UpdatedAt = time.Now().UTC()
	account.WalletBalance += amountPaid
	account.TotalFunding += amountPaid
	return nil
}

func (m *memRepo) MarkFundingFailed(ctx context.Context, reference string, metadata json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[reference]
	if !ok {
		return store.ErrTransactionNotFound
	}
	if tx.Status != domain.StatusPending {
		return store.ErrAlreadySettled
	}
	tx.Status = domain.StatusFailed
	tx.Metadata = metadata
	return nil
}

func (m *memRepo) ApplySpend(ctx context.Context, spend *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[spend.UserID]
	if !ok {
		return store.ErrAccountNotFound
	}
	debit := -spend.Amount
	if account.WalletBalance < debit {
		return store.ErrInsufficientFunds
	}
	if _, exists := m.txs[spend.Reference]; exists {
		return store.ErrDuplicateReference
	}
	account.WalletBalance -= debit
	account.TotalSpent += debit
	copied := *spend
	m.txs[spend.Reference] = &copied
	return nil
}

// memQueue is an in-memory SettlementEnqueuer that records enqueued jobs and
// collapses duplicates by reference, like the real queue.
type memQueue struct {
	mu     sync.Mutex
	jobs   []domain.SettlementJob
	queued map[string]bool
	// deliver, when set, hands each accepted job straight to a worker.
	deliver func(context.Context, domain.SettlementJob) error
}

func newMemQueue() *memQueue {
	return &memQueue{queued: make(map[string]bool)}
}

func (q *memQueue) Enqueue(ctx context.Context, job domain.SettlementJob) error {
	q.mu.Lock()
	if q.queued[job.Reference] {
		q.mu.Unlock()
		return nil
	}
	q.queued[job.Reference] = true
	q.jobs = append(q.jobs, job)
	deliver := q.deliver
	q.mu.Unlock()

	if deliver != nil {
		defer q.release(job.Reference)
		return deliver(ctx, job)
	}
	return nil
}

func (q *memQueue) release(reference string) {
	q.mu.Lock()
	delete(q.queued, reference)
	q.mu.Unlock()
}

func (q *memQueue) enqueued() []domain.SettlementJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.SettlementJob, len(q.jobs))
	copy(out, q.jobs)
	return out
}
