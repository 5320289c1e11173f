package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/payvault/wallet-service/internal/domain"
	"github.com/payvault/wallet-service/internal/store"
)

// SettlementWorker applies queued settlement jobs to the ledger. Handle is
// safe to re-run for the same reference: the status re-check and the
// conditional UPDATE in the repository make redelivered and concurrently
// duplicated jobs no-ops.
type SettlementWorker struct {
	repo store.Repository
}

// NewSettlementWorker creates a worker over the given repository.
func NewSettlementWorker(repo store.Repository) *SettlementWorker {
	return &SettlementWorker{repo: repo}
}

type settlementMetadata struct {
	PaymentDetails json.RawMessage `json:"payment_details,omitempty"`
	DateVerified   string          `json:"date_verified"`
}

// Handle processes one settlement job. A nil return acknowledges the job; any
// other error propagates so the queue's retry policy takes over.
func (w *SettlementWorker) Handle(ctx context.Context, job domain.SettlementJob) error {
	tx, err := w.repo.FindTransactionByReference(ctx, job.Reference)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			log.Printf("level=warn component=settlement_worker msg=\"transaction missing; job discarded\" reference=%s", job.Reference)
			return nil
		}
		return fmt.Errorf("lookup transaction: %w", err)
	}
	if tx.Status == domain.StatusSuccess {
		log.Printf("level=info component=settlement_worker msg=\"already settled; job discarded\" reference=%s", job.Reference)
		return nil
	}

	metadata, err := json.Marshal(settlementMetadata{
		PaymentDetails: job.EventData,
		DateVerified:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal settlement metadata: %w", err)
	}

	err = w.repo.ApplyFundingSettlement(ctx, job.Reference, job.AmountPaid, metadata)
	switch {
	case err == nil:
		log.Printf("level=info component=settlement_worker msg=\"wallet funded\" reference=%s amount=%d", job.Reference, job.AmountPaid)
		return nil
	case errors.Is(err, store.ErrAlreadySettled):
		// A concurrent job for the same reference won the race.
		return nil
	case errors.Is(err, store.ErrTransactionNotFound):
		log.Printf("level=warn component=settlement_worker msg=\"transaction vanished; job discarded\" reference=%s", job.Reference)
		return nil
	case errors.Is(err, store.ErrAccountNotFound):
		// Data-integrity anomaly: a transaction without an owning account.
		// Retrying cannot fix it, so discard loudly instead of looping.
		log.Printf("level=error component=settlement_worker msg=\"account missing for settled transaction\" reference=%s user_id=%s",
			job.Reference, tx.UserID)
		return nil
	default:
		return fmt.Errorf("apply settlement: %w", err)
	}
}
