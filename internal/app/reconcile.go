/**
 * @description
 * The reconciler is the webhook-to-queue half of the funding pipeline. For a
 * verified successful-payment event it decides whether to enqueue a settlement
 * job, acknowledge a duplicate delivery, or report an unknown reference. The
 * actual ledger mutation happens asynchronously in the settlement worker so
 * the webhook response never waits on the database credit.
 */

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

// SettlementEnqueuer is the queue dependency of the reconciler. It is passed
// in explicitly so tests can substitute an in-memory fake.
type SettlementEnqueuer interface {
	Enqueue(ctx context.Context, job domain.SettlementJob) error
}

// Outcome describes how a verified webhook event was handled.
type Outcome int

const (
	// OutcomeIgnored acknowledges an event type the pipeline does not process.
	OutcomeIgnored Outcome = iota
	// OutcomeEnqueued means a settlement job was queued for the reference.
	OutcomeEnqueued
	// OutcomeDuplicate acknowledges a redelivery for an already-terminal transaction.
	OutcomeDuplicate
	// OutcomeMarkedFailed means a pending funding transaction was marked failed.
	OutcomeMarkedFailed
)

// Reconciler turns verified payment events into settlement jobs.
type Reconciler struct {
	repo  store.Repository
	queue SettlementEnqueuer
}

// NewReconciler creates a reconciler over the given repository and queue.
func NewReconciler(repo store.Repository, queue SettlementEnqueuer) *Reconciler {
	return &Reconciler{repo: repo, queue: queue}
}

// ReconcileVerifiedPayment processes one signature-verified webhook event.
// store.ErrTransactionNotFound propagates so the HTTP layer can answer 404 —
// a terminal response the provider should not retry forever.
func (r *Reconciler) ReconcileVerifiedPayment(ctx context.Context, event domain.PaymentEvent) (Outcome, error) {
	if event.FailedPayment() {
		return r.markFailed(ctx, event)
	}
	if !event.SuccessfulPayment() {
		return OutcomeIgnored, nil
	}

	tx, err := r.repo.FindTransactionByReference(ctx, event.Reference)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			log.Printf("level=warn component=reconciler msg=\"transaction not found for webhook\" reference=%s", event.Reference)
		}
		return OutcomeIgnored, err
	}

	if tx.Status != domain.StatusPending {
		// Duplicate delivery for a settled (or failed) transaction: acknowledge
		// without re-queuing so the provider stops retrying.
		log.Printf("level=info component=reconciler msg=\"duplicate webhook acknowledged\" reference=%s status=%s",
			event.Reference, tx.Status)
		return OutcomeDuplicate, nil
	}

	job := domain.SettlementJob{
		Reference:  event.Reference,
		AmountPaid: event.AmountPaid,
		EventData:  event.Raw,
	}
	if err := r.queue.Enqueue(ctx, job); err != nil {
		return OutcomeIgnored, fmt.Errorf("enqueue settlement job: %w", err)
	}

	log.Printf("level=info component=reconciler msg=\"settlement job enqueued\" reference=%s amount=%d",
		event.Reference, event.AmountPaid)
	return OutcomeEnqueued, nil
}

func (r *Reconciler) markFailed(ctx context.Context, event domain.PaymentEvent) (Outcome, error) {
	metadata, err := json.Marshal(map[string]interface{}{
		"failure_event": json.RawMessage(event.Raw),
		"date_failed":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("marshal failure metadata: %w", err)
	}
	if err := r.repo.MarkFundingFailed(ctx, event.Reference, metadata); err != nil {
		if errors.Is(err, store.ErrAlreadySettled) {
			return OutcomeDuplicate, nil
		}
		return OutcomeIgnored, err
	}
	log.Printf("level=info component=reconciler msg=\"funding marked failed\" reference=%s", event.Reference)
	return OutcomeMarkedFailed, nil
}
