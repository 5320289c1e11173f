/**
 * @description
 * This file defines the core domain models for the wallet-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` to represent the value in the smallest currency
 *   unit (kobo), which avoids floating-point inaccuracies with financial data.
 * - The transaction `Reference` is the idempotency key shared by the payment
 *   gateway, the webhook, the settlement queue, and the ledger.
 */

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Transaction statuses. A transaction starts as pending and moves to exactly
// one of success or failed; both are terminal.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Transaction types. Funding is the only type settled through the webhook
// pipeline; the rest are synchronous wallet debits recorded by purchase flows.
const (
	TypeFunding         = "funding"
	TypeData            = "data"
	TypeAirtime         = "airtime"
	TypeElectricity     = "electricity"
	TypeCable           = "cable"
	TypeBulkSMS         = "bulk_sms"
	TypeReferral        = "referral"
	TypeResultChecker   = "result_checker"
	TypeRechargeCardPin = "recharge_card_pin"
)

// KnownTransactionType reports whether t is one of the closed set of
// transaction types the ledger records.
func KnownTransactionType(t string) bool {
	switch t {
	case TypeFunding, TypeData, TypeAirtime, TypeElectricity, TypeCable,
		TypeBulkSMS, TypeReferral, TypeResultChecker, TypeRechargeCardPin:
		return true
	}
	return false
}

// Transaction represents one funding or spend attempt against an account.
// This struct maps directly to the `transactions` table.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Type      string          `json:"type"`
	Amount    int64           `json:"amount"` // in kobo; positive for credits, negative for debits
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Account is a user's wallet ledger record. One account exists per user,
// created at registration.
type Account struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	WalletBalance int64     `json:"wallet_balance"` // in kobo
	TotalFunding  int64     `json:"total_funding"`  // monotonic sum of successful credits
	TotalSpent    int64     `json:"total_spent"`    // monotonic sum of successful debits
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// User is the slice of the user record the wallet-service needs: the gateway
// requires a customer email for hosted checkout.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// FundRequest is the DTO for incoming wallet funding API requests.
type FundRequest struct {
	Amount int64 `json:"amount"` // in kobo
}

// FundingSession is returned to the caller after a checkout session has been
// created with the payment gateway.
type FundingSession struct {
	CheckoutURL string `json:"checkout_url"`
	Reference   string `json:"reference"`
}

// SpendRequest is the DTO for synchronous wallet debit API requests. The
// purchase itself happens against an external provider the ledger does not
// model; only the debit and its metadata are recorded here.
type SpendRequest struct {
	Type     string          `json:"type"`
	Amount   int64           `json:"amount"` // in kobo
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// WalletSummary is the balance snapshot served by the wallet endpoint.
type WalletSummary struct {
	WalletBalance int64 `json:"wallet_balance"`
	TotalFunding  int64 `json:"total_funding"`
	TotalSpent    int64 `json:"total_spent"`
}

// SettlementJob is the unit of work carried by the settlement queue from the
// webhook handler to the settlement worker. Job-id equals Reference, so
// duplicate enqueues for one payment collapse into a single queued job.
type SettlementJob struct {
	Reference  string          `json:"reference"`
	AmountPaid int64           `json:"amount_paid"` // in kobo
	EventData  json.RawMessage `json:"event_data"`
	Attempt    int             `json:"attempt,omitempty"`
}
