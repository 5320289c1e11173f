/**
 * @description
 * This file models the payment provider's webhook payload. The raw payload is
 * loosely typed on the wire, so it is parsed once at the boundary into a
 * tagged variant: a successful payment carrying a reference and amount, or an
 * unrelated event the pipeline acknowledges without processing.
 */

package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

// EventChargeSuccess is the only provider event that triggers settlement.
const EventChargeSuccess = "charge.success"

// EventChargeFailed marks a funding attempt as permanently failed.
const EventChargeFailed = "charge.failed"

// ErrMalformedWebhook is returned when the payload cannot be parsed or a
// successful-payment event is missing its reference or amount.
var ErrMalformedWebhook = errors.New("malformed webhook payload")

// PaymentEvent is the parsed form of a provider webhook. Exactly one shape is
// meaningful to the reconciliation engine; everything else is a no-op.
type PaymentEvent struct {
	Type       string
	Reference  string
	AmountPaid int64 // in kobo
	Raw        json.RawMessage
}

// SuccessfulPayment reports whether the event should enter the settlement
// pipeline.
func (e PaymentEvent) SuccessfulPayment() bool {
	return e.Type == EventChargeSuccess
}

// FailedPayment reports whether the event marks the funding attempt failed.
func (e PaymentEvent) FailedPayment() bool {
	return e.Type == EventChargeFailed
}

// webhookEnvelope tolerates the field spellings seen across provider payloads:
// event/eventType at the top level and reference/paymentReference,
// amount/amountPaid inside the data object.
type webhookEnvelope struct {
	Event     string          `json:"event"`
	EventType string          `json:"eventType"`
	Data      webhookData     `json:"data"`
	EventData json.RawMessage `json:"eventData"`
}

type webhookData struct {
	Reference        string `json:"reference"`
	PaymentReference string `json:"paymentReference"`
	Amount           int64  `json:"amount"`
	AmountPaid       int64  `json:"amountPaid"`
}

// ParsePaymentEvent decodes a raw webhook body into a PaymentEvent. Payment
// events missing a reference or a positive amount are rejected explicitly
// rather than trusting field presence downstream.
func ParsePaymentEvent(body []byte) (PaymentEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return PaymentEvent{}, ErrMalformedWebhook
	}

	data := env.Data
	if len(env.EventData) > 0 {
		// Some provider configurations nest the payload under eventData.
		if err := json.Unmarshal(env.EventData, &data); err != nil {
			return PaymentEvent{}, ErrMalformedWebhook
		}
	}

	event := PaymentEvent{
		Type: strings.TrimSpace(env.Event),
		Raw:  json.RawMessage(body),
	}
	if event.Type == "" {
		event.Type = strings.TrimSpace(env.EventType)
	}

	event.Reference = strings.TrimSpace(data.Reference)
	if event.Reference == "" {
		event.Reference = strings.TrimSpace(data.PaymentReference)
	}
	event.AmountPaid = data.Amount
	if event.AmountPaid == 0 {
		event.AmountPaid = data.AmountPaid
	}

	if event.SuccessfulPayment() || event.FailedPayment() {
		if event.Reference == "" {
			return PaymentEvent{}, ErrMalformedWebhook
		}
		if event.SuccessfulPayment() && event.AmountPaid <= 0 {
			return PaymentEvent{}, ErrMalformedWebhook
		}
	}

	return event, nil
}
