/**
 * @description
 * This file contains the HTTP handler for processing incoming webhooks from
 * the payment provider. It is the entry point of the funding reconciliation
 * pipeline.
 *
 * Key features:
 * - Security: validates the HMAC-SHA512 signature of incoming webhooks in
 *   constant time before any processing.
 * - Parsing: decodes the loosely-typed payload into a tagged event variant.
 * - Reconciliation: hands verified successful-payment events to the
 *   reconciler, which enqueues the settlement job; the response never waits
 *   on the ledger mutation.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha512, encoding/hex: For webhook signature validation.
 * - internal/app, internal/domain, internal/store: Reconciler, event parsing, errors.
 */

package api

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/payvault/wallet-service/internal/app"
	"github.com/payvault/wallet-service/internal/domain"
	"github.com/payvault/wallet-service/internal/store"
)

// SignatureHeader carries the provider's HMAC-SHA512 hex signature.
const SignatureHeader = "x-paystack-signature"

// StatusInvalidSignature is the provider-documented response code for a
// signature mismatch.
const StatusInvalidSignature = 430

// WebhookHandler processes incoming payment provider webhooks.
type WebhookHandler struct {
	reconciler *app.Reconciler
	secret     string
}

// NewWebhookHandler creates a new handler for the webhook endpoint.
func NewWebhookHandler(reconciler *app.Reconciler, secret string) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, secret: secret}
}

func (h *WebhookHandler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("level=error component=webhook msg=\"response encode failed\" err=%v", err)
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Cannot read request body"})
		return
	}

	if !h.validSignature(r.Header.Get(SignatureHeader), body) {
		// Logged as a potential security event; nothing else runs.
		log.Printf("level=warn component=webhook msg=\"invalid webhook signature\" remote=%s", r.RemoteAddr)
		h.writeJSON(w, StatusInvalidSignature, map[string]interface{}{"success": false, "error": "Invalid signature"})
		return
	}

	event, err := domain.ParsePaymentEvent(body)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Invalid JSON payload"})
		return
	}

	if !event.SuccessfulPayment() && !event.FailedPayment() {
		// Unrelated event types are acknowledged so the provider does not retry.
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Webhook acknowledged: skipped processing"})
		return
	}

	outcome, err := h.reconciler.ReconcileVerifiedPayment(r.Context(), event)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "error": "Transaction not found"})
			return
		}
		log.Printf("level=error component=webhook msg=\"reconciliation failed\" reference=%s err=%v", event.Reference, err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "Internal server error"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": outcomeMessage(outcome)})
}

func outcomeMessage(outcome app.Outcome) string {
	switch outcome {
	case app.OutcomeDuplicate:
		return "Transaction has been processed earlier"
	case app.OutcomeMarkedFailed:
		return "Funding transaction marked failed"
	case app.OutcomeEnqueued:
		return "Transaction verified successfully"
	default:
		return "Webhook acknowledged"
	}
}

// validSignature compares the provider-supplied signature against the
// HMAC-SHA512 of the raw body. hmac.Equal keeps the comparison constant time.
func (h *WebhookHandler) validSignature(signature string, body []byte) bool {
	if h.secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(h.secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(provided, expected)
}
