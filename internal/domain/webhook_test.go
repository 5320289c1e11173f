package domain

import (
	"errors"
	"testing"
)

func TestParsePaymentEvent(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		wantErr   bool
		wantType  string
		wantRef   string
		wantKobo  int64
		isSuccess bool
	}{
		{
			name:      "charge.success with canonical fields",
			body:      `{"event": "charge.success", "data": {"reference": "REF_abc123", "amount": 5000}}`,
			wantType:  EventChargeSuccess,
			wantRef:   "REF_abc123",
			wantKobo:  5000,
			isSuccess: true,
		},
		{
			name:      "eventType spelling",
			body:      `{"eventType": "charge.success", "data": {"reference": "REF_abc123", "amount": 5000}}`,
			wantType:  EventChargeSuccess,
			wantRef:   "REF_abc123",
			wantKobo:  5000,
			isSuccess: true,
		},
		{
			name:      "paymentReference and amountPaid spellings",
			body:      `{"event": "charge.success", "data": {"paymentReference": "REF_xyz", "amountPaid": 2500}}`,
			wantType:  EventChargeSuccess,
			wantRef:   "REF_xyz",
			wantKobo:  2500,
			isSuccess: true,
		},
		{
			name:      "payload nested under eventData",
			body:      `{"eventType": "charge.success", "eventData": {"reference": "REF_nested", "amount": 750}}`,
			wantType:  EventChargeSuccess,
			wantRef:   "REF_nested",
			wantKobo:  750,
			isSuccess: true,
		},
		{
			name:     "charge.failed carries no amount",
			body:     `{"event": "charge.failed", "data": {"reference": "REF_bad"}}`,
			wantType: EventChargeFailed,
			wantRef:  "REF_bad",
		},
		{
			name:     "unrelated event passes through",
			body:     `{"event": "transfer.success", "data": {"reference": "TRF_001", "amount": 9000}}`,
			wantType: "transfer.success",
			wantRef:  "TRF_001",
			wantKobo: 9000,
		},
		{
			name:    "invalid json",
			body:    `{"event": "charge.success"`,
			wantErr: true,
		},
		{
			name:    "charge.success without reference",
			body:    `{"event": "charge.success", "data": {"amount": 5000}}`,
			wantErr: true,
		},
		{
			name:    "charge.success with whitespace reference",
			body:    `{"event": "charge.success", "data": {"reference": "   ", "amount": 5000}}`,
			wantErr: true,
		},
		{
			name:    "charge.success with zero amount",
			body:    `{"event": "charge.success", "data": {"reference": "REF_abc123", "amount": 0}}`,
			wantErr: true,
		},
		{
			name:    "charge.success with negative amount",
			body:    `{"event": "charge.success", "data": {"reference": "REF_abc123", "amount": -5000}}`,
			wantErr: true,
		},
		{
			name:    "charge.failed without reference",
			body:    `{"event": "charge.failed", "data": {}}`,
			wantErr: true,
		},
		{
			name:    "eventData that is not an object",
			body:    `{"event": "charge.success", "eventData": "not-an-object"}`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event, err := ParsePaymentEvent([]byte(tc.body))
			if tc.wantErr {
				if !errors.Is(err, ErrMalformedWebhook) {
					t.Fatalf("expected ErrMalformedWebhook, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if event.Type != tc.wantType {
				t.Errorf("type: got %q, want %q", event.Type, tc.wantType)
			}
			if event.Reference != tc.wantRef {
				t.Errorf("reference: got %q, want %q", event.Reference, tc.wantRef)
			}
			if event.AmountPaid != tc.wantKobo {
				t.Errorf("amount: got %d, want %d", event.AmountPaid, tc.wantKobo)
			}
			if event.SuccessfulPayment() != tc.isSuccess {
				t.Errorf("SuccessfulPayment: got %v, want %v", event.SuccessfulPayment(), tc.isSuccess)
			}
			if string(event.Raw) != tc.body {
				t.Error("raw payload must be preserved verbatim")
			}
		})
	}
}
