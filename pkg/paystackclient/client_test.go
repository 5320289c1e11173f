package paystackclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestInitializeTransactionSuccess(t *testing.T) {
	var gotAuth, gotPath string
	var gotPayload map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decoding request payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": true,
			"message": "Authorization URL created",
			"data": {
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code": "abc123",
				"reference": "REF_abc123"
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk_test_secret")
	resp, err := client.InitializeTransaction(context.Background(), InitializeRequest{
		Amount:      5000,
		Email:       "user@example.com",
		Reference:   "REF_abc123",
		Description: "wallet funding",
		CallbackURL: "https://app.example.com/dashboard",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/transaction/initialize" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotAuth != "Bearer sk_test_secret" {
		t.Errorf("authorization header: got %q", gotAuth)
	}
	if gotPayload["email"] != "user@example.com" || gotPayload["reference"] != "REF_abc123" {
		t.Errorf("unexpected payload: %v", gotPayload)
	}
	if amount, ok := gotPayload["amount"].(float64); !ok || int64(amount) != 5000 {
		t.Errorf("amount: got %v", gotPayload["amount"])
	}
	if resp.Data.AuthorizationURL != "https://checkout.paystack.com/abc123" {
		t.Errorf("authorization url: got %q", resp.Data.AuthorizationURL)
	}
	if resp.Data.Reference != "REF_abc123" {
		t.Errorf("reference: got %q", resp.Data.Reference)
	}
}

func TestInitializeTransactionAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status": false, "message": "Invalid key"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk_test_wrong")
	_, err := client.InitializeTransaction(context.Background(), InitializeRequest{
		Amount: 5000, Email: "user@example.com", Reference: "REF_abc123",
	})
	if err == nil {
		t.Fatal("expected an error for a 401 response")
	}

	var apiErr *ErrorResponse
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *ErrorResponse, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "Invalid key" {
		t.Fatalf("unexpected error response: %+v", apiErr)
	}
}

func TestInitializeTransactionRejectedWithoutCheckoutURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": false, "message": "Merchant not live"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk_test_secret")
	_, err := client.InitializeTransaction(context.Background(), InitializeRequest{
		Amount: 5000, Email: "user@example.com", Reference: "REF_abc123",
	})
	if err == nil || !strings.Contains(err.Error(), "Merchant not live") {
		t.Fatalf("expected rejection error carrying the provider message, got %v", err)
	}
}
