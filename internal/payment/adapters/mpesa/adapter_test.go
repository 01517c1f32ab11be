package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/plantmetrics/plant/internal/payment/domain"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"0712345678", "254712345678", true},
		{"712345678", "254712345678", true},
		{"+254712345678", "254712345678", true},
		{"254712345678", "254712345678", true},
		{"0712 345 678", "254712345678", true},
		{"0712-345-678", "254712345678", true},
		{"071234567", "", false},   // leading zero with short body
		{"07123456789", "", false}, // too long
		{"0712345abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("NormalizePhone(%q): unexpected error %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
			}
			continue
		}
		if !errors.Is(err, domain.ErrInvalidPhone) {
			t.Fatalf("NormalizePhone(%q): expected ErrInvalidPhone, got %v", tc.in, err)
		}
	}
}

func TestParseCallbackSuccess(t *testing.T) {
	payload := []byte(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 1050.00},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						{"Name": "TransactionDate", "Value": 20191219102115},
						{"Name": "PhoneNumber", "Value": 254708374149}
					]
				}
			}
		}
	}`)

	adapter := &Adapter{}
	event, err := adapter.ParseCallback(context.Background(), payload)
	if err != nil {
		t.Fatalf("parse callback: %v", err)
	}
	if event.CheckoutToken != "ws_CO_191220191020363925" {
		t.Fatalf("unexpected checkout token %q", event.CheckoutToken)
	}
	if !event.Succeeded() {
		t.Fatalf("expected success event")
	}
	if event.AmountCents != 105000 {
		t.Fatalf("expected 105000 cents, got %d", event.AmountCents)
	}
	if event.ReceiptNumber != "NLJ7RT61SV" {
		t.Fatalf("unexpected receipt %q", event.ReceiptNumber)
	}
	if event.PayerPhone != "254708374149" {
		t.Fatalf("unexpected payer phone %q", event.PayerPhone)
	}
	want := time.Date(2019, 12, 19, 10, 21, 15, 0, time.UTC)
	if event.TransactionAt == nil || !event.TransactionAt.Equal(want) {
		t.Fatalf("unexpected transaction time %v", event.TransactionAt)
	}
}

func TestParseCallbackFailureHasNoMetadata(t *testing.T) {
	payload := []byte(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user."
			}
		}
	}`)

	adapter := &Adapter{}
	event, err := adapter.ParseCallback(context.Background(), payload)
	if err != nil {
		t.Fatalf("parse callback: %v", err)
	}
	if event.Succeeded() {
		t.Fatalf("expected failure event")
	}
	if event.ResultCode != 1032 {
		t.Fatalf("unexpected result code %d", event.ResultCode)
	}
	if event.ReceiptNumber != "" || event.AmountCents != 0 {
		t.Fatalf("expected empty metadata, got %+v", event)
	}
}

func TestParseCallbackRejectsGarbage(t *testing.T) {
	adapter := &Adapter{}
	if _, err := adapter.ParseCallback(context.Background(), []byte(`{"Body":{}}`)); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for missing callback, got %v", err)
	}
	if _, err := adapter.ParseCallback(context.Background(), []byte(`not json`)); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for garbage, got %v", err)
	}
}

func TestInitiateRoundsToWholeShillings(t *testing.T) {
	var captured stkPushRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
		case "/mpesa/stkpush/v1/processrequest":
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Errorf("decode stk push: %v", err)
			}
			json.NewEncoder(w).Encode(map[string]string{
				"MerchantRequestID": "m-1",
				"CheckoutRequestID": "ws_CO_test",
				"ResponseCode":      "0",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	factory := NewFactory()
	adapter, err := factory.NewAdapter(domain.AdapterConfig{
		BaseURL:   server.URL,
		ShortCode: "174379",
		Passkey:   "test-passkey",
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	ack, err := adapter.Initiate(context.Background(), domain.InitiateRequest{
		PhoneNumber: "0712345678",
		AmountCents: 105049, // 1050.49 rounds up to 1051
		Description: "a very long trade description",
		Reference:   "TRADE-1",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if ack.CheckoutToken != "ws_CO_test" {
		t.Fatalf("unexpected checkout token %q", ack.CheckoutToken)
	}
	if captured.Amount != 1051 {
		t.Fatalf("expected whole-shilling amount 1051, got %d", captured.Amount)
	}
	if captured.PhoneNumber != "254712345678" {
		t.Fatalf("unexpected msisdn %q", captured.PhoneNumber)
	}
	if len(captured.TransactionDesc) > 13 {
		t.Fatalf("description not truncated: %q", captured.TransactionDesc)
	}

	// Exact shilling amounts pass through unchanged.
	if _, err := adapter.Initiate(context.Background(), domain.InitiateRequest{
		PhoneNumber: "0712345678",
		AmountCents: 105000,
	}); err != nil {
		t.Fatalf("initiate exact amount: %v", err)
	}
	if captured.Amount != 1050 {
		t.Fatalf("exact amount must not round, got %d", captured.Amount)
	}
}

func TestInitiateSurfacesDecline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
		default:
			json.NewEncoder(w).Encode(map[string]string{
				"ResponseCode":        "1",
				"ResponseDescription": "insufficient float",
			})
		}
	}))
	defer server.Close()

	factory := NewFactory()
	adapter, err := factory.NewAdapter(domain.AdapterConfig{
		BaseURL:   server.URL,
		ShortCode: "174379",
		Passkey:   "test-passkey",
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	_, err = adapter.Initiate(context.Background(), domain.InitiateRequest{
		PhoneNumber: "0712345678",
		AmountCents: 1000,
	})
	if !errors.Is(err, domain.ErrInitiateDeclined) {
		t.Fatalf("expected ErrInitiateDeclined, got %v", err)
	}
}
