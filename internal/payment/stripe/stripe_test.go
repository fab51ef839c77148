package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthorizeManualCapture(t *testing.T) {
	var gotForm map[string]string
	var gotIdempotency string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_test_1" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		gotIdempotency = r.Header.Get("Idempotency-Key")
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = map[string]string{
			"amount":         r.PostForm.Get("amount"),
			"currency":       r.PostForm.Get("currency"),
			"capture_method": r.PostForm.Get("capture_method"),
			"payment_method": r.PostForm.Get("payment_method"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","status":"requires_capture","amount":3740,"currency":"usd"}`))
	}))
	defer server.Close()

	cfg := &Config{SecretKey: "sk_test_1", APIBaseURL: server.URL}
	ctx := WithIdempotencyKey(context.Background(), "R100-1")
	result, err := Authorize(ctx, cfg, AuthorizeInput{
		OrderNumber:   "R100",
		PaymentID:     1,
		Amount:        "37.40",
		Currency:      "USD",
		PaymentMethod: "pm_card_visa",
	})
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if result.PaymentIntentID != "pi_123" || result.Status != StatusPending {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Amount != "37.40" || result.Currency != "USD" {
		t.Fatalf("unexpected amount: %s %s", result.Amount, result.Currency)
	}
	if gotForm["amount"] != "3740" || gotForm["currency"] != "usd" || gotForm["capture_method"] != "manual" || gotForm["payment_method"] != "pm_card_visa" {
		t.Fatalf("unexpected form: %+v", gotForm)
	}
	if gotIdempotency != "R100-1" {
		t.Fatalf("unexpected idempotency key: %s", gotIdempotency)
	}
}

func TestAuthorizeCardDeclined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"code":"card_declined","message":"Your card was declined.","payment_intent":{"id":"pi_declined"}}}`))
	}))
	defer server.Close()

	result, err := Authorize(context.Background(), &Config{SecretKey: "sk", APIBaseURL: server.URL}, AuthorizeInput{
		OrderNumber:   "R101",
		Amount:        "10.00",
		Currency:      "USD",
		PaymentMethod: "pm_card_chargeDeclined",
	})
	if err != nil {
		t.Fatalf("declined card should not be a transport error: %v", err)
	}
	if result.Status != StatusFailed || result.PaymentIntentID != "pi_declined" || result.GatewayStatus != "card_declined" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCaptureAndServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/payment_intents/pi_ok/capture":
			_ = r.ParseForm()
			if r.PostForm.Get("amount_to_capture") != "2000" {
				t.Errorf("unexpected capture amount: %s", r.PostForm.Get("amount_to_capture"))
			}
			_, _ = w.Write([]byte(`{"id":"pi_ok","status":"succeeded","amount_received":2000,"currency":"usd"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
		}
	}))
	defer server.Close()
	cfg := &Config{SecretKey: "sk", APIBaseURL: server.URL}

	result, err := Capture(context.Background(), cfg, "pi_ok", "20.00", "USD")
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if result.Status != StatusCompleted || result.Amount != "20.00" {
		t.Fatalf("unexpected capture result: %+v", result)
	}
	if _, err := Cancel(context.Background(), cfg, "pi_broken"); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected response invalid error, got %v", err)
	}
}

func TestValidateConfigAndAmounts(t *testing.T) {
	if err := ValidateConfig(&Config{}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected config invalid, got %v", err)
	}
	cfg := &Config{SecretKey: " sk "}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if cfg.APIBaseURL != defaultAPIBaseURL {
		t.Fatalf("unexpected base url: %s", cfg.APIBaseURL)
	}
	if minor, err := toMinorAmount("1200", "JPY"); err != nil || minor != 1200 {
		t.Fatalf("unexpected jpy minor: %d %v", minor, err)
	}
	if _, err := toMinorAmount("0", "USD"); err == nil {
		t.Fatalf("expected zero amount to fail")
	}
	cases := map[string]string{
		"succeeded":               StatusCompleted,
		"requires_capture":        StatusPending,
		"processing":              StatusPending,
		"requires_payment_method": StatusFailed,
		"canceled":                StatusFailed,
	}
	for input, want := range cases {
		if got := MapIntentStatus(input); got != want {
			t.Fatalf("status %s: want %s got %s", input, want, got)
		}
	}
}
