package taxservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestQuoteParsesAmounts(t *testing.T) {
	var got QuoteRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tax/quote" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key-1" {
			t.Errorf("unexpected auth: %s", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"total_item_tax":"2.00","shipping_tax":0.4,"lines":[{"number":"10","tax":"1.25"},{"number":"20","tax":"0.75"}]}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL + "/", APIKey: "key-1", CompanyCode: "WNP"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	quote, err := client.Quote(context.Background(), QuoteRequest{
		DocumentCode: "R1",
		Currency:     "USD",
		Lines:        []Line{{Number: "10", ItemCode: "SKU-1", Quantity: 1, Amount: decimal.NewFromInt(25)}},
		Shipping:     decimal.NewFromInt(5),
	})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if !quote.TotalItemTax.Equal(decimal.RequireFromString("2.00")) || !quote.ShippingTax.Equal(decimal.RequireFromString("0.4")) {
		t.Fatalf("unexpected quote: %+v", quote)
	}
	if taxes := quote.LineTaxes(); !taxes["10"].Equal(decimal.RequireFromString("1.25")) {
		t.Fatalf("unexpected line taxes: %+v", taxes)
	}
	if got.CompanyCode != "WNP" || got.DocumentCode != "R1" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestQuoteTimeoutAndStatus(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	client, err := NewClient(Config{BaseURL: slow.URL, Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Quote(context.Background(), QuoteRequest{}); !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected request failed on timeout, got %v", err)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()
	client, _ = NewClient(Config{BaseURL: failing.URL})
	if err := client.Commit(context.Background(), QuoteRequest{}); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected response invalid, got %v", err)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected config invalid, got %v", err)
	}
}
