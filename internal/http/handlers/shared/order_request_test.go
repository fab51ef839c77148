package shared

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCheckoutRequestToInput(t *testing.T) {
	raw := `{
		"line_items": [{"variant_id": 3, "quantity": 2, "catalog_code": "SP"}],
		"shipping_address": {"id": 9},
		"billing_address": {"firstname": " Ada ", "address1": "1 Main St", "city": "Austin", "zipcode": "73301", "country_id": 1},
		"shipping_method_id": 4,
		"client_request_id": " req-7 ",
		"payment": {"payment_method_id": 2, "amount": "12.50", "gift_card": {"code": " GC1 ", "pin": "1234"}}
	}`
	var req CheckoutRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	input := req.ToInput(7, 1)
	if input.UserID != 7 || input.OperatorID != 1 {
		t.Fatalf("unexpected actors: %+v", input)
	}
	if input.ShippingAddressID == nil || *input.ShippingAddressID != 9 || input.ShippingAddress != nil {
		t.Fatalf("expected shipping address id, got %+v %+v", input.ShippingAddressID, input.ShippingAddress)
	}
	if input.BillingAddressID != nil || input.BillingAddress == nil || input.BillingAddress.Firstname != "Ada" {
		t.Fatalf("expected inline billing address, got %+v", input.BillingAddress)
	}
	if input.ClientRequestID != "req-7" {
		t.Fatalf("client request id should be trimmed, got %q", input.ClientRequestID)
	}
	if input.Payment == nil || input.Payment.OperatorID != 1 || input.Payment.Amount == nil || input.Payment.Amount.StringFixed(2) != "12.50" {
		t.Fatalf("unexpected payment: %+v", input.Payment)
	}
	if input.Payment.GiftCard == nil || input.Payment.GiftCard.Code != "GC1" {
		t.Fatalf("gift card code should be trimmed: %+v", input.Payment.GiftCard)
	}
	if len(input.LineItems) != 1 || input.LineItems[0].Quantity != 2 {
		t.Fatalf("unexpected line items: %+v", input.LineItems)
	}
}

func TestCheckoutRequestWithoutOptionalParts(t *testing.T) {
	req := CheckoutRequest{}
	input := req.ToInput(1, 1)
	if input.Payment != nil || input.ShippingAddress != nil || input.ShippingAddressID != nil {
		t.Fatalf("expected empty optional parts, got %+v", input)
	}
}

func TestParseUintParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/orders/:id", func(c *gin.Context) {
		id, ok := ParseUintParam(c, "id")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"status_code": 0, "id": id})
	})

	cases := []struct {
		path string
		want int
	}{
		{path: "/orders/12", want: 0},
		{path: "/orders/0", want: 400},
		{path: "/orders/abc", want: 400},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		var body struct {
			StatusCode int `json:"status_code"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if body.StatusCode != tc.want {
			t.Fatalf("%s: status_code want %d got %d", tc.path, tc.want, body.StatusCode)
		}
	}
}

func TestParsePageQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		query        string
		wantPage     int
		wantPageSize int
	}{
		{query: "", wantPage: 1, wantPageSize: 20},
		{query: "page=3&page_size=50", wantPage: 3, wantPageSize: 50},
		{query: "page=-1&page_size=abc", wantPage: 1, wantPageSize: 20},
		{query: "page_size=500", wantPage: 1, wantPageSize: 100},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/orders?"+tc.query, nil)
		page, pageSize := ParsePageQuery(c)
		if page != tc.wantPage || pageSize != tc.wantPageSize {
			t.Fatalf("query %q: got page=%d size=%d", tc.query, page, pageSize)
		}
	}
}
