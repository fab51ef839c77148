package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hustbill/nodejs-api-server-sub001/internal/http/response"
	"github.com/hustbill/nodejs-api-server-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type errorBody struct {
	StatusCode int                    `json:"status_code"`
	Msg        string                 `json:"msg"`
	Data       map[string]interface{} `json:"data"`
}

func serveError(t *testing.T, err error, rules ...MappedError) errorBody {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		c.Set("request_id", "req-1")
		RespondOrderError(c, err, rules...)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("http status want 200 got %d", w.Code)
	}
	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	return body
}

func TestRespondOrderErrorValidationFailures(t *testing.T) {
	err := &service.OrderError{
		Kind:     service.ErrorKindValidation,
		Code:     "InvalidShippingAddress",
		Failures: []service.FieldFailure{{Field: "zipcode", Code: "required"}},
	}
	body := serveError(t, fmt.Errorf("checkout: %w", err))
	if body.StatusCode != response.CodeBadRequest {
		t.Fatalf("status_code want 400 got %d", body.StatusCode)
	}
	if body.Data["code"] != "InvalidShippingAddress" {
		t.Fatalf("unexpected code: %+v", body.Data)
	}
	failures, ok := body.Data["failures"].([]interface{})
	if !ok || len(failures) != 1 {
		t.Fatalf("expected one failure, got %+v", body.Data["failures"])
	}
	if body.Data["request_id"] != "req-1" {
		t.Fatalf("expected request id, got %+v", body.Data)
	}
}

func TestRespondOrderErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "permission", err: service.ErrNoPermissionToAccessOrder, want: response.CodeForbidden},
		{name: "not found", err: service.ErrOrderNotFound, want: response.CodeNotFound},
		{name: "conflict", err: service.ErrOrderTotalChanged, want: response.CodeConflict},
		{name: "external", err: service.ErrTaxServiceUnavailable, want: response.CodeBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := serveError(t, tc.err)
			if body.StatusCode != tc.want {
				t.Fatalf("status_code want %d got %d", tc.want, body.StatusCode)
			}
		})
	}
}

func TestRespondOrderErrorHidesExternalDetail(t *testing.T) {
	err := &service.OrderError{
		Kind:    service.ErrorKindExternal,
		Code:    "PaymentFailed",
		Message: "payment was not accepted",
		Err:     errors.New("card_declined: secret gateway detail"),
	}
	body := serveError(t, err)
	if body.StatusCode != response.CodeBadGateway {
		t.Fatalf("status_code want 502 got %d", body.StatusCode)
	}
	if strings.Contains(body.Msg, "secret") {
		t.Fatalf("external detail leaked: %s", body.Msg)
	}
	if body.Data["code"] != "PaymentFailed" {
		t.Fatalf("unexpected code: %+v", body.Data)
	}
}

func TestRespondOrderErrorRules(t *testing.T) {
	sentinel := errors.New("custom")
	body := serveError(t, fmt.Errorf("wrap: %w", sentinel), MappedError{Target: sentinel, Code: response.CodeConflict, Msg: "custom conflict"})
	if body.StatusCode != response.CodeConflict || body.Msg != "custom conflict" {
		t.Fatalf("custom rule not applied: %+v", body)
	}

	body = serveError(t, context.DeadlineExceeded)
	if body.StatusCode != response.CodeBadGateway {
		t.Fatalf("deadline want 502 got %d", body.StatusCode)
	}

	body = serveError(t, errors.New("boom"))
	if body.StatusCode != response.CodeInternal || body.Msg != "internal error" {
		t.Fatalf("fallback want 500 got %+v", body)
	}
}
