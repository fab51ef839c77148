package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hustbill/nodejs-api-server-sub001/internal/authz"
	"github.com/hustbill/nodejs-api-server-sub001/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type authzBody struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func setupAuthzRouter(t *testing.T) (*gin.Engine, *authz.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := authz.NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	h := New(&provider.Container{AuthzService: svc})

	r := gin.New()
	r.GET("/authz/roles/:role/policies", h.GetAuthzRolePolicies)
	r.POST("/authz/roles/:role/policies", h.GrantAuthzRolePolicy)
	r.DELETE("/authz/roles/:role/policies", h.RevokeAuthzRolePolicy)
	r.POST("/authz/users/:user_id/policies", h.GrantAuthzUserPolicy)
	r.POST("/authz/reload", h.ReloadAuthzPolicy)
	return r, svc
}

func doAuthz(t *testing.T, r *gin.Engine, method, path, body string) authzBody {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out authzBody
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal response failed: %v, body=%s", err, w.Body.String())
	}
	return out
}

func TestAuthzRolePolicyLifecycle(t *testing.T) {
	r, _ := setupAuthzRouter(t)

	body := doAuthz(t, r, http.MethodPost, "/authz/roles/ops/policies", `{"object":"/api/v1/admin/orders/:id","action":"get"}`)
	if body.StatusCode != 0 {
		t.Fatalf("grant failed: %+v", body)
	}

	body = doAuthz(t, r, http.MethodGet, "/authz/roles/ops/policies", "")
	var policies []authz.Policy
	if err := json.Unmarshal(body.Data, &policies); err != nil {
		t.Fatalf("unmarshal policies failed: %v", err)
	}
	if len(policies) != 1 || policies[0].Object != "/admin/orders/:id" || policies[0].Action != "GET" {
		t.Fatalf("unexpected policies: %+v", policies)
	}

	body = doAuthz(t, r, http.MethodDelete, "/authz/roles/ops/policies", `{"object":"/admin/orders/:id","action":"GET"}`)
	if body.StatusCode != 0 {
		t.Fatalf("revoke failed: %+v", body)
	}
	body = doAuthz(t, r, http.MethodGet, "/authz/roles/role%3Aops/policies", "")
	policies = nil
	if err := json.Unmarshal(body.Data, &policies); err != nil {
		t.Fatalf("unmarshal policies failed: %v", err)
	}
	if len(policies) != 0 {
		t.Fatalf("expected no policies after revoke, got %+v", policies)
	}
}

func TestAuthzRejectsInvalidInput(t *testing.T) {
	r, _ := setupAuthzRouter(t)

	if body := doAuthz(t, r, http.MethodPost, "/authz/roles/ops/policies", `{"object":"/admin/orders"}`); body.StatusCode != 400 {
		t.Fatalf("missing action want 400, got %+v", body)
	}
	if body := doAuthz(t, r, http.MethodPost, "/authz/roles/%20/policies", `{"object":"/admin/orders","action":"GET"}`); body.StatusCode != 400 {
		t.Fatalf("blank role want 400, got %+v", body)
	}
	if body := doAuthz(t, r, http.MethodPost, "/authz/users/abc/policies", `{"object":"/orders","action":"read"}`); body.StatusCode != 400 {
		t.Fatalf("invalid user id want 400, got %+v", body)
	}
}

func TestAuthzGrantUserPolicyAndReload(t *testing.T) {
	r, svc := setupAuthzRouter(t)

	body := doAuthz(t, r, http.MethodPost, "/authz/users/9/policies", `{"object":"/orders","action":"read"}`)
	if body.StatusCode != 0 {
		t.Fatalf("grant user policy failed: %+v", body)
	}
	if body := doAuthz(t, r, http.MethodPost, "/authz/reload", ""); body.StatusCode != 0 {
		t.Fatalf("reload failed: %+v", body)
	}
	allow, err := svc.Enforce(authz.SubjectForUser(9), authz.ObjectOrders, "read")
	if err != nil || !allow {
		t.Fatalf("expected user grant to survive reload, ok=%v err=%v", allow, err)
	}
}
