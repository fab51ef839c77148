package admin

import (
	"net/url"
	"strings"

	handlershared "github.com/hustbill/nodejs-api-server-sub001/internal/http/handlers/shared"
	"github.com/hustbill/nodejs-api-server-sub001/internal/http/response"

	"github.com/gin-gonic/gin"
)

// AuthzPolicyRequest 策略授予/撤销请求
type AuthzPolicyRequest struct {
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// GetAuthzRolePolicies 查询角色策略
func (h *Handler) GetAuthzRolePolicies(c *gin.Context) {
	role, ok := roleParam(c)
	if !ok {
		return
	}
	policies, err := h.AuthzService.GetRolePolicies(role)
	if err != nil {
		respondError(c, response.CodeBadRequest, err.Error(), err)
		return
	}
	response.Success(c, policies)
}

// GrantAuthzRolePolicy 为角色授予策略
func (h *Handler) GrantAuthzRolePolicy(c *gin.Context) {
	role, ok := roleParam(c)
	if !ok {
		return
	}
	var req AuthzPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	if err := h.AuthzService.GrantRolePolicy(role, req.Object, req.Action); err != nil {
		respondError(c, response.CodeBadRequest, err.Error(), err)
		return
	}

	handlershared.RequestLog(c).Infow("admin_authz_policy_granted",
		"role", role,
		"object", req.Object,
		"action", req.Action,
	)
	response.Success(c, nil)
}

// RevokeAuthzRolePolicy 撤销角色策略
func (h *Handler) RevokeAuthzRolePolicy(c *gin.Context) {
	role, ok := roleParam(c)
	if !ok {
		return
	}
	var req AuthzPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	if err := h.AuthzService.RevokeRolePolicy(role, req.Object, req.Action); err != nil {
		respondError(c, response.CodeBadRequest, err.Error(), err)
		return
	}

	handlershared.RequestLog(c).Infow("admin_authz_policy_revoked",
		"role", role,
		"object", req.Object,
		"action", req.Action,
	)
	response.Success(c, nil)
}

// GrantAuthzUserPolicy 为单个用户直接授予策略
func (h *Handler) GrantAuthzUserPolicy(c *gin.Context) {
	userID, ok := handlershared.ParseUintParam(c, "user_id")
	if !ok {
		return
	}
	var req AuthzPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	if err := h.AuthzService.GrantUserPolicy(userID, req.Object, req.Action); err != nil {
		respondError(c, response.CodeBadRequest, err.Error(), err)
		return
	}

	handlershared.RequestLog(c).Infow("admin_authz_user_policy_granted",
		"target_user_id", userID,
		"object", req.Object,
		"action", req.Action,
	)
	response.Success(c, nil)
}

// ReloadAuthzPolicy 从存储重新加载全部策略
func (h *Handler) ReloadAuthzPolicy(c *gin.Context) {
	if err := h.AuthzService.ReloadPolicy(); err != nil {
		respondError(c, response.CodeInternal, "reload policy failed", err)
		return
	}
	handlershared.RequestLog(c).Infow("admin_authz_policy_reloaded")
	response.Success(c, nil)
}

// roleParam 角色名可能带 role: 前缀，需要 URL 解码
func roleParam(c *gin.Context) (string, bool) {
	raw := c.Param("role")
	role, err := url.PathUnescape(raw)
	if err != nil {
		role = raw
	}
	role = strings.TrimSpace(role)
	if role == "" {
		respondError(c, response.CodeBadRequest, "role is required", nil)
		return "", false
	}
	return role, true
}
