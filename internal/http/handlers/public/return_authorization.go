package public

import (
	"strings"

	handlershared "github.com/hustbill/nodejs-api-server-sub001/internal/http/handlers/shared"
	"github.com/hustbill/nodejs-api-server-sub001/internal/http/response"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateReturnAuthorizationRequest 退货申请请求
type CreateReturnAuthorizationRequest struct {
	Items  []models.ReturnItem `json:"items" binding:"required"`
	Reason string              `json:"reason"`
}

// ListReturnAuthorizations 订单的退货申请
func (h *Handler) ListReturnAuthorizations(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}

	items, err := h.OrderService.ListReturnAuthorizations(c.Request.Context(), orderID, uid)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, items)
}

// CreateReturnAuthorization 申请退货，金额按行项目单价计算
func (h *Handler) CreateReturnAuthorization(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req CreateReturnAuthorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	ra, err := h.OrderService.CreateReturnAuthorization(c.Request.Context(), orderID, uid, service.ReturnAuthorizationInput{
		Items:  req.Items,
		Reason: strings.TrimSpace(req.Reason),
	})
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, ra)
}
