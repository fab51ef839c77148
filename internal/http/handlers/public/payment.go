package public

import (
	handlershared "github.com/hustbill/nodejs-api-server-sub001/internal/http/handlers/shared"
	"github.com/hustbill/nodejs-api-server-sub001/internal/http/response"

	"github.com/gin-gonic/gin"
)

// PayOrder 为订单追加支付
func (h *Handler) PayOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req handlershared.PaymentPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	order, outcome, err := h.OrderService.PayOrder(c.Request.Context(), orderID, uid, *req.ToInput(uid))
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, gin.H{
		"order":   order,
		"payment": outcome,
	})
}
