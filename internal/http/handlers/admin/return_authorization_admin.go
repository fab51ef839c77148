package admin

import (
	handlershared "github.com/hustbill/nodejs-api-server-sub001/internal/http/handlers/shared"
	"github.com/hustbill/nodejs-api-server-sub001/internal/http/response"

	"github.com/gin-gonic/gin"
)

// AdminListReturnAuthorizations 订单的退货申请
func (h *Handler) AdminListReturnAuthorizations(c *gin.Context) {
	operatorID, ok := getOperatorID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}

	items, err := h.OrderService.ListReturnAuthorizations(c.Request.Context(), orderID, operatorID)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, items)
}

// AdminReceiveReturnAuthorization 登记退货入库
func (h *Handler) AdminReceiveReturnAuthorization(c *gin.Context) {
	operatorID, ok := getOperatorID(c)
	if !ok {
		return
	}
	raID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}

	order, err := h.OrderService.ReceiveReturnAuthorization(c.Request.Context(), raID, operatorID)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// AdminCancelReturnAuthorization 撤销退货申请
func (h *Handler) AdminCancelReturnAuthorization(c *gin.Context) {
	operatorID, ok := getOperatorID(c)
	if !ok {
		return
	}
	raID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}

	order, err := h.OrderService.CancelReturnAuthorization(c.Request.Context(), raID, operatorID)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}
