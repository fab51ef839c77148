package public

import (
	"strings"

	handlershared "github.com/hustbill/nodejs-api-server-sub001/internal/http/handlers/shared"
	"github.com/hustbill/nodejs-api-server-sub001/internal/http/response"
	"github.com/hustbill/nodejs-api-server-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// PreviewOrder 订单金额试算，不落库
func (h *Handler) PreviewOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req handlershared.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	preview, err := h.OrderService.Preview(c.Request.Context(), req.ToInput(uid, uid))
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, preview)
}

// Checkout 下单，client_request_id 重复时返回已创建的订单
func (h *Handler) Checkout(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req handlershared.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	input := req.ToInput(uid, uid)
	if input.ClientRequestID == "" {
		input.ClientRequestID = strings.TrimSpace(c.GetHeader("X-Client-Request-ID"))
	}

	result, err := h.OrderService.Checkout(c.Request.Context(), input)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, gin.H{
		"order":    result.Order,
		"replayed": result.Replayed,
		"payment":  result.Payment,
	})
}

// ListOrders 当前用户订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	page, pageSize := handlershared.ParsePageQuery(c)

	orders, total, err := h.OrderService.ListOrders(c.Request.Context(), service.OrderListInput{
		OperatorID: uid,
		State:      strings.TrimSpace(c.Query("state")),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.SuccessPage(c, orders, page, pageSize, total)
}

// GetOrder 订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}

	order, err := h.OrderService.GetOrder(c.Request.Context(), orderID, uid)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// CancelOrder 取消订单
func (h *Handler) CancelOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}

	order, err := h.OrderService.CancelOrder(c.Request.Context(), orderID, uid)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// ListStateEvents 订单状态变更记录
func (h *Handler) ListStateEvents(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}

	events, err := h.OrderService.ListStateEvents(c.Request.Context(), orderID, uid)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, events)
}
