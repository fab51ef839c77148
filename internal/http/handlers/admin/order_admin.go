package admin

import (
	"strings"

	handlershared "github.com/hustbill/nodejs-api-server-sub001/internal/http/handlers/shared"
	"github.com/hustbill/nodejs-api-server-sub001/internal/http/response"
	"github.com/hustbill/nodejs-api-server-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// AddAdjustmentRequest 手工调整项请求
type AddAdjustmentRequest struct {
	service.AdditionalAdjustment
}

// UpdateShipmentRequest 履约状态更新请求
type UpdateShipmentRequest struct {
	State    string `json:"state" binding:"required"`
	Tracking string `json:"tracking"`
}

// AdminListOrders 按用户查询订单
func (h *Handler) AdminListOrders(c *gin.Context) {
	operatorID, ok := getOperatorID(c)
	if !ok {
		return
	}
	userID, ok := handlershared.ParseOptionalUintQuery(c, "user_id")
	if !ok {
		return
	}
	if userID == 0 {
		respondError(c, response.CodeBadRequest, "user_id is required", nil)
		return
	}

	page, pageSize := handlershared.ParsePageQuery(c)

	orders, total, err := h.OrderService.ListOrders(c.Request.Context(), service.OrderListInput{
		OperatorID: operatorID,
		UserID:     userID,
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

// AdminGetOrder 订单详情
func (h *Handler) AdminGetOrder(c *gin.Context) {
	operatorID, ok := getOperatorID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}

	order, err := h.OrderService.GetOrder(c.Request.Context(), orderID, operatorID)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// AdminListStateEvents 订单状态变更记录
func (h *Handler) AdminListStateEvents(c *gin.Context) {
	operatorID, ok := getOperatorID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}

	events, err := h.OrderService.ListStateEvents(c.Request.Context(), orderID, operatorID)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, events)
}

// AdminCheckout 代用户下单
func (h *Handler) AdminCheckout(c *gin.Context) {
	operatorID, ok := getOperatorID(c)
	if !ok {
		return
	}
	userID, ok := handlershared.ParseUintParam(c, "user_id")
	if !ok {
		return
	}
	var req handlershared.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	result, err := h.OrderService.Checkout(c.Request.Context(), req.ToInput(userID, operatorID))
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

// AdminAddAdjustment 追加手工调整项
func (h *Handler) AdminAddAdjustment(c *gin.Context) {
	operatorID, ok := getOperatorID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req AddAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	order, err := h.OrderService.AddAdjustment(c.Request.Context(), orderID, operatorID, req.AdditionalAdjustment)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// AdminPayOrder 代用户支付
func (h *Handler) AdminPayOrder(c *gin.Context) {
	operatorID, ok := getOperatorID(c)
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

	order, outcome, err := h.OrderService.PayOrder(c.Request.Context(), orderID, operatorID, *req.ToInput(operatorID))
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, gin.H{
		"order":   order,
		"payment": outcome,
	})
}

// AdminCapturePayment 确认待处理支付
func (h *Handler) AdminCapturePayment(c *gin.Context) {
	operatorID, ok := getOperatorID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	paymentID, ok := handlershared.ParseUintParam(c, "payment_id")
	if !ok {
		return
	}

	order, err := h.OrderService.CapturePayment(c.Request.Context(), orderID, paymentID, operatorID)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// AdminCancelOrder 取消订单
func (h *Handler) AdminCancelOrder(c *gin.Context) {
	operatorID, ok := getOperatorID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}

	order, err := h.OrderService.CancelOrder(c.Request.Context(), orderID, operatorID)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// AdminRefundOrder 退还多付金额
func (h *Handler) AdminRefundOrder(c *gin.Context) {
	operatorID, ok := getOperatorID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}

	order, err := h.OrderService.RefundOrder(c.Request.Context(), orderID, operatorID)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// AdminUpdateShipment 推进发货状态
func (h *Handler) AdminUpdateShipment(c *gin.Context) {
	operatorID, ok := getOperatorID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req UpdateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	order, err := h.OrderService.UpdateShipmentState(c.Request.Context(), orderID, operatorID, service.ShipmentUpdate{
		State:    strings.TrimSpace(req.State),
		Tracking: strings.TrimSpace(req.Tracking),
	})
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}
