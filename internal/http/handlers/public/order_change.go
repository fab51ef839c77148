package public

import (
	handlershared "github.com/hustbill/nodejs-api-server-sub001/internal/http/handlers/shared"
	"github.com/hustbill/nodejs-api-server-sub001/internal/http/response"
	"github.com/hustbill/nodejs-api-server-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// ChangeLineItemsRequest 修改行项目请求
type ChangeLineItemsRequest struct {
	LineItems []service.LineItemRequest `json:"line_items" binding:"required"`
}

// ChangeShippingMethodRequest 修改配送方式请求
type ChangeShippingMethodRequest struct {
	ShippingMethodID uint `json:"shipping_method_id" binding:"required"`
}

// ChangeLineItems 修改订单行项目
func (h *Handler) ChangeLineItems(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req ChangeLineItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	order, err := h.OrderService.ChangeLineItems(c.Request.Context(), orderID, uid, req.LineItems)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// ChangeShippingAddress 修改收货地址
func (h *Handler) ChangeShippingAddress(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req handlershared.AddressPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	addressID, address := req.Resolve()
	order, err := h.OrderService.ChangeShippingAddress(c.Request.Context(), orderID, uid, service.ShippingAddressChange{
		AddressID: addressID,
		Address:   address,
	})
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// ChangeShippingMethod 修改配送方式
func (h *Handler) ChangeShippingMethod(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req ChangeShippingMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	order, err := h.OrderService.ChangeShippingMethod(c.Request.Context(), orderID, uid, req.ShippingMethodID)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}
