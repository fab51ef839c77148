package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/logger"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ShippingAddressChange 修改收货地址，二选一
type ShippingAddressChange struct {
	AddressID *uint
	Address   *models.Address
}

// ChangeLineItems 重新解析行项目并重算运费、税费与折扣
func (s *OrderService) ChangeLineItems(ctx context.Context, orderID, operatorID uint, requests []LineItemRequest) (*models.Order, error) {
	if len(requests) == 0 {
		return nil, withDetail(ErrInvalidLineItems, "line items are required")
	}
	order, operator, err := s.loadOrder(ctx, orderID, operatorID, OrderActionWrite)
	if err != nil {
		return nil, err
	}
	if err := checkMutable(order); err != nil {
		return nil, err
	}
	priced, err := s.repricingBase(order, operator)
	if err != nil {
		return nil, err
	}
	items, err := s.resolver.Resolve(ctx, priced.owner, operator, requests)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].IsAutoship = items[i].IsAutoship || order.Autoship
	}
	priced.items = items
	if err := s.priceAt(ctx, order.Number, priced, derefUint(order.ShippingMethodID), order.Autoship, nil); err != nil {
		return nil, err
	}
	return s.applyRepricing(ctx, order, operator.ID, priced, true)
}

// ChangeShippingAddress 更换收货地址后重新校验配送方式与税费
func (s *OrderService) ChangeShippingAddress(ctx context.Context, orderID, operatorID uint, change ShippingAddressChange) (*models.Order, error) {
	order, operator, err := s.loadOrder(ctx, orderID, operatorID, OrderActionWrite)
	if err != nil {
		return nil, err
	}
	if err := checkMutable(order); err != nil {
		return nil, err
	}
	priced, err := s.repricingBase(order, operator)
	if err != nil {
		return nil, err
	}
	address, err := s.resolveAddress(priced.owner, change.AddressID, change.Address, nil, ErrInvalidShippingAddress)
	if err != nil {
		return nil, err
	}
	priced.shippingAddress = address
	if err := s.priceAt(ctx, order.Number, priced, derefUint(order.ShippingMethodID), order.Autoship, nil); err != nil {
		return nil, err
	}
	addressIDs, err := s.saveAddresses(address)
	if err != nil {
		return nil, err
	}
	updated, err := s.applyRepricing(ctx, order, operator.ID, priced, priced.result.ExternalTax)
	if err != nil {
		s.discardAddresses(ctx, addressIDs)
		return nil, err
	}
	return updated, nil
}

// ChangeShippingMethod 更换配送方式
func (s *OrderService) ChangeShippingMethod(ctx context.Context, orderID, operatorID, shippingMethodID uint) (*models.Order, error) {
	if shippingMethodID == 0 {
		return nil, ErrInvalidShippingMethodID
	}
	order, operator, err := s.loadOrder(ctx, orderID, operatorID, OrderActionWrite)
	if err != nil {
		return nil, err
	}
	if err := checkMutable(order); err != nil {
		return nil, err
	}
	priced, err := s.repricingBase(order, operator)
	if err != nil {
		return nil, err
	}
	if err := s.priceAt(ctx, order.Number, priced, shippingMethodID, order.Autoship, nil); err != nil {
		return nil, err
	}
	return s.applyRepricing(ctx, order, operator.ID, priced, priced.result.ExternalTax)
}

// AddAdjustment 追加手工调整项，仅管理员代操作或自动订购订单
func (s *OrderService) AddAdjustment(ctx context.Context, orderID, operatorID uint, input AdditionalAdjustment) (*models.Order, error) {
	amount := models.Round2(input.Amount)
	if amount.IsZero() {
		return nil, withDetail(ErrInvalidAdjustment, "amount must not be zero")
	}
	order, operator, err := s.loadOrder(ctx, orderID, operatorID, OrderActionWrite)
	if err != nil {
		return nil, err
	}
	if !order.Autoship && operator.ID == order.UserID && !isAdminUser(operator) {
		return nil, ErrNoPermissionToAccessOrder
	}
	if err := checkMutable(order); err != nil {
		return nil, err
	}
	label := strings.TrimSpace(input.Label)
	if label == "" {
		label = "Manual Adjustment"
	}
	adjustments := append([]models.Adjustment{}, order.Adjustments...)
	adjustments = append(adjustments, models.Adjustment{
		Amount:     models.NewMoneyFromDecimal(amount),
		Label:      label,
		SourceType: constants.AdjustmentSourceOrder,
	})
	for i := range adjustments {
		adjustments[i].ID = 0
	}
	_, adjustmentTotal, total := ComputeOrderTotals(order.LineItems, adjustments)
	if err := guardTotalChange(order, total); err != nil {
		return nil, err
	}
	next := rederiveStates(order, total)
	extra := map[string]interface{}{
		"adjustment_total": adjustmentTotal,
		"total":            total,
	}
	var events []models.StateEvent
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.adjustmentRepo.WithTx(tx).ReplaceForOrder(order.ID, adjustments); err != nil {
			return err
		}
		var err error
		events, err = s.states.ApplyTx(tx, order, next, operator.ID, extra)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.states.commit(ctx, order, next, events)
	logger.Ctx(ctx).Infow("order_adjustment_added",
		"order_id", order.ID,
		"operator_id", operator.ID,
		"amount", amount.StringFixed(2),
		"label", label,
	)
	return s.reload(order.ID)
}

// repricingBase 以订单现有的归属人、地址与行项目为基础
func (s *OrderService) repricingBase(order *models.Order, operator *models.User) (*pricedOrder, error) {
	owner := operator
	if order.UserID != operator.ID {
		var err error
		owner, err = s.userRepo.GetByID(order.UserID)
		if err != nil {
			return nil, err
		}
		if owner == nil {
			return nil, ErrUserNotFound
		}
	}
	priced := &pricedOrder{
		owner:    owner,
		operator: operator,
		items:    append([]models.LineItem{}, order.LineItems...),
		policy:   ResolveCompanyPolicy(order.CompanyCode),
	}
	if order.ShippingAddressID == nil {
		return nil, withFailures(ErrInvalidShippingAddress, []FieldFailure{{Field: "address_id", Code: "required"}})
	}
	address, err := s.userRepo.GetAddressByID(*order.ShippingAddressID)
	if err != nil {
		return nil, err
	}
	if address == nil {
		return nil, withFailures(ErrInvalidShippingAddress, []FieldFailure{{Field: "address_id", Code: "invalid"}})
	}
	priced.shippingAddress = address
	priced.billingAddress = address
	if order.BillingAddressID != nil && *order.BillingAddressID != address.ID {
		billing, err := s.userRepo.GetAddressByID(*order.BillingAddressID)
		if err != nil {
			return nil, err
		}
		if billing != nil {
			priced.billingAddress = billing
		}
	}
	return priced, nil
}

// applyRepricing 保留手工调整项，写入新的行项目、调整项、合计与状态
func (s *OrderService) applyRepricing(ctx context.Context, order *models.Order, operatorID uint, priced *pricedOrder, replaceItems bool) (*models.Order, error) {
	adjustments := append([]models.Adjustment{}, priced.result.Adjustments...)
	adjustments = append(adjustments, manualAdjustments(order.Adjustments)...)
	for i := range adjustments {
		adjustments[i].ID = 0
	}
	itemTotal, adjustmentTotal, total := ComputeOrderTotals(priced.items, adjustments)
	if err := guardTotalChange(order, total); err != nil {
		return nil, err
	}
	next := rederiveStates(order, total)
	extra := map[string]interface{}{
		"item_total":          itemTotal,
		"adjustment_total":    adjustmentTotal,
		"total":               total,
		"shipping_method_id":  priced.method.ID,
		"shipping_address_id": priced.shippingAddress.ID,
		"external_tax":        priced.result.ExternalTax,
	}
	if priced.billingAddress != nil {
		extra["billing_address_id"] = priced.billingAddress.ID
	}
	if replaceItems {
		for i := range priced.items {
			priced.items[i].ID = 0
		}
	}

	var events []models.StateEvent
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if replaceItems {
			if err := s.lineItemRepo.WithTx(tx).ReplaceForOrder(order.ID, priced.items); err != nil {
				return fmt.Errorf("replace line items: %w", err)
			}
		}
		if err := s.adjustmentRepo.WithTx(tx).ReplaceForOrder(order.ID, adjustments); err != nil {
			return fmt.Errorf("replace adjustments: %w", err)
		}
		if err := s.shipmentRepo.WithTx(tx).UpdateByOrder(order.ID, map[string]interface{}{
			"shipping_method_id": priced.method.ID,
			"address_id":         priced.shippingAddress.ID,
			"cost":               models.NewMoneyFromDecimal(priced.result.ShippingAmount),
		}); err != nil {
			return fmt.Errorf("update shipment: %w", err)
		}
		var err error
		events, err = s.states.ApplyTx(tx, order, next, operatorID, extra)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.states.commit(ctx, order, next, events)
	logger.Ctx(ctx).Infow("order_repriced",
		"order_id", order.ID,
		"operator_id", operatorID,
		"previous_total", order.Total.String(),
		"total", total.StringFixed(2),
	)
	return s.reload(order.ID)
}

// checkMutable 备货或发货后的订单不可修改
func checkMutable(order *models.Order) error {
	switch order.State {
	case constants.OrderStateCart, constants.OrderStatePayment, constants.OrderStateComplete:
	default:
		return withDetail(ErrNotAllowedToChangeOrder, "order is %s", order.State)
	}
	switch order.ShipmentStateValue() {
	case constants.ShipmentStateAssemble, constants.ShipmentStateShipped:
		return withDetail(ErrNotAllowedToChangeOrder, "shipment is %s", order.ShipmentStateValue())
	}
	return nil
}

// guardTotalChange 已付清待发货的订单不允许金额变化
func guardTotalChange(order *models.Order, total decimal.Decimal) error {
	if order.State != constants.OrderStateComplete || !order.IsPaidInFull() {
		return nil
	}
	if order.ShipmentStateValue() != constants.ShipmentStateReady {
		return nil
	}
	if models.Round2(total).Equal(models.Round2(order.Total.Decimal)) {
		return nil
	}
	return withDetail(ErrOrderTotalChanged, "total would change from %s to %s", order.Total.String(), total.StringFixed(2))
}

// rederiveStates 金额变化后重新推导支付与发货状态
func rederiveStates(order *models.Order, total decimal.Decimal) OrderStates {
	next := statesOf(order)
	if order.State == constants.OrderStateCart {
		return next
	}
	next.PaymentState = DerivePaymentState(order.PaymentTotal.Decimal, total)
	if next.State == constants.OrderStateComplete {
		next.ShipmentState = deriveShipmentState(next.PaymentState, order.ShipmentState)
	}
	return next
}

// manualAdjustments 手工调整项：来源为订单且无发起方
func manualAdjustments(adjustments []models.Adjustment) []models.Adjustment {
	var result []models.Adjustment
	for _, adjustment := range adjustments {
		if adjustment.SourceType == constants.AdjustmentSourceOrder && adjustment.OriginatorType == "" {
			result = append(result, adjustment)
		}
	}
	return result
}

func (s *OrderService) reload(orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func derefUint(value *uint) uint {
	if value == nil {
		return 0
	}
	return *value
}
