package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/logger"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ShipmentUpdate 履约状态变更
type ShipmentUpdate struct {
	State    string
	Tracking string
}

// ReturnAuthorizationInput 退货申请
type ReturnAuthorizationInput struct {
	Items  []models.ReturnItem
	Reason string
	Amount *decimal.Decimal // 为空时按行项目单价计算
}

// shipmentTransitions 允许的履约状态迁移
var shipmentTransitions = map[string][]string{
	constants.ShipmentStatePending:   {constants.ShipmentStateReady, constants.ShipmentStateBackorder},
	constants.ShipmentStateReady:     {constants.ShipmentStateAssemble, constants.ShipmentStateShipped, constants.ShipmentStateBackorder},
	constants.ShipmentStateAssemble:  {constants.ShipmentStateShipped},
	constants.ShipmentStateBackorder: {constants.ShipmentStateReady},
}

// PayOrder 对已有订单追加支付
func (s *OrderService) PayOrder(ctx context.Context, orderID, operatorID uint, input PayInput) (*models.Order, *PaymentOutcome, error) {
	order, operator, err := s.loadOrder(ctx, orderID, operatorID, OrderActionWrite)
	if err != nil {
		return nil, nil, err
	}
	due := models.FloorZero(models.Round2(order.Total.Decimal.Sub(order.PaymentTotal.Decimal)))
	if order.State != constants.OrderStateComplete {
		if err := s.spendLimiter.Check(order.UserID, due); err != nil {
			return nil, nil, err
		}
	}
	input.OperatorID = operator.ID
	outcome, payErr := s.payments.Pay(ctx, order, input)
	reloaded, err := s.reload(order.ID)
	if err != nil {
		return nil, outcome, err
	}
	return reloaded, outcome, payErr
}

// CapturePayment 确认挂起的支付
func (s *OrderService) CapturePayment(ctx context.Context, orderID, paymentID, operatorID uint) (*models.Order, error) {
	operator, err := s.requireOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	order, _, err := s.loadOrder(ctx, orderID, operator.ID, OrderActionWrite)
	if err != nil {
		return nil, err
	}
	if _, err := s.payments.Capture(ctx, order, paymentID, operator.ID); err != nil {
		return nil, err
	}
	return s.reload(order.ID)
}

// CancelOrder 取消已完成但未发货的订单，已付金额全部记为待退
func (s *OrderService) CancelOrder(ctx context.Context, orderID, operatorID uint) (*models.Order, error) {
	order, operator, err := s.loadOrder(ctx, orderID, operatorID, OrderActionWrite)
	if err != nil {
		return nil, err
	}
	if err := s.checkCancellable(ctx, order); err != nil {
		return nil, err
	}
	voided, err := s.payments.VoidPending(ctx, order)
	if err != nil {
		return nil, err
	}

	next := statesOf(order).WithState(constants.OrderStateCancelled)
	extra := map[string]interface{}{"credit_total": order.PaymentTotal}
	var events []models.StateEvent
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.shipmentRepo.WithTx(tx).UpdateInventoryUnitsState(order.ID, constants.InventoryUnitReturned); err != nil {
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
	logger.Ctx(ctx).Infow("order_cancelled",
		"order_id", order.ID,
		"operator_id", operator.ID,
		"credit_total", order.PaymentTotal.String(),
		"voided_payments", voided,
	)
	s.enqueueMail(order, constants.MailTemplateCancelled)
	return s.reload(order.ID)
}

func (s *OrderService) checkCancellable(ctx context.Context, order *models.Order) error {
	if order.State != constants.OrderStateComplete {
		return withDetail(ErrNotAllowedToCancelOrder, "order is %s", order.State)
	}
	switch shipment := order.ShipmentStateValue(); shipment {
	case constants.ShipmentStateReady, constants.ShipmentStateBackorder, constants.ShipmentStatePending:
		return nil
	case constants.ShipmentStateAssemble:
		allowed, err := s.refData.PreferenceBool(ctx, constants.PreferenceAllowCancelInAssemble, s.cfg.AllowCancelInAssemble)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		return withDetail(ErrNotAllowedToCancelOrder, "shipment is %s", shipment)
	default:
		return withDetail(ErrNotAllowedToCancelOrder, "shipment is %s", shipment)
	}
}

// RefundOrder 对已取消或已退货的订单登记退款
func (s *OrderService) RefundOrder(ctx context.Context, orderID, operatorID uint) (*models.Order, error) {
	operator, err := s.requireOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	order, _, err := s.loadOrder(ctx, orderID, operator.ID, OrderActionWrite)
	if err != nil {
		return nil, err
	}
	credit, err := refundCredit(order)
	if err != nil {
		return nil, err
	}
	next := statesOf(order).WithPaymentState(constants.PaymentStateRefund)
	var (
		events   []models.StateEvent
		restored decimal.Decimal
	)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if order.State == constants.OrderStateCancelled {
			var err error
			restored, err = s.restoreGiftCards(tx, order)
			if err != nil {
				return err
			}
		}
		var err error
		events, err = s.states.ApplyTx(tx, order, next, operator.ID, map[string]interface{}{"credit_total": credit})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.states.commit(ctx, order, next, events)
	logger.Ctx(ctx).Infow("order_refunded",
		"order_id", order.ID,
		"operator_id", operator.ID,
		"credit_total", credit.StringFixed(2),
		"gift_card_restored", restored.StringFixed(2),
	)
	return s.reload(order.ID)
}

// restoreGiftCards 取消订单退款时把已完成的礼品卡支付退回原卡
func (s *OrderService) restoreGiftCards(tx *gorm.DB, order *models.Order) (decimal.Decimal, error) {
	restored := decimal.Zero
	if s.giftCardRepo == nil {
		return restored, nil
	}
	repo := s.giftCardRepo.WithTx(tx)
	for _, payment := range order.Payments {
		if payment.SourceType != constants.PaymentSourceGiftCard || payment.SourceID == nil {
			continue
		}
		if payment.State != constants.PaymentRecordCompleted {
			continue
		}
		if err := repo.Restore(*payment.SourceID, payment.Amount.Decimal); err != nil {
			return restored, err
		}
		restored = models.SumRound2(restored, payment.Amount.Decimal)
	}
	return restored, nil
}

// refundCredit 取消的订单退全部已付金额，退货的订单退多付部分
func refundCredit(order *models.Order) (decimal.Decimal, error) {
	paymentTotal := models.Round2(order.PaymentTotal.Decimal)
	switch order.State {
	case constants.OrderStateCancelled:
		if order.PaymentState != constants.PaymentStatePaid && order.PaymentState != constants.PaymentStateCreditOwed {
			return decimal.Zero, withDetail(ErrNotAllowedToRefundOrder, "payment state is %s", order.PaymentState)
		}
		return paymentTotal, nil
	case constants.OrderStateReturned:
		if order.PaymentState != constants.PaymentStateCreditOwed {
			return decimal.Zero, withDetail(ErrNotAllowedToRefundOrder, "payment state is %s", order.PaymentState)
		}
		return models.FloorZero(models.Round2(paymentTotal.Sub(order.Total.Decimal))), nil
	default:
		return decimal.Zero, withDetail(ErrNotAllowedToRefundOrder, "order is %s", order.State)
	}
}

// UpdateShipmentState 履约流程推进发货状态
func (s *OrderService) UpdateShipmentState(ctx context.Context, orderID, operatorID uint, update ShipmentUpdate) (*models.Order, error) {
	operator, err := s.requireOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	order, _, err := s.loadOrder(ctx, orderID, operator.ID, OrderActionWrite)
	if err != nil {
		return nil, err
	}
	target := strings.TrimSpace(update.State)
	if order.State != constants.OrderStateComplete {
		return nil, withDetail(ErrInvalidShipmentState, "order is %s", order.State)
	}
	current := order.ShipmentStateValue()
	if !shipmentTransitionAllowed(current, target) {
		return nil, withDetail(ErrInvalidShipmentState, "cannot move shipment from %s to %s", current, target)
	}
	if target == constants.ShipmentStateReady && !order.IsPaidInFull() {
		return nil, withDetail(ErrInvalidShipmentState, "order is not paid")
	}

	now := time.Now()
	shipmentUpdates := map[string]interface{}{"state": target}
	if target == constants.ShipmentStateShipped {
		shipmentUpdates["shipped_at"] = now
		if tracking := strings.TrimSpace(update.Tracking); tracking != "" {
			shipmentUpdates["tracking"] = tracking
		}
	}
	next := statesOf(order).WithShipmentState(target)
	var events []models.StateEvent
	err = s.db.Transaction(func(tx *gorm.DB) error {
		shipmentRepo := s.shipmentRepo.WithTx(tx)
		if err := shipmentRepo.UpdateByOrder(order.ID, shipmentUpdates); err != nil {
			return err
		}
		if target == constants.ShipmentStateShipped {
			if err := shipmentRepo.UpdateInventoryUnitsState(order.ID, constants.InventoryUnitShipped); err != nil {
				return err
			}
		}
		var err error
		events, err = s.states.ApplyTx(tx, order, next, operator.ID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.states.commit(ctx, order, next, events)
	logger.Ctx(ctx).Infow("order_shipment_state_updated", "order_id", order.ID, "from", current, "to", target, "operator_id", operator.ID)
	if target == constants.ShipmentStateShipped {
		s.enqueueMail(order, constants.MailTemplateShipped)
	}
	return s.reload(order.ID)
}

func shipmentTransitionAllowed(from, to string) bool {
	for _, candidate := range shipmentTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// CreateReturnAuthorization 已发货订单申请退货，订单进入 awaiting_return
func (s *OrderService) CreateReturnAuthorization(ctx context.Context, orderID, operatorID uint, input ReturnAuthorizationInput) (*models.ReturnAuthorization, error) {
	order, operator, err := s.loadOrder(ctx, orderID, operatorID, OrderActionWrite)
	if err != nil {
		return nil, err
	}
	if order.State != constants.OrderStateComplete || order.ShipmentStateValue() != constants.ShipmentStateShipped {
		return nil, withDetail(ErrNotAllowedToCreateReturnAuth, "order is %s, shipment is %s", order.State, order.ShipmentStateValue())
	}
	existing, err := s.raRepo.ListByOrder(order.ID)
	if err != nil {
		return nil, err
	}
	amount, err := returnAmount(order, existing, input)
	if err != nil {
		return nil, err
	}

	ra := &models.ReturnAuthorization{
		Number:    fmt.Sprintf("RA%s-%d", order.Number, len(existing)+1),
		OrderID:   order.ID,
		Amount:    models.NewMoneyFromDecimal(amount),
		Reason:    strings.TrimSpace(input.Reason),
		State:     constants.ReturnAuthorizationAuthorized,
		Items:     models.ReturnItems(input.Items),
		CreatedBy: operator.ID,
	}
	next := statesOf(order).WithState(constants.OrderStateAwaitingReturn)
	var events []models.StateEvent
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.raRepo.WithTx(tx).Create(ra); err != nil {
			return err
		}
		if err := s.eventRepo.WithTx(tx).Create(&models.StateEvent{
			StatefulType: constants.StatefulTypeReturnAuthorization,
			StatefulID:   ra.ID,
			Name:         constants.StateEventReturnAuthorization,
			NextState:    ra.State,
			UserID:       operator.ID,
			CreatedAt:    time.Now(),
		}); err != nil {
			return err
		}
		var err error
		events, err = s.states.ApplyTx(tx, order, next, operator.ID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.states.commit(ctx, order, next, events)
	logger.Ctx(ctx).Infow("order_return_authorized", "order_id", order.ID, "return_authorization_id", ra.ID, "amount", amount.StringFixed(2))
	return ra, nil
}

// returnAmount 校验退货数量不超过剩余可退数量，返回退款金额
func returnAmount(order *models.Order, existing []models.ReturnAuthorization, input ReturnAuthorizationInput) (decimal.Decimal, error) {
	if len(input.Items) == 0 {
		return decimal.Zero, withDetail(ErrInvalidReturnItems, "return items are required")
	}
	pending := make(map[uint]int)
	for _, ra := range existing {
		if ra.State != constants.ReturnAuthorizationAuthorized {
			continue
		}
		for _, item := range ra.Items {
			pending[item.LineItemID] += item.Quantity
		}
	}
	lineItems := make(map[uint]models.LineItem, len(order.LineItems))
	for _, item := range order.LineItems {
		lineItems[item.ID] = item
	}

	var failures []FieldFailure
	requested := make(map[uint]int)
	amount := decimal.Zero
	for i, item := range input.Items {
		lineItem, ok := lineItems[item.LineItemID]
		if !ok {
			failures = append(failures, FieldFailure{Field: fmt.Sprintf("items[%d].line_item_id", i), Code: "invalid"})
			continue
		}
		requested[item.LineItemID] += item.Quantity
		returnable := lineItem.Quantity - lineItem.ReturnedQuantity - pending[item.LineItemID]
		if item.Quantity <= 0 || requested[item.LineItemID] > returnable {
			failures = append(failures, FieldFailure{Field: fmt.Sprintf("items[%d].quantity", i), Code: "invalid"})
			continue
		}
		amount = models.SumRound2(amount, lineItem.Price.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if len(failures) > 0 {
		return decimal.Zero, withFailures(ErrInvalidReturnItems, failures)
	}
	if input.Amount != nil {
		custom := models.Round2(*input.Amount)
		if custom.IsNegative() || custom.GreaterThan(models.Round2(order.PaymentTotal.Decimal)) {
			return decimal.Zero, withDetail(ErrInvalidReturnItems, "amount %s is out of range", custom.StringFixed(2))
		}
		return custom, nil
	}
	return amount, nil
}

// ReceiveReturnAuthorization 收到退货：登记退货数量、追加退货抵扣并重算金额
func (s *OrderService) ReceiveReturnAuthorization(ctx context.Context, raID, operatorID uint) (*models.Order, error) {
	ra, order, operator, err := s.loadReturnAuthorization(ctx, raID, operatorID)
	if err != nil {
		return nil, err
	}
	credit := models.Adjustment{
		OrderID:    order.ID,
		Position:   len(order.Adjustments) + 1,
		Amount:     models.NewMoneyFromDecimal(ra.Amount.Decimal.Neg()),
		Label:      "RMA Credit",
		SourceType: constants.AdjustmentSourceReturnAuthorization,
		SourceID:   &ra.ID,
	}
	adjustments := append(append([]models.Adjustment{}, order.Adjustments...), credit)
	_, adjustmentTotal, total := ComputeOrderTotals(order.LineItems, adjustments)
	next := statesOf(order).WithState(constants.OrderStateReturned)
	next.PaymentState = DerivePaymentState(order.PaymentTotal.Decimal, total)
	extra := map[string]interface{}{
		"adjustment_total": adjustmentTotal,
		"total":            total,
	}

	var events []models.StateEvent
	err = s.db.Transaction(func(tx *gorm.DB) error {
		lineItemRepo := s.lineItemRepo.WithTx(tx)
		for _, item := range ra.Items {
			if err := lineItemRepo.IncrementReturned(item.LineItemID, item.Quantity); err != nil {
				return err
			}
		}
		if err := s.adjustmentRepo.WithTx(tx).Create(&credit); err != nil {
			return err
		}
		if _, err := s.states.TransitionReturnAuthorization(tx, ra, constants.ReturnAuthorizationReceived, operator.ID); err != nil {
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
	logger.Ctx(ctx).Infow("order_return_received",
		"order_id", order.ID,
		"return_authorization_id", ra.ID,
		"credit", ra.Amount.String(),
		"total", total.StringFixed(2),
	)
	return s.reload(order.ID)
}

// CancelReturnAuthorization 撤销退货申请，订单回到 complete
func (s *OrderService) CancelReturnAuthorization(ctx context.Context, raID, operatorID uint) (*models.Order, error) {
	ra, order, operator, err := s.loadReturnAuthorization(ctx, raID, operatorID)
	if err != nil {
		return nil, err
	}
	next := statesOf(order).WithState(constants.OrderStateComplete)
	var events []models.StateEvent
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.states.TransitionReturnAuthorization(tx, ra, constants.ReturnAuthorizationCancelled, operator.ID); err != nil {
			return err
		}
		var err error
		events, err = s.states.ApplyTx(tx, order, next, operator.ID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.states.commit(ctx, order, next, events)
	logger.Ctx(ctx).Infow("order_return_cancelled", "order_id", order.ID, "return_authorization_id", ra.ID)
	return s.reload(order.ID)
}

// loadReturnAuthorization 仅处理 authorized 状态的退货申请
func (s *OrderService) loadReturnAuthorization(ctx context.Context, raID, operatorID uint) (*models.ReturnAuthorization, *models.Order, *models.User, error) {
	operator, err := s.requireOperator(ctx, operatorID)
	if err != nil {
		return nil, nil, nil, err
	}
	ra, err := s.raRepo.GetByID(raID)
	if err != nil {
		return nil, nil, nil, err
	}
	if ra == nil {
		return nil, nil, nil, ErrReturnAuthorizationNotFound
	}
	if ra.State != constants.ReturnAuthorizationAuthorized {
		return nil, nil, nil, withDetail(ErrNotAllowedToChangeReturnAuth, "return authorization is %s", ra.State)
	}
	order, _, err := s.loadOrder(ctx, ra.OrderID, operator.ID, OrderActionWrite)
	if err != nil {
		return nil, nil, nil, err
	}
	if order.State != constants.OrderStateAwaitingReturn {
		return nil, nil, nil, withDetail(ErrNotAllowedToChangeReturnAuth, "order is %s", order.State)
	}
	return ra, order, operator, nil
}
