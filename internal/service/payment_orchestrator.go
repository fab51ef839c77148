package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/logger"
	"github.com/hustbill/nodejs-api-server-sub001/internal/metrics"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// GiftCardInput 礼品卡支付信息
type GiftCardInput struct {
	Code string `json:"code"`
	Pin  string `json:"pin"`
}

// PayInput 支付请求
type PayInput struct {
	PaymentMethodID   uint
	Amount            *decimal.Decimal // 为空时支付全部剩余金额
	CreditcardID      uint
	GiftCard          *GiftCardInput
	AutoshipPaymentID *uint
	OperatorID        uint
}

// PaymentOutcome 支付结果
type PaymentOutcome struct {
	Payments  []models.Payment
	Completed bool // 本次支付触发了完成任务
}

type plannedLeg struct {
	method     *models.PaymentMethod
	amount     decimal.Decimal
	sourceType string
	sourceID   *uint
	giftCard   *models.GiftCard
	creditcard *models.Creditcard
}

// PaymentOrchestratorDeps 支付编排依赖
type PaymentOrchestratorDeps struct {
	RefRepo      repository.ReferenceRepository
	PaymentRepo  repository.PaymentRepository
	GiftCardRepo repository.GiftCardRepository
	UserRepo     repository.UserRepository
	Gateways     *PaymentGatewayRouter
	States       *OrderStateMachine
	Completion   *CompletionRunner
	Metrics      *metrics.Metrics
}

// PaymentOrchestrator 拆分礼品卡与其他支付方式，处理结果并推进订单状态
type PaymentOrchestrator struct {
	refRepo      repository.ReferenceRepository
	paymentRepo  repository.PaymentRepository
	giftCardRepo repository.GiftCardRepository
	userRepo     repository.UserRepository
	gateways     *PaymentGatewayRouter
	states       *OrderStateMachine
	completion   *CompletionRunner
	metrics      *metrics.Metrics
}

// NewPaymentOrchestrator 创建支付编排器
func NewPaymentOrchestrator(deps PaymentOrchestratorDeps) *PaymentOrchestrator {
	return &PaymentOrchestrator{
		refRepo:      deps.RefRepo,
		paymentRepo:  deps.PaymentRepo,
		giftCardRepo: deps.GiftCardRepo,
		userRepo:     deps.UserRepo,
		gateways:     deps.Gateways,
		states:       deps.States,
		completion:   deps.Completion,
		metrics:      deps.Metrics,
	}
}

// Pay 先完成全部校验再逐笔处理；失败的一笔之后不再继续
func (o *PaymentOrchestrator) Pay(ctx context.Context, order *models.Order, in PayInput) (*PaymentOutcome, error) {
	if order == nil {
		return nil, ErrOrderNotFound
	}
	switch order.State {
	case constants.OrderStateCart, constants.OrderStatePayment, constants.OrderStateComplete:
	default:
		return nil, withDetail(ErrNotAllowedToChangeOrder, "order is %s", order.State)
	}
	legs, err := o.plan(order, in)
	if err != nil {
		return nil, err
	}
	wasPaid := order.State == constants.OrderStateComplete && order.IsPaidInFull()
	outcome := &PaymentOutcome{}

	if len(legs) == 0 {
		if err := o.reconcile(ctx, order, in.OperatorID); err != nil {
			return nil, err
		}
	}
	for i := range legs {
		payment, err := o.execute(ctx, order, &legs[i], in)
		if payment != nil {
			outcome.Payments = append(outcome.Payments, *payment)
		}
		if err != nil {
			return outcome, err
		}
	}

	if !wasPaid && order.State == constants.OrderStateComplete && order.IsPaidInFull() {
		o.runCompletion(ctx, order, in.OperatorID)
		outcome.Completed = true
	}
	return outcome, nil
}

// plan 计算每种支付方式的金额，不产生任何写入
func (o *PaymentOrchestrator) plan(order *models.Order, in PayInput) ([]plannedLeg, error) {
	due := models.FloorZero(models.Round2(order.Total.Decimal.Sub(order.PaymentTotal.Decimal)))
	remaining := due
	var legs []plannedLeg

	if in.GiftCard != nil && strings.TrimSpace(in.GiftCard.Code) != "" {
		if order.Autoship {
			return nil, withDetail(ErrInvalidPaymentMethodID, "gift cards are not available for autoship orders")
		}
		card, err := o.resolveGiftCard(order, in.GiftCard)
		if err != nil {
			return nil, err
		}
		method, err := o.giftCardMethod()
		if err != nil {
			return nil, err
		}
		amount := decimal.Min(card.Balance.Decimal, remaining)
		if amount.IsPositive() {
			cardID := card.ID
			legs = append(legs, plannedLeg{
				method:     method,
				amount:     models.Round2(amount),
				sourceType: constants.PaymentSourceGiftCard,
				sourceID:   &cardID,
				giftCard:   card,
			})
			remaining = models.Round2(remaining.Sub(amount))
		}
	}

	if in.PaymentMethodID == 0 {
		if in.Amount != nil && in.Amount.IsPositive() {
			return nil, ErrInvalidPaymentMethodID
		}
		if remaining.IsPositive() && len(legs) == 0 {
			return nil, ErrInvalidPaymentMethodID
		}
		return legs, nil
	}

	method, err := o.refRepo.GetPaymentMethodByID(in.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if method == nil || !method.Active || method.Type == constants.PaymentMethodTypeGiftCard {
		return nil, ErrInvalidPaymentMethodID
	}
	if order.Autoship && !method.AutoshipAvailable {
		return nil, withDetail(ErrInvalidPaymentMethodID, "payment method %d is not available for autoship", method.ID)
	}

	amount := remaining
	if in.Amount != nil {
		requested := models.Round2(*in.Amount)
		if requested.IsNegative() || requested.GreaterThan(remaining) {
			return nil, withDetail(ErrInvalidPaymentAmount, "amount %s exceeds remaining %s", requested.StringFixed(2), remaining.StringFixed(2))
		}
		amount = requested
	}

	leg := plannedLeg{method: method, amount: amount, sourceType: constants.PaymentSourceCash}
	if method.Type == constants.PaymentMethodTypeCreditcard {
		card, err := o.paymentRepo.GetCreditcard(in.CreditcardID)
		if err != nil {
			return nil, err
		}
		if card == nil || card.UserID != order.UserID {
			return nil, withDetail(ErrInvalidPaymentMethodID, "creditcard %d not found", in.CreditcardID)
		}
		cardID := card.ID
		leg.sourceType = constants.PaymentSourceCreditcard
		leg.sourceID = &cardID
		leg.creditcard = card
	}
	// 零金额只对现金有意义
	if amount.IsZero() && method.Type != constants.PaymentMethodTypeCash {
		if len(legs) == 0 && due.IsPositive() {
			return nil, ErrInvalidPaymentAmount
		}
		return legs, nil
	}
	return append(legs, leg), nil
}

func (o *PaymentOrchestrator) resolveGiftCard(order *models.Order, input *GiftCardInput) (*models.GiftCard, error) {
	card, err := o.giftCardRepo.GetByCode(input.Code)
	if err != nil {
		return nil, err
	}
	if card == nil || !card.Active {
		return nil, ErrInvalidGiftCardCode
	}
	if card.PinHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(card.PinHash), []byte(input.Pin)); err != nil {
			return nil, ErrInvalidGiftCardCode
		}
	}
	if card.Currency != "" && !strings.EqualFold(card.Currency, order.Currency) {
		return nil, withDetail(ErrInvalidGiftCardCode, "gift card currency %s does not match order", card.Currency)
	}
	if !card.Balance.Decimal.IsPositive() {
		return nil, ErrInsufficientGiftCardBalance
	}
	return card, nil
}

func (o *PaymentOrchestrator) giftCardMethod() (*models.PaymentMethod, error) {
	methods, err := o.refRepo.ListPaymentMethods(false)
	if err != nil {
		return nil, err
	}
	for i := range methods {
		if methods[i].Type == constants.PaymentMethodTypeGiftCard {
			return &methods[i], nil
		}
	}
	return nil, withDetail(ErrInvalidPaymentMethodID, "gift card payment method is not enabled")
}

// execute 创建支付记录，交给网关处理，再根据结果结算
func (o *PaymentOrchestrator) execute(ctx context.Context, order *models.Order, leg *plannedLeg, in PayInput) (*models.Payment, error) {
	payment := &models.Payment{
		OrderID:         order.ID,
		PaymentMethodID: leg.method.ID,
		Amount:          models.NewMoneyFromDecimal(leg.amount),
		SourceType:      leg.sourceType,
		SourceID:        leg.sourceID,
		State:           constants.PaymentRecordCheckout,
	}
	if leg.sourceType != constants.PaymentSourceGiftCard {
		payment.AutoshipPaymentID = in.AutoshipPaymentID
	}
	if err := o.paymentRepo.Create(payment); err != nil {
		return nil, err
	}
	payment.PaymentMethod = leg.method

	log := logger.Ctx(ctx, "order_id", order.ID, "payment_id", payment.ID, "method_type", leg.method.Type)
	gateway, ok := o.gateways.Lookup(leg.method.Type)
	var result *GatewayResult
	var procErr error
	if !ok {
		procErr = errGatewayNotConfigured
	} else {
		result, procErr = gateway.Process(ctx, &PaymentLeg{
			Order:      order,
			Payment:    payment,
			Method:     leg.method,
			Creditcard: leg.creditcard,
			GiftCard:   leg.giftCard,
		})
	}
	if procErr != nil {
		log.Errorw("order_payment_gateway_failed", "error", procErr)
		result = &GatewayResult{State: constants.PaymentRecordFailed}
	}

	if err := o.paymentRepo.UpdateState(payment.ID, result.State, result.ResponseCode); err != nil {
		return payment, err
	}
	payment.State = result.State
	payment.ResponseCode = result.ResponseCode
	order.Payments = append(order.Payments, *payment)
	o.metrics.RecordPayment(ctx, leg.method.Type, result.State)

	if err := o.settle(ctx, order, payment, in.OperatorID); err != nil {
		return payment, err
	}
	if result.State == constants.PaymentRecordFailed {
		var orderErr *OrderError
		if errors.As(procErr, &orderErr) {
			return payment, orderErr
		}
		if procErr != nil {
			return payment, wrapExternal(ErrPaymentFailed, procErr)
		}
		if result.Message == ErrInsufficientGiftCardBalance.Code {
			return payment, ErrInsufficientGiftCardBalance
		}
		return payment, withDetail(ErrPaymentFailed, "%s", strings.TrimSpace(result.Message))
	}
	log.Infow("order_payment_processed", "state", result.State, "amount", payment.Amount.String())
	return payment, nil
}

// settle 按支付结果推进订单状态
func (o *PaymentOrchestrator) settle(ctx context.Context, order *models.Order, payment *models.Payment, operatorID uint) error {
	next := statesOf(order)
	extra := map[string]interface{}{}
	now := time.Now()

	switch payment.State {
	case constants.PaymentRecordCompleted:
		paymentTotal := models.SumRound2(order.PaymentTotal.Decimal, payment.Amount.Decimal)
		next.PaymentState = DerivePaymentState(paymentTotal, order.Total.Decimal)
		extra["payment_total"] = paymentTotal
		o.advance(order, &next, extra, now)
		if _, err := o.states.Apply(ctx, order, next, operatorID, extra); err != nil {
			return err
		}
		order.PaymentTotal = models.NewMoneyFromDecimal(paymentTotal)
	case constants.PaymentRecordPending:
		// 延期结算：订单先完成，余款待确认
		next.PaymentState = constants.PaymentStateBalanceDue
		o.advance(order, &next, extra, now)
		if _, err := o.states.Apply(ctx, order, next, operatorID, extra); err != nil {
			return err
		}
	case constants.PaymentRecordFailed:
		next.PaymentState = constants.PaymentStateFailed
		if _, err := o.states.Apply(ctx, order, next, operatorID, nil); err != nil {
			return err
		}
	}
	if t, ok := extra["completed_at"].(time.Time); ok {
		order.CompletedAt = &t
	}
	return nil
}

// advance 处于 cart/payment 的订单在支付状态满足时转为 complete
func (o *PaymentOrchestrator) advance(order *models.Order, next *OrderStates, extra map[string]interface{}, now time.Time) {
	if (order.State == constants.OrderStatePayment || order.State == constants.OrderStateCart) && completesOrder(next.PaymentState) {
		next.State = constants.OrderStateComplete
		extra["completed_at"] = now
	}
	if next.State == constants.OrderStateComplete {
		next.ShipmentState = deriveShipmentState(next.PaymentState, order.ShipmentState)
	}
}

// reconcile 无需支付时直接按金额推导状态
func (o *PaymentOrchestrator) reconcile(ctx context.Context, order *models.Order, operatorID uint) error {
	next := statesOf(order)
	next.PaymentState = DerivePaymentState(order.PaymentTotal.Decimal, order.Total.Decimal)
	extra := map[string]interface{}{}
	now := time.Now()
	o.advance(order, &next, extra, now)
	if _, err := o.states.Apply(ctx, order, next, operatorID, extra); err != nil {
		return err
	}
	if _, ok := extra["completed_at"]; ok {
		order.CompletedAt = &now
	}
	return nil
}

// Capture 对挂起的支付扣款，随后重新结算
func (o *PaymentOrchestrator) Capture(ctx context.Context, order *models.Order, paymentID uint, operatorID uint) (*models.Payment, error) {
	payment, err := o.paymentRepo.GetByID(paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.OrderID != order.ID {
		return nil, ErrPaymentNotFound
	}
	if payment.State != constants.PaymentRecordPending {
		return nil, withDetail(ErrNotAllowedToCapturePayment, "payment is %s", payment.State)
	}
	method := payment.PaymentMethod
	if method == nil {
		method, err = o.refRepo.GetPaymentMethodByID(payment.PaymentMethodID)
		if err != nil {
			return nil, err
		}
		if method == nil {
			return nil, ErrInvalidPaymentMethodID
		}
	}
	gateway, ok := o.gateways.Lookup(method.Type)
	if !ok {
		return nil, ErrNotAllowedToCapturePayment
	}
	capturer, ok := gateway.(PaymentCapturer)
	if !ok {
		return nil, ErrNotAllowedToCapturePayment
	}

	wasPaid := order.State == constants.OrderStateComplete && order.IsPaidInFull()
	result, err := capturer.Capture(ctx, &PaymentLeg{Order: order, Payment: payment, Method: method})
	if err != nil {
		logger.Ctx(ctx).Errorw("order_payment_capture_failed", "order_id", order.ID, "payment_id", payment.ID, "error", err)
		return nil, wrapExternal(ErrPaymentFailed, err)
	}
	responseCode := payment.ResponseCode
	if result.ResponseCode != "" {
		responseCode = result.ResponseCode
	}
	if err := o.paymentRepo.UpdateState(payment.ID, result.State, responseCode); err != nil {
		return nil, err
	}
	payment.State = result.State
	payment.ResponseCode = responseCode
	o.metrics.RecordPayment(ctx, method.Type, result.State)

	switch result.State {
	case constants.PaymentRecordCompleted:
		if err := o.settle(ctx, order, payment, operatorID); err != nil {
			return payment, err
		}
	case constants.PaymentRecordFailed:
		if err := o.settle(ctx, order, payment, operatorID); err != nil {
			return payment, err
		}
		return payment, withDetail(ErrPaymentFailed, "%s", result.Message)
	}

	if !wasPaid && order.State == constants.OrderStateComplete && order.IsPaidInFull() {
		o.runCompletion(ctx, order, operatorID)
	}
	return payment, nil
}

// VoidPending 作废订单上仍挂起的支付，网关错误只记录
func (o *PaymentOrchestrator) VoidPending(ctx context.Context, order *models.Order) (int, error) {
	payments, err := o.paymentRepo.ListByOrder(order.ID)
	if err != nil {
		return 0, err
	}
	voided := 0
	for i := range payments {
		payment := &payments[i]
		if payment.State != constants.PaymentRecordPending {
			continue
		}
		method := payment.PaymentMethod
		if method != nil {
			if gateway, ok := o.gateways.Lookup(method.Type); ok {
				if voider, ok := gateway.(PaymentVoider); ok {
					if err := voider.Void(ctx, &PaymentLeg{Order: order, Payment: payment, Method: method}); err != nil {
						logger.Ctx(ctx).Warnw("order_payment_void_failed", "order_id", order.ID, "payment_id", payment.ID, "error", err)
					}
				}
			}
		}
		if err := o.paymentRepo.UpdateState(payment.ID, constants.PaymentRecordVoid, payment.ResponseCode); err != nil {
			return voided, err
		}
		voided++
	}
	return voided, nil
}

func (o *PaymentOrchestrator) runCompletion(ctx context.Context, order *models.Order, operatorID uint) {
	owner, err := o.userRepo.GetByID(order.UserID)
	if err != nil {
		logger.Ctx(ctx).Warnw("order_completion_owner_load_failed", "order_id", order.ID, "error", err)
	}
	o.completion.Run(ctx, &CompletionContext{
		Order:      order,
		Owner:      owner,
		OperatorID: operatorID,
		Policy:     ResolveCompanyPolicy(order.CompanyCode),
	})
}
