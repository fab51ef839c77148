package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/payment/stripe"
	"github.com/hustbill/nodejs-api-server-sub001/internal/repository"

	"gorm.io/gorm"
)

var errGatewayNotConfigured = errors.New("payment gateway not configured")

// PaymentLeg 一笔待处理的支付
type PaymentLeg struct {
	Order      *models.Order
	Payment    *models.Payment
	Method     *models.PaymentMethod
	Creditcard *models.Creditcard
	GiftCard   *models.GiftCard
}

// GatewayResult 网关处理结果，State 为 completed / pending / failed
type GatewayResult struct {
	State        string
	ResponseCode string
	Message      string
}

// PaymentGateway 处理一笔支付并报告结果
type PaymentGateway interface {
	Process(ctx context.Context, leg *PaymentLeg) (*GatewayResult, error)
}

// PaymentCapturer 支持对挂起支付扣款
type PaymentCapturer interface {
	Capture(ctx context.Context, leg *PaymentLeg) (*GatewayResult, error)
}

// PaymentVoider 支持作废挂起支付
type PaymentVoider interface {
	Void(ctx context.Context, leg *PaymentLeg) error
}

// PaymentGatewayRouter 按支付方式类型路由网关
type PaymentGatewayRouter struct {
	gateways map[string]PaymentGateway
}

// NewPaymentGatewayRouter 创建路由
func NewPaymentGatewayRouter() *PaymentGatewayRouter {
	return &PaymentGatewayRouter{gateways: make(map[string]PaymentGateway)}
}

// Register 注册网关
func (r *PaymentGatewayRouter) Register(methodType string, gateway PaymentGateway) {
	r.gateways[strings.ToLower(strings.TrimSpace(methodType))] = gateway
}

// Lookup 查找网关
func (r *PaymentGatewayRouter) Lookup(methodType string) (PaymentGateway, bool) {
	gateway, ok := r.gateways[strings.ToLower(strings.TrimSpace(methodType))]
	return gateway, ok
}

// NewDefaultPaymentGatewayRouter 注册现金、延期、礼品卡与信用卡网关
func NewDefaultPaymentGatewayRouter(db *gorm.DB, giftCardRepo repository.GiftCardRepository, stripeCfg *stripe.Config) *PaymentGatewayRouter {
	router := NewPaymentGatewayRouter()
	router.Register(constants.PaymentMethodTypeCash, cashGateway{})
	router.Register(constants.PaymentMethodTypeDeferred, deferredGateway{})
	router.Register(constants.PaymentMethodTypeGiftCard, &giftCardGateway{db: db, repo: giftCardRepo})
	router.Register(constants.PaymentMethodTypeCreditcard, NewCreditcardGateway(stripeCfg))
	return router
}

// cashGateway 现金当场结清，允许零金额
type cashGateway struct{}

func (cashGateway) Process(context.Context, *PaymentLeg) (*GatewayResult, error) {
	return &GatewayResult{State: constants.PaymentRecordCompleted}, nil
}

// deferredGateway 银行转账/货到付款，等待线下确认
type deferredGateway struct{}

func (deferredGateway) Process(context.Context, *PaymentLeg) (*GatewayResult, error) {
	return &GatewayResult{State: constants.PaymentRecordPending}, nil
}

func (deferredGateway) Capture(context.Context, *PaymentLeg) (*GatewayResult, error) {
	return &GatewayResult{State: constants.PaymentRecordCompleted}, nil
}

func (deferredGateway) Void(context.Context, *PaymentLeg) error {
	return nil
}

// giftCardGateway 加锁读取礼品卡后扣减余额，余额不足即失败
type giftCardGateway struct {
	db   *gorm.DB
	repo repository.GiftCardRepository
}

func (g *giftCardGateway) Process(_ context.Context, leg *PaymentLeg) (*GatewayResult, error) {
	if leg.GiftCard == nil {
		return nil, ErrInvalidGiftCardCode
	}
	amount := models.Round2(leg.Payment.Amount.Decimal)
	deducted := false
	err := g.db.Transaction(func(tx *gorm.DB) error {
		repo := g.repo.WithTx(tx)
		card, err := repo.GetByCodeForUpdate(leg.GiftCard.Code)
		if err != nil {
			return err
		}
		if card == nil || card.ID != leg.GiftCard.ID || !card.Active {
			return ErrInvalidGiftCardCode
		}
		if card.Balance.Decimal.LessThan(amount) {
			return nil
		}
		deducted, err = repo.Deduct(card.ID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !deducted {
		return &GatewayResult{State: constants.PaymentRecordFailed, Message: ErrInsufficientGiftCardBalance.Code}, nil
	}
	leg.GiftCard.Balance = leg.GiftCard.Balance.Minus(leg.Payment.Amount)
	return &GatewayResult{State: constants.PaymentRecordCompleted, ResponseCode: leg.GiftCard.Code}, nil
}

// CreditcardGateway 信用卡预授权，扣款前保持 pending
type CreditcardGateway struct {
	cfg       *stripe.Config
	authorize func(ctx context.Context, cfg *stripe.Config, input stripe.AuthorizeInput) (*stripe.IntentResult, error)
	capture   func(ctx context.Context, cfg *stripe.Config, paymentIntentID, amount, currency string) (*stripe.IntentResult, error)
	cancel    func(ctx context.Context, cfg *stripe.Config, paymentIntentID string) (*stripe.IntentResult, error)
}

// NewCreditcardGateway 创建信用卡网关，cfg 为空时所有请求返回未配置错误
func NewCreditcardGateway(cfg *stripe.Config) *CreditcardGateway {
	return &CreditcardGateway{
		cfg:       cfg,
		authorize: stripe.Authorize,
		capture:   stripe.Capture,
		cancel:    stripe.Cancel,
	}
}

func (g *CreditcardGateway) Process(ctx context.Context, leg *PaymentLeg) (*GatewayResult, error) {
	if g.cfg == nil {
		return nil, errGatewayNotConfigured
	}
	if leg.Creditcard == nil {
		return nil, ErrInvalidPaymentMethodID
	}
	ctx = stripe.WithIdempotencyKey(ctx, fmt.Sprintf("%s-%d", leg.Order.Number, leg.Payment.ID))
	result, err := g.authorize(ctx, g.cfg, stripe.AuthorizeInput{
		OrderNumber:   leg.Order.Number,
		PaymentID:     leg.Payment.ID,
		Amount:        leg.Payment.Amount.Decimal.StringFixed(2),
		Currency:      leg.Order.Currency,
		PaymentMethod: leg.Creditcard.GatewayToken,
	})
	if err != nil {
		return nil, err
	}
	return intentToGatewayResult(result), nil
}

func (g *CreditcardGateway) Capture(ctx context.Context, leg *PaymentLeg) (*GatewayResult, error) {
	if g.cfg == nil {
		return nil, errGatewayNotConfigured
	}
	result, err := g.capture(ctx, g.cfg, leg.Payment.ResponseCode, leg.Payment.Amount.Decimal.StringFixed(2), leg.Order.Currency)
	if err != nil {
		return nil, err
	}
	return intentToGatewayResult(result), nil
}

func (g *CreditcardGateway) Void(ctx context.Context, leg *PaymentLeg) error {
	if g.cfg == nil {
		return errGatewayNotConfigured
	}
	_, err := g.cancel(ctx, g.cfg, leg.Payment.ResponseCode)
	return err
}

func intentToGatewayResult(result *stripe.IntentResult) *GatewayResult {
	state := constants.PaymentRecordPending
	switch result.Status {
	case stripe.StatusCompleted:
		state = constants.PaymentRecordCompleted
	case stripe.StatusFailed:
		state = constants.PaymentRecordFailed
	}
	return &GatewayResult{
		State:        state,
		ResponseCode: result.PaymentIntentID,
		Message:      result.FailureMessage,
	}
}
