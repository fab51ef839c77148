package service

import (
	"context"
	"errors"
	"testing"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/payment/stripe"

	"github.com/shopspring/decimal"
)

type failingGateway struct {
	err error
}

func (g failingGateway) Process(context.Context, *PaymentLeg) (*GatewayResult, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &GatewayResult{State: constants.PaymentRecordFailed, Message: "card declined"}, nil
}

func reloadGiftCard(t *testing.T, f *orderFixture, id uint) *models.GiftCard {
	t.Helper()
	var card models.GiftCard
	if err := f.db.First(&card, id).Error; err != nil {
		t.Fatalf("reload gift card failed: %v", err)
	}
	return &card
}

func TestGiftCardSplitsWithCash(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	card := f.createGiftCard(t, "GC-100", "1234", "12.00")
	order := f.checkout(t, 3, &PayInput{
		PaymentMethodID: f.cash.ID,
		GiftCard:        &GiftCardInput{Code: "GC-100", Pin: "1234"},
	})

	if order.PaymentState != constants.PaymentStatePaid {
		t.Fatalf("expected paid, got %s", order.PaymentState)
	}
	if len(order.Payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(order.Payments))
	}
	gift, cash := order.Payments[0], order.Payments[1]
	if gift.SourceType != constants.PaymentSourceGiftCard || gift.SourceID == nil || *gift.SourceID != card.ID {
		t.Fatalf("unexpected gift card payment: %+v", gift)
	}
	assertMoney(t, "gift card leg", gift.Amount, "12.00")
	assertMoney(t, "cash leg", cash.Amount, "18.00")
	assertMoney(t, "card balance", reloadGiftCard(t, f, card.ID).Balance, "0")
}

func TestGiftCardCoversWholeOrder(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	card := f.createGiftCard(t, "GC-200", "", "50.00")
	order := f.checkout(t, 3, &PayInput{GiftCard: &GiftCardInput{Code: "GC-200"}})

	if order.State != constants.OrderStateComplete || order.PaymentState != constants.PaymentStatePaid {
		t.Fatalf("expected complete/paid, got %s/%s", order.State, order.PaymentState)
	}
	if len(order.Payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(order.Payments))
	}
	assertMoney(t, "card balance", reloadGiftCard(t, f, card.ID).Balance, "20.00")
}

func TestGiftCardRejections(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	f.createGiftCard(t, "GC-300", "1234", "50.00")
	order := f.checkout(t, 3, nil)
	ctx := context.Background()

	_, _, err := f.svc.PayOrder(ctx, order.ID, f.customer.ID, PayInput{GiftCard: &GiftCardInput{Code: "GC-300", Pin: "0000"}})
	assertCode(t, err, ErrInvalidGiftCardCode)

	_, _, err = f.svc.PayOrder(ctx, order.ID, f.customer.ID, PayInput{GiftCard: &GiftCardInput{Code: "missing", Pin: "1234"}})
	assertCode(t, err, ErrInvalidGiftCardCode)

	empty := f.createGiftCard(t, "GC-EMPTY", "", "0")
	if empty.ID == 0 {
		t.Fatalf("expected gift card to be created")
	}
	_, _, err = f.svc.PayOrder(ctx, order.ID, f.customer.ID, PayInput{GiftCard: &GiftCardInput{Code: "GC-EMPTY"}})
	assertCode(t, err, ErrInsufficientGiftCardBalance)

	var payments int64
	if err := f.db.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&payments).Error; err != nil {
		t.Fatalf("count payments failed: %v", err)
	}
	if payments != 0 {
		t.Fatalf("expected validation failures to create no payments, got %d", payments)
	}
}

func TestPayValidatesMethodAndAmount(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	order := f.checkout(t, 3, nil)
	ctx := context.Background()

	_, _, err := f.svc.PayOrder(ctx, order.ID, f.customer.ID, PayInput{})
	assertCode(t, err, ErrInvalidPaymentMethodID)

	_, _, err = f.svc.PayOrder(ctx, order.ID, f.customer.ID, PayInput{PaymentMethodID: f.giftCard.ID})
	assertCode(t, err, ErrInvalidPaymentMethodID)

	tooMuch := decimal.RequireFromString("40")
	_, _, err = f.svc.PayOrder(ctx, order.ID, f.customer.ID, PayInput{PaymentMethodID: f.cash.ID, Amount: &tooMuch})
	assertCode(t, err, ErrInvalidPaymentAmount)

	negative := decimal.RequireFromString("-1")
	_, _, err = f.svc.PayOrder(ctx, order.ID, f.customer.ID, PayInput{PaymentMethodID: f.cash.ID, Amount: &negative})
	assertCode(t, err, ErrInvalidPaymentAmount)

	_, _, err = f.svc.PayOrder(ctx, order.ID, f.stranger.ID, PayInput{PaymentMethodID: f.cash.ID})
	assertCode(t, err, ErrNoPermissionToAccessOrder)
}

func TestFailedGatewayMarksPaymentFailed(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	f.gateways.Register(constants.PaymentMethodTypeCash, failingGateway{})
	order := f.checkout(t, 1, nil)

	updated, outcome, err := f.svc.PayOrder(context.Background(), order.ID, f.customer.ID, PayInput{PaymentMethodID: f.cash.ID})
	assertCode(t, err, ErrPaymentFailed)
	if outcome == nil || len(outcome.Payments) != 1 || outcome.Payments[0].State != constants.PaymentRecordFailed {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if updated.PaymentState != constants.PaymentStateFailed {
		t.Fatalf("expected failed, got %s", updated.PaymentState)
	}
	if updated.State != constants.OrderStatePayment {
		t.Fatalf("expected order to stay in payment, got %s", updated.State)
	}
	if f.mailer.count() != 0 {
		t.Fatalf("expected no mail")
	}
}

func TestGatewayErrorIsWrapped(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	f.gateways.Register(constants.PaymentMethodTypeCash, failingGateway{err: errors.New("connection reset")})
	order := f.checkout(t, 1, nil)

	_, _, err := f.svc.PayOrder(context.Background(), order.ID, f.customer.ID, PayInput{PaymentMethodID: f.cash.ID})
	assertCode(t, err, ErrPaymentFailed)
	var orderErr *OrderError
	if !errors.As(err, &orderErr) || orderErr.Err == nil {
		t.Fatalf("expected wrapped gateway error, got %v", err)
	}
}

func TestAutoshipOrderRejectsGiftCard(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	f.createGiftCard(t, "GC-400", "", "50.00")
	result, err := f.svc.Checkout(context.Background(), CheckoutInput{
		UserID:    f.customer.ID,
		LineItems: []LineItemRequest{{VariantID: f.variant.ID, Quantity: 1}},
		Autoship:  true,
	})
	if err != nil {
		t.Fatalf("autoship checkout failed: %v", err)
	}
	if !result.Order.Autoship || !result.Order.LineItems[0].IsAutoship {
		t.Fatalf("expected autoship order and line items")
	}

	_, _, err = f.svc.PayOrder(context.Background(), result.Order.ID, f.customer.ID, PayInput{GiftCard: &GiftCardInput{Code: "GC-400"}})
	assertCode(t, err, ErrInvalidPaymentMethodID)

	_, _, err = f.svc.PayOrder(context.Background(), result.Order.ID, f.customer.ID, PayInput{PaymentMethodID: f.deferred.ID})
	assertCode(t, err, ErrInvalidPaymentMethodID)

	paid := f.payCash(t, result.Order.ID, "")
	if paid.PaymentState != constants.PaymentStatePaid {
		t.Fatalf("expected paid, got %s", paid.PaymentState)
	}
}

func TestCreditcardAuthorizeThenCapture(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	method := &models.PaymentMethod{Name: "Card", Type: constants.PaymentMethodTypeCreditcard, Active: true, Position: 4}
	mustCreate(t, f.db, method)
	card := &models.Creditcard{UserID: f.customer.ID, Brand: "visa", LastDigits: "4242", GatewayToken: "pm_card"}
	mustCreate(t, f.db, card)

	var authorized stripe.AuthorizeInput
	gateway := &CreditcardGateway{
		cfg: &stripe.Config{SecretKey: "sk_test"},
		authorize: func(_ context.Context, _ *stripe.Config, input stripe.AuthorizeInput) (*stripe.IntentResult, error) {
			authorized = input
			return &stripe.IntentResult{PaymentIntentID: "pi_1", Status: stripe.StatusPending}, nil
		},
		capture: func(_ context.Context, _ *stripe.Config, intentID, amount, currency string) (*stripe.IntentResult, error) {
			if intentID != "pi_1" || amount != "30.00" || currency != "USD" {
				t.Errorf("unexpected capture args: %s %s %s", intentID, amount, currency)
			}
			return &stripe.IntentResult{PaymentIntentID: "pi_1", Status: stripe.StatusCompleted}, nil
		},
		cancel: func(context.Context, *stripe.Config, string) (*stripe.IntentResult, error) {
			return &stripe.IntentResult{Status: stripe.StatusFailed}, nil
		},
	}
	f.gateways.Register(constants.PaymentMethodTypeCreditcard, gateway)

	order := f.checkout(t, 3, &PayInput{PaymentMethodID: method.ID, CreditcardID: card.ID})
	if authorized.PaymentMethod != "pm_card" || authorized.Amount != "30.00" {
		t.Fatalf("unexpected authorize input: %+v", authorized)
	}
	if order.Payments[0].State != constants.PaymentRecordPending || order.Payments[0].ResponseCode != "pi_1" {
		t.Fatalf("unexpected payment: %+v", order.Payments[0])
	}
	if order.PaymentState != constants.PaymentStateBalanceDue {
		t.Fatalf("expected balance_due, got %s", order.PaymentState)
	}

	captured, err := f.svc.CapturePayment(context.Background(), order.ID, order.Payments[0].ID, f.admin.ID)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if captured.PaymentState != constants.PaymentStatePaid {
		t.Fatalf("expected paid, got %s", captured.PaymentState)
	}
}

func TestCreditcardRequiresOwnedCard(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	method := &models.PaymentMethod{Name: "Card", Type: constants.PaymentMethodTypeCreditcard, Active: true, Position: 4}
	mustCreate(t, f.db, method)
	card := &models.Creditcard{UserID: f.stranger.ID, GatewayToken: "pm_other"}
	mustCreate(t, f.db, card)
	order := f.checkout(t, 1, nil)

	_, _, err := f.svc.PayOrder(context.Background(), order.ID, f.customer.ID, PayInput{PaymentMethodID: method.ID, CreditcardID: card.ID})
	assertCode(t, err, ErrInvalidPaymentMethodID)
}

func TestCreditcardGatewayWithoutConfig(t *testing.T) {
	gateway := NewCreditcardGateway(nil)
	leg := &PaymentLeg{
		Order:      &models.Order{Number: "R1", Currency: "USD"},
		Payment:    &models.Payment{ID: 1, Amount: models.NewMoneyFromString("1.00")},
		Creditcard: &models.Creditcard{GatewayToken: "pm"},
	}
	if _, err := gateway.Process(context.Background(), leg); !errors.Is(err, errGatewayNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
	if _, err := gateway.Capture(context.Background(), leg); !errors.Is(err, errGatewayNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
	if err := gateway.Void(context.Background(), leg); !errors.Is(err, errGatewayNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestIntentToGatewayResult(t *testing.T) {
	cases := map[string]string{
		stripe.StatusCompleted: constants.PaymentRecordCompleted,
		stripe.StatusFailed:    constants.PaymentRecordFailed,
		stripe.StatusPending:   constants.PaymentRecordPending,
		"":                     constants.PaymentRecordPending,
	}
	for status, want := range cases {
		got := intentToGatewayResult(&stripe.IntentResult{Status: status, PaymentIntentID: "pi"})
		if got.State != want || got.ResponseCode != "pi" {
			t.Fatalf("status %q: expected %s, got %+v", status, want, got)
		}
	}
}
