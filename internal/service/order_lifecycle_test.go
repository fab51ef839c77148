package service

import (
	"context"
	"testing"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"github.com/shopspring/decimal"
)

func inventoryStates(t *testing.T, f *orderFixture, orderID uint) map[string]int {
	t.Helper()
	var units []models.InventoryUnit
	if err := f.db.Where("order_id = ?", orderID).Find(&units).Error; err != nil {
		t.Fatalf("list inventory units failed: %v", err)
	}
	result := make(map[string]int)
	for _, unit := range units {
		result[unit.State]++
	}
	return result
}

func TestCancelThenRefundPaidOrder(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	order := f.checkout(t, 2, &PayInput{PaymentMethodID: f.cash.ID})
	ctx := context.Background()

	_, err := f.svc.CancelOrder(ctx, order.ID, f.stranger.ID)
	assertCode(t, err, ErrNoPermissionToAccessOrder)

	cancelled, err := f.svc.CancelOrder(ctx, order.ID, f.customer.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.State != constants.OrderStateCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.State)
	}
	assertMoney(t, "credit_total", cancelled.CreditTotal, "20.00")
	if states := inventoryStates(t, f, order.ID); states[constants.InventoryUnitReturned] != 2 {
		t.Fatalf("expected 2 returned units, got %+v", states)
	}

	_, err = f.svc.CancelOrder(ctx, order.ID, f.customer.ID)
	assertCode(t, err, ErrNotAllowedToCancelOrder)

	_, err = f.svc.RefundOrder(ctx, order.ID, f.customer.ID)
	assertCode(t, err, ErrNoPermissionToAccessOrder)

	refunded, err := f.svc.RefundOrder(ctx, order.ID, f.admin.ID)
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refunded.PaymentState != constants.PaymentStateRefund {
		t.Fatalf("expected refund, got %s", refunded.PaymentState)
	}
	assertMoney(t, "credit_total", refunded.CreditTotal, "20.00")

	_, err = f.svc.RefundOrder(ctx, order.ID, f.admin.ID)
	assertCode(t, err, ErrNotAllowedToRefundOrder)
}

func TestRefundOfCancelledOrderRestoresGiftCard(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	card := f.createGiftCard(t, "GC-300", "4321", "25.00")
	order := f.checkout(t, 3, &PayInput{
		PaymentMethodID: f.cash.ID,
		GiftCard:        &GiftCardInput{Code: "GC-300", Pin: "4321"},
	})
	assertMoney(t, "card balance after checkout", reloadGiftCard(t, f, card.ID).Balance, "0")
	ctx := context.Background()

	if _, err := f.svc.CancelOrder(ctx, order.ID, f.customer.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	assertMoney(t, "card balance after cancel", reloadGiftCard(t, f, card.ID).Balance, "0")

	refunded, err := f.svc.RefundOrder(ctx, order.ID, f.admin.ID)
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	assertMoney(t, "credit_total", refunded.CreditTotal, "30.00")
	assertMoney(t, "card balance after refund", reloadGiftCard(t, f, card.ID).Balance, "25.00")

	_, err = f.svc.RefundOrder(ctx, order.ID, f.admin.ID)
	assertCode(t, err, ErrNotAllowedToRefundOrder)
	assertMoney(t, "card balance after repeated refund", reloadGiftCard(t, f, card.ID).Balance, "25.00")
}

func TestCancelUnpaidOrderIsRejected(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	order := f.checkout(t, 1, nil)

	_, err := f.svc.CancelOrder(context.Background(), order.ID, f.customer.ID)
	assertCode(t, err, ErrNotAllowedToCancelOrder)

	_, err = f.svc.RefundOrder(context.Background(), order.ID, f.admin.ID)
	assertCode(t, err, ErrNotAllowedToRefundOrder)
}

func TestCancelInAssembleFollowsPreference(t *testing.T) {
	cases := []struct {
		name    string
		prefs   map[string]string
		allowed bool
	}{
		{name: "default", allowed: false},
		{name: "enabled", prefs: map[string]string{constants.PreferenceAllowCancelInAssemble: "true"}, allowed: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := setupOrderFixture(t, fixtureOptions{Preferences: tc.prefs})
			order := f.checkout(t, 1, &PayInput{PaymentMethodID: f.cash.ID})
			ctx := context.Background()
			if _, err := f.svc.UpdateShipmentState(ctx, order.ID, f.admin.ID, ShipmentUpdate{State: constants.ShipmentStateAssemble}); err != nil {
				t.Fatalf("assemble failed: %v", err)
			}
			_, err := f.svc.CancelOrder(ctx, order.ID, f.customer.ID)
			if tc.allowed {
				if err != nil {
					t.Fatalf("expected cancel to succeed, got %v", err)
				}
				return
			}
			assertCode(t, err, ErrNotAllowedToCancelOrder)
		})
	}
}

func TestDeferredPaymentCapture(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	order := f.checkout(t, 3, &PayInput{PaymentMethodID: f.deferred.ID})
	ctx := context.Background()

	if order.State != constants.OrderStateComplete || order.PaymentState != constants.PaymentStateBalanceDue {
		t.Fatalf("expected complete/balance_due, got %s/%s", order.State, order.PaymentState)
	}
	if order.ShipmentStateValue() != constants.ShipmentStatePending {
		t.Fatalf("expected shipment pending, got %s", order.ShipmentStateValue())
	}
	if len(order.Payments) != 1 || order.Payments[0].State != constants.PaymentRecordPending {
		t.Fatalf("expected one pending payment, got %+v", order.Payments)
	}
	assertMoney(t, "payment_total", order.PaymentTotal, "0")
	paymentID := order.Payments[0].ID

	_, err := f.svc.CapturePayment(ctx, order.ID, paymentID, f.customer.ID)
	assertCode(t, err, ErrNoPermissionToAccessOrder)

	captured, err := f.svc.CapturePayment(ctx, order.ID, paymentID, f.admin.ID)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if captured.PaymentState != constants.PaymentStatePaid {
		t.Fatalf("expected paid, got %s", captured.PaymentState)
	}
	if captured.ShipmentStateValue() != constants.ShipmentStateReady {
		t.Fatalf("expected ready, got %s", captured.ShipmentStateValue())
	}
	assertMoney(t, "payment_total", captured.PaymentTotal, "30.00")
	if f.mailer.count() != 1 {
		t.Fatalf("expected confirmation mail after capture, got %d", f.mailer.count())
	}

	_, err = f.svc.CapturePayment(ctx, order.ID, paymentID, f.admin.ID)
	assertCode(t, err, ErrNotAllowedToCapturePayment)

	_, err = f.svc.CapturePayment(ctx, order.ID, paymentID+100, f.admin.ID)
	assertCode(t, err, ErrPaymentNotFound)
}

func TestCancelVoidsPendingPayments(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	order := f.checkout(t, 1, &PayInput{PaymentMethodID: f.deferred.ID})

	cancelled, err := f.svc.CancelOrder(context.Background(), order.ID, f.customer.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Payments[0].State != constants.PaymentRecordVoid {
		t.Fatalf("expected void payment, got %s", cancelled.Payments[0].State)
	}
	assertMoney(t, "credit_total", cancelled.CreditTotal, "0")
}

func shipOrder(t *testing.T, f *orderFixture, quantity int) *models.Order {
	t.Helper()
	order := f.checkout(t, quantity, &PayInput{PaymentMethodID: f.cash.ID})
	shipped, err := f.svc.UpdateShipmentState(context.Background(), order.ID, f.admin.ID, ShipmentUpdate{State: constants.ShipmentStateShipped})
	if err != nil {
		t.Fatalf("ship failed: %v", err)
	}
	return shipped
}

func TestReturnAuthorizationReceiveAndRefund(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	order := shipOrder(t, f, 3)
	ctx := context.Background()
	lineItemID := order.LineItems[0].ID

	if states := inventoryStates(t, f, order.ID); states[constants.InventoryUnitShipped] != 3 {
		t.Fatalf("expected 3 shipped units, got %+v", states)
	}

	_, err := f.svc.CreateReturnAuthorization(ctx, order.ID, f.customer.ID, ReturnAuthorizationInput{})
	assertCode(t, err, ErrInvalidReturnItems)

	ra, err := f.svc.CreateReturnAuthorization(ctx, order.ID, f.customer.ID, ReturnAuthorizationInput{
		Items:  []models.ReturnItem{{LineItemID: lineItemID, Quantity: 1}},
		Reason: "damaged",
	})
	if err != nil {
		t.Fatalf("create return authorization failed: %v", err)
	}
	if ra.State != constants.ReturnAuthorizationAuthorized || ra.Number != "RA"+order.Number+"-1" {
		t.Fatalf("unexpected return authorization: %+v", ra)
	}
	assertMoney(t, "ra amount", ra.Amount, "10.00")

	awaiting, err := f.svc.GetOrder(ctx, order.ID, f.customer.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if awaiting.State != constants.OrderStateAwaitingReturn {
		t.Fatalf("expected awaiting_return, got %s", awaiting.State)
	}

	_, err = f.svc.ReceiveReturnAuthorization(ctx, ra.ID, f.customer.ID)
	assertCode(t, err, ErrNoPermissionToAccessOrder)

	returned, err := f.svc.ReceiveReturnAuthorization(ctx, ra.ID, f.admin.ID)
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if returned.State != constants.OrderStateReturned {
		t.Fatalf("expected returned, got %s", returned.State)
	}
	if returned.PaymentState != constants.PaymentStateCreditOwed {
		t.Fatalf("expected credit_owed, got %s", returned.PaymentState)
	}
	assertMoney(t, "total", returned.Total, "20.00")
	if returned.LineItems[0].ReturnedQuantity != 1 {
		t.Fatalf("expected returned quantity 1, got %d", returned.LineItems[0].ReturnedQuantity)
	}
	credit := returned.Adjustments[len(returned.Adjustments)-1]
	if credit.SourceType != constants.AdjustmentSourceReturnAuthorization || credit.Label != "RMA Credit" {
		t.Fatalf("unexpected credit adjustment: %+v", credit)
	}
	assertMoney(t, "credit", credit.Amount, "-10.00")

	_, err = f.svc.ReceiveReturnAuthorization(ctx, ra.ID, f.admin.ID)
	assertCode(t, err, ErrNotAllowedToChangeReturnAuth)

	refunded, err := f.svc.RefundOrder(ctx, order.ID, f.admin.ID)
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refunded.PaymentState != constants.PaymentStateRefund {
		t.Fatalf("expected refund, got %s", refunded.PaymentState)
	}
	assertMoney(t, "credit_total", refunded.CreditTotal, "10.00")

	var raStates []string
	for _, event := range f.events(t, order.ID) {
		if event.StatefulType == constants.StatefulTypeReturnAuthorization {
			raStates = append(raStates, event.NextState)
		}
	}
	if len(raStates) != 2 || raStates[0] != constants.ReturnAuthorizationAuthorized || raStates[1] != constants.ReturnAuthorizationReceived {
		t.Fatalf("unexpected return authorization events: %v", raStates)
	}
}

func TestReturnQuantityCannotExceedRemaining(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	order := shipOrder(t, f, 3)
	lineItemID := order.LineItems[0].ID
	ctx := context.Background()

	_, err := f.svc.CreateReturnAuthorization(ctx, order.ID, f.customer.ID, ReturnAuthorizationInput{
		Items: []models.ReturnItem{{LineItemID: lineItemID, Quantity: 4}},
	})
	assertCode(t, err, ErrInvalidReturnItems)

	custom := decimal.RequireFromString("100")
	_, err = f.svc.CreateReturnAuthorization(ctx, order.ID, f.customer.ID, ReturnAuthorizationInput{
		Items:  []models.ReturnItem{{LineItemID: lineItemID, Quantity: 1}},
		Amount: &custom,
	})
	assertCode(t, err, ErrInvalidReturnItems)

	_, err = f.svc.CreateReturnAuthorization(ctx, order.ID, f.customer.ID, ReturnAuthorizationInput{
		Items: []models.ReturnItem{{LineItemID: lineItemID + 100, Quantity: 1}},
	})
	assertCode(t, err, ErrInvalidReturnItems)
}

func TestCancelReturnAuthorizationRestoresOrder(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	order := shipOrder(t, f, 2)
	ctx := context.Background()

	ra, err := f.svc.CreateReturnAuthorization(ctx, order.ID, f.customer.ID, ReturnAuthorizationInput{
		Items: []models.ReturnItem{{LineItemID: order.LineItems[0].ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create return authorization failed: %v", err)
	}
	restored, err := f.svc.CancelReturnAuthorization(ctx, ra.ID, f.admin.ID)
	if err != nil {
		t.Fatalf("cancel return authorization failed: %v", err)
	}
	if restored.State != constants.OrderStateComplete {
		t.Fatalf("expected complete, got %s", restored.State)
	}
	assertMoney(t, "total", restored.Total, "20.00")

	ras, err := f.svc.ListReturnAuthorizations(ctx, order.ID, f.customer.ID)
	if err != nil {
		t.Fatalf("list return authorizations failed: %v", err)
	}
	if len(ras) != 1 || ras[0].State != constants.ReturnAuthorizationCancelled {
		t.Fatalf("unexpected return authorizations: %+v", ras)
	}

	_, err = f.svc.ReceiveReturnAuthorization(ctx, ra.ID, f.admin.ID)
	assertCode(t, err, ErrNotAllowedToChangeReturnAuth)

	_, err = f.svc.ReceiveReturnAuthorization(ctx, ra.ID+100, f.admin.ID)
	assertCode(t, err, ErrReturnAuthorizationNotFound)

	// 撤销后可重新申请全部数量
	second, err := f.svc.CreateReturnAuthorization(ctx, order.ID, f.customer.ID, ReturnAuthorizationInput{
		Items: []models.ReturnItem{{LineItemID: order.LineItems[0].ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("second return authorization failed: %v", err)
	}
	if second.Number != "RA"+order.Number+"-2" {
		t.Fatalf("unexpected number %s", second.Number)
	}
}

func TestReturnRequiresShippedOrder(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	order := f.checkout(t, 1, &PayInput{PaymentMethodID: f.cash.ID})

	_, err := f.svc.CreateReturnAuthorization(context.Background(), order.ID, f.customer.ID, ReturnAuthorizationInput{
		Items: []models.ReturnItem{{LineItemID: order.LineItems[0].ID, Quantity: 1}},
	})
	assertCode(t, err, ErrNotAllowedToCreateReturnAuth)
}

func TestShipmentTransitions(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	ctx := context.Background()

	unpaid := f.checkout(t, 1, nil)
	_, err := f.svc.UpdateShipmentState(ctx, unpaid.ID, f.admin.ID, ShipmentUpdate{State: constants.ShipmentStateReady})
	assertCode(t, err, ErrInvalidShipmentState)

	partial := f.payCash(t, unpaid.ID, "5.00")
	if partial.ShipmentStateValue() != constants.ShipmentStatePending {
		t.Fatalf("expected pending, got %s", partial.ShipmentStateValue())
	}
	_, err = f.svc.UpdateShipmentState(ctx, partial.ID, f.admin.ID, ShipmentUpdate{State: constants.ShipmentStateShipped})
	assertCode(t, err, ErrInvalidShipmentState)
	_, err = f.svc.UpdateShipmentState(ctx, partial.ID, f.admin.ID, ShipmentUpdate{State: constants.ShipmentStateReady})
	assertCode(t, err, ErrInvalidShipmentState)

	backorder, err := f.svc.UpdateShipmentState(ctx, partial.ID, f.admin.ID, ShipmentUpdate{State: constants.ShipmentStateBackorder})
	if err != nil {
		t.Fatalf("backorder failed: %v", err)
	}
	if backorder.ShipmentStateValue() != constants.ShipmentStateBackorder {
		t.Fatalf("expected backorder, got %s", backorder.ShipmentStateValue())
	}

	// 付清后缺货状态保持不变
	paid := f.payCash(t, partial.ID, "")
	if paid.PaymentState != constants.PaymentStatePaid || paid.ShipmentStateValue() != constants.ShipmentStateBackorder {
		t.Fatalf("expected paid/backorder, got %s/%s", paid.PaymentState, paid.ShipmentStateValue())
	}
	ready, err := f.svc.UpdateShipmentState(ctx, paid.ID, f.admin.ID, ShipmentUpdate{State: constants.ShipmentStateReady})
	if err != nil {
		t.Fatalf("ready failed: %v", err)
	}
	if ready.ShipmentStateValue() != constants.ShipmentStateReady {
		t.Fatalf("expected ready, got %s", ready.ShipmentStateValue())
	}

	_, err = f.svc.UpdateShipmentState(ctx, paid.ID, f.customer.ID, ShipmentUpdate{State: constants.ShipmentStateShipped})
	assertCode(t, err, ErrNoPermissionToAccessOrder)
}
