package service

import (
	"context"
	"testing"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"github.com/shopspring/decimal"
)

func TestDerivePaymentState(t *testing.T) {
	cases := []struct {
		paid  string
		total string
		want  string
	}{
		{paid: "0", total: "10", want: constants.PaymentStateBalanceDue},
		{paid: "9.99", total: "10", want: constants.PaymentStateBalanceDue},
		{paid: "10", total: "10.00", want: constants.PaymentStatePaid},
		{paid: "10.004", total: "10", want: constants.PaymentStatePaid},
		{paid: "10.01", total: "10", want: constants.PaymentStateCreditOwed},
		{paid: "0", total: "0", want: constants.PaymentStatePaid},
	}
	for _, tc := range cases {
		got := DerivePaymentState(decimal.RequireFromString(tc.paid), decimal.RequireFromString(tc.total))
		if got != tc.want {
			t.Fatalf("paid %s total %s: expected %s, got %s", tc.paid, tc.total, tc.want, got)
		}
	}
}

func TestDeriveShipmentState(t *testing.T) {
	cases := []struct {
		payment string
		current string
		want    string
	}{
		{payment: constants.PaymentStatePaid, current: "", want: constants.ShipmentStateReady},
		{payment: constants.PaymentStateCreditOwed, current: constants.ShipmentStatePending, want: constants.ShipmentStateReady},
		{payment: constants.PaymentStateBalanceDue, current: constants.ShipmentStateReady, want: constants.ShipmentStatePending},
		{payment: constants.PaymentStatePending, current: "", want: constants.ShipmentStatePending},
		{payment: constants.PaymentStatePaid, current: constants.ShipmentStateShipped, want: constants.ShipmentStateShipped},
		{payment: constants.PaymentStateBalanceDue, current: constants.ShipmentStateAssemble, want: constants.ShipmentStateAssemble},
		{payment: constants.PaymentStatePaid, current: constants.ShipmentStateBackorder, want: constants.ShipmentStateBackorder},
		{payment: constants.PaymentStateFailed, current: "", want: ""},
	}
	for _, tc := range cases {
		var current *string
		if tc.current != "" {
			current = stringPtr(tc.current)
		}
		if got := derefString(deriveShipmentState(tc.payment, current)); got != tc.want {
			t.Fatalf("payment %s current %q: expected %q, got %q", tc.payment, tc.current, tc.want, got)
		}
	}
}

func TestCompletesOrder(t *testing.T) {
	for _, state := range []string{constants.PaymentStateBalanceDue, constants.PaymentStatePaid, constants.PaymentStateCreditOwed} {
		if !completesOrder(state) {
			t.Fatalf("expected %s to complete the order", state)
		}
	}
	for _, state := range []string{constants.PaymentStateFailed, constants.PaymentStatePending, ""} {
		if completesOrder(state) {
			t.Fatalf("expected %s not to complete the order", state)
		}
	}
}

func TestApplyRecordsOneEventPerChangedField(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	order := f.checkout(t, 1, nil)
	ctx := context.Background()

	events, err := f.states.Apply(ctx, order, statesOf(order), f.admin.ID, nil)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events for unchanged states, got %d", len(events))
	}

	next := statesOf(order).WithState(constants.OrderStateComplete).WithShipmentState(constants.ShipmentStatePending)
	events, err = f.states.Apply(ctx, order, next, f.admin.ID, map[string]interface{}{"special_instructions": "leave at door"})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Name != constants.StateEventOrder || events[1].Name != constants.StateEventShipment {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[1].PreviousState != "" || events[1].NextState != constants.ShipmentStatePending {
		t.Fatalf("unexpected shipment event: %+v", events[1])
	}
	if order.State != constants.OrderStateComplete || order.ShipmentStateValue() != constants.ShipmentStatePending {
		t.Fatalf("expected in-memory order to be synced, got %s/%s", order.State, order.ShipmentStateValue())
	}

	var stored models.Order
	if err := f.db.First(&stored, order.ID).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	if stored.State != constants.OrderStateComplete || stored.SpecialInstructions != "leave at door" {
		t.Fatalf("unexpected stored order: %s %q", stored.State, stored.SpecialInstructions)
	}
	if got := len(f.events(t, order.ID)); got != 4 {
		t.Fatalf("expected 4 stored events, got %d", got)
	}
}
