package service

import (
	"testing"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"github.com/shopspring/decimal"
)

func TestShippingCalculators(t *testing.T) {
	registry := NewCalculatorRegistry()
	order := CalculableOrder{ItemTotal: decimal.RequireFromString("45.50"), ItemCount: 4}
	cases := []struct {
		name        string
		typ         string
		preferences models.JSON
		want        string
	}{
		{name: "flat rate", typ: constants.CalculatorFlatRate, preferences: models.JSON{"amount": "7.5"}, want: "7.5"},
		{name: "flat rate numeric", typ: constants.CalculatorFlatRate, preferences: models.JSON{"amount": 3.25}, want: "3.25"},
		{name: "flat percent", typ: constants.CalculatorFlatPercent, preferences: models.JSON{"flat_percent": "10"}, want: "4.55"},
		{name: "per item", typ: constants.CalculatorPerItem, preferences: models.JSON{"amount": "1.10"}, want: "4.40"},
		{name: "flexi", typ: constants.CalculatorFlexiRate, preferences: models.JSON{"first_item": "5", "additional_item": "2"}, want: "11"},
		{name: "flexi capped", typ: constants.CalculatorFlexiRate, preferences: models.JSON{"first_item": "5", "additional_item": "2", "max_items": "2"}, want: "7"},
		{name: "price sack below", typ: constants.CalculatorPriceSack, preferences: models.JSON{"minimal_amount": "50", "normal_amount": "8", "discount_amount": "0"}, want: "8"},
		{name: "price sack above", typ: constants.CalculatorPriceSack, preferences: models.JSON{"minimal_amount": "40", "normal_amount": "8", "discount_amount": "1"}, want: "1"},
		{name: "legacy type name", typ: "Calculator::Flat_Rate", preferences: models.JSON{"amount": "2"}, want: "2"},
		{name: "missing preference", typ: constants.CalculatorFlatRate, preferences: nil, want: "0"},
		{name: "bad preference", typ: constants.CalculatorFlatRate, preferences: models.JSON{"amount": "abc"}, want: "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calculator, ok := registry.Lookup(tc.typ)
			if !ok {
				t.Fatalf("calculator %s not registered", tc.typ)
			}
			got := calculator.Compute(order, tc.preferences)
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("expected %s, got %s", tc.want, got.String())
			}
		})
	}
}

func TestFlexiRateWithoutItems(t *testing.T) {
	got := flexiRate(CalculableOrder{}, models.JSON{"first_item": "5"})
	if !got.IsZero() {
		t.Fatalf("expected zero, got %s", got.String())
	}
}

func TestCalculatorRegistryOverride(t *testing.T) {
	registry := NewCalculatorRegistry()
	registry.Register("custom", ShippingCalculatorFunc(func(order CalculableOrder, _ models.JSON) decimal.Decimal {
		return decimal.NewFromInt(int64(order.ItemCount))
	}))
	calculator, ok := registry.Lookup(" CUSTOM ")
	if !ok {
		t.Fatalf("expected custom calculator")
	}
	if got := calculator.Compute(CalculableOrder{ItemCount: 3}, nil); !got.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected 3, got %s", got.String())
	}
	if _, ok := registry.Lookup("unknown"); ok {
		t.Fatalf("expected unknown calculator to be missing")
	}
}

func TestComputeOrderTotalsFloorsAtZero(t *testing.T) {
	items := []models.LineItem{
		{Price: models.NewMoneyFromString("3.33"), Quantity: 3},
		{Price: models.NewMoneyFromString("1.10"), Quantity: 1},
	}
	adjustments := []models.Adjustment{{Amount: models.NewMoneyFromString("-20")}}
	itemTotal, adjustmentTotal, total := ComputeOrderTotals(items, adjustments)
	if !itemTotal.Equal(decimal.RequireFromString("11.09")) {
		t.Fatalf("expected item total 11.09, got %s", itemTotal.String())
	}
	if !adjustmentTotal.Equal(decimal.NewFromInt(-20)) {
		t.Fatalf("expected adjustment total -20, got %s", adjustmentTotal.String())
	}
	if !total.IsZero() {
		t.Fatalf("expected total floored at zero, got %s", total.String())
	}
}

func TestAdjustmentGroupFlattenOrder(t *testing.T) {
	group := &AdjustmentGroup{
		Shipping:   &models.Adjustment{Label: "ship"},
		Taxes:      []models.Adjustment{{Label: "tax-a"}, {Label: "tax-b"}},
		Discount:   &models.Adjustment{Label: "discount"},
		Additional: []models.Adjustment{{Label: "manual"}},
	}
	flat := group.Flatten()
	want := []string{"ship", "tax-a", "tax-b", "discount", "manual"}
	if len(flat) != len(want) {
		t.Fatalf("expected %d adjustments, got %d", len(want), len(flat))
	}
	for i, label := range want {
		if flat[i].Label != label || flat[i].Position != i+1 {
			t.Fatalf("position %d: expected %s, got %+v", i+1, label, flat[i])
		}
	}
}
