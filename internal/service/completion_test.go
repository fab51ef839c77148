package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
)

type stubTask struct {
	name string
	run  func(cc *CompletionContext) error
	ran  int
}

func (s *stubTask) Name() string { return s.name }

func (s *stubTask) Run(_ context.Context, cc *CompletionContext) error {
	s.ran++
	return s.run(cc)
}

func TestCompletionRunnerIsolatesFailures(t *testing.T) {
	panicking := &stubTask{name: "panics", run: func(*CompletionContext) error { panic("boom") }}
	failing := &stubTask{name: "fails", run: func(*CompletionContext) error { return errors.New("nope") }}
	last := &stubTask{name: "last", run: func(cc *CompletionContext) error {
		if cc.Now.IsZero() || cc.Policy == nil {
			t.Errorf("expected defaults to be filled in")
		}
		return nil
	}}
	runner := NewCompletionRunner(nil, panicking, failing, last)
	runner.Run(context.Background(), &CompletionContext{Order: &models.Order{ID: 1}})

	if panicking.ran != 1 || failing.ran != 1 || last.ran != 1 {
		t.Fatalf("expected every task to run once: %d %d %d", panicking.ran, failing.ran, last.ran)
	}
	names := runner.Names()
	if len(names) != 3 || names[0] != "panics" || names[2] != "last" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestCompletionRunnerIgnoresMissingOrder(t *testing.T) {
	task := &stubTask{name: "never", run: func(*CompletionContext) error { return nil }}
	NewCompletionRunner(nil, task).Run(context.Background(), &CompletionContext{})
	var nilRunner *CompletionRunner
	nilRunner.Run(context.Background(), &CompletionContext{Order: &models.Order{}})
	if task.ran != 0 {
		t.Fatalf("expected task not to run")
	}
}

func TestDefaultCompletionTaskOrder(t *testing.T) {
	runner := NewDefaultCompletionRunner(CompletionDeps{}, nil)
	want := []string{
		"inventory_units",
		"registration",
		"business_center",
		"lifetime_rank",
		"renewal",
		"gift_card_activation",
		"confirmation_mail",
		"promotional_catalog",
		"post_tax",
	}
	names := runner.Names()
	if len(names) != len(want) {
		t.Fatalf("expected %d tasks, got %v", len(want), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("task %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestRegistrationOnFirstPaidOrder(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	if err := f.db.Model(f.customer).Update("status", constants.UserStatusUnregistered).Error; err != nil {
		t.Fatalf("update status failed: %v", err)
	}
	distributor := &models.Distributor{UserID: f.customer.ID}
	mustCreate(t, f.db, distributor)

	f.checkout(t, 1, &PayInput{PaymentMethodID: f.cash.ID})

	var user models.User
	if err := f.db.Preload("Roles").First(&user, f.customer.ID).Error; err != nil {
		t.Fatalf("load user failed: %v", err)
	}
	if user.Status != constants.UserStatusActive {
		t.Fatalf("expected active user, got %s", user.Status)
	}
	if user.TokenVersion != 1 || user.TokenInvalidBefore == nil {
		t.Fatalf("expected token version bump, got %d", user.TokenVersion)
	}
	var hasDistributorRole bool
	for _, role := range user.Roles {
		if role.Code == constants.RoleCodeDistributor {
			hasDistributorRole = true
		}
	}
	if !hasDistributorRole {
		t.Fatalf("expected distributor role, got %+v", user.Roles)
	}

	var stored models.Distributor
	if err := f.db.First(&stored, distributor.ID).Error; err != nil {
		t.Fatalf("load distributor failed: %v", err)
	}
	if !stored.Active || stored.RenewalDate == nil {
		t.Fatalf("expected active distributor with renewal date: %+v", stored)
	}
	if !stored.RenewalDate.After(time.Now().AddDate(0, 11, 0)) {
		t.Fatalf("expected renewal about a year out, got %s", stored.RenewalDate)
	}
}

func TestRenewalExtendsFromLaterDate(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	taxon := &models.Taxon{Name: constants.TaxonRenewal}
	mustCreate(t, f.db, taxon)
	mustCreate(t, f.db, &models.ProductTaxon{ProductID: f.product.ID, TaxonID: taxon.ID})
	current := time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC)
	distributor := &models.Distributor{UserID: f.customer.ID, RenewalDate: &current}
	mustCreate(t, f.db, distributor)

	f.checkout(t, 1, &PayInput{PaymentMethodID: f.cash.ID})

	var stored models.Distributor
	if err := f.db.First(&stored, distributor.ID).Error; err != nil {
		t.Fatalf("load distributor failed: %v", err)
	}
	if stored.RenewalDate == nil || stored.RenewalDate.UTC().Format("2006-01-02") != "2031-01-10" {
		t.Fatalf("expected renewal 2031-01-10, got %v", stored.RenewalDate)
	}
	if !stored.Active {
		t.Fatalf("expected distributor to be active")
	}
}

func TestInventoryUnitsAreCreatedOnce(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{})
	order := f.checkout(t, 2, &PayInput{PaymentMethodID: f.cash.ID})

	runner := NewCompletionRunner(nil, &inventoryUnitTask{shipmentRepo: f.svc.shipmentRepo})
	runner.Run(context.Background(), &CompletionContext{Order: order})

	var units int64
	if err := f.db.Model(&models.InventoryUnit{}).Where("order_id = ?", order.ID).Count(&units).Error; err != nil {
		t.Fatalf("count units failed: %v", err)
	}
	if units != 2 {
		t.Fatalf("expected 2 units, got %d", units)
	}
}

func TestBuildOrderMailInput(t *testing.T) {
	order := &models.Order{
		Number:       "R100",
		State:        constants.OrderStateComplete,
		PaymentState: constants.PaymentStatePaid,
		Currency:     "USD",
		Total:        models.NewMoneyFromString("12.00"),
		Adjustments: []models.Adjustment{
			{Label: "General Tax", SourceType: constants.AdjustmentSourceOrder},
			{Label: "Ground", SourceType: constants.AdjustmentSourceShipment},
		},
	}
	input := BuildOrderMailInput(order, &models.User{Login: "buyer"}, constants.MailTemplateShipped)
	if input.ShippingLabel != "Ground" || input.CustomerName != "buyer" || input.OrderNumber != "R100" {
		t.Fatalf("unexpected mail input: %+v", input)
	}
	if input.Template != constants.MailTemplateShipped {
		t.Fatalf("unexpected template %s", input.Template)
	}
}
