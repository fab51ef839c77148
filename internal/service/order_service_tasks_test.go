package service

import (
	"context"
	"testing"

	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/repository"
	"github.com/hustbill/nodejs-api-server-sub001/internal/taxservice"

	"github.com/shopspring/decimal"
)

func TestDeliverOrderMail(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{ShippingAmount: "5.00"})
	order := f.checkout(t, 1, nil)

	mailer := &recordingMailer{}
	if err := f.svc.DeliverOrderMail(context.Background(), order.ID, constants.MailTemplateShipped, mailer); err != nil {
		t.Fatalf("deliver mail failed: %v", err)
	}
	if mailer.count() != 1 || mailer.to[0] != "buyer@example.com" {
		t.Fatalf("unexpected mails: %+v", mailer.to)
	}
	if mailer.sent[0].Template != constants.MailTemplateShipped || mailer.sent[0].ShippingLabel != "Ground" {
		t.Fatalf("unexpected mail input: %+v", mailer.sent[0])
	}

	err := f.svc.DeliverOrderMail(context.Background(), order.ID+100, "", mailer)
	assertCode(t, err, ErrOrderNotFound)
	if err := f.svc.DeliverOrderMail(context.Background(), order.ID, "", nil); err != nil {
		t.Fatalf("expected nil mailer to be skipped, got %v", err)
	}
}

func TestCommitOrderTax(t *testing.T) {
	f := setupOrderFixture(t, fixtureOptions{ShippingAmount: "5.00"})
	quoter := &stubQuoter{quote: &taxservice.Quote{}}
	refRepo := repository.NewReferenceRepository(f.db)
	tax := NewTaxCalculator(refRepo, f.svc.refData, quoter, config.FreeTaxConfig{}, config.TaxServiceConfig{Enabled: true})
	f.svc.adjustments = NewAdjustmentCalculator(f.svc.refData, NewCalculatorRegistry(), tax, nil)

	order := f.checkout(t, 2, &PayInput{PaymentMethodID: f.cash.ID})
	if !order.ExternalTax {
		t.Fatalf("expected order to be taxed externally")
	}
	if err := f.svc.CommitOrderTax(context.Background(), order.ID); err != nil {
		t.Fatalf("commit tax failed: %v", err)
	}
	if len(quoter.committed) != 1 {
		t.Fatalf("expected one commit, got %d", len(quoter.committed))
	}
	committed := quoter.committed[0]
	if committed.DocumentCode != order.Number || committed.Address.Country != "US" || len(committed.Lines) != 1 {
		t.Fatalf("unexpected commit request: %+v", committed)
	}
	if !committed.Shipping.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected shipping %s", committed.Shipping.String())
	}

	if err := f.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("external_tax", false).Error; err != nil {
		t.Fatalf("update order failed: %v", err)
	}
	if err := f.svc.CommitOrderTax(context.Background(), order.ID); err != nil {
		t.Fatalf("commit tax failed: %v", err)
	}
	if len(quoter.committed) != 1 {
		t.Fatalf("expected locally taxed order to be skipped")
	}
}
