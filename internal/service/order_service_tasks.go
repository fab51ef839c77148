package service

import (
	"context"
	"strings"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/logger"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"github.com/shopspring/decimal"
)

// DeliverOrderMail 异步任务入口：加载订单与用户并发送通知邮件
func (s *OrderService) DeliverOrderMail(_ context.Context, orderID uint, template string, mailer OrderMailer) error {
	if mailer == nil {
		return nil
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	owner, err := s.userRepo.GetByID(order.UserID)
	if err != nil {
		return err
	}
	if owner == nil || strings.TrimSpace(owner.Email) == "" {
		logger.Debugw("order_mail_skip_empty_receiver", "order_id", order.ID, "number", order.Number)
		return nil
	}
	if strings.TrimSpace(template) == "" {
		template = constants.MailTemplateConfirmed
	}
	return mailer.SendOrderMail(strings.TrimSpace(owner.Email), BuildOrderMailInput(order, owner, template))
}

// CommitOrderTax 异步任务入口：已完成且外部计税的订单提交税务记录
func (s *OrderService) CommitOrderTax(ctx context.Context, orderID uint) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if !order.ExternalTax || order.State == constants.OrderStateCancelled {
		logger.Debugw("order_post_tax_skip", "order_id", order.ID, "state", order.State, "external_tax", order.ExternalTax)
		return nil
	}
	input, err := s.taxInputOf(order)
	if err != nil {
		return err
	}
	return s.adjustments.Tax().Commit(ctx, input)
}

// taxInputOf 由已落库订单还原计税输入
func (s *OrderService) taxInputOf(order *models.Order) (TaxInput, error) {
	input := TaxInput{
		OrderNumber:    order.Number,
		UserID:         order.UserID,
		Currency:       order.Currency,
		LineItems:      order.LineItems,
		ShippingAmount: decimal.Zero,
	}
	for _, adjustment := range order.Adjustments {
		if adjustment.SourceType == constants.AdjustmentSourceShipment {
			input.ShippingAmount = models.SumRound2(input.ShippingAmount, adjustment.Amount.Decimal)
		}
	}
	if order.ShippingAddressID == nil {
		return input, nil
	}
	address, err := s.userRepo.GetAddressByID(*order.ShippingAddressID)
	if err != nil || address == nil {
		return input, err
	}
	input.ShippingAddress = address
	if input.Country, err = s.refRepo.GetCountryByID(address.CountryID); err != nil {
		return input, err
	}
	if address.StateID != nil {
		if input.State, err = s.refRepo.GetStateByID(*address.StateID); err != nil {
			return input, err
		}
	}
	return input, nil
}
