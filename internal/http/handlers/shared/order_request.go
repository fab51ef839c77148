package shared

import (
	"strings"

	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/service"

	"github.com/shopspring/decimal"
)

// AddressPayload 地址请求，id 与明细二选一
type AddressPayload struct {
	ID        *uint  `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	Zipcode   string `json:"zipcode"`
	Phone     string `json:"phone"`
	CountryID uint   `json:"country_id"`
	StateID   *uint  `json:"state_id"`
}

// Resolve 拆分为地址 ID 或待校验的地址明细
func (p *AddressPayload) Resolve() (*uint, *models.Address) {
	if p == nil {
		return nil, nil
	}
	if p.ID != nil && *p.ID > 0 {
		return p.ID, nil
	}
	return nil, &models.Address{
		Firstname: strings.TrimSpace(p.Firstname),
		Lastname:  strings.TrimSpace(p.Lastname),
		Address1:  strings.TrimSpace(p.Address1),
		Address2:  strings.TrimSpace(p.Address2),
		City:      strings.TrimSpace(p.City),
		Zipcode:   strings.TrimSpace(p.Zipcode),
		Phone:     strings.TrimSpace(p.Phone),
		CountryID: p.CountryID,
		StateID:   p.StateID,
	}
}

// PaymentPayload 支付请求
type PaymentPayload struct {
	PaymentMethodID   uint                   `json:"payment_method_id" binding:"required"`
	Amount            *decimal.Decimal       `json:"amount"`
	CreditcardID      uint                   `json:"creditcard_id"`
	GiftCard          *service.GiftCardInput `json:"gift_card"`
	AutoshipPaymentID *uint                  `json:"autoship_payment_id"`
}

// ToInput 转换为 service 层支付参数
func (p *PaymentPayload) ToInput(operatorID uint) *service.PayInput {
	if p == nil {
		return nil
	}
	input := &service.PayInput{
		PaymentMethodID:   p.PaymentMethodID,
		Amount:            p.Amount,
		CreditcardID:      p.CreditcardID,
		AutoshipPaymentID: p.AutoshipPaymentID,
		OperatorID:        operatorID,
	}
	if p.GiftCard != nil {
		input.GiftCard = &service.GiftCardInput{
			Code: strings.TrimSpace(p.GiftCard.Code),
			Pin:  strings.TrimSpace(p.GiftCard.Pin),
		}
	}
	return input
}

// CheckoutRequest 下单/试算请求
type CheckoutRequest struct {
	LineItems           []service.LineItemRequest      `json:"line_items" binding:"required"`
	ShippingAddress     *AddressPayload                `json:"shipping_address"`
	BillingAddress      *AddressPayload                `json:"billing_address"`
	ShippingMethodID    uint                           `json:"shipping_method_id"`
	Autoship            bool                           `json:"autoship"`
	AutoshipID          *uint                          `json:"autoship_id"`
	SpecialInstructions string                         `json:"special_instructions"`
	ClientRequestID     string                         `json:"client_request_id"`
	Additional          []service.AdditionalAdjustment `json:"additional_adjustments"`
	Payment             *PaymentPayload                `json:"payment"`
}

// ToInput 转换为 service 层下单参数
func (r *CheckoutRequest) ToInput(userID, operatorID uint) service.CheckoutInput {
	input := service.CheckoutInput{
		UserID:              userID,
		OperatorID:          operatorID,
		LineItems:           r.LineItems,
		ShippingMethodID:    r.ShippingMethodID,
		Autoship:            r.Autoship,
		AutoshipID:          r.AutoshipID,
		SpecialInstructions: strings.TrimSpace(r.SpecialInstructions),
		ClientRequestID:     strings.TrimSpace(r.ClientRequestID),
		Additional:          r.Additional,
		Payment:             r.Payment.ToInput(operatorID),
	}
	input.ShippingAddressID, input.ShippingAddress = r.ShippingAddress.Resolve()
	input.BillingAddressID, input.BillingAddress = r.BillingAddress.Resolve()
	return input
}
