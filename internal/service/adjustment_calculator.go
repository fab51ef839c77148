package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/logger"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"github.com/shopspring/decimal"
)

// AdditionalAdjustment 手工调整项
type AdditionalAdjustment struct {
	Amount decimal.Decimal `json:"amount"`
	Label  string          `json:"label"`
}

// AdjustmentGroup 计算期间按来源分组的调整项
type AdjustmentGroup struct {
	Shipping   *models.Adjustment
	Taxes      []models.Adjustment
	Discount   *models.Adjustment
	Additional []models.Adjustment
}

// Flatten 按 运费 → 税费 → 折扣 → 手工 的顺序展开并编号
func (g *AdjustmentGroup) Flatten() []models.Adjustment {
	if g == nil {
		return nil
	}
	result := make([]models.Adjustment, 0, 2+len(g.Taxes)+len(g.Additional))
	if g.Shipping != nil {
		result = append(result, *g.Shipping)
	}
	result = append(result, g.Taxes...)
	if g.Discount != nil {
		result = append(result, *g.Discount)
	}
	result = append(result, g.Additional...)
	for i := range result {
		result[i].Position = i + 1
	}
	return result
}

// AdjustmentInput 调整项计算输入
type AdjustmentInput struct {
	OrderNumber     string
	Owner           *models.User
	Operator        *models.User
	Autoship        bool
	Currency        string
	LineItems       []models.LineItem
	ShippingMethod  *models.ShippingMethod
	ShippingAddress *models.Address
	Country         *models.Country
	State           *models.State
	Distributor     *models.Distributor
	Policy          CompanyPolicy
	Additional      []AdditionalAdjustment
}

// AdjustmentResult 调整项与订单合计
type AdjustmentResult struct {
	Group           AdjustmentGroup
	Adjustments     []models.Adjustment
	ShippingAmount  decimal.Decimal
	ItemTotal       decimal.Decimal
	AdjustmentTotal decimal.Decimal
	Total           decimal.Decimal
	ExternalTax     bool
	LineItemTaxes   map[int]decimal.Decimal
}

// AdjustmentCalculator 运费、税费、折扣、手工调整的计算器
type AdjustmentCalculator struct {
	refData       *ReferenceData
	calculators   *CalculatorRegistry
	tax           *TaxCalculator
	discountRoles map[string]bool
}

// NewAdjustmentCalculator 创建调整项计算器
func NewAdjustmentCalculator(refData *ReferenceData, calculators *CalculatorRegistry, tax *TaxCalculator, discountRoleCodes []string) *AdjustmentCalculator {
	roles := make(map[string]bool, len(discountRoleCodes))
	for _, code := range discountRoleCodes {
		roles[strings.ToUpper(strings.TrimSpace(code))] = true
	}
	return &AdjustmentCalculator{
		refData:       refData,
		calculators:   calculators,
		tax:           tax,
		discountRoles: roles,
	}
}

// Calculate 依次计算运费、税费、折扣、手工调整，每一步金额保留 2 位小数
func (c *AdjustmentCalculator) Calculate(ctx context.Context, in AdjustmentInput) (*AdjustmentResult, error) {
	if in.ShippingMethod == nil {
		return nil, ErrInvalidShippingMethodID
	}
	if in.Policy == nil {
		in.Policy = defaultPolicy{}
	}
	result := &AdjustmentResult{}

	shippingAmount, err := c.ShippingCost(ctx, in.ShippingMethod, in.LineItems, in.Policy)
	if err != nil {
		return nil, err
	}
	methodID := in.ShippingMethod.ID
	result.ShippingAmount = shippingAmount
	result.Group.Shipping = &models.Adjustment{
		Amount:         models.NewMoneyFromDecimal(shippingAmount),
		Label:          in.ShippingMethod.Name,
		SourceType:     constants.AdjustmentSourceShipment,
		OriginatorType: constants.AdjustmentOriginatorShippingMethod,
		OriginatorID:   &methodID,
		Mandatory:      true,
	}

	if c.tax != nil {
		taxResult, err := c.tax.Calculate(ctx, TaxInput{
			OrderNumber:     in.OrderNumber,
			UserID:          userIDOf(in.Owner),
			Currency:        in.Currency,
			LineItems:       in.LineItems,
			ShippingAmount:  shippingAmount,
			ShippingAddress: in.ShippingAddress,
			Country:         in.Country,
			State:           in.State,
			Distributor:     in.Distributor,
		})
		if err != nil {
			return nil, err
		}
		result.Group.Taxes = taxResult.Adjustments
		result.ExternalTax = taxResult.External
		result.LineItemTaxes = taxResult.LineItemTaxes
	}

	result.Group.Discount = c.discount(in)
	result.Group.Additional = c.additional(in)

	result.Adjustments = result.Group.Flatten()
	result.ItemTotal, result.AdjustmentTotal, result.Total = ComputeOrderTotals(in.LineItems, result.Adjustments)
	return result, nil
}

// ShippingCost 配送方式上所有计算器的金额之和，加上租户附加费
func (c *AdjustmentCalculator) ShippingCost(ctx context.Context, method *models.ShippingMethod, items []models.LineItem, policy CompanyPolicy) (decimal.Decimal, error) {
	calculators, err := c.refData.CalculatorsOf(ctx, constants.CalculableTypeShipping, method.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load shipping calculators: %w", err)
	}
	order := CalculableOrder{ItemTotal: ItemTotal(items)}
	for _, item := range items {
		order.ItemCount += item.Quantity
	}
	amount := decimal.Zero
	for _, calc := range calculators {
		strategy, ok := c.calculators.Lookup(calc.Type)
		if !ok {
			logger.Warnw("shipping_calculator_unknown", "calculator_id", calc.ID, "type", calc.Type, "shipping_method_id", method.ID)
			continue
		}
		amount = models.SumRound2(amount, strategy.Compute(order, calc.Preferences))
	}
	if policy != nil {
		amount = models.SumRound2(amount, policy.ShippingSurcharge(items))
	}
	return amount, nil
}

// discount 自动订购订单不打折；仅可折扣角色、仅可折扣行项目
func (c *AdjustmentCalculator) discount(in AdjustmentInput) *models.Adjustment {
	if in.Autoship || !c.discountEligible(in.Owner) {
		return nil
	}
	rate, originator := in.Policy.DiscountRate(DiscountInput{Distributor: in.Distributor, User: in.Owner})
	if !rate.IsPositive() {
		return nil
	}
	base := decimal.Zero
	for _, item := range in.LineItems {
		if item.IsDiscountable {
			base = models.SumRound2(base, item.Amount())
		}
	}
	amount := models.Round2(base.Mul(rate))
	if amount.IsZero() {
		return nil
	}
	adjustment := &models.Adjustment{
		Amount:         models.NewMoneyFromDecimal(amount.Neg()),
		Label:          fmt.Sprintf("Discount %s%%", rate.Mul(decimal.NewFromInt(100)).StringFixed(0)),
		SourceType:     constants.AdjustmentSourceOrder,
		OriginatorType: originator,
	}
	if in.Distributor != nil {
		distributorID := in.Distributor.ID
		adjustment.OriginatorID = &distributorID
	}
	return adjustment
}

func (c *AdjustmentCalculator) discountEligible(owner *models.User) bool {
	if owner == nil {
		return false
	}
	for _, role := range owner.Roles {
		if role.DiscountAllowed || c.discountRoles[strings.ToUpper(role.Code)] {
			return true
		}
	}
	return false
}

// additional 手工调整仅对管理员代下单或自动订购生效
func (c *AdjustmentCalculator) additional(in AdjustmentInput) []models.Adjustment {
	if len(in.Additional) == 0 {
		return nil
	}
	if !in.Autoship && !isAdminUser(in.Operator) {
		logger.Warnw("order_additional_adjustment_ignored",
			"order_number", in.OrderNumber,
			"operator_id", userIDOf(in.Operator),
			"count", len(in.Additional),
		)
		return nil
	}
	result := make([]models.Adjustment, 0, len(in.Additional))
	for _, item := range in.Additional {
		amount := models.Round2(item.Amount)
		if amount.IsZero() {
			continue
		}
		label := strings.TrimSpace(item.Label)
		if label == "" {
			label = "Manual Adjustment"
		}
		result = append(result, models.Adjustment{
			Amount:     models.NewMoneyFromDecimal(amount),
			Label:      label,
			SourceType: constants.AdjustmentSourceOrder,
		})
	}
	return result
}

// ItemTotal 行项目合计，每行先取整再累加
func ItemTotal(items []models.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = models.SumRound2(total, item.Amount())
	}
	return total
}

// AdjustmentTotal 调整项合计
func AdjustmentTotal(adjustments []models.Adjustment) decimal.Decimal {
	total := decimal.Zero
	for _, adjustment := range adjustments {
		total = models.SumRound2(total, adjustment.Amount.Decimal)
	}
	return total
}

// ComputeOrderTotals total = max(0, round2(item_total + adjustment_total))
func ComputeOrderTotals(items []models.LineItem, adjustments []models.Adjustment) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	itemTotal := ItemTotal(items)
	adjustmentTotal := AdjustmentTotal(adjustments)
	total := models.FloorZero(models.SumRound2(itemTotal, adjustmentTotal))
	return itemTotal, adjustmentTotal, total
}

// Tax 返回计税器
func (c *AdjustmentCalculator) Tax() *TaxCalculator {
	if c == nil {
		return nil
	}
	return c.tax
}
