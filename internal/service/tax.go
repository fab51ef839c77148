package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/logger"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/repository"
	"github.com/hustbill/nodejs-api-server-sub001/internal/taxservice"

	"github.com/shopspring/decimal"
)

// TaxQuoter 外部税务服务
type TaxQuoter interface {
	Quote(ctx context.Context, req taxservice.QuoteRequest) (*taxservice.Quote, error)
	Commit(ctx context.Context, req taxservice.QuoteRequest) error
}

// TaxInput 计税输入
type TaxInput struct {
	OrderNumber     string
	UserID          uint
	Currency        string
	LineItems       []models.LineItem
	ShippingAmount  decimal.Decimal
	ShippingAddress *models.Address
	Country         *models.Country
	State           *models.State
	Distributor     *models.Distributor
}

// TaxResult 计税结果
type TaxResult struct {
	Adjustments   []models.Adjustment
	External      bool
	TaxFree       bool
	LineItemTaxes map[int]decimal.Decimal // 行号 -> 行税额（仅外部计税）
}

// TaxCalculator 本地税率引擎与外部税务服务的统一入口
type TaxCalculator struct {
	refRepo  repository.ReferenceRepository
	refData  *ReferenceData
	quoter   TaxQuoter
	freeTax  map[string]bool
	taxCfg   config.TaxServiceConfig
	excluded map[string]bool
}

// NewTaxCalculator 创建计税器，quoter 为空时只使用本地税率
func NewTaxCalculator(refRepo repository.ReferenceRepository, refData *ReferenceData, quoter TaxQuoter, freeTax config.FreeTaxConfig, taxCfg config.TaxServiceConfig) *TaxCalculator {
	excluded := make(map[string]bool, len(taxCfg.ExcludedTerritories))
	for _, code := range taxCfg.ExcludedTerritories {
		excluded[strings.ToUpper(strings.TrimSpace(code))] = true
	}
	return &TaxCalculator{
		refRepo:  refRepo,
		refData:  refData,
		quoter:   quoter,
		freeTax:  BuildFreeTaxCountries(freeTax),
		taxCfg:   taxCfg,
		excluded: excluded,
	}
}

// BuildFreeTaxCountries 基础国家集合去掉排除项，再加上始终包含项
func BuildFreeTaxCountries(cfg config.FreeTaxConfig) map[string]bool {
	result := make(map[string]bool, len(cfg.Countries)+len(cfg.Include))
	for _, iso := range cfg.Countries {
		result[strings.ToUpper(strings.TrimSpace(iso))] = true
	}
	for _, iso := range cfg.Exclude {
		delete(result, strings.ToUpper(strings.TrimSpace(iso)))
	}
	for _, iso := range cfg.Include {
		result[strings.ToUpper(strings.TrimSpace(iso))] = true
	}
	return result
}

// IsTaxFree 收货国家在免税集合内且经销商带免税标记
func (c *TaxCalculator) IsTaxFree(country *models.Country, distributor *models.Distributor) bool {
	if country == nil || distributor == nil || !distributor.TaxExempt {
		return false
	}
	return c.freeTax[strings.ToUpper(country.ISO)]
}

// UsesExternalService 外部计税仅用于美国本土（排除海外领地）
func (c *TaxCalculator) UsesExternalService(country *models.Country, state *models.State) bool {
	if c.quoter == nil || !c.taxCfg.Enabled || country == nil {
		return false
	}
	if !strings.EqualFold(country.ISO, "US") {
		return false
	}
	if state != nil && c.excluded[strings.ToUpper(strings.TrimSpace(state.Abbr))] {
		return false
	}
	return true
}

// Calculate 计算税费调整项
func (c *TaxCalculator) Calculate(ctx context.Context, in TaxInput) (*TaxResult, error) {
	if c.IsTaxFree(in.Country, in.Distributor) {
		return &TaxResult{TaxFree: true}, nil
	}
	if c.UsesExternalService(in.Country, in.State) {
		return c.calculateExternal(ctx, in)
	}
	return c.calculateLocal(ctx, in)
}

// calculateLocal 按区域税率逐税种累加；税种名称匹配 shipping 时对运费计税
func (c *TaxCalculator) calculateLocal(ctx context.Context, in TaxInput) (*TaxResult, error) {
	if in.ShippingAddress == nil {
		return &TaxResult{}, nil
	}
	zoneIDs, err := c.refRepo.GetZoneIDsByCountryAndState(in.ShippingAddress.CountryID, in.ShippingAddress.StateID)
	if err != nil {
		return nil, fmt.Errorf("get tax zones: %w", err)
	}
	rates, err := c.refRepo.ListTaxRatesInZones(zoneIDs)
	if err != nil {
		return nil, fmt.Errorf("list tax rates: %w", err)
	}

	buckets := make(map[uint]*models.Adjustment)
	order := make([]uint, 0)
	for _, rate := range rates {
		category, err := c.refData.TaxCategory(ctx, rate.TaxCategoryID)
		if err != nil {
			return nil, fmt.Errorf("get tax category: %w", err)
		}
		if category == nil {
			logger.Warnw("tax_category_missing", "tax_rate_id", rate.ID, "tax_category_id", rate.TaxCategoryID)
			continue
		}
		amount := decimal.Zero
		for _, item := range in.LineItems {
			if item.TaxCategoryID == nil || *item.TaxCategoryID != category.ID {
				continue
			}
			amount = models.SumRound2(amount, item.Amount().Mul(rate.Amount))
		}
		if strings.Contains(strings.ToLower(category.Name), constants.ShippingTaxCategoryPattern) {
			amount = models.SumRound2(amount, in.ShippingAmount.Mul(rate.Amount))
		}
		if amount.IsZero() {
			continue
		}
		bucket, ok := buckets[category.ID]
		if !ok {
			rateID := rate.ID
			bucket = &models.Adjustment{
				Label:          fmt.Sprintf("%s Tax", category.Name),
				SourceType:     constants.AdjustmentSourceOrder,
				OriginatorType: constants.AdjustmentOriginatorTaxRate,
				OriginatorID:   &rateID,
				Mandatory:      true,
			}
			buckets[category.ID] = bucket
			order = append(order, category.ID)
		}
		// 同一税种多条税率时累加到该税种的金额上
		bucket.Amount = models.NewMoneyFromDecimal(models.SumRound2(bucket.Amount.Decimal, amount))
	}

	result := &TaxResult{Adjustments: make([]models.Adjustment, 0, len(order))}
	for _, categoryID := range order {
		result.Adjustments = append(result.Adjustments, *buckets[categoryID])
	}
	return result, nil
}

// calculateExternal 外部计税失败直接返回错误，不降级
func (c *TaxCalculator) calculateExternal(ctx context.Context, in TaxInput) (*TaxResult, error) {
	req := BuildQuoteRequest(in)
	quote, err := c.quoter.Quote(ctx, req)
	if err != nil {
		logger.Errorw("tax_service_quote_failed", "order_number", in.OrderNumber, "user_id", in.UserID, "error", err)
		return nil, wrapExternal(ErrTaxServiceUnavailable, err)
	}
	total := models.SumRound2(quote.TotalItemTax, quote.ShippingTax)
	result := &TaxResult{External: true, LineItemTaxes: make(map[int]decimal.Decimal)}
	for number, tax := range quote.LineTaxes() {
		lineNo, err := strconv.Atoi(number)
		if err != nil {
			continue
		}
		result.LineItemTaxes[lineNo] = models.Round2(tax)
	}
	if total.IsZero() {
		return result, nil
	}
	result.Adjustments = []models.Adjustment{{
		Amount:         models.NewMoneyFromDecimal(total),
		Label:          "Tax",
		SourceType:     constants.AdjustmentSourceOrder,
		OriginatorType: constants.AdjustmentOriginatorTaxRate,
		Mandatory:      true,
	}}
	return result, nil
}

// BuildQuoteRequest 组装外部税务请求
func BuildQuoteRequest(in TaxInput) taxservice.QuoteRequest {
	req := taxservice.QuoteRequest{
		DocumentCode: in.OrderNumber,
		CustomerCode: strconv.FormatUint(uint64(in.UserID), 10),
		Currency:     in.Currency,
		Shipping:     in.ShippingAmount,
		Lines:        make([]taxservice.Line, 0, len(in.LineItems)),
	}
	if in.ShippingAddress != nil {
		req.Address = taxservice.Address{
			Line1:      in.ShippingAddress.Address1,
			Line2:      in.ShippingAddress.Address2,
			City:       in.ShippingAddress.City,
			PostalCode: in.ShippingAddress.Zipcode,
		}
	}
	if in.Country != nil {
		req.Address.Country = in.Country.ISO
	}
	if in.State != nil {
		req.Address.Region = in.State.Abbr
	}
	for _, item := range in.LineItems {
		req.Lines = append(req.Lines, taxservice.Line{
			Number:   strconv.Itoa(item.LineNo),
			ItemCode: item.SKU,
			Quantity: item.Quantity,
			Amount:   item.Amount(),
		})
	}
	return req
}

// Commit 向外部税务服务提交已完成订单，未配置时跳过
func (c *TaxCalculator) Commit(ctx context.Context, in TaxInput) error {
	if c == nil || !c.UsesExternalService(in.Country, in.State) {
		return nil
	}
	if err := c.quoter.Commit(ctx, BuildQuoteRequest(in)); err != nil {
		return wrapExternal(ErrTaxServiceUnavailable, err)
	}
	return nil
}
