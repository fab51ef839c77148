package service

import (
	"context"
	"fmt"

	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/repository"
)

// ValidationContext 校验器输入
type ValidationContext struct {
	User      *models.User
	CountryID uint
	LineItems []models.LineItem
	Policy    CompanyPolicy
}

// LineItemValidator 行项目校验器，返回第一条违规
type LineItemValidator interface {
	Name() string
	Validate(ctx context.Context, vc *ValidationContext) error
}

// ValidationPipeline 固定顺序的校验链，首个失败即返回
type ValidationPipeline struct {
	validators []LineItemValidator
}

// NewValidationPipeline 使用给定校验器创建校验链
func NewValidationPipeline(validators ...LineItemValidator) *ValidationPipeline {
	return &ValidationPipeline{validators: validators}
}

// NewDefaultValidationPipeline 默认校验链；系统套装与促销互斥校验默认关闭，按配置开启
func NewDefaultValidationPipeline(catalogRepo repository.CatalogRepository, orderRepo repository.OrderRepository, cfg config.ValidatorConfig) *ValidationPipeline {
	validators := []LineItemValidator{
		&countryAvailabilityValidator{catalogRepo: catalogRepo},
		taxonRuleValidator{},
		countOnHandValidator{},
		quantityCapValidator{},
	}
	if cfg.SystemKitExclusive {
		validators = append(validators, &systemKitExclusiveValidator{catalogRepo: catalogRepo, orderRepo: orderRepo})
	}
	if cfg.PromotionalExclusive {
		validators = append(validators, &promotionalExclusiveValidator{catalogRepo: catalogRepo, orderRepo: orderRepo})
	}
	return NewValidationPipeline(validators...)
}

// Names 校验器名称（按执行顺序）
func (p *ValidationPipeline) Names() []string {
	names := make([]string, 0, len(p.validators))
	for _, v := range p.validators {
		names = append(names, v.Name())
	}
	return names
}

// Validate 依次执行校验器
func (p *ValidationPipeline) Validate(ctx context.Context, vc *ValidationContext) error {
	if p == nil || vc == nil {
		return nil
	}
	if vc.Policy == nil {
		vc.Policy = defaultPolicy{}
	}
	for _, v := range p.validators {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := v.Validate(ctx, vc); err != nil {
			return err
		}
	}
	return nil
}

type countryAvailabilityValidator struct {
	catalogRepo repository.CatalogRepository
}

func (v *countryAvailabilityValidator) Name() string { return "country_availability" }

func (v *countryAvailabilityValidator) Validate(_ context.Context, vc *ValidationContext) error {
	if vc.CountryID == 0 {
		return withDetail(ErrInvalidLineItems, "country of user %d is unknown", userIDOf(vc.User))
	}
	checked := make(map[uint]bool, len(vc.LineItems))
	for _, item := range vc.LineItems {
		if checked[item.ProductID] {
			continue
		}
		ok, err := v.catalogRepo.CanProductSellInCountry(item.ProductID, vc.CountryID)
		if err != nil {
			return fmt.Errorf("check product country: %w", err)
		}
		if !ok {
			return withFailures(ErrInvalidLineItems, []FieldFailure{{
				Field:   fmt.Sprintf("line_items[%d].variant_id", item.LineNo),
				Code:    "NotSellableInCountry",
				Message: fmt.Sprintf("%s can not be sold in this country", item.SKU),
			}})
		}
		checked[item.ProductID] = true
	}
	return nil
}

// taxonRuleValidator 分类业务规则占位
type taxonRuleValidator struct{}

func (taxonRuleValidator) Name() string { return "taxon_rules" }

func (taxonRuleValidator) Validate(context.Context, *ValidationContext) error { return nil }

// countOnHandValidator 库存为 -1 表示缺货
type countOnHandValidator struct{}

func (countOnHandValidator) Name() string { return "count_on_hand" }

func (countOnHandValidator) Validate(_ context.Context, vc *ValidationContext) error {
	for _, item := range vc.LineItems {
		if item.CountOnHand == -1 {
			err := withDetail(ErrOutOfStock, "%s is out of stock", item.SKU)
			err.Failures = []FieldFailure{{
				Field: fmt.Sprintf("line_items[%d].variant_id", item.LineNo),
				Code:  "OutOfStock",
			}}
			return err
		}
	}
	return nil
}

// quantityCapValidator 租户单品数量上限（同一 SKU 多行合计）
type quantityCapValidator struct{}

func (quantityCapValidator) Name() string { return "quantity_cap" }

func (quantityCapValidator) Validate(_ context.Context, vc *ValidationContext) error {
	totals := make(map[string]int)
	for _, item := range vc.LineItems {
		totals[item.SKU] += item.Quantity
	}
	for _, item := range vc.LineItems {
		limit := vc.Policy.QuantityCap(item.SKU)
		if limit > 0 && totals[item.SKU] > limit {
			return withDetail(ErrQuantityCapExceeded, "%s is limited to %d per order", item.SKU, limit)
		}
	}
	return nil
}

// systemKitExclusiveValidator 系统套装每个用户只能购买一次，且一单只能一件
type systemKitExclusiveValidator struct {
	catalogRepo repository.CatalogRepository
	orderRepo   repository.OrderRepository
}

func (v *systemKitExclusiveValidator) Name() string { return "system_kit_exclusive" }

func (v *systemKitExclusiveValidator) Validate(_ context.Context, vc *ValidationContext) error {
	kits := make([]models.LineItem, 0)
	count := 0
	for _, item := range vc.LineItems {
		isKit, err := v.catalogRepo.IsProductInTaxonByNames(item.ProductID, []string{constants.TaxonSystemKit})
		if err != nil {
			return fmt.Errorf("check system kit: %w", err)
		}
		if isKit {
			kits = append(kits, item)
			count += item.Quantity
		}
	}
	if count == 0 {
		return nil
	}
	if count > 1 {
		return withDetail(ErrInvalidLineItems, "only one system kit is allowed per order")
	}
	bought, err := v.orderRepo.ListBoughtVariantIDs(userIDOf(vc.User))
	if err != nil {
		return fmt.Errorf("list bought variants: %w", err)
	}
	for _, item := range kits {
		if containsUint(bought, item.VariantID) {
			return withDetail(ErrInvalidLineItems, "system kit %s was already purchased", item.SKU)
		}
	}
	return nil
}

// promotionalExclusiveValidator 促销商品每个用户限购一次
type promotionalExclusiveValidator struct {
	catalogRepo repository.CatalogRepository
	orderRepo   repository.OrderRepository
}

func (v *promotionalExclusiveValidator) Name() string { return "promotional_exclusive" }

func (v *promotionalExclusiveValidator) Validate(_ context.Context, vc *ValidationContext) error {
	var bought []uint
	loaded := false
	for _, item := range vc.LineItems {
		promotional, err := v.catalogRepo.IsProductInTaxonByNames(item.ProductID, []string{constants.TaxonPromotional})
		if err != nil {
			return fmt.Errorf("check promotional: %w", err)
		}
		if !promotional {
			continue
		}
		if item.Quantity > 1 {
			return withDetail(ErrInvalidLineItems, "promotional item %s is limited to one", item.SKU)
		}
		if !loaded {
			bought, err = v.orderRepo.ListBoughtVariantIDs(userIDOf(vc.User))
			if err != nil {
				return fmt.Errorf("list bought variants: %w", err)
			}
			loaded = true
		}
		if containsUint(bought, item.VariantID) {
			return withDetail(ErrInvalidLineItems, "promotional item %s was already purchased", item.SKU)
		}
	}
	return nil
}

func userIDOf(user *models.User) uint {
	if user == nil {
		return 0
	}
	return user.ID
}

func containsUint(values []uint, target uint) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
