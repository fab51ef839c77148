package service

import (
	"fmt"
	"strings"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"github.com/shopspring/decimal"
)

// CalculableOrder 计算器所需的订单视图
type CalculableOrder struct {
	ItemTotal decimal.Decimal
	ItemCount int
}

// ShippingCalculator 运费计算策略
type ShippingCalculator interface {
	Compute(order CalculableOrder, preferences models.JSON) decimal.Decimal
}

// ShippingCalculatorFunc 函数式计算策略
type ShippingCalculatorFunc func(order CalculableOrder, preferences models.JSON) decimal.Decimal

// Compute 实现 ShippingCalculator
func (f ShippingCalculatorFunc) Compute(order CalculableOrder, preferences models.JSON) decimal.Decimal {
	return f(order, preferences)
}

// CalculatorRegistry 按类型注册的计算策略，启动时构建
type CalculatorRegistry struct {
	calculators map[string]ShippingCalculator
}

// NewCalculatorRegistry 创建包含内置策略的注册表
func NewCalculatorRegistry() *CalculatorRegistry {
	registry := &CalculatorRegistry{calculators: make(map[string]ShippingCalculator)}
	registry.Register(constants.CalculatorFlatRate, ShippingCalculatorFunc(flatRate))
	registry.Register(constants.CalculatorFlatPercent, ShippingCalculatorFunc(flatPercentItemTotal))
	registry.Register(constants.CalculatorPerItem, ShippingCalculatorFunc(perItem))
	registry.Register(constants.CalculatorFlexiRate, ShippingCalculatorFunc(flexiRate))
	registry.Register(constants.CalculatorPriceSack, ShippingCalculatorFunc(priceSack))
	return registry
}

// Register 注册或覆盖策略
func (r *CalculatorRegistry) Register(calculatorType string, calculator ShippingCalculator) {
	r.calculators[normalizeCalculatorType(calculatorType)] = calculator
}

// Lookup 查找策略
func (r *CalculatorRegistry) Lookup(calculatorType string) (ShippingCalculator, bool) {
	calculator, ok := r.calculators[normalizeCalculatorType(calculatorType)]
	return calculator, ok
}

func normalizeCalculatorType(calculatorType string) string {
	normalized := strings.ToLower(strings.TrimSpace(calculatorType))
	normalized = strings.TrimPrefix(normalized, "calculator::")
	return normalized
}

// flatRate 固定金额
func flatRate(_ CalculableOrder, preferences models.JSON) decimal.Decimal {
	return preferenceDecimal(preferences, "amount")
}

// flatPercentItemTotal 商品合计的百分比
func flatPercentItemTotal(order CalculableOrder, preferences models.JSON) decimal.Decimal {
	percent := preferenceDecimal(preferences, "flat_percent")
	return models.Round2(order.ItemTotal.Mul(percent).Div(decimal.NewFromInt(100)))
}

// perItem 按件计费
func perItem(order CalculableOrder, preferences models.JSON) decimal.Decimal {
	return models.Round2(preferenceDecimal(preferences, "amount").Mul(decimal.NewFromInt(int64(order.ItemCount))))
}

// flexiRate 首件 + 续件，max_items 为 0 表示不限件数
func flexiRate(order CalculableOrder, preferences models.JSON) decimal.Decimal {
	if order.ItemCount <= 0 {
		return decimal.Zero
	}
	first := preferenceDecimal(preferences, "first_item")
	additional := preferenceDecimal(preferences, "additional_item")
	count := order.ItemCount
	if maxItems := int(preferenceDecimal(preferences, "max_items").IntPart()); maxItems > 0 && count > maxItems {
		count = maxItems
	}
	return models.Round2(first.Add(additional.Mul(decimal.NewFromInt(int64(count - 1)))))
}

// priceSack 合计低于门槛收 normal_amount，否则收 discount_amount
func priceSack(order CalculableOrder, preferences models.JSON) decimal.Decimal {
	minimal := preferenceDecimal(preferences, "minimal_amount")
	if order.ItemTotal.LessThan(minimal) {
		return preferenceDecimal(preferences, "normal_amount")
	}
	return preferenceDecimal(preferences, "discount_amount")
}

// preferenceDecimal 读取数值型偏好，兼容数字与字符串
func preferenceDecimal(preferences models.JSON, key string) decimal.Decimal {
	if preferences == nil {
		return decimal.Zero
	}
	raw, ok := preferences[key]
	if !ok || raw == nil {
		return decimal.Zero
	}
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero
		}
		return parsed
	default:
		parsed, err := decimal.NewFromString(fmt.Sprint(v))
		if err != nil {
			return decimal.Zero
		}
		return parsed
	}
}
