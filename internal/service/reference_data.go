package service

import (
	"context"
	"strings"

	"github.com/hustbill/nodejs-api-server-sub001/internal/cache"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/repository"
)

// ReferenceData 进程内只读参考数据（首次访问时加载）
type ReferenceData struct {
	calculators        *cache.Loader[[]models.Calculator]
	currencies         *cache.Loader[[]models.Currency]
	shippingCategories *cache.Loader[[]models.ShippingCategory]
	taxCategories      *cache.Loader[map[uint]models.TaxCategory]
	preferences        *cache.Loader[map[string]string]
}

// NewReferenceData 创建参考数据集合
func NewReferenceData(refRepo repository.ReferenceRepository) *ReferenceData {
	return &ReferenceData{
		calculators: cache.NewLoader("calculators", func(context.Context) ([]models.Calculator, error) {
			return refRepo.ListCalculators()
		}),
		currencies: cache.NewLoader("currencies", func(context.Context) ([]models.Currency, error) {
			return refRepo.ListCurrencies()
		}),
		shippingCategories: cache.NewLoader("shipping_categories", func(context.Context) ([]models.ShippingCategory, error) {
			return refRepo.ListShippingCategories()
		}),
		taxCategories: cache.NewLoader("tax_categories", func(context.Context) (map[uint]models.TaxCategory, error) {
			rows, err := refRepo.ListTaxCategories()
			if err != nil {
				return nil, err
			}
			result := make(map[uint]models.TaxCategory, len(rows))
			for _, row := range rows {
				result[row.ID] = row
			}
			return result, nil
		}),
		preferences: cache.NewLoader("preferences", func(context.Context) (map[string]string, error) {
			rows, err := refRepo.ListPreferences()
			if err != nil {
				return nil, err
			}
			result := make(map[string]string, len(rows))
			for _, row := range rows {
				result[row.Key] = row.Value
			}
			return result, nil
		}),
	}
}

// CalculatorsOf 指定对象上挂载的计算器
func (d *ReferenceData) CalculatorsOf(ctx context.Context, calculableType string, calculableID uint) ([]models.Calculator, error) {
	rows, err := d.calculators.Get(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]models.Calculator, 0)
	for _, row := range rows {
		if row.CalculableType == calculableType && row.CalculableID == calculableID {
			result = append(result, row)
		}
	}
	return result, nil
}

// CurrencyCodes 已配置的币种
func (d *ReferenceData) CurrencyCodes(ctx context.Context) ([]string, error) {
	rows, err := d.currencies.Get(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(rows))
	for _, row := range rows {
		codes = append(codes, row.ISOCode)
	}
	return codes, nil
}

// CurrencyByID 根据 ID 获取币种编码
func (d *ReferenceData) CurrencyByID(ctx context.Context, id uint) (string, bool, error) {
	rows, err := d.currencies.Get(ctx)
	if err != nil {
		return "", false, err
	}
	for _, row := range rows {
		if row.ID == id {
			return row.ISOCode, true, nil
		}
	}
	return "", false, nil
}

// ShippingCategoryName 运输类别名称
func (d *ReferenceData) ShippingCategoryName(ctx context.Context, id uint) (string, error) {
	rows, err := d.shippingCategories.Get(ctx)
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		if row.ID == id {
			return row.Name, nil
		}
	}
	return "", nil
}

// TaxCategory 根据 ID 获取税种
func (d *ReferenceData) TaxCategory(ctx context.Context, id uint) (*models.TaxCategory, error) {
	rows, err := d.taxCategories.Get(ctx)
	if err != nil {
		return nil, err
	}
	row, ok := rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

// Preference 偏好设置
func (d *ReferenceData) Preference(ctx context.Context, key string) (string, bool, error) {
	rows, err := d.preferences.Get(ctx)
	if err != nil {
		return "", false, err
	}
	value, ok := rows[key]
	return value, ok, nil
}

// PreferenceBool 布尔偏好设置，未设置时返回 fallback
func (d *ReferenceData) PreferenceBool(ctx context.Context, key string, fallback bool) (bool, error) {
	value, ok, err := d.Preference(ctx, key)
	if err != nil || !ok {
		return fallback, err
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "t":
		return true, nil
	case "false", "0", "no", "f":
		return false, nil
	default:
		return fallback, nil
	}
}
