package repository

import (
	"errors"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferenceRepository 参考数据（区域、配送、税率、币种等）数据访问接口
type ReferenceRepository interface {
	ListCalculators() ([]models.Calculator, error)
	ListCurrencies() ([]models.Currency, error)
	ListShippingCategories() ([]models.ShippingCategory, error)
	ListTaxCategories() ([]models.TaxCategory, error)
	ListPreferences() ([]models.Preference, error)
	SetPreference(key, value string) error
	GetCountryByID(id uint) (*models.Country, error)
	GetCountryByISO(iso string) (*models.Country, error)
	GetStateByID(id uint) (*models.State, error)
	GetZoneIDsByCountryAndState(countryID uint, stateID *uint) ([]uint, error)
	CanShip(originCountryID, destCountryID uint) (bool, error)
	ListShippingMethodsInZones(zoneIDs []uint) ([]models.ShippingMethod, error)
	GetShippingMethodByID(id uint) (*models.ShippingMethod, error)
	ListTaxRatesInZones(zoneIDs []uint) ([]models.TaxRate, error)
	GetPaymentMethodByID(id uint) (*models.PaymentMethod, error)
	ListPaymentMethods(autoshipOnly bool) ([]models.PaymentMethod, error)
}

// GormReferenceRepository GORM 实现
type GormReferenceRepository struct {
	db *gorm.DB
}

// NewReferenceRepository 创建参考数据仓库
func NewReferenceRepository(db *gorm.DB) *GormReferenceRepository {
	return &GormReferenceRepository{db: db}
}

// ListCalculators 获取全部计算器
func (r *GormReferenceRepository) ListCalculators() ([]models.Calculator, error) {
	var rows []models.Calculator
	if err := r.db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListCurrencies 获取全部币种
func (r *GormReferenceRepository) ListCurrencies() ([]models.Currency, error) {
	var rows []models.Currency
	if err := r.db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListShippingCategories 获取全部运输类别
func (r *GormReferenceRepository) ListShippingCategories() ([]models.ShippingCategory, error) {
	var rows []models.ShippingCategory
	if err := r.db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListTaxCategories 获取全部税种
func (r *GormReferenceRepository) ListTaxCategories() ([]models.TaxCategory, error) {
	var rows []models.TaxCategory
	if err := r.db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPreferences 获取全部偏好设置
func (r *GormReferenceRepository) ListPreferences() ([]models.Preference, error) {
	var rows []models.Preference
	if err := r.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SetPreference 写入偏好设置
func (r *GormReferenceRepository) SetPreference(key, value string) error {
	row := models.Preference{Key: key, Value: value, UpdatedAt: time.Now()}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

// GetCountryByID 根据 ID 获取国家
func (r *GormReferenceRepository) GetCountryByID(id uint) (*models.Country, error) {
	var row models.Country
	if err := r.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetCountryByISO 根据 ISO 获取国家
func (r *GormReferenceRepository) GetCountryByISO(iso string) (*models.Country, error) {
	var row models.Country
	if err := r.db.Where("iso = ?", iso).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetStateByID 根据 ID 获取省/州
func (r *GormReferenceRepository) GetStateByID(id uint) (*models.State, error) {
	var row models.State
	if err := r.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetZoneIDsByCountryAndState 获取包含该国家/省份的区域
func (r *GormReferenceRepository) GetZoneIDsByCountryAndState(countryID uint, stateID *uint) ([]uint, error) {
	query := r.db.Model(&models.ZoneMember{}).Distinct("zone_id").Where("country_id = ?", countryID)
	if stateID != nil && *stateID != 0 {
		query = query.Where("(state_id IS NULL OR state_id = ?)", *stateID)
	} else {
		query = query.Where("state_id IS NULL")
	}
	var ids []uint
	if err := query.Order("zone_id ASC").Pluck("zone_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CanShip 两国之间是否允许发货
func (r *GormReferenceRepository) CanShip(originCountryID, destCountryID uint) (bool, error) {
	if originCountryID != 0 && originCountryID == destCountryID {
		return true, nil
	}
	var count int64
	err := r.db.Model(&models.CountryShipment{}).
		Where("origin_country_id = ? AND dest_country_id = ?", originCountryID, destCountryID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListShippingMethodsInZones 获取在指定区域内可用的配送方式
func (r *GormReferenceRepository) ListShippingMethodsInZones(zoneIDs []uint) ([]models.ShippingMethod, error) {
	if len(zoneIDs) == 0 {
		return []models.ShippingMethod{}, nil
	}
	var rows []models.ShippingMethod
	err := r.db.Model(&models.ShippingMethod{}).
		Distinct("shipping_methods.*").
		Joins("JOIN shipping_methods_zones smz ON smz.shipping_method_id = shipping_methods.id").
		Where("smz.zone_id IN ? AND shipping_methods.active = ?", zoneIDs, true).
		Order("shipping_methods.position ASC, shipping_methods.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GetShippingMethodByID 根据 ID 获取配送方式
func (r *GormReferenceRepository) GetShippingMethodByID(id uint) (*models.ShippingMethod, error) {
	var row models.ShippingMethod
	if err := r.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListTaxRatesInZones 获取指定区域内的税率
func (r *GormReferenceRepository) ListTaxRatesInZones(zoneIDs []uint) ([]models.TaxRate, error) {
	if len(zoneIDs) == 0 {
		return []models.TaxRate{}, nil
	}
	var rows []models.TaxRate
	if err := r.db.Where("zone_id IN ?", zoneIDs).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetPaymentMethodByID 根据 ID 获取支付方式
func (r *GormReferenceRepository) GetPaymentMethodByID(id uint) (*models.PaymentMethod, error) {
	var row models.PaymentMethod
	if err := r.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListPaymentMethods 获取启用的支付方式
func (r *GormReferenceRepository) ListPaymentMethods(autoshipOnly bool) ([]models.PaymentMethod, error) {
	query := r.db.Where("active = ?", true)
	if autoshipOnly {
		query = query.Where("autoship_available = ?", true)
	}
	var rows []models.PaymentMethod
	if err := query.Order("position ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
