package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Country 国家
type Country struct {
	ID         uint   `gorm:"primarykey" json:"id"`
	ISO        string `gorm:"type:varchar(2);uniqueIndex;not null" json:"iso"`
	ISO3       string `gorm:"type:varchar(3)" json:"iso3"`
	Name       string `gorm:"type:varchar(80);not null" json:"name"`
	CurrencyID *uint  `json:"currency_id,omitempty"`
}

// TableName 指定表名
func (Country) TableName() string {
	return "countries"
}

// State 省/州
type State struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	CountryID uint   `gorm:"index;not null" json:"country_id"`
	Abbr      string `gorm:"type:varchar(8)" json:"abbr"`
	Name      string `gorm:"type:varchar(80);not null" json:"name"`
}

// TableName 指定表名
func (State) TableName() string {
	return "states"
}

// Currency 币种
type Currency struct {
	ID      uint   `gorm:"primarykey" json:"id"`
	ISOCode string `gorm:"type:varchar(3);uniqueIndex;not null" json:"iso_code"`
	Symbol  string `gorm:"type:varchar(8)" json:"symbol"`
	Name    string `gorm:"type:varchar(40)" json:"name"`
}

// TableName 指定表名
func (Currency) TableName() string {
	return "currencies"
}

// Zone 配送/税务区域
type Zone struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	Name        string `gorm:"type:varchar(80);uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:varchar(255)" json:"description"`
}

// TableName 指定表名
func (Zone) TableName() string {
	return "zones"
}

// ZoneMember 区域成员，StateID 为空表示整个国家
type ZoneMember struct {
	ID        uint  `gorm:"primarykey" json:"id"`
	ZoneID    uint  `gorm:"index;not null" json:"zone_id"`
	CountryID uint  `gorm:"index;not null" json:"country_id"`
	StateID   *uint `gorm:"index" json:"state_id,omitempty"`
}

// TableName 指定表名
func (ZoneMember) TableName() string {
	return "zone_members"
}

// ShippingMethod 配送方式
type ShippingMethod struct {
	ID                        uint      `gorm:"primarykey" json:"id"`                                      // 主键
	Name                      string    `gorm:"type:varchar(80);not null" json:"name"`                     // 名称
	IsDefault                 bool      `gorm:"not null;default:false" json:"is_default"`                  // 是否默认
	ShippingAddressChangeable bool      `gorm:"not null;default:false" json:"shipping_address_changeable"` // 可修改收货地址（否则为自提）
	PickupCountryIDs          UintArray `gorm:"type:json" json:"pickup_country_ids,omitempty"`             // 自提点所在国家
	Active                    bool      `gorm:"not null;default:false" json:"active"`                      // 是否启用
	Position                  int       `gorm:"not null;default:0" json:"position"`                        // 排序
}

// TableName 指定表名
func (ShippingMethod) TableName() string {
	return "shipping_methods"
}

// ShippingMethodZone 配送方式与区域关联
type ShippingMethodZone struct {
	ShippingMethodID uint `gorm:"primaryKey" json:"shipping_method_id"`
	ZoneID           uint `gorm:"primaryKey" json:"zone_id"`
}

// TableName 指定表名
func (ShippingMethodZone) TableName() string {
	return "shipping_methods_zones"
}

// Calculator 可插拔计算器
type Calculator struct {
	ID             uint   `gorm:"primarykey" json:"id"`
	Type           string `gorm:"type:varchar(40);not null" json:"type"`
	CalculableType string `gorm:"type:varchar(32);index:idx_calculators_calculable;not null" json:"calculable_type"`
	CalculableID   uint   `gorm:"index:idx_calculators_calculable;not null" json:"calculable_id"`
	Preferences    JSON   `gorm:"type:json" json:"preferences"`
}

// TableName 指定表名
func (Calculator) TableName() string {
	return "calculators"
}

// TaxCategory 税种
type TaxCategory struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	Name      string `gorm:"type:varchar(80);not null" json:"name"`
	IsDefault bool   `gorm:"not null;default:false" json:"is_default"`
}

// TableName 指定表名
func (TaxCategory) TableName() string {
	return "tax_categories"
}

// TaxRate 区域税率
type TaxRate struct {
	ID            uint            `gorm:"primarykey" json:"id"`
	ZoneID        uint            `gorm:"index;not null" json:"zone_id"`
	TaxCategoryID uint            `gorm:"index;not null" json:"tax_category_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(8,5);not null" json:"amount"`
}

// TableName 指定表名
func (TaxRate) TableName() string {
	return "tax_rates"
}

// ShippingCategory 运输类别
type ShippingCategory struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Name string `gorm:"type:varchar(80);not null" json:"name"`
}

// TableName 指定表名
func (ShippingCategory) TableName() string {
	return "shipping_categories"
}

// CountryShipment 国家间可发货许可
type CountryShipment struct {
	ID              uint `gorm:"primarykey" json:"id"`
	OriginCountryID uint `gorm:"uniqueIndex:idx_country_shipments_pair;not null" json:"origin_country_id"`
	DestCountryID   uint `gorm:"uniqueIndex:idx_country_shipments_pair;not null" json:"dest_country_id"`
}

// TableName 指定表名
func (CountryShipment) TableName() string {
	return "country_shipments"
}

// Preference 后台可配置偏好（键值）
type Preference struct {
	Key       string    `gorm:"type:varchar(80);primarykey" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Preference) TableName() string {
	return "preferences"
}
