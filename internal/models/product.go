package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product 商品
type Product struct {
	ID                 uint      `gorm:"primarykey" json:"id"`                          // 主键
	Name               string    `gorm:"type:varchar(255);not null" json:"name"`        // 名称
	TaxCategoryID      *uint     `gorm:"index" json:"tax_category_id,omitempty"`        // 税种
	ShippingCategoryID *uint     `gorm:"index" json:"shipping_category_id,omitempty"`   // 运输类别
	IsDiscountable     bool      `gorm:"not null;default:false" json:"is_discountable"` // 是否参与折扣
	CreatedAt          time.Time `json:"created_at"`                                    // 创建时间

	Variants          []Variant                 `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
	PersonalizedTypes []ProductPersonalizedType `gorm:"foreignKey:ProductID" json:"personalized_types,omitempty"`
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// Variant 商品规格
type Variant struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	ProductID   uint   `gorm:"index;not null" json:"product_id"`
	SKU         string `gorm:"type:varchar(64);uniqueIndex;not null" json:"sku"`
	CountOnHand int    `gorm:"not null;default:0" json:"count_on_hand"` // -1 表示缺货
	Deleted     bool   `gorm:"not null;default:false" json:"deleted"`
}

// TableName 指定表名
func (Variant) TableName() string {
	return "variants"
}

// VariantPrice 按角色与目录的定价
type VariantPrice struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	VariantID   uint   `gorm:"uniqueIndex:idx_variant_prices_ctx;not null" json:"variant_id"`
	RoleID      uint   `gorm:"uniqueIndex:idx_variant_prices_ctx;not null" json:"role_id"`
	CatalogCode string `gorm:"type:varchar(32);uniqueIndex:idx_variant_prices_ctx;not null" json:"catalog_code"`
	Price       Money  `gorm:"type:decimal(20,2);not null" json:"price"`
	RetailPrice Money  `gorm:"type:decimal(20,2);not null;default:0" json:"retail_price"`
}

// TableName 指定表名
func (VariantPrice) TableName() string {
	return "variant_prices"
}

// VariantCommission 规格的佣金业绩值（按佣金编码）
type VariantCommission struct {
	ID             uint            `gorm:"primarykey" json:"id"`
	VariantID      uint            `gorm:"uniqueIndex:idx_variant_commissions_code;not null" json:"variant_id"`
	RoleID         uint            `gorm:"uniqueIndex:idx_variant_commissions_code;not null" json:"role_id"`
	CommissionCode string          `gorm:"type:varchar(16);uniqueIndex:idx_variant_commissions_code;not null" json:"commission_code"`
	Volume         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"volume"`
}

// TableName 指定表名
func (VariantCommission) TableName() string {
	return "variant_commissions"
}

// ProductPersonalizedType 商品可填写的个性化类型
type ProductPersonalizedType struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	ProductID uint   `gorm:"index;not null" json:"product_id"`
	Name      string `gorm:"type:varchar(80);not null" json:"name"`
}

// TableName 指定表名
func (ProductPersonalizedType) TableName() string {
	return "product_personalized_types"
}

// Taxon 商品分类
type Taxon struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Name string `gorm:"type:varchar(80);uniqueIndex;not null" json:"name"`
}

// TableName 指定表名
func (Taxon) TableName() string {
	return "taxons"
}

// ProductTaxon 商品分类关联
type ProductTaxon struct {
	ProductID uint `gorm:"primaryKey" json:"product_id"`
	TaxonID   uint `gorm:"primaryKey" json:"taxon_id"`
}

// TableName 指定表名
func (ProductTaxon) TableName() string {
	return "products_taxons"
}

// ProductCountry 商品可销售国家
type ProductCountry struct {
	ProductID uint `gorm:"primaryKey" json:"product_id"`
	CountryID uint `gorm:"primaryKey" json:"country_id"`
}

// TableName 指定表名
func (ProductCountry) TableName() string {
	return "products_countries"
}
