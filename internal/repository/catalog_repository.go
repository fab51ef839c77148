package repository

import (
	"errors"
	"strings"

	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VariantDetail 指定角色与目录下的规格定价快照
type VariantDetail struct {
	VariantID          uint
	ProductID          uint
	SKU                string
	Name               string
	Price              models.Money
	RetailPrice        models.Money
	CountOnHand        int
	IsDiscountable     bool
	TaxCategoryID      *uint
	ShippingCategoryID *uint
	Commissions        map[string]decimal.Decimal // 佣金编码 -> 单件业绩
	PersonalizedTypes  []models.ProductPersonalizedType
}

// PersonalizedTypeName 根据个性化类型 ID 查找名称
func (d *VariantDetail) PersonalizedTypeName(typeID uint) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, item := range d.PersonalizedTypes {
		if item.ID == typeID {
			return item.Name, true
		}
	}
	return "", false
}

// CatalogRepository 商品目录数据访问接口
type CatalogRepository interface {
	GetVariantDetail(roleID, variantID uint, catalogCode string) (*VariantDetail, error)
	CanProductSellInCountry(productID, countryID uint) (bool, error)
	IsProductInTaxonByNames(productID uint, names []string) (bool, error)
	GetShippingCategoryByProductID(productID uint) (*models.ShippingCategory, error)
}

// GormCatalogRepository GORM 实现
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository 创建目录仓库
func NewCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// GetVariantDetail 获取规格在角色/目录下的价格与业绩；不存在或无定价返回 nil
func (r *GormCatalogRepository) GetVariantDetail(roleID, variantID uint, catalogCode string) (*VariantDetail, error) {
	var variant models.Variant
	if err := r.db.Where("id = ? AND deleted = ?", variantID, false).First(&variant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var price models.VariantPrice
	if err := r.db.Where("variant_id = ? AND role_id = ? AND catalog_code = ?", variantID, roleID, strings.TrimSpace(catalogCode)).
		First(&price).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var product models.Product
	if err := r.db.Preload("PersonalizedTypes").First(&product, variant.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var commissions []models.VariantCommission
	if err := r.db.Where("variant_id = ? AND role_id = ?", variantID, roleID).Find(&commissions).Error; err != nil {
		return nil, err
	}
	commissionMap := make(map[string]decimal.Decimal, len(commissions))
	for _, item := range commissions {
		commissionMap[strings.ToUpper(item.CommissionCode)] = item.Volume
	}

	return &VariantDetail{
		VariantID:          variant.ID,
		ProductID:          product.ID,
		SKU:                variant.SKU,
		Name:               product.Name,
		Price:              price.Price,
		RetailPrice:        price.RetailPrice,
		CountOnHand:        variant.CountOnHand,
		IsDiscountable:     product.IsDiscountable,
		TaxCategoryID:      product.TaxCategoryID,
		ShippingCategoryID: product.ShippingCategoryID,
		Commissions:        commissionMap,
		PersonalizedTypes:  product.PersonalizedTypes,
	}, nil
}

// CanProductSellInCountry 商品是否可在该国销售
func (r *GormCatalogRepository) CanProductSellInCountry(productID, countryID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.ProductCountry{}).
		Where("product_id = ? AND country_id = ?", productID, countryID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsProductInTaxonByNames 商品是否属于任一分类（名称忽略大小写）
func (r *GormCatalogRepository) IsProductInTaxonByNames(productID uint, names []string) (bool, error) {
	condition, args := buildNameMatchCondition(r.db, "taxons.name", names)
	var count int64
	err := r.db.Model(&models.ProductTaxon{}).
		Joins("JOIN taxons ON taxons.id = products_taxons.taxon_id").
		Where("products_taxons.product_id = ?", productID).
		Where(condition, args...).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetShippingCategoryByProductID 获取商品的运输类别
func (r *GormCatalogRepository) GetShippingCategoryByProductID(productID uint) (*models.ShippingCategory, error) {
	var category models.ShippingCategory
	err := r.db.Model(&models.ShippingCategory{}).
		Joins("JOIN products ON products.shipping_category_id = shipping_categories.id").
		Where("products.id = ?", productID).
		First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}
