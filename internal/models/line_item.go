package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem 订单行项目
type LineItem struct {
	ID                 uint               `gorm:"primarykey" json:"id"`                                      // 主键
	OrderID            uint               `gorm:"index;not null" json:"order_id"`                            // 订单ID
	LineNo             int                `gorm:"not null" json:"line_no"`                                   // 行号（10, 20, 30...）
	VariantID          uint               `gorm:"index;not null" json:"variant_id"`                          // 规格ID
	ProductID          uint               `gorm:"index;not null" json:"product_id"`                          // 商品ID
	SKU                string             `gorm:"type:varchar(64)" json:"sku"`                               // SKU
	Name               string             `gorm:"type:varchar(255)" json:"name"`                             // 商品名称快照
	CatalogCode        string             `gorm:"type:varchar(32)" json:"catalog_code"`                      // 目录编码
	RoleID             uint               `gorm:"not null" json:"role_id"`                                   // 定价角色ID
	Price              Money              `gorm:"type:decimal(20,2);not null" json:"price"`                  // 下单单价（创建后冻结）
	RetailPrice        Money              `gorm:"type:decimal(20,2);not null;default:0" json:"retail_price"` // 零售价
	Quantity           int                `gorm:"not null" json:"quantity"`                                  // 数量
	DTVolume           decimal.Decimal    `gorm:"type:decimal(20,2);not null;default:0" json:"dt_volume"`    // DT 业绩
	FTVolume           decimal.Decimal    `gorm:"type:decimal(20,2);not null;default:0" json:"ft_volume"`    // FT 业绩
	UVolume            decimal.Decimal    `gorm:"type:decimal(20,2);not null;default:0" json:"u_volume"`     // U 业绩
	QVolume            decimal.Decimal    `gorm:"type:decimal(20,2);not null;default:0" json:"q_volume"`     // Q 业绩
	RVolume            decimal.Decimal    `gorm:"type:decimal(20,2);not null;default:0" json:"r_volume"`     // R 业绩
	ShippedQuantity    int                `gorm:"not null;default:0" json:"shipped_quantity"`                // 已发货数量
	ReturnedQuantity   int                `gorm:"not null;default:0" json:"returned_quantity"`               // 已退货数量
	PersonalizedValues PersonalizedValues `gorm:"type:json" json:"personalized_values,omitempty"`            // 个性化内容
	IsAutoship         bool               `gorm:"not null;default:false" json:"is_autoship"`                 // 自动订购行
	IsDiscountable     bool               `gorm:"not null;default:false" json:"is_discountable"`             // 是否参与折扣
	TaxCategoryID      *uint              `gorm:"index" json:"tax_category_id,omitempty"`                    // 税种ID
	ShippingCategoryID *uint              `gorm:"index" json:"shipping_category_id,omitempty"`               // 运输类别ID
	TaxAmount          Money              `gorm:"type:decimal(20,2);not null;default:0" json:"tax_amount"`   // 外部税务服务返回的行税额
	CountOnHand        int                `gorm:"-" json:"-"`                                                // 校验用库存快照，不落库
	CreatedAt          time.Time          `json:"created_at"`                                                // 创建时间
	UpdatedAt          time.Time          `json:"updated_at"`                                                // 更新时间
}

// TableName 指定表名
func (LineItem) TableName() string {
	return "line_items"
}

// Amount 行金额 = round2(单价 * 数量)
func (li *LineItem) Amount() decimal.Decimal {
	return Round2(li.Price.Decimal.Mul(decimal.NewFromInt(int64(li.Quantity))))
}
