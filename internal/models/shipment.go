package models

import "time"

// Shipment 发货单
type Shipment struct {
	ID               uint       `gorm:"primarykey" json:"id"`                              // 主键
	OrderID          uint       `gorm:"index;not null" json:"order_id"`                    // 订单ID
	Number           string     `gorm:"type:varchar(32);uniqueIndex" json:"number"`        // 发货单号
	ShippingMethodID *uint      `gorm:"index" json:"shipping_method_id,omitempty"`         // 配送方式ID
	AddressID        *uint      `json:"address_id,omitempty"`                              // 收货地址ID
	State            string     `gorm:"type:varchar(24);not null" json:"state"`            // 状态
	Cost             Money      `gorm:"type:decimal(20,2);not null;default:0" json:"cost"` // 运费
	Tracking         string     `gorm:"type:varchar(128)" json:"tracking,omitempty"`       // 物流单号
	ShippedAt        *time.Time `json:"shipped_at"`                                        // 发货时间
	CreatedAt        time.Time  `json:"created_at"`                                        // 创建时间
	UpdatedAt        time.Time  `json:"updated_at"`                                        // 更新时间
}

// TableName 指定表名
func (Shipment) TableName() string {
	return "shipments"
}

// InventoryUnit 库存单元（每件商品一条）
type InventoryUnit struct {
	ID         uint      `gorm:"primarykey" json:"id"`                   // 主键
	OrderID    uint      `gorm:"index;not null" json:"order_id"`         // 订单ID
	ShipmentID *uint     `gorm:"index" json:"shipment_id,omitempty"`     // 发货单ID
	LineItemID uint      `gorm:"index;not null" json:"line_item_id"`     // 行项目ID
	VariantID  uint      `gorm:"index;not null" json:"variant_id"`       // 规格ID
	State      string    `gorm:"type:varchar(24);not null" json:"state"` // 状态
	CreatedAt  time.Time `json:"created_at"`                             // 创建时间
}

// TableName 指定表名
func (InventoryUnit) TableName() string {
	return "inventory_units"
}
