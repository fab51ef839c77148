package models

import "time"

// Adjustment 订单调整项（运费、税费、折扣、手工调整）
type Adjustment struct {
	ID             uint      `gorm:"primarykey" json:"id"`                              // 主键
	OrderID        uint      `gorm:"index;not null" json:"order_id"`                    // 订单ID
	Position       int       `gorm:"not null;default:0" json:"position"`                // 展示顺序
	Amount         Money     `gorm:"type:decimal(20,2);not null" json:"amount"`         // 金额（有符号）
	Label          string    `gorm:"type:varchar(255);not null" json:"label"`           // 名称
	SourceType     string    `gorm:"type:varchar(32);not null" json:"source_type"`      // 来源（Shipment/Order）
	SourceID       *uint     `json:"source_id,omitempty"`                               // 来源ID
	OriginatorType string    `gorm:"type:varchar(32)" json:"originator_type,omitempty"` // 发起方类型
	OriginatorID   *uint     `json:"originator_id,omitempty"`                           // 发起方ID
	Mandatory      bool      `gorm:"not null;default:false" json:"mandatory"`           // 是否强制
	CreatedAt      time.Time `json:"created_at"`                                        // 创建时间
}

// TableName 指定表名
func (Adjustment) TableName() string {
	return "adjustments"
}
