package models

import "time"

// Payment 支付记录（每次支付尝试一条）
type Payment struct {
	ID                uint      `gorm:"primarykey" json:"id"`                                   // 主键
	OrderID           uint      `gorm:"index;not null" json:"order_id"`                         // 订单ID
	PaymentMethodID   uint      `gorm:"index;not null" json:"payment_method_id"`                // 支付方式ID
	Amount            Money     `gorm:"type:decimal(20,2);not null" json:"amount"`              // 支付金额（创建后不可变）
	SourceType        string    `gorm:"type:varchar(32);not null" json:"source_type"`           // 来源类型（Creditcard/GiftCard/Cash）
	SourceID          *uint     `json:"source_id,omitempty"`                                    // 来源ID（信用卡/礼品卡）
	State             string    `gorm:"type:varchar(24);index;not null" json:"state"`           // 支付状态
	ResponseCode      string    `gorm:"type:varchar(128);index" json:"response_code,omitempty"` // 网关流水号
	AutoshipPaymentID *uint     `gorm:"index" json:"autoship_payment_id,omitempty"`             // 自动订购支付ID
	CreatedAt         time.Time `gorm:"index" json:"created_at"`                                // 创建时间
	UpdatedAt         time.Time `json:"updated_at"`                                             // 更新时间

	PaymentMethod *PaymentMethod `gorm:"foreignKey:PaymentMethodID" json:"payment_method,omitempty"` // 支付方式
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}

// PaymentMethod 支付方式
type PaymentMethod struct {
	ID                uint   `gorm:"primarykey" json:"id"`                             // 主键
	Name              string `gorm:"type:varchar(64);not null" json:"name"`            // 名称
	Type              string `gorm:"type:varchar(24);not null" json:"type"`            // 类型（cash/giftcard/creditcard/deferred）
	Active            bool   `gorm:"not null;default:false" json:"active"`             // 是否启用
	AutoshipAvailable bool   `gorm:"not null;default:false" json:"autoship_available"` // 自动订购可用
	Position          int    `gorm:"not null;default:0" json:"position"`               // 排序
}

// TableName 指定表名
func (PaymentMethod) TableName() string {
	return "payment_methods"
}

// Creditcard 信用卡（仅保存网关令牌与展示信息）
type Creditcard struct {
	ID           uint      `gorm:"primarykey" json:"id"`                // 主键
	UserID       uint      `gorm:"index;not null" json:"user_id"`       // 用户ID
	Brand        string    `gorm:"type:varchar(24)" json:"brand"`       // 卡组织
	LastDigits   string    `gorm:"type:varchar(4)" json:"last_digits"`  // 卡号后四位
	GatewayToken string    `gorm:"type:varchar(128);not null" json:"-"` // 网关支付方式令牌
	CreatedAt    time.Time `json:"created_at"`                          // 创建时间
}

// TableName 指定表名
func (Creditcard) TableName() string {
	return "creditcards"
}
