package models

import "time"

// GiftCard 礼品卡
type GiftCard struct {
	ID             uint       `gorm:"primarykey" json:"id"`                               // 主键
	Code           string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`  // 卡号
	PinHash        string     `gorm:"type:varchar(100);not null" json:"-"`                // PIN 哈希（bcrypt）
	Amount         Money      `gorm:"type:decimal(20,2);not null" json:"amount"`          // 面额
	Balance        Money      `gorm:"type:decimal(20,2);not null" json:"balance"`         // 余额
	Currency       string     `gorm:"type:varchar(8);not null" json:"currency"`           // 币种
	Active         bool       `gorm:"index;not null;default:false" json:"active"`         // 是否已激活
	OrderID        *uint      `gorm:"index" json:"order_id,omitempty"`                    // 购买该卡的订单
	LineItemID     *uint      `gorm:"index" json:"line_item_id,omitempty"`                // 对应行项目
	RecipientEmail string     `gorm:"type:varchar(255)" json:"recipient_email,omitempty"` // 收件人邮箱
	ActivatedAt    *time.Time `json:"activated_at"`                                       // 激活时间
	CreatedAt      time.Time  `json:"created_at"`                                         // 创建时间
	UpdatedAt      time.Time  `json:"updated_at"`                                         // 更新时间
}

// TableName 指定表名
func (GiftCard) TableName() string {
	return "gift_cards"
}
