package models

import "time"

// ReturnAuthorization 退货授权
type ReturnAuthorization struct {
	ID        uint        `gorm:"primarykey" json:"id"`                                // 主键
	Number    string      `gorm:"type:varchar(32);uniqueIndex;not null" json:"number"` // 编号
	OrderID   uint        `gorm:"index;not null" json:"order_id"`                      // 订单ID
	Amount    Money       `gorm:"type:decimal(20,2);not null" json:"amount"`           // 退款金额
	Reason    string      `gorm:"type:text" json:"reason"`                             // 原因
	State     string      `gorm:"type:varchar(24);index;not null" json:"state"`        // 状态
	Items     ReturnItems `gorm:"type:json" json:"items"`                              // 申请退货的行项目
	CreatedBy uint        `gorm:"not null;default:0" json:"created_by"`                // 操作人
	CreatedAt time.Time   `json:"created_at"`                                          // 创建时间
	UpdatedAt time.Time   `json:"updated_at"`                                          // 更新时间
}

// TableName 指定表名
func (ReturnAuthorization) TableName() string {
	return "return_authorizations"
}
