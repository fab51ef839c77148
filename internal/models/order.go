package models

import (
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
)

// Order 订单表
type Order struct {
	ID                  uint       `gorm:"primarykey" json:"id"`                                            // 主键
	Number              string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"number"`             // 订单编号
	UserID              uint       `gorm:"index;uniqueIndex:idx_orders_user_client_request,priority:1;not null" json:"user_id"`   // 下单用户ID
	CreatedBy           uint       `gorm:"index;not null;default:0" json:"created_by"`                      // 操作人ID（管理员代下单时不同于用户）
	CompanyCode         string     `gorm:"type:varchar(16);not null;default:''" json:"company_code"`        // 公司（租户）编码
	Currency            string     `gorm:"type:varchar(8);not null" json:"currency"`                        // 币种
	ItemTotal           Money      `gorm:"type:decimal(20,2);not null;default:0" json:"item_total"`         // 商品合计
	AdjustmentTotal     Money      `gorm:"type:decimal(20,2);not null;default:0" json:"adjustment_total"`   // 调整项合计
	Total               Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total"`              // 订单总额
	PaymentTotal        Money      `gorm:"type:decimal(20,2);not null;default:0" json:"payment_total"`      // 已支付金额
	CreditTotal         Money      `gorm:"type:decimal(20,2);not null;default:0" json:"credit_total"`       // 应退金额
	State               string     `gorm:"type:varchar(24);index;not null" json:"state"`                    // 订单状态
	PaymentState        string     `gorm:"type:varchar(24);index" json:"payment_state"`                     // 支付状态
	ShipmentState       *string    `gorm:"type:varchar(24);index" json:"shipment_state"`                    // 发货状态（未完成前为空）
	ShippingAddressID   *uint      `gorm:"index" json:"shipping_address_id,omitempty"`                      // 收货地址ID
	BillingAddressID    *uint      `gorm:"index" json:"billing_address_id,omitempty"`                       // 账单地址ID
	ShippingMethodID    *uint      `gorm:"index" json:"shipping_method_id,omitempty"`                       // 配送方式ID
	Autoship            bool       `gorm:"not null;default:false" json:"autoship"`                          // 是否自动订购订单
	AutoshipID          *uint      `gorm:"index" json:"autoship_id,omitempty"`                              // 自动订购计划ID
	SpecialInstructions string     `gorm:"type:text" json:"special_instructions,omitempty"`                 // 备注
	ClientRequestID     *string    `gorm:"type:varchar(64);uniqueIndex:idx_orders_user_client_request,priority:2" json:"client_request_id,omitempty"` // 客户端幂等标识（按用户唯一）
	ExternalTax         bool       `gorm:"not null;default:false" json:"external_tax"`                      // 税费是否由外部税务服务计算
	CompletedAt         *time.Time `gorm:"index" json:"completed_at"`                                       // 完成时间
	CreatedAt           time.Time  `gorm:"index" json:"created_at"`                                         // 创建时间
	UpdatedAt           time.Time  `gorm:"index" json:"updated_at"`                                         // 更新时间

	LineItems   []LineItem   `gorm:"foreignKey:OrderID" json:"line_items,omitempty"`  // 行项目
	Adjustments []Adjustment `gorm:"foreignKey:OrderID" json:"adjustments,omitempty"` // 调整项
	Payments    []Payment    `gorm:"foreignKey:OrderID" json:"payments,omitempty"`    // 支付记录
	Shipments   []Shipment   `gorm:"foreignKey:OrderID" json:"shipments,omitempty"`   // 发货单
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// ShipmentStateValue 返回发货状态，空值返回 ""
func (o *Order) ShipmentStateValue() string {
	if o == nil || o.ShipmentState == nil {
		return ""
	}
	return *o.ShipmentState
}

// IsPaidInFull 是否已付清（含多付）
func (o *Order) IsPaidInFull() bool {
	if o == nil {
		return false
	}
	return o.PaymentState == constants.PaymentStatePaid || o.PaymentState == constants.PaymentStateCreditOwed
}

// OutstandingBalance 待支付金额
func (o *Order) OutstandingBalance() Money {
	return o.Total.Minus(o.PaymentTotal)
}
