package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User 用户表
type User struct {
	ID                 uint       `gorm:"primarykey" json:"id"`                                     // 主键
	Login              string     `gorm:"type:varchar(80);uniqueIndex;not null" json:"login"`       // 登录名
	Email              string     `gorm:"type:varchar(255);index;not null" json:"email"`            // 邮箱
	Status             string     `gorm:"type:varchar(24);not null;default:'active'" json:"status"` // 账号状态
	HomeAddressID      *uint      `json:"home_address_id,omitempty"`                                // 家庭地址
	ShipAddressID      *uint      `json:"ship_address_id,omitempty"`                                // 默认收货地址
	BillAddressID      *uint      `json:"bill_address_id,omitempty"`                                // 默认账单地址
	TokenVersion       uint64     `gorm:"not null;default:0" json:"-"`                              // Token 版本（用于全量失效）
	TokenInvalidBefore *time.Time `gorm:"index" json:"-"`                                           // 该时间点前签发的 Token 失效
	CreatedAt          time.Time  `gorm:"index" json:"created_at"`                                  // 创建时间
	UpdatedAt          time.Time  `json:"updated_at"`                                               // 更新时间

	Roles []Role `gorm:"many2many:users_roles;" json:"roles,omitempty"` // 角色
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// Role 角色（同时决定定价目录）
type Role struct {
	ID              uint   `gorm:"primarykey" json:"id"`
	Code            string `gorm:"type:varchar(16);uniqueIndex;not null" json:"code"`
	Name            string `gorm:"type:varchar(80);not null" json:"name"`
	IsAdmin         bool   `gorm:"not null;default:false" json:"is_admin"`
	DiscountAllowed bool   `gorm:"not null;default:false" json:"discount_allowed"`
}

// TableName 指定表名
func (Role) TableName() string {
	return "roles"
}

// Distributor 经销商档案
type Distributor struct {
	ID             uint            `gorm:"primarykey" json:"id"`                                         // 主键
	UserID         uint            `gorm:"uniqueIndex;not null" json:"user_id"`                          // 用户ID
	TaxExempt      bool            `gorm:"not null;default:false" json:"tax_exempt"`                     // 免税标记
	RankTier       int             `gorm:"not null;default:0" json:"rank_tier"`                          // 当前等级档位
	LifetimeRank   int             `gorm:"not null;default:0" json:"lifetime_rank"`                      // 历史最高等级
	PersonalVolume decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"personal_volume"` // 近期个人业绩
	RenewalDate    *time.Time      `json:"renewal_date"`                                                 // 会员续期日
	Active         bool            `gorm:"not null;default:false" json:"active"`                         // 是否激活
	CreatedAt      time.Time       `json:"created_at"`                                                   // 创建时间
	UpdatedAt      time.Time       `json:"updated_at"`                                                   // 更新时间
}

// TableName 指定表名
func (Distributor) TableName() string {
	return "distributors"
}

// BusinessCenter 经销商业务中心
type BusinessCenter struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	DistributorID uint      `gorm:"index;not null" json:"distributor_id"`
	OrderID       uint      `gorm:"uniqueIndex;not null" json:"order_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName 指定表名
func (BusinessCenter) TableName() string {
	return "business_centers"
}

// Address 地址
type Address struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"index;not null;default:0" json:"user_id"`
	Firstname string    `gorm:"type:varchar(80)" json:"firstname"`
	Lastname  string    `gorm:"type:varchar(80)" json:"lastname"`
	Address1  string    `gorm:"type:varchar(255)" json:"address1"`
	Address2  string    `gorm:"type:varchar(255)" json:"address2,omitempty"`
	City      string    `gorm:"type:varchar(80)" json:"city"`
	Zipcode   string    `gorm:"type:varchar(16)" json:"zipcode"`
	Phone     string    `gorm:"type:varchar(32)" json:"phone"`
	CountryID uint      `gorm:"index;not null" json:"country_id"`
	StateID   *uint     `gorm:"index" json:"state_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (Address) TableName() string {
	return "addresses"
}
