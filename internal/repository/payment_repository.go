package repository

import (
	"errors"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository 支付记录数据访问接口
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByID(id uint) (*models.Payment, error)
	UpdateState(id uint, state, responseCode string) error
	ListByOrder(orderID uint) ([]models.Payment, error)
	CreateCreditcard(card *models.Creditcard) error
	GetCreditcard(id uint) (*models.Creditcard, error)
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create 创建支付记录
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Omit("PaymentMethod").Create(payment).Error
}

// GetByID 根据 ID 获取支付记录
func (r *GormPaymentRepository) GetByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Preload("PaymentMethod").First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// UpdateState 更新支付状态与网关流水号（金额与支付方式不可变）
func (r *GormPaymentRepository) UpdateState(id uint, state, responseCode string) error {
	updates := map[string]interface{}{
		"state":      state,
		"updated_at": time.Now(),
	}
	if responseCode != "" {
		updates["response_code"] = responseCode
	}
	return r.db.Model(&models.Payment{}).Where("id = ?", id).Updates(updates).Error
}

// ListByOrder 获取订单支付记录
func (r *GormPaymentRepository) ListByOrder(orderID uint) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.Preload("PaymentMethod").Where("order_id = ?", orderID).Order("id ASC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// CreateCreditcard 保存信用卡令牌
func (r *GormPaymentRepository) CreateCreditcard(card *models.Creditcard) error {
	return r.db.Create(card).Error
}

// GetCreditcard 获取信用卡
func (r *GormPaymentRepository) GetCreditcard(id uint) (*models.Creditcard, error) {
	var card models.Creditcard
	if err := r.db.First(&card, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}
