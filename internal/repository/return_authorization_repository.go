package repository

import (
	"errors"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"gorm.io/gorm"
)

// ReturnAuthorizationRepository 退货授权数据访问接口
type ReturnAuthorizationRepository interface {
	Create(ra *models.ReturnAuthorization) error
	GetByID(id uint) (*models.ReturnAuthorization, error)
	UpdateState(id uint, state string) error
	ListByOrder(orderID uint) ([]models.ReturnAuthorization, error)
	WithTx(tx *gorm.DB) *GormReturnAuthorizationRepository
}

// GormReturnAuthorizationRepository GORM 实现
type GormReturnAuthorizationRepository struct {
	db *gorm.DB
}

// NewReturnAuthorizationRepository 创建退货授权仓库
func NewReturnAuthorizationRepository(db *gorm.DB) *GormReturnAuthorizationRepository {
	return &GormReturnAuthorizationRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReturnAuthorizationRepository) WithTx(tx *gorm.DB) *GormReturnAuthorizationRepository {
	if tx == nil {
		return r
	}
	return &GormReturnAuthorizationRepository{db: tx}
}

// Create 创建退货授权
func (r *GormReturnAuthorizationRepository) Create(ra *models.ReturnAuthorization) error {
	return r.db.Create(ra).Error
}

// GetByID 根据 ID 获取退货授权
func (r *GormReturnAuthorizationRepository) GetByID(id uint) (*models.ReturnAuthorization, error) {
	var ra models.ReturnAuthorization
	if err := r.db.First(&ra, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ra, nil
}

// UpdateState 更新退货授权状态
func (r *GormReturnAuthorizationRepository) UpdateState(id uint, state string) error {
	return r.db.Model(&models.ReturnAuthorization{}).Where("id = ?", id).Updates(map[string]interface{}{
		"state":      state,
		"updated_at": time.Now(),
	}).Error
}

// ListByOrder 获取订单的退货授权
func (r *GormReturnAuthorizationRepository) ListByOrder(orderID uint) ([]models.ReturnAuthorization, error) {
	var items []models.ReturnAuthorization
	if err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
