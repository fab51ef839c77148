package repository

import (
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"gorm.io/gorm"
)

// AdjustmentRepository 调整项数据访问接口
type AdjustmentRepository interface {
	Create(adjustment *models.Adjustment) error
	CreateBatch(orderID uint, adjustments []models.Adjustment) error
	ListByOrder(orderID uint) ([]models.Adjustment, error)
	ReplaceForOrder(orderID uint, adjustments []models.Adjustment) error
	WithTx(tx *gorm.DB) *GormAdjustmentRepository
}

// GormAdjustmentRepository GORM 实现
type GormAdjustmentRepository struct {
	db *gorm.DB
}

// NewAdjustmentRepository 创建调整项仓库
func NewAdjustmentRepository(db *gorm.DB) *GormAdjustmentRepository {
	return &GormAdjustmentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAdjustmentRepository) WithTx(tx *gorm.DB) *GormAdjustmentRepository {
	if tx == nil {
		return r
	}
	return &GormAdjustmentRepository{db: tx}
}

// Create 写入单条调整项
func (r *GormAdjustmentRepository) Create(adjustment *models.Adjustment) error {
	return r.db.Create(adjustment).Error
}

// CreateBatch 批量写入调整项，保留传入顺序
func (r *GormAdjustmentRepository) CreateBatch(orderID uint, adjustments []models.Adjustment) error {
	if len(adjustments) == 0 {
		return nil
	}
	for i := range adjustments {
		adjustments[i].OrderID = orderID
		adjustments[i].Position = i + 1
	}
	return r.db.Create(&adjustments).Error
}

// ListByOrder 获取订单调整项
func (r *GormAdjustmentRepository) ListByOrder(orderID uint) ([]models.Adjustment, error) {
	var adjustments []models.Adjustment
	if err := r.db.Where("order_id = ?", orderID).Order("position ASC, id ASC").Find(&adjustments).Error; err != nil {
		return nil, err
	}
	return adjustments, nil
}

// ReplaceForOrder 整体替换订单调整项
func (r *GormAdjustmentRepository) ReplaceForOrder(orderID uint, adjustments []models.Adjustment) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).Delete(&models.Adjustment{}).Error; err != nil {
			return err
		}
		return (&GormAdjustmentRepository{db: tx}).CreateBatch(orderID, adjustments)
	})
}
