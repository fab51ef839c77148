package repository

import (
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"gorm.io/gorm"
)

// LineItemRepository 行项目数据访问接口
type LineItemRepository interface {
	CreateBatch(orderID uint, items []models.LineItem) error
	ListByOrder(orderID uint) ([]models.LineItem, error)
	ReplaceForOrder(orderID uint, items []models.LineItem) error
	IncrementReturned(id uint, quantity int) error
	WithTx(tx *gorm.DB) *GormLineItemRepository
}

// GormLineItemRepository GORM 实现
type GormLineItemRepository struct {
	db *gorm.DB
}

// NewLineItemRepository 创建行项目仓库
func NewLineItemRepository(db *gorm.DB) *GormLineItemRepository {
	return &GormLineItemRepository{db: db}
}

// WithTx 绑定事务
func (r *GormLineItemRepository) WithTx(tx *gorm.DB) *GormLineItemRepository {
	if tx == nil {
		return r
	}
	return &GormLineItemRepository{db: tx}
}

// CreateBatch 批量写入行项目
func (r *GormLineItemRepository) CreateBatch(orderID uint, items []models.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].OrderID = orderID
	}
	return r.db.Create(&items).Error
}

// ListByOrder 按行号获取订单行项目
func (r *GormLineItemRepository) ListByOrder(orderID uint) ([]models.LineItem, error) {
	var items []models.LineItem
	if err := r.db.Where("order_id = ?", orderID).Order("line_no ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ReplaceForOrder 整体替换订单行项目
func (r *GormLineItemRepository) ReplaceForOrder(orderID uint, items []models.LineItem) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).Delete(&models.LineItem{}).Error; err != nil {
			return err
		}
		return (&GormLineItemRepository{db: tx}).CreateBatch(orderID, items)
	})
}

// IncrementReturned 累加已退货数量
func (r *GormLineItemRepository) IncrementReturned(id uint, quantity int) error {
	return r.db.Model(&models.LineItem{}).Where("id = ?", id).
		UpdateColumn("returned_quantity", gorm.Expr("returned_quantity + ?", quantity)).Error
}
