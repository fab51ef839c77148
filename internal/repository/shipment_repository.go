package repository

import (
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"gorm.io/gorm"
)

// ShipmentRepository 发货单与库存单元数据访问接口
type ShipmentRepository interface {
	Create(shipment *models.Shipment) error
	ListByOrder(orderID uint) ([]models.Shipment, error)
	UpdateByOrder(orderID uint, updates map[string]interface{}) error
	CreateInventoryUnits(units []models.InventoryUnit) error
	CountInventoryUnits(orderID uint) (int64, error)
	UpdateInventoryUnitsState(orderID uint, state string) error
	WithTx(tx *gorm.DB) *GormShipmentRepository
}

// GormShipmentRepository GORM 实现
type GormShipmentRepository struct {
	db *gorm.DB
}

// NewShipmentRepository 创建发货单仓库
func NewShipmentRepository(db *gorm.DB) *GormShipmentRepository {
	return &GormShipmentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormShipmentRepository) WithTx(tx *gorm.DB) *GormShipmentRepository {
	if tx == nil {
		return r
	}
	return &GormShipmentRepository{db: tx}
}

// Create 创建发货单
func (r *GormShipmentRepository) Create(shipment *models.Shipment) error {
	return r.db.Create(shipment).Error
}

// ListByOrder 获取订单发货单
func (r *GormShipmentRepository) ListByOrder(orderID uint) ([]models.Shipment, error) {
	var shipments []models.Shipment
	if err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&shipments).Error; err != nil {
		return nil, err
	}
	return shipments, nil
}

// UpdateByOrder 批量更新订单的发货单
func (r *GormShipmentRepository) UpdateByOrder(orderID uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now()
	return r.db.Model(&models.Shipment{}).Where("order_id = ?", orderID).Updates(updates).Error
}

// CreateInventoryUnits 批量写入库存单元
func (r *GormShipmentRepository) CreateInventoryUnits(units []models.InventoryUnit) error {
	if len(units) == 0 {
		return nil
	}
	return r.db.Create(&units).Error
}

// CountInventoryUnits 统计订单已分配的库存单元
func (r *GormShipmentRepository) CountInventoryUnits(orderID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.InventoryUnit{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateInventoryUnitsState 更新订单全部库存单元状态
func (r *GormShipmentRepository) UpdateInventoryUnitsState(orderID uint, state string) error {
	return r.db.Model(&models.InventoryUnit{}).Where("order_id = ?", orderID).Update("state", state).Error
}
