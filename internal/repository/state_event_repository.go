package repository

import (
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"gorm.io/gorm"
)

// StateEventRepository 状态事件数据访问接口（只追加）
type StateEventRepository interface {
	Create(event *models.StateEvent) error
	ListByStateful(statefulType string, statefulID uint) ([]models.StateEvent, error)
	WithTx(tx *gorm.DB) *GormStateEventRepository
}

// GormStateEventRepository GORM 实现
type GormStateEventRepository struct {
	db *gorm.DB
}

// NewStateEventRepository 创建状态事件仓库
func NewStateEventRepository(db *gorm.DB) *GormStateEventRepository {
	return &GormStateEventRepository{db: db}
}

// WithTx 绑定事务
func (r *GormStateEventRepository) WithTx(tx *gorm.DB) *GormStateEventRepository {
	if tx == nil {
		return r
	}
	return &GormStateEventRepository{db: tx}
}

// Create 追加状态事件
func (r *GormStateEventRepository) Create(event *models.StateEvent) error {
	return r.db.Create(event).Error
}

// ListByStateful 按主体获取状态事件
func (r *GormStateEventRepository) ListByStateful(statefulType string, statefulID uint) ([]models.StateEvent, error) {
	var events []models.StateEvent
	err := r.db.Where("stateful_type = ? AND stateful_id = ?", statefulType, statefulID).
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
