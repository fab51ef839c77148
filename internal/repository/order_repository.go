package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page     int
	PageSize int
	UserID   uint
	State    string
}

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetByNumber(number string) (*models.Order, error)
	GetByClientRequestID(userID uint, clientRequestID string) (*models.Order, error)
	ExistsByClientRequestID(userID uint, clientRequestID string) (bool, error)
	Update(id uint, updates map[string]interface{}) error
	DeleteCascade(id uint) error
	ListByUser(filter OrderListFilter) ([]models.Order, int64, error)
	SumCompletedTotalSince(userID uint, since time.Time) (decimal.Decimal, error)
	ListBoughtVariantIDs(userID uint) ([]uint, error)
	Raw(dest interface{}, sql string, args ...interface{}) error
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

func (r *GormOrderRepository) withAssociations(query *gorm.DB) *gorm.DB {
	return query.
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Preload("Adjustments", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Payments.PaymentMethod").
		Preload("Shipments")
}

// Create 创建订单行（不含关联）
func (r *GormOrderRepository) Create(order *models.Order) error {
	return r.db.Omit("LineItems", "Adjustments", "Payments", "Shipments").Create(order).Error
}

// GetByID 根据 ID 获取订单（含行项目、调整项、支付、发货单）
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := r.withAssociations(r.db).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByNumber 根据订单号获取订单
func (r *GormOrderRepository) GetByNumber(number string) (*models.Order, error) {
	var order models.Order
	if err := r.withAssociations(r.db).Where("number = ?", strings.TrimSpace(number)).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByClientRequestID 根据用户与客户端幂等标识获取订单
func (r *GormOrderRepository) GetByClientRequestID(userID uint, clientRequestID string) (*models.Order, error) {
	clientRequestID = strings.TrimSpace(clientRequestID)
	if clientRequestID == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.withAssociations(r.db).Where("user_id = ? AND client_request_id = ?", userID, clientRequestID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ExistsByClientRequestID 幂等标识是否已被该用户使用
func (r *GormOrderRepository) ExistsByClientRequestID(userID uint, clientRequestID string) (bool, error) {
	clientRequestID = strings.TrimSpace(clientRequestID)
	if clientRequestID == "" {
		return false, nil
	}
	var count int64
	if err := r.db.Model(&models.Order{}).Where("user_id = ? AND client_request_id = ?", userID, clientRequestID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update 按字段更新订单
func (r *GormOrderRepository) Update(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now()
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

// DeleteCascade 删除订单及其全部从属记录
func (r *GormOrderRepository) DeleteCascade(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		dependents := []interface{}{
			&models.InventoryUnit{},
			&models.Payment{},
			&models.Adjustment{},
			&models.Shipment{},
			&models.LineItem{},
		}
		for _, model := range dependents {
			if err := tx.Where("order_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Order{}, id).Error
	})
}

// ListByUser 分页查询用户订单
func (r *GormOrderRepository) ListByUser(filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.Model(&models.Order{}).Where("user_id = ?", filter.UserID)
	if state := strings.TrimSpace(filter.State); state != "" {
		query = query.Where("state = ?", state)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []models.Order
	query = applyPagination(query.Order("id DESC"), filter.Page, filter.PageSize)
	if err := query.Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// SumCompletedTotalSince 统计用户某时间点后已完成订单的总额
func (r *GormOrderRepository) SumCompletedTotalSince(userID uint, since time.Time) (decimal.Decimal, error) {
	var row struct {
		Total decimal.NullDecimal
	}
	err := r.Raw(&row,
		"SELECT COALESCE(SUM(total), 0) AS total FROM orders WHERE user_id = ? AND state = ? AND completed_at >= ?",
		userID, "complete", since,
	)
	if err != nil {
		return decimal.Zero, err
	}
	if !row.Total.Valid {
		return decimal.Zero, nil
	}
	return row.Total.Decimal, nil
}

// ListBoughtVariantIDs 用户已购买过的规格
func (r *GormOrderRepository) ListBoughtVariantIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.LineItem{}).
		Distinct("line_items.variant_id").
		Joins("JOIN orders ON orders.id = line_items.order_id").
		Where("orders.user_id = ? AND orders.state IN ?", userID, []string{"complete", "awaiting_return", "returned"}).
		Pluck("line_items.variant_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Raw 参数化原生查询（报表/聚合）
func (r *GormOrderRepository) Raw(dest interface{}, sql string, args ...interface{}) error {
	return r.db.Raw(sql, args...).Scan(dest).Error
}
