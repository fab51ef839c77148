package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GiftCardRepository 礼品卡仓储接口
type GiftCardRepository interface {
	Create(card *models.GiftCard) error
	GetByID(id uint) (*models.GiftCard, error)
	GetByCode(code string) (*models.GiftCard, error)
	GetByCodeForUpdate(code string) (*models.GiftCard, error)
	Deduct(id uint, amount decimal.Decimal) (bool, error)
	Restore(id uint, amount decimal.Decimal) error
	ActivateByOrder(orderID uint, activatedAt time.Time) (int64, error)
	WithTx(tx *gorm.DB) *GormGiftCardRepository
}

// GormGiftCardRepository GORM 礼品卡仓储实现
type GormGiftCardRepository struct {
	db *gorm.DB
}

// NewGiftCardRepository 创建礼品卡仓储
func NewGiftCardRepository(db *gorm.DB) *GormGiftCardRepository {
	return &GormGiftCardRepository{db: db}
}

// WithTx 绑定事务
func (r *GormGiftCardRepository) WithTx(tx *gorm.DB) *GormGiftCardRepository {
	if tx == nil {
		return r
	}
	return &GormGiftCardRepository{db: tx}
}

func normalizeGiftCardCode(code string) string {
	return strings.TrimSpace(strings.ToUpper(code))
}

// Create 创建礼品卡
func (r *GormGiftCardRepository) Create(card *models.GiftCard) error {
	card.Code = normalizeGiftCardCode(card.Code)
	return r.db.Create(card).Error
}

// GetByID 根据 ID 查询礼品卡
func (r *GormGiftCardRepository) GetByID(id uint) (*models.GiftCard, error) {
	if id == 0 {
		return nil, nil
	}
	var card models.GiftCard
	if err := r.db.First(&card, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// GetByCode 根据卡号查询礼品卡
func (r *GormGiftCardRepository) GetByCode(code string) (*models.GiftCard, error) {
	code = normalizeGiftCardCode(code)
	if code == "" {
		return nil, nil
	}
	var card models.GiftCard
	if err := r.db.Where("code = ?", code).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// GetByCodeForUpdate 根据卡号加锁查询礼品卡
func (r *GormGiftCardRepository) GetByCodeForUpdate(code string) (*models.GiftCard, error) {
	code = normalizeGiftCardCode(code)
	if code == "" {
		return nil, nil
	}
	var card models.GiftCard
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).
		First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// Deduct 扣减余额，余额不足时返回 false
func (r *GormGiftCardRepository) Deduct(id uint, amount decimal.Decimal) (bool, error) {
	result := r.db.Model(&models.GiftCard{}).
		Where("id = ? AND active = ? AND balance >= ?", id, true, models.Round2(amount)).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance - ?", models.Round2(amount)),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Restore 退回余额
func (r *GormGiftCardRepository) Restore(id uint, amount decimal.Decimal) error {
	return r.db.Model(&models.GiftCard{}).Where("id = ?", id).Updates(map[string]interface{}{
		"balance":    gorm.Expr("balance + ?", models.Round2(amount)),
		"updated_at": time.Now(),
	}).Error
}

// ActivateByOrder 激活订单购买的礼品卡
func (r *GormGiftCardRepository) ActivateByOrder(orderID uint, activatedAt time.Time) (int64, error) {
	result := r.db.Model(&models.GiftCard{}).
		Where("order_id = ? AND active = ?", orderID, false).
		Updates(map[string]interface{}{
			"active":       true,
			"activated_at": activatedAt,
			"updated_at":   activatedAt,
		})
	return result.RowsAffected, result.Error
}
