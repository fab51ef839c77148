package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository 用户/角色/经销商/地址数据访问接口
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	ListRoles(userID uint) ([]models.Role, error)
	GetRoleByID(id uint) (*models.Role, error)
	GetRoleByCode(code string) (*models.Role, error)
	AddRole(userID, roleID uint) error
	UpdateStatus(userID uint, status string) error
	BumpTokenVersion(userID uint, invalidBefore time.Time) error
	GetDistributorByUserID(userID uint) (*models.Distributor, error)
	UpdateDistributor(id uint, updates map[string]interface{}) error
	CreateBusinessCenter(center *models.BusinessCenter) error
	GetAddressByID(id uint) (*models.Address, error)
	CreateAddress(address *models.Address) error
	DeleteAddresses(ids []uint) error
}

// GormUserRepository GORM 实现
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// GetByID 根据 ID 获取用户（含角色）
func (r *GormUserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.Preload("Roles", func(db *gorm.DB) *gorm.DB { return db.Order("roles.id ASC") }).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// ListRoles 获取用户角色，按角色 ID 升序
func (r *GormUserRepository) ListRoles(userID uint) ([]models.Role, error) {
	var roles []models.Role
	err := r.db.Model(&models.Role{}).
		Joins("JOIN users_roles ur ON ur.role_id = roles.id").
		Where("ur.user_id = ?", userID).
		Order("roles.id ASC").
		Find(&roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRoleByID 根据 ID 获取角色
func (r *GormUserRepository) GetRoleByID(id uint) (*models.Role, error) {
	var role models.Role
	if err := r.db.First(&role, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

// GetRoleByCode 根据编码获取角色
func (r *GormUserRepository) GetRoleByCode(code string) (*models.Role, error) {
	var role models.Role
	if err := r.db.Where("code = ?", strings.TrimSpace(code)).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

// AddRole 为用户追加角色（已存在则忽略）
func (r *GormUserRepository) AddRole(userID, roleID uint) error {
	row := map[string]interface{}{"user_id": userID, "role_id": roleID}
	return r.db.Table("users_roles").Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
}

// UpdateStatus 更新用户状态
func (r *GormUserRepository) UpdateStatus(userID uint, status string) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}).Error
}

// BumpTokenVersion 使该用户已签发的 Token 全部失效
func (r *GormUserRepository) BumpTokenVersion(userID uint, invalidBefore time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"token_version":        gorm.Expr("token_version + 1"),
		"token_invalid_before": invalidBefore,
		"updated_at":           time.Now(),
	}).Error
}

// GetDistributorByUserID 获取用户的经销商档案
func (r *GormUserRepository) GetDistributorByUserID(userID uint) (*models.Distributor, error) {
	var distributor models.Distributor
	if err := r.db.Where("user_id = ?", userID).First(&distributor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &distributor, nil
}

// UpdateDistributor 更新经销商档案
func (r *GormUserRepository) UpdateDistributor(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now()
	return r.db.Model(&models.Distributor{}).Where("id = ?", id).Updates(updates).Error
}

// CreateBusinessCenter 创建业务中心（同一订单只创建一次）
func (r *GormUserRepository) CreateBusinessCenter(center *models.BusinessCenter) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(center).Error
}

// GetAddressByID 根据 ID 获取地址
func (r *GormUserRepository) GetAddressByID(id uint) (*models.Address, error) {
	var address models.Address
	if err := r.db.First(&address, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &address, nil
}

// CreateAddress 创建地址
func (r *GormUserRepository) CreateAddress(address *models.Address) error {
	return r.db.Create(address).Error
}

// DeleteAddresses 删除地址（下单失败时回收新建地址）
func (r *GormUserRepository) DeleteAddresses(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Where("id IN ?", ids).Delete(&models.Address{}).Error
}
