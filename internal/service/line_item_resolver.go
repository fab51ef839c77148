package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/repository"

	"github.com/shopspring/decimal"
)

// LineItemRequest 购物车中的一行
type LineItemRequest struct {
	VariantID          uint                       `json:"variant_id"`
	Quantity           int                        `json:"quantity"`
	RoleID             uint                       `json:"role_id,omitempty"`
	RoleCode           string                     `json:"role_code,omitempty"`
	CatalogCode        string                     `json:"catalog_code"`
	PersonalizedValues []models.PersonalizedValue `json:"personalized_values,omitempty"`
	IsAutoship         bool                       `json:"is_autoship,omitempty"`
}

// LineItemResolver 把购物车请求解析为已定价的行项目
type LineItemResolver struct {
	userRepo    repository.UserRepository
	catalogRepo repository.CatalogRepository
	volumeCodes map[string]string
}

// NewLineItemResolver 创建行项目解析器，volumeCodes 为业绩类型到佣金编码的映射
func NewLineItemResolver(userRepo repository.UserRepository, catalogRepo repository.CatalogRepository, volumeCodes map[string]string) *LineItemResolver {
	normalized := make(map[string]string, len(volumeCodes))
	for volumeType, code := range volumeCodes {
		normalized[strings.ToLower(strings.TrimSpace(volumeType))] = strings.ToUpper(strings.TrimSpace(code))
	}
	return &LineItemResolver{
		userRepo:    userRepo,
		catalogRepo: catalogRepo,
		volumeCodes: normalized,
	}
}

// Resolve 逐行解析角色、规格价格、业绩与个性化信息，行号按 10、20、30 递增
// owner 为订单所属用户，operator 为实际操作人（管理员代下单时不同）
func (r *LineItemResolver) Resolve(ctx context.Context, owner, operator *models.User, requests []LineItemRequest) ([]models.LineItem, error) {
	if owner == nil {
		return nil, ErrUserNotFound
	}
	if operator == nil {
		operator = owner
	}
	if len(requests) == 0 {
		return nil, withDetail(ErrInvalidLineItems, "line items are required")
	}
	items := make([]models.LineItem, 0, len(requests))
	for idx, req := range requests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item, err := r.resolveOne(owner, operator, req)
		if err != nil {
			return nil, err
		}
		item.LineNo = (idx + 1) * 10
		items = append(items, *item)
	}
	return items, nil
}

func (r *LineItemResolver) resolveOne(owner, operator *models.User, req LineItemRequest) (*models.LineItem, error) {
	if req.VariantID == 0 {
		return nil, ErrInvalidVariantID
	}
	if req.Quantity <= 0 {
		return nil, withDetail(ErrInvalidLineItems, "quantity of variant %d must be positive", req.VariantID)
	}
	role, err := r.resolveRole(owner, req)
	if err != nil {
		return nil, err
	}
	if !isAdminUser(operator) && !hasRole(owner, role.ID) {
		return nil, withDetail(ErrNoPermissionToGetVariantDetail, "role %s is not granted", role.Code)
	}

	catalogCode := strings.TrimSpace(req.CatalogCode)
	if catalogCode == "" {
		catalogCode = constants.CatalogCodeDefault
	}
	detail, err := r.catalogRepo.GetVariantDetail(role.ID, req.VariantID, catalogCode)
	if err != nil {
		return nil, fmt.Errorf("get variant detail: %w", err)
	}
	if detail == nil {
		return nil, withDetail(ErrInvalidVariantID, "variant %d is not available in catalog %s", req.VariantID, catalogCode)
	}

	personalized, err := attachPersonalizedNames(detail, req.PersonalizedValues)
	if err != nil {
		return nil, err
	}

	item := &models.LineItem{
		VariantID:          detail.VariantID,
		ProductID:          detail.ProductID,
		SKU:                detail.SKU,
		Name:               detail.Name,
		CatalogCode:        catalogCode,
		RoleID:             role.ID,
		Price:              detail.Price,
		RetailPrice:        detail.RetailPrice,
		Quantity:           req.Quantity,
		PersonalizedValues: personalized,
		IsAutoship:         req.IsAutoship,
		IsDiscountable:     detail.IsDiscountable,
		TaxCategoryID:      detail.TaxCategoryID,
		ShippingCategoryID: detail.ShippingCategoryID,
		CountOnHand:        detail.CountOnHand,
	}
	item.DTVolume = r.volumeOf(detail, "dt")
	item.FTVolume = r.volumeOf(detail, "ft")
	item.UVolume = r.volumeOf(detail, "u")
	item.QVolume = r.volumeOf(detail, "q")
	item.RVolume = r.volumeOf(detail, "r")
	return item, nil
}

// resolveRole 角色优先级：显式 ID > 显式编码 > 用户第一个角色
func (r *LineItemResolver) resolveRole(owner *models.User, req LineItemRequest) (*models.Role, error) {
	if req.RoleID != 0 {
		role, err := r.userRepo.GetRoleByID(req.RoleID)
		if err != nil {
			return nil, fmt.Errorf("get role: %w", err)
		}
		if role == nil {
			return nil, withDetail(ErrInvalidRoleID, "role %d not found", req.RoleID)
		}
		return role, nil
	}
	if code := strings.TrimSpace(req.RoleCode); code != "" {
		role, err := r.userRepo.GetRoleByCode(code)
		if err != nil {
			return nil, fmt.Errorf("get role: %w", err)
		}
		if role == nil {
			return nil, withDetail(ErrInvalidRoleCode, "role %s not found", code)
		}
		return role, nil
	}
	if len(owner.Roles) == 0 {
		return nil, withDetail(ErrInvalidRoleID, "user %d has no role", owner.ID)
	}
	role := owner.Roles[0]
	return &role, nil
}

// volumeOf 单件业绩，未配置映射或无佣金记录时为 0
func (r *LineItemResolver) volumeOf(detail *repository.VariantDetail, volumeType string) decimal.Decimal {
	code, ok := r.volumeCodes[volumeType]
	if !ok || code == "" {
		return decimal.Zero
	}
	volume, ok := detail.Commissions[code]
	if !ok {
		return decimal.Zero
	}
	return models.Round2(volume)
}

func attachPersonalizedNames(detail *repository.VariantDetail, values []models.PersonalizedValue) (models.PersonalizedValues, error) {
	if len(values) == 0 {
		return nil, nil
	}
	result := make(models.PersonalizedValues, 0, len(values))
	for _, value := range values {
		name, ok := detail.PersonalizedTypeName(value.TypeID)
		if !ok {
			return nil, withDetail(ErrInvalidPersonalizedValues, "personalized type %d is not defined for %s", value.TypeID, detail.SKU)
		}
		result = append(result, models.PersonalizedValue{
			TypeID: value.TypeID,
			Name:   name,
			Value:  strings.TrimSpace(value.Value),
		})
	}
	return result, nil
}

func isAdminUser(user *models.User) bool {
	if user == nil {
		return false
	}
	for _, role := range user.Roles {
		if role.IsAdmin || role.Code == constants.RoleCodeAdmin {
			return true
		}
	}
	return false
}

func hasRole(user *models.User, roleID uint) bool {
	if user == nil {
		return false
	}
	for _, role := range user.Roles {
		if role.ID == roleID {
			return true
		}
	}
	return false
}

func hasRoleCode(user *models.User, code string) bool {
	if user == nil {
		return false
	}
	for _, role := range user.Roles {
		if strings.EqualFold(role.Code, code) {
			return true
		}
	}
	return false
}
