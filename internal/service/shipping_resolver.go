package service

import (
	"fmt"

	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/repository"
)

// ShippingResolver 根据地址确定可用配送方式
type ShippingResolver struct {
	refRepo repository.ReferenceRepository
}

// NewShippingResolver 创建配送解析器
func NewShippingResolver(refRepo repository.ReferenceRepository) *ShippingResolver {
	return &ShippingResolver{refRepo: refRepo}
}

// ZoneIDsOfAddress 地址所属的区域
func (r *ShippingResolver) ZoneIDsOfAddress(address *models.Address) ([]uint, error) {
	if address == nil || address.CountryID == 0 {
		return nil, ErrInvalidShippingAddress
	}
	ids, err := r.refRepo.GetZoneIDsByCountryAndState(address.CountryID, address.StateID)
	if err != nil {
		return nil, fmt.Errorf("get zones of address: %w", err)
	}
	return ids, nil
}

// AvailableShippingMethods 地址所在区域内可用的配送方式
func (r *ShippingResolver) AvailableShippingMethods(address *models.Address) ([]models.ShippingMethod, error) {
	zoneIDs, err := r.ZoneIDsOfAddress(address)
	if err != nil {
		return nil, err
	}
	methods, err := r.refRepo.ListShippingMethodsInZones(zoneIDs)
	if err != nil {
		return nil, fmt.Errorf("list shipping methods: %w", err)
	}
	return methods, nil
}

// SelectDefaultShippingMethod 默认方式优先级：is_default > 第一个可改地址的方式 > 第一个
func SelectDefaultShippingMethod(methods []models.ShippingMethod) *models.ShippingMethod {
	if len(methods) == 0 {
		return nil
	}
	for i := range methods {
		if methods[i].IsDefault {
			return &methods[i]
		}
	}
	for i := range methods {
		if methods[i].ShippingAddressChangeable {
			return &methods[i]
		}
	}
	return &methods[0]
}

// ResolveShippingMethod 解析订单配送方式；未指定时按默认策略选择
// homeCountryID 为订单的归属国家，用于校验自提方式
func (r *ShippingResolver) ResolveShippingMethod(methodID uint, address *models.Address, homeCountryID uint, autoship bool) (*models.ShippingMethod, []models.ShippingMethod, error) {
	available, err := r.AvailableShippingMethods(address)
	if err != nil {
		return nil, nil, err
	}
	if methodID == 0 {
		candidates := available
		if autoship {
			candidates = filterChangeable(available)
		}
		method := SelectDefaultShippingMethod(candidates)
		if method == nil {
			return nil, available, withDetail(ErrShippingMethodIsNotAvailable, "no shipping method serves this address")
		}
		return method, available, nil
	}
	method, err := r.refRepo.GetShippingMethodByID(methodID)
	if err != nil {
		return nil, available, fmt.Errorf("get shipping method: %w", err)
	}
	if method == nil || !method.Active {
		return nil, available, withDetail(ErrInvalidShippingMethodID, "shipping method %d not found", methodID)
	}
	if autoship && !method.ShippingAddressChangeable {
		return nil, available, withDetail(ErrShippingMethodIsNotAvailable, "pickup is not available for autoship")
	}
	if err := r.CheckAvailability(method, available, homeCountryID); err != nil {
		return nil, available, err
	}
	return method, available, nil
}

// CheckAvailability 可改地址的方式必须在区域可用列表中；自提方式要求归属国可发往任一自提国家
func (r *ShippingResolver) CheckAvailability(method *models.ShippingMethod, available []models.ShippingMethod, homeCountryID uint) error {
	if method == nil {
		return ErrInvalidShippingMethodID
	}
	if method.ShippingAddressChangeable {
		for _, candidate := range available {
			if candidate.ID == method.ID {
				return nil
			}
		}
		return withDetail(ErrShippingMethodIsNotAvailable, "%s does not serve this address", method.Name)
	}
	for _, pickupCountryID := range method.PickupCountryIDs {
		ok, err := r.refRepo.CanShip(homeCountryID, pickupCountryID)
		if err != nil {
			return fmt.Errorf("check country shipment: %w", err)
		}
		if ok {
			return nil
		}
	}
	return withDetail(ErrShippingMethodIsNotAvailable, "%s pickup is not reachable from home country", method.Name)
}

func filterChangeable(methods []models.ShippingMethod) []models.ShippingMethod {
	result := make([]models.ShippingMethod, 0, len(methods))
	for _, method := range methods {
		if method.ShippingAddressChangeable {
			result = append(result, method)
		}
	}
	return result
}
