package service

import (
	"context"
	"sort"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/repository"
)

// OrderListInput 订单列表查询
type OrderListInput struct {
	OperatorID uint
	UserID     uint // 为空时查询操作人自己的订单
	State      string
	Page       int
	PageSize   int
}

// GetOrder 订单详情，归属人或具备读权限的操作人可见
func (s *OrderService) GetOrder(ctx context.Context, orderID, operatorID uint) (*models.Order, error) {
	order, _, err := s.loadOrder(ctx, orderID, operatorID, OrderActionRead)
	return order, err
}

// ListOrders 分页查询订单
func (s *OrderService) ListOrders(ctx context.Context, input OrderListInput) ([]models.Order, int64, error) {
	userID := input.UserID
	if userID == 0 {
		userID = input.OperatorID
	}
	if userID != input.OperatorID {
		if _, _, err := s.loadActors(ctx, userID, input.OperatorID, OrderActionRead); err != nil {
			return nil, 0, err
		}
	}
	return s.orderRepo.ListByUser(repository.OrderListFilter{
		Page:     input.Page,
		PageSize: input.PageSize,
		UserID:   userID,
		State:    input.State,
	})
}

// ListStateEvents 订单及其退货申请的状态变更记录，按时间排序
func (s *OrderService) ListStateEvents(ctx context.Context, orderID, operatorID uint) ([]models.StateEvent, error) {
	order, _, err := s.loadOrder(ctx, orderID, operatorID, OrderActionRead)
	if err != nil {
		return nil, err
	}
	events, err := s.eventRepo.ListByStateful(constants.StatefulTypeOrder, order.ID)
	if err != nil {
		return nil, err
	}
	ras, err := s.raRepo.ListByOrder(order.ID)
	if err != nil {
		return nil, err
	}
	for _, ra := range ras {
		raEvents, err := s.eventRepo.ListByStateful(constants.StatefulTypeReturnAuthorization, ra.ID)
		if err != nil {
			return nil, err
		}
		events = append(events, raEvents...)
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

// ListReturnAuthorizations 订单的退货申请
func (s *OrderService) ListReturnAuthorizations(ctx context.Context, orderID, operatorID uint) ([]models.ReturnAuthorization, error) {
	order, _, err := s.loadOrder(ctx, orderID, operatorID, OrderActionRead)
	if err != nil {
		return nil, err
	}
	return s.raRepo.ListByOrder(order.ID)
}
