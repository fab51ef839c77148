package service

import (
	"context"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/metrics"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStates 订单三元状态
type OrderStates struct {
	State         string
	PaymentState  string
	ShipmentState *string
}

func statesOf(order *models.Order) OrderStates {
	return OrderStates{
		State:         order.State,
		PaymentState:  order.PaymentState,
		ShipmentState: order.ShipmentState,
	}
}

// WithState 返回修改主状态后的副本
func (s OrderStates) WithState(state string) OrderStates {
	s.State = state
	return s
}

// WithPaymentState 返回修改支付状态后的副本
func (s OrderStates) WithPaymentState(state string) OrderStates {
	s.PaymentState = state
	return s
}

// WithShipmentState 返回修改发货状态后的副本
func (s OrderStates) WithShipmentState(state string) OrderStates {
	s.ShipmentState = stringPtr(state)
	return s
}

// OrderStateMachine 订单状态写入，每次实际变化都追加一条状态事件
type OrderStateMachine struct {
	db        *gorm.DB
	orderRepo repository.OrderRepository
	eventRepo repository.StateEventRepository
	raRepo    repository.ReturnAuthorizationRepository
	metrics   *metrics.Metrics
}

// NewOrderStateMachine 创建状态机
func NewOrderStateMachine(db *gorm.DB, orderRepo repository.OrderRepository, eventRepo repository.StateEventRepository, raRepo repository.ReturnAuthorizationRepository, m *metrics.Metrics) *OrderStateMachine {
	return &OrderStateMachine{
		db:        db,
		orderRepo: orderRepo,
		eventRepo: eventRepo,
		raRepo:    raRepo,
		metrics:   m,
	}
}

// Apply 在同一事务内写入状态字段、附加字段与状态事件，提交后同步内存中的订单
func (m *OrderStateMachine) Apply(ctx context.Context, order *models.Order, next OrderStates, userID uint, extra map[string]interface{}) ([]models.StateEvent, error) {
	var events []models.StateEvent
	err := m.db.Transaction(func(tx *gorm.DB) error {
		var err error
		events, err = m.ApplyTx(tx, order, next, userID, extra)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.commit(ctx, order, next, events)
	return events, nil
}

// ApplyTx 在调用方事务内写入，不修改内存中的订单
func (m *OrderStateMachine) ApplyTx(tx *gorm.DB, order *models.Order, next OrderStates, userID uint, extra map[string]interface{}) ([]models.StateEvent, error) {
	events, updates := diffStates(order, next, userID)
	for key, value := range extra {
		updates[key] = value
	}
	if len(updates) == 0 {
		return nil, nil
	}
	if err := m.orderRepo.WithTx(tx).Update(order.ID, updates); err != nil {
		return nil, err
	}
	eventRepo := m.eventRepo.WithTx(tx)
	for i := range events {
		if err := eventRepo.Create(&events[i]); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func (m *OrderStateMachine) commit(ctx context.Context, order *models.Order, next OrderStates, events []models.StateEvent) {
	order.State = next.State
	order.PaymentState = next.PaymentState
	order.ShipmentState = next.ShipmentState
	for _, event := range events {
		m.metrics.RecordStateEvent(ctx, event.Name, event.NextState)
	}
}

func diffStates(order *models.Order, next OrderStates, userID uint) ([]models.StateEvent, map[string]interface{}) {
	now := time.Now()
	updates := make(map[string]interface{})
	var events []models.StateEvent
	record := func(name, previous, current string) {
		events = append(events, models.StateEvent{
			StatefulType:  constants.StatefulTypeOrder,
			StatefulID:    order.ID,
			Name:          name,
			PreviousState: previous,
			NextState:     current,
			UserID:        userID,
			CreatedAt:     now,
		})
	}
	if order.State != next.State {
		updates["state"] = next.State
		record(constants.StateEventOrder, order.State, next.State)
	}
	if order.PaymentState != next.PaymentState {
		updates["payment_state"] = next.PaymentState
		record(constants.StateEventPayment, order.PaymentState, next.PaymentState)
	}
	previousShipment := derefString(order.ShipmentState)
	nextShipment := derefString(next.ShipmentState)
	if previousShipment != nextShipment {
		updates["shipment_state"] = next.ShipmentState
		record(constants.StateEventShipment, previousShipment, nextShipment)
	}
	return events, updates
}

// TransitionReturnAuthorization 退货授权状态变更
func (m *OrderStateMachine) TransitionReturnAuthorization(tx *gorm.DB, ra *models.ReturnAuthorization, next string, userID uint) (*models.StateEvent, error) {
	if ra.State == next {
		return nil, nil
	}
	if err := m.raRepo.WithTx(tx).UpdateState(ra.ID, next); err != nil {
		return nil, err
	}
	event := &models.StateEvent{
		StatefulType:  constants.StatefulTypeReturnAuthorization,
		StatefulID:    ra.ID,
		Name:          constants.StateEventReturnAuthorization,
		PreviousState: ra.State,
		NextState:     next,
		UserID:        userID,
		CreatedAt:     time.Now(),
	}
	if err := m.eventRepo.WithTx(tx).Create(event); err != nil {
		return nil, err
	}
	ra.State = next
	return event, nil
}

// DerivePaymentState 仅由 payment_total 与 total 的比较决定
func DerivePaymentState(paymentTotal, total decimal.Decimal) string {
	paymentTotal = models.Round2(paymentTotal)
	total = models.Round2(total)
	switch paymentTotal.Cmp(total) {
	case 0:
		return constants.PaymentStatePaid
	case -1:
		return constants.PaymentStateBalanceDue
	default:
		return constants.PaymentStateCreditOwed
	}
}

// deriveShipmentState 备货、已发货、缺货状态由履约流程维护，这里不覆盖
func deriveShipmentState(paymentState string, current *string) *string {
	switch derefString(current) {
	case constants.ShipmentStateAssemble, constants.ShipmentStateShipped, constants.ShipmentStateBackorder:
		return current
	}
	switch paymentState {
	case constants.PaymentStatePaid, constants.PaymentStateCreditOwed:
		return stringPtr(constants.ShipmentStateReady)
	case constants.PaymentStateBalanceDue, constants.PaymentStatePending:
		return stringPtr(constants.ShipmentStatePending)
	default:
		return current
	}
}

// completesOrder 处于 payment 状态的订单在这些支付状态下转为 complete
func completesOrder(paymentState string) bool {
	switch paymentState {
	case constants.PaymentStateBalanceDue, constants.PaymentStatePaid, constants.PaymentStateCreditOwed:
		return true
	default:
		return false
	}
}

func stringPtr(value string) *string {
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
