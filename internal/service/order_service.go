package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/logger"
	"github.com/hustbill/nodejs-api-server-sub001/internal/metrics"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/queue"
	"github.com/hustbill/nodejs-api-server-sub001/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 订单操作权限
const (
	OrderActionRead  = "read"
	OrderActionWrite = "write"
)

// OrderAuthorizer 判断操作人能否访问他人订单
type OrderAuthorizer interface {
	CanAccessOrders(ctx context.Context, operator *models.User, action string) (bool, error)
}

// OrderServiceDeps 订单服务依赖
type OrderServiceDeps struct {
	DB             *gorm.DB
	Config         config.OrderConfig
	OrderRepo      repository.OrderRepository
	LineItemRepo   repository.LineItemRepository
	AdjustmentRepo repository.AdjustmentRepository
	PaymentRepo    repository.PaymentRepository
	ShipmentRepo   repository.ShipmentRepository
	EventRepo      repository.StateEventRepository
	RARepo         repository.ReturnAuthorizationRepository
	RefRepo        repository.ReferenceRepository
	UserRepo       repository.UserRepository
	CatalogRepo    repository.CatalogRepository
	GiftCardRepo   repository.GiftCardRepository
	RefData        *ReferenceData
	Resolver       *LineItemResolver
	Validation     *ValidationPipeline
	Shipping       *ShippingResolver
	Adjustments    *AdjustmentCalculator
	Payments       *PaymentOrchestrator
	States         *OrderStateMachine
	SpendLimiter   *SpendLimiter
	Queue          *queue.Client
	Authorizer     OrderAuthorizer
	Metrics        *metrics.Metrics
}

// OrderService 订单核心流程入口
type OrderService struct {
	db             *gorm.DB
	cfg            config.OrderConfig
	orderRepo      repository.OrderRepository
	lineItemRepo   repository.LineItemRepository
	adjustmentRepo repository.AdjustmentRepository
	paymentRepo    repository.PaymentRepository
	shipmentRepo   repository.ShipmentRepository
	eventRepo      repository.StateEventRepository
	raRepo         repository.ReturnAuthorizationRepository
	refRepo        repository.ReferenceRepository
	userRepo       repository.UserRepository
	catalogRepo    repository.CatalogRepository
	giftCardRepo   repository.GiftCardRepository
	refData        *ReferenceData
	resolver       *LineItemResolver
	validation     *ValidationPipeline
	shipping       *ShippingResolver
	adjustments    *AdjustmentCalculator
	payments       *PaymentOrchestrator
	states         *OrderStateMachine
	spendLimiter   *SpendLimiter
	queue          *queue.Client
	authorizer     OrderAuthorizer
	metrics        *metrics.Metrics
}

// NewOrderService 创建订单服务
func NewOrderService(deps OrderServiceDeps) *OrderService {
	return &OrderService{
		db:             deps.DB,
		cfg:            deps.Config,
		orderRepo:      deps.OrderRepo,
		lineItemRepo:   deps.LineItemRepo,
		adjustmentRepo: deps.AdjustmentRepo,
		paymentRepo:    deps.PaymentRepo,
		shipmentRepo:   deps.ShipmentRepo,
		eventRepo:      deps.EventRepo,
		raRepo:         deps.RARepo,
		refRepo:        deps.RefRepo,
		userRepo:       deps.UserRepo,
		catalogRepo:    deps.CatalogRepo,
		giftCardRepo:   deps.GiftCardRepo,
		refData:        deps.RefData,
		resolver:       deps.Resolver,
		validation:     deps.Validation,
		shipping:       deps.Shipping,
		adjustments:    deps.Adjustments,
		payments:       deps.Payments,
		states:         deps.States,
		spendLimiter:   deps.SpendLimiter,
		queue:          deps.Queue,
		authorizer:     deps.Authorizer,
		metrics:        deps.Metrics,
	}
}

// CheckoutInput 下单请求
type CheckoutInput struct {
	UserID              uint
	OperatorID          uint
	LineItems           []LineItemRequest
	ShippingAddressID   *uint
	ShippingAddress     *models.Address
	BillingAddressID    *uint
	BillingAddress      *models.Address
	ShippingMethodID    uint
	Autoship            bool
	AutoshipID          *uint
	SpecialInstructions string
	ClientRequestID     string
	Additional          []AdditionalAdjustment
	Payment             *PayInput
}

// CheckoutResult 下单结果
type CheckoutResult struct {
	Order    *models.Order
	Replayed bool
	Payment  *PaymentOutcome
}

// OrderPreview 不落库的试算结果
type OrderPreview struct {
	Currency                 string                  `json:"currency"`
	LineItems                []models.LineItem       `json:"line_items"`
	Adjustments              []models.Adjustment     `json:"adjustments"`
	ItemTotal                models.Money            `json:"item_total"`
	AdjustmentTotal          models.Money            `json:"adjustment_total"`
	Total                    models.Money            `json:"total"`
	ShippingMethod           *models.ShippingMethod  `json:"shipping_method"`
	AvailableShippingMethods []models.ShippingMethod `json:"available_shipping_methods"`
}

// pricedOrder 一次完整定价的中间结果
type pricedOrder struct {
	owner           *models.User
	operator        *models.User
	items           []models.LineItem
	shippingAddress *models.Address
	billingAddress  *models.Address
	country         *models.Country
	state           *models.State
	distributor     *models.Distributor
	method          *models.ShippingMethod
	available       []models.ShippingMethod
	policy          CompanyPolicy
	currency        string
	result          *AdjustmentResult
}

// Checkout 解析 → 校验 → 配送 → 调整项 → 落库 → 支付
func (s *OrderService) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	started := time.Now()
	result, outcome, err := s.checkout(ctx, input)
	s.metrics.RecordCheckout(ctx, outcome, time.Since(started).Seconds())
	return result, err
}

func (s *OrderService) checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, string, error) {
	owner, operator, err := s.loadActors(ctx, input.UserID, input.OperatorID, OrderActionWrite)
	if err != nil {
		return nil, "rejected", err
	}
	clientRequestID := strings.TrimSpace(input.ClientRequestID)
	if replay, err := s.replay(owner.ID, clientRequestID); err != nil || replay != nil {
		if replay != nil {
			return replay, "replayed", nil
		}
		return nil, "failed", err
	}
	number := s.newOrderNumber()
	priced, err := s.price(ctx, number, owner, operator, input)
	if err != nil {
		return nil, "rejected", err
	}
	if err := s.spendLimiter.Check(owner.ID, priced.result.Total); err != nil {
		return nil, "rejected", err
	}

	order, err := s.persist(ctx, number, priced, input, clientRequestID)
	if err != nil {
		if replay, replayErr := s.replay(owner.ID, clientRequestID); replayErr == nil && replay != nil {
			return replay, "replayed", nil
		}
		return nil, "failed", err
	}
	logger.Ctx(ctx).Infow("order_checkout_created",
		"order_id", order.ID,
		"order_number", order.Number,
		"user_id", owner.ID,
		"operator_id", operator.ID,
		"total", order.Total.String(),
	)

	checkoutResult := &CheckoutResult{Order: order}
	if input.Payment != nil {
		payInput := *input.Payment
		payInput.OperatorID = operator.ID
		outcome, payErr := s.payments.Pay(ctx, order, payInput)
		checkoutResult.Payment = outcome
		if reloaded, err := s.orderRepo.GetByID(order.ID); err == nil && reloaded != nil {
			checkoutResult.Order = reloaded
		}
		if payErr != nil {
			return checkoutResult, "created", payErr
		}
	}
	return checkoutResult, "created", nil
}

// replay 同一用户的相同幂等标识直接返回已创建的订单
func (s *OrderService) replay(ownerID uint, clientRequestID string) (*CheckoutResult, error) {
	if clientRequestID == "" {
		return nil, nil
	}
	exists, err := s.orderRepo.ExistsByClientRequestID(ownerID, clientRequestID)
	if err != nil || !exists {
		return nil, err
	}
	order, err := s.orderRepo.GetByClientRequestID(ownerID, clientRequestID)
	if err != nil || order == nil {
		return nil, err
	}
	if order.UserID != ownerID {
		return nil, withDetail(ErrClientRequestConflict, "client request id is already used")
	}
	logger.Infow("order_checkout_replayed", "order_id", order.ID, "client_request_id", clientRequestID)
	return &CheckoutResult{Order: order, Replayed: true}, nil
}

// Preview 试算，不写入任何数据
func (s *OrderService) Preview(ctx context.Context, input CheckoutInput) (*OrderPreview, error) {
	owner, operator, err := s.loadActors(ctx, input.UserID, input.OperatorID, OrderActionWrite)
	if err != nil {
		return nil, err
	}
	priced, err := s.price(ctx, "", owner, operator, input)
	if err != nil {
		return nil, err
	}
	return &OrderPreview{
		Currency:                 priced.currency,
		LineItems:                priced.items,
		Adjustments:              priced.result.Adjustments,
		ItemTotal:                models.NewMoneyFromDecimal(priced.result.ItemTotal),
		AdjustmentTotal:          models.NewMoneyFromDecimal(priced.result.AdjustmentTotal),
		Total:                    models.NewMoneyFromDecimal(priced.result.Total),
		ShippingMethod:           priced.method,
		AvailableShippingMethods: priced.available,
	}, nil
}

// price 完整定价流程
func (s *OrderService) price(ctx context.Context, number string, owner, operator *models.User, input CheckoutInput) (*pricedOrder, error) {
	if len(input.LineItems) == 0 {
		return nil, withDetail(ErrInvalidLineItems, "line items are required")
	}
	shippingAddress, err := s.resolveAddress(owner, input.ShippingAddressID, input.ShippingAddress, owner.ShipAddressID, ErrInvalidShippingAddress)
	if err != nil {
		return nil, err
	}
	billingAddress := shippingAddress
	if input.BillingAddressID != nil || input.BillingAddress != nil {
		billingAddress, err = s.resolveAddress(owner, input.BillingAddressID, input.BillingAddress, nil, ErrInvalidBillingAddress)
		if err != nil {
			return nil, err
		}
	}

	items, err := s.resolver.Resolve(ctx, owner, operator, input.LineItems)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].IsAutoship = items[i].IsAutoship || input.Autoship
	}
	priced := &pricedOrder{
		owner:           owner,
		operator:        operator,
		items:           items,
		shippingAddress: shippingAddress,
		billingAddress:  billingAddress,
		policy:          ResolveCompanyPolicy(s.cfg.CompanyCode),
	}
	if err := s.priceAt(ctx, number, priced, input.ShippingMethodID, input.Autoship, input.Additional); err != nil {
		return nil, err
	}
	return priced, nil
}

// priceAt 在已确定的行项目与地址上计算配送与调整项
func (s *OrderService) priceAt(ctx context.Context, number string, priced *pricedOrder, methodID uint, autoship bool, additional []AdditionalAdjustment) error {
	country, err := s.refRepo.GetCountryByID(priced.shippingAddress.CountryID)
	if err != nil {
		return err
	}
	if country == nil {
		return withFailures(ErrInvalidShippingAddress, []FieldFailure{{Field: "country_id", Code: "invalid"}})
	}
	priced.country = country
	if priced.shippingAddress.StateID != nil {
		state, err := s.refRepo.GetStateByID(*priced.shippingAddress.StateID)
		if err != nil {
			return err
		}
		if state == nil || state.CountryID != country.ID {
			return withFailures(ErrInvalidShippingAddress, []FieldFailure{{Field: "state_id", Code: "invalid"}})
		}
		priced.state = state
	}

	homeCountryID, err := s.homeCountryID(priced.owner, country.ID)
	if err != nil {
		return err
	}
	if err := s.validation.Validate(ctx, &ValidationContext{
		User:      priced.owner,
		CountryID: homeCountryID,
		LineItems: priced.items,
		Policy:    priced.policy,
	}); err != nil {
		return err
	}
	priced.method, priced.available, err = s.shipping.ResolveShippingMethod(methodID, priced.shippingAddress, homeCountryID, autoship)
	if err != nil {
		return err
	}

	priced.distributor, err = s.userRepo.GetDistributorByUserID(priced.owner.ID)
	if err != nil {
		return err
	}
	priced.currency, err = s.currencyOf(ctx, country)
	if err != nil {
		return err
	}
	priced.result, err = s.adjustments.Calculate(ctx, AdjustmentInput{
		OrderNumber:     number,
		Owner:           priced.owner,
		Operator:        priced.operator,
		Autoship:        autoship,
		Currency:        priced.currency,
		LineItems:       priced.items,
		ShippingMethod:  priced.method,
		ShippingAddress: priced.shippingAddress,
		Country:         country,
		State:           priced.state,
		Distributor:     priced.distributor,
		Policy:          priced.policy,
		Additional:      additional,
	})
	if err != nil {
		return err
	}
	for i := range priced.items {
		if tax, ok := priced.result.LineItemTaxes[priced.items[i].LineNo]; ok {
			priced.items[i].TaxAmount = models.NewMoneyFromDecimal(tax)
		}
	}
	return nil
}

// persist 写入订单及从属记录；订单行写入后任何失败都会删除整单
func (s *OrderService) persist(ctx context.Context, number string, priced *pricedOrder, input CheckoutInput, clientRequestID string) (*models.Order, error) {
	order := &models.Order{
		Number:              number,
		UserID:              priced.owner.ID,
		CreatedBy:           priced.operator.ID,
		CompanyCode:         s.cfg.CompanyCode,
		Currency:            priced.currency,
		ItemTotal:           models.NewMoneyFromDecimal(priced.result.ItemTotal),
		AdjustmentTotal:     models.NewMoneyFromDecimal(priced.result.AdjustmentTotal),
		Total:               models.NewMoneyFromDecimal(priced.result.Total),
		State:               constants.OrderStateCart,
		ShippingMethodID:    &priced.method.ID,
		Autoship:            input.Autoship,
		AutoshipID:          input.AutoshipID,
		SpecialInstructions: strings.TrimSpace(input.SpecialInstructions),
		ExternalTax:         priced.result.ExternalTax,
	}
	if clientRequestID != "" {
		order.ClientRequestID = &clientRequestID
	}
	addressIDs, err := s.saveAddresses(priced.shippingAddress, priced.billingAddress)
	if err != nil {
		s.discardAddresses(ctx, addressIDs)
		return nil, err
	}
	if priced.shippingAddress != nil {
		order.ShippingAddressID = &priced.shippingAddress.ID
	}
	if priced.billingAddress != nil {
		order.BillingAddressID = &priced.billingAddress.ID
	}
	if err := s.orderRepo.Create(order); err != nil {
		s.discardAddresses(ctx, addressIDs)
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.persistDependents(ctx, order, priced); err != nil {
		if delErr := s.orderRepo.DeleteCascade(order.ID); delErr != nil {
			logger.Ctx(ctx).Errorw("order_checkout_compensation_failed", "order_id", order.ID, "error", delErr)
		} else {
			logger.Ctx(ctx).Warnw("order_checkout_compensated", "order_id", order.ID, "order_number", order.Number, "error", err)
		}
		s.discardAddresses(ctx, addressIDs)
		return nil, err
	}

	reloaded, err := s.orderRepo.GetByID(order.ID)
	if err != nil {
		return nil, err
	}
	if reloaded == nil {
		return nil, ErrOrderNotFound
	}
	return reloaded, nil
}

func (s *OrderService) persistDependents(ctx context.Context, order *models.Order, priced *pricedOrder) error {
	if err := s.lineItemRepo.CreateBatch(order.ID, priced.items); err != nil {
		return fmt.Errorf("create line items: %w", err)
	}
	if err := s.adjustmentRepo.CreateBatch(order.ID, priced.result.Adjustments); err != nil {
		return fmt.Errorf("create adjustments: %w", err)
	}
	shipment := &models.Shipment{
		OrderID:          order.ID,
		Number:           shipmentNumber(order.Number),
		ShippingMethodID: order.ShippingMethodID,
		AddressID:        order.ShippingAddressID,
		State:            constants.ShipmentStatePending,
		Cost:             models.NewMoneyFromDecimal(priced.result.ShippingAmount),
	}
	if err := s.shipmentRepo.Create(shipment); err != nil {
		return fmt.Errorf("create shipment: %w", err)
	}
	next := statesOf(order).WithState(constants.OrderStatePayment)
	next.PaymentState = DerivePaymentState(order.PaymentTotal.Decimal, order.Total.Decimal)
	if _, err := s.states.Apply(ctx, order, next, priced.operator.ID, nil); err != nil {
		return fmt.Errorf("move order to payment: %w", err)
	}
	return nil
}

// loadActors 加载订单归属人与操作人，代他人操作时校验权限
func (s *OrderService) loadActors(ctx context.Context, userID, operatorID uint, action string) (*models.User, *models.User, error) {
	owner, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, nil, err
	}
	if owner == nil {
		return nil, nil, ErrUserNotFound
	}
	if operatorID == 0 || operatorID == owner.ID {
		return owner, owner, nil
	}
	operator, err := s.userRepo.GetByID(operatorID)
	if err != nil {
		return nil, nil, err
	}
	if operator == nil {
		return nil, nil, ErrUserNotFound
	}
	if err := s.authorize(ctx, operator, action); err != nil {
		return nil, nil, err
	}
	return owner, operator, nil
}

func (s *OrderService) authorize(ctx context.Context, operator *models.User, action string) error {
	if s.authorizer == nil {
		if isAdminUser(operator) {
			return nil
		}
		return ErrNoPermissionToAccessOrder
	}
	ok, err := s.authorizer.CanAccessOrders(ctx, operator, action)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoPermissionToAccessOrder
	}
	return nil
}

// resolveAddress 优先使用新地址，其次指定 ID，最后回退到用户默认地址
// 新地址只在内存中校验，ID 为 0，由 saveAddresses 在落库时写入
func (s *OrderService) resolveAddress(owner *models.User, id *uint, inline *models.Address, fallbackID *uint, sentinel *OrderError) (*models.Address, error) {
	if inline != nil {
		if failures := validateAddress(inline); len(failures) > 0 {
			return nil, withFailures(sentinel, failures)
		}
		address := *inline
		address.ID = 0
		address.UserID = owner.ID
		return &address, nil
	}
	if id == nil {
		id = fallbackID
	}
	if id == nil || *id == 0 {
		return nil, withFailures(sentinel, []FieldFailure{{Field: "address_id", Code: "required"}})
	}
	address, err := s.userRepo.GetAddressByID(*id)
	if err != nil {
		return nil, err
	}
	if address == nil || (address.UserID != 0 && address.UserID != owner.ID) {
		return nil, withFailures(sentinel, []FieldFailure{{Field: "address_id", Code: "invalid"}})
	}
	if failures := validateAddress(address); len(failures) > 0 {
		return nil, withFailures(sentinel, failures)
	}
	return address, nil
}

// saveAddresses 写入尚未落库的新地址，返回本次新建的地址 ID
func (s *OrderService) saveAddresses(addresses ...*models.Address) ([]uint, error) {
	var created []uint
	for i, address := range addresses {
		if address == nil || address.ID != 0 || containsAddress(addresses[:i], address) {
			continue
		}
		if err := s.userRepo.CreateAddress(address); err != nil {
			return created, fmt.Errorf("create address: %w", err)
		}
		created = append(created, address.ID)
	}
	return created, nil
}

// discardAddresses 回收失败流程中新建的地址，失败只记录
func (s *OrderService) discardAddresses(ctx context.Context, ids []uint) {
	if len(ids) == 0 {
		return
	}
	if err := s.userRepo.DeleteAddresses(ids); err != nil {
		logger.Ctx(ctx).Warnw("order_address_cleanup_failed", "address_ids", ids, "error", err)
	}
}

func containsAddress(addresses []*models.Address, target *models.Address) bool {
	for _, address := range addresses {
		if address == target {
			return true
		}
	}
	return false
}

func validateAddress(address *models.Address) []FieldFailure {
	var failures []FieldFailure
	required := []struct {
		field string
		value string
	}{
		{"firstname", address.Firstname},
		{"lastname", address.Lastname},
		{"address1", address.Address1},
		{"city", address.City},
		{"zipcode", address.Zipcode},
	}
	for _, item := range required {
		if strings.TrimSpace(item.value) == "" {
			failures = append(failures, FieldFailure{Field: item.field, Code: "required"})
		}
	}
	if address.CountryID == 0 {
		failures = append(failures, FieldFailure{Field: "country_id", Code: "required"})
	}
	return failures
}

// homeCountryID 用户所属国家：家庭地址所在国，没有时使用收货国
func (s *OrderService) homeCountryID(owner *models.User, fallback uint) (uint, error) {
	if owner.HomeAddressID == nil {
		return fallback, nil
	}
	home, err := s.userRepo.GetAddressByID(*owner.HomeAddressID)
	if err != nil {
		return 0, err
	}
	if home == nil || home.CountryID == 0 {
		return fallback, nil
	}
	return home.CountryID, nil
}

func (s *OrderService) currencyOf(ctx context.Context, country *models.Country) (string, error) {
	if country != nil && country.CurrencyID != nil {
		code, ok, err := s.refData.CurrencyByID(ctx, *country.CurrencyID)
		if err != nil {
			return "", err
		}
		if ok {
			return code, nil
		}
	}
	if code, ok, err := s.refData.Preference(ctx, constants.PreferenceDefaultCurrency); err == nil && ok && code != "" {
		return strings.ToUpper(code), nil
	}
	return strings.ToUpper(s.cfg.DefaultCurrency), nil
}

func (s *OrderService) newOrderNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return s.cfg.NumberPrefix + id[:12]
}

func shipmentNumber(orderNumber string) string {
	return "H" + orderNumber
}

// loadOrder 加载订单并校验访问权限，返回订单与操作人
func (s *OrderService) loadOrder(ctx context.Context, orderID, operatorID uint, action string) (*models.Order, *models.User, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, ErrOrderNotFound
	}
	if operatorID == order.UserID {
		owner, err := s.userRepo.GetByID(operatorID)
		if err != nil {
			return nil, nil, err
		}
		if owner == nil {
			return nil, nil, ErrUserNotFound
		}
		return order, owner, nil
	}
	operator, err := s.userRepo.GetByID(operatorID)
	if err != nil {
		return nil, nil, err
	}
	if operator == nil {
		return nil, nil, ErrNoPermissionToAccessOrder
	}
	if err := s.authorize(ctx, operator, action); err != nil {
		return nil, nil, err
	}
	return order, operator, nil
}

// requireOperator 仅管理员或具备写权限的操作人
func (s *OrderService) requireOperator(ctx context.Context, operatorID uint) (*models.User, error) {
	operator, err := s.userRepo.GetByID(operatorID)
	if err != nil {
		return nil, err
	}
	if operator == nil {
		return nil, ErrNoPermissionToAccessOrder
	}
	if err := s.authorize(ctx, operator, OrderActionWrite); err != nil {
		return nil, err
	}
	return operator, nil
}

func (s *OrderService) enqueueMail(order *models.Order, template string) {
	if err := s.queue.EnqueueOrderMail(queue.OrderMailPayload{OrderID: order.ID, Template: template}); err != nil {
		logger.Warnw("order_mail_enqueue_failed", "order_id", order.ID, "template", template, "error", err)
	}
}
