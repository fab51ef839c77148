package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/queue"
	"github.com/hustbill/nodejs-api-server-sub001/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fixtureOptions struct {
	ShippingAmount string // 为空时不挂运费计算器
	TaxRate        string // 为空时不建税率
	CountOnHand    int
	SpendLimit     config.SpendLimitConfig
	Preferences    map[string]string
}

type orderFixture struct {
	db       *gorm.DB
	svc      *OrderService
	payments *PaymentOrchestrator
	states   *OrderStateMachine
	gateways *PaymentGatewayRouter
	mailer   *recordingMailer

	customer *models.User
	admin    *models.User
	stranger *models.User
	address  *models.Address
	country  *models.Country
	zone     *models.Zone
	product  *models.Product
	variant  *models.Variant
	ground   *models.ShippingMethod
	retail   *models.Role
	cash     *models.PaymentMethod
	deferred *models.PaymentMethod
	giftCard *models.PaymentMethod
}

type recordingMailer struct {
	mu    sync.Mutex
	sent  []OrderMailInput
	to    []string
	fails bool
}

func (m *recordingMailer) SendOrderMail(toEmail string, input OrderMailInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fails {
		return fmt.Errorf("smtp unavailable")
	}
	m.sent = append(m.sent, input)
	m.to = append(m.to, toEmail)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	models.DB = db
	if err := models.AutoMigrate(); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T failed: %v", value, err)
	}
}

func setupOrderFixture(t *testing.T, opts fixtureOptions) *orderFixture {
	t.Helper()
	db := openServiceTestDB(t)
	f := &orderFixture{db: db}

	usd := &models.Currency{ISOCode: "USD", Symbol: "$", Name: "US Dollar"}
	mustCreate(t, db, usd)
	f.country = &models.Country{ISO: "US", ISO3: "USA", Name: "United States", CurrencyID: &usd.ID}
	mustCreate(t, db, f.country)
	zone := &models.Zone{Name: "US"}
	mustCreate(t, db, zone)
	mustCreate(t, db, &models.ZoneMember{ZoneID: zone.ID, CountryID: f.country.ID})
	f.zone = zone

	f.ground = &models.ShippingMethod{Name: "Ground", IsDefault: true, ShippingAddressChangeable: true, Active: true, Position: 1}
	mustCreate(t, db, f.ground)
	mustCreate(t, db, &models.ShippingMethodZone{ShippingMethodID: f.ground.ID, ZoneID: zone.ID})
	if opts.ShippingAmount != "" {
		mustCreate(t, db, &models.Calculator{
			Type:           constants.CalculatorFlatRate,
			CalculableType: constants.CalculableTypeShipping,
			CalculableID:   f.ground.ID,
			Preferences:    models.JSON{"amount": opts.ShippingAmount},
		})
	}

	general := &models.TaxCategory{Name: "General", IsDefault: true}
	mustCreate(t, db, general)
	if opts.TaxRate != "" {
		mustCreate(t, db, &models.TaxRate{ZoneID: zone.ID, TaxCategoryID: general.ID, Amount: decimal.RequireFromString(opts.TaxRate)})
	}
	for key, value := range opts.Preferences {
		mustCreate(t, db, &models.Preference{Key: key, Value: value})
	}

	f.retail = &models.Role{Code: constants.RoleCodeRetailCustomer, Name: "Retail Customer"}
	adminRole := &models.Role{Code: constants.RoleCodeAdmin, Name: "Administrator", IsAdmin: true}
	mustCreate(t, db, f.retail)
	mustCreate(t, db, adminRole)
	mustCreate(t, db, &models.Role{Code: constants.RoleCodeDistributor, Name: "Distributor"})

	f.customer = &models.User{Login: "buyer", Email: "buyer@example.com", Status: constants.UserStatusActive, Roles: []models.Role{*f.retail}}
	f.admin = &models.User{Login: "admin", Email: "admin@example.com", Status: constants.UserStatusActive, Roles: []models.Role{*adminRole}}
	f.stranger = &models.User{Login: "stranger", Email: "stranger@example.com", Status: constants.UserStatusActive, Roles: []models.Role{*f.retail}}
	for _, user := range []*models.User{f.customer, f.admin, f.stranger} {
		mustCreate(t, db, user)
	}
	f.address = &models.Address{
		UserID:    f.customer.ID,
		Firstname: "Ada",
		Lastname:  "Lovelace",
		Address1:  "1 Main St",
		City:      "Austin",
		Zipcode:   "73301",
		Phone:     "5550100",
		CountryID: f.country.ID,
	}
	mustCreate(t, db, f.address)
	if err := db.Model(f.customer).Update("ship_address_id", f.address.ID).Error; err != nil {
		t.Fatalf("update ship address failed: %v", err)
	}
	f.customer.ShipAddressID = &f.address.ID

	f.product = &models.Product{Name: "Vitamin Pack", TaxCategoryID: &general.ID, IsDiscountable: true}
	mustCreate(t, db, f.product)
	countOnHand := opts.CountOnHand
	if countOnHand == 0 {
		countOnHand = 100
	}
	f.variant = &models.Variant{ProductID: f.product.ID, SKU: "VP-1", CountOnHand: countOnHand}
	mustCreate(t, db, f.variant)
	mustCreate(t, db, &models.VariantPrice{
		VariantID:   f.variant.ID,
		RoleID:      f.retail.ID,
		CatalogCode: constants.CatalogCodeDefault,
		Price:       models.NewMoneyFromString("10.00"),
		RetailPrice: models.NewMoneyFromString("12.00"),
	})
	mustCreate(t, db, &models.ProductCountry{ProductID: f.product.ID, CountryID: f.country.ID})

	f.cash = &models.PaymentMethod{Name: "Cash", Type: constants.PaymentMethodTypeCash, Active: true, AutoshipAvailable: true, Position: 1}
	f.deferred = &models.PaymentMethod{Name: "Bank Transfer", Type: constants.PaymentMethodTypeDeferred, Active: true, Position: 2}
	f.giftCard = &models.PaymentMethod{Name: "Gift Card", Type: constants.PaymentMethodTypeGiftCard, Active: true, Position: 3}
	for _, method := range []*models.PaymentMethod{f.cash, f.deferred, f.giftCard} {
		mustCreate(t, db, method)
	}

	orderRepo := repository.NewOrderRepository(db)
	lineItemRepo := repository.NewLineItemRepository(db)
	adjustmentRepo := repository.NewAdjustmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	shipmentRepo := repository.NewShipmentRepository(db)
	eventRepo := repository.NewStateEventRepository(db)
	raRepo := repository.NewReturnAuthorizationRepository(db)
	refRepo := repository.NewReferenceRepository(db)
	userRepo := repository.NewUserRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	giftCardRepo := repository.NewGiftCardRepository(db)

	queueClient, err := queue.NewClient(&config.QueueConfig{})
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}
	refData := NewReferenceData(refRepo)
	f.mailer = &recordingMailer{}
	f.states = NewOrderStateMachine(db, orderRepo, eventRepo, raRepo, nil)
	completion := NewDefaultCompletionRunner(CompletionDeps{
		ShipmentRepo: shipmentRepo,
		UserRepo:     userRepo,
		CatalogRepo:  catalogRepo,
		GiftCardRepo: giftCardRepo,
		Queue:        queueClient,
		Mailer:       f.mailer,
		Renewal:      config.RenewalConfig{Months: 12},
	}, nil)
	f.gateways = NewDefaultPaymentGatewayRouter(db, giftCardRepo, nil)
	f.payments = NewPaymentOrchestrator(PaymentOrchestratorDeps{
		RefRepo:      refRepo,
		PaymentRepo:  paymentRepo,
		GiftCardRepo: giftCardRepo,
		UserRepo:     userRepo,
		Gateways:     f.gateways,
		States:       f.states,
		Completion:   completion,
	})
	tax := NewTaxCalculator(refRepo, refData, nil, config.FreeTaxConfig{}, config.TaxServiceConfig{})
	f.svc = NewOrderService(OrderServiceDeps{
		DB:             db,
		Config:         config.OrderConfig{DefaultCurrency: "USD", NumberPrefix: "R"},
		OrderRepo:      orderRepo,
		LineItemRepo:   lineItemRepo,
		AdjustmentRepo: adjustmentRepo,
		PaymentRepo:    paymentRepo,
		ShipmentRepo:   shipmentRepo,
		EventRepo:      eventRepo,
		RARepo:         raRepo,
		RefRepo:        refRepo,
		UserRepo:       userRepo,
		CatalogRepo:    catalogRepo,
		GiftCardRepo:   giftCardRepo,
		RefData:        refData,
		Resolver:       NewLineItemResolver(userRepo, catalogRepo, nil),
		Validation:     NewDefaultValidationPipeline(catalogRepo, orderRepo, config.ValidatorConfig{}),
		Shipping:       NewShippingResolver(refRepo),
		Adjustments:    NewAdjustmentCalculator(refData, NewCalculatorRegistry(), tax, nil),
		Payments:       f.payments,
		States:         f.states,
		SpendLimiter:   NewSpendLimiter(orderRepo, opts.SpendLimit),
		Queue:          queueClient,
	})
	return f
}

// addShippingMethod 须在首次定价前调用，参考数据会被缓存
func (f *orderFixture) addShippingMethod(t *testing.T, name, amount string) *models.ShippingMethod {
	t.Helper()
	method := &models.ShippingMethod{Name: name, ShippingAddressChangeable: true, Active: true, Position: 2}
	mustCreate(t, f.db, method)
	mustCreate(t, f.db, &models.ShippingMethodZone{ShippingMethodID: method.ID, ZoneID: f.zone.ID})
	mustCreate(t, f.db, &models.Calculator{
		Type:           constants.CalculatorFlatRate,
		CalculableType: constants.CalculableTypeShipping,
		CalculableID:   method.ID,
		Preferences:    models.JSON{"amount": amount},
	})
	return method
}

func (f *orderFixture) checkout(t *testing.T, quantity int, pay *PayInput) *models.Order {
	t.Helper()
	result, err := f.svc.Checkout(context.Background(), CheckoutInput{
		UserID:    f.customer.ID,
		LineItems: []LineItemRequest{{VariantID: f.variant.ID, Quantity: quantity}},
		Payment:   pay,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	return result.Order
}

func (f *orderFixture) payCash(t *testing.T, orderID uint, amount string) *models.Order {
	t.Helper()
	input := PayInput{PaymentMethodID: f.cash.ID}
	if amount != "" {
		value := decimal.RequireFromString(amount)
		input.Amount = &value
	}
	order, _, err := f.svc.PayOrder(context.Background(), orderID, f.customer.ID, input)
	if err != nil {
		t.Fatalf("pay order failed: %v", err)
	}
	return order
}

func (f *orderFixture) createGiftCard(t *testing.T, code, pin, balance string) *models.GiftCard {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash pin failed: %v", err)
	}
	card := &models.GiftCard{
		Code:     code,
		PinHash:  string(hash),
		Amount:   models.NewMoneyFromString(balance),
		Balance:  models.NewMoneyFromString(balance),
		Currency: "USD",
		Active:   true,
	}
	mustCreate(t, f.db, card)
	return card
}

func (f *orderFixture) events(t *testing.T, orderID uint) []models.StateEvent {
	t.Helper()
	events, err := f.svc.ListStateEvents(context.Background(), orderID, f.admin.ID)
	if err != nil {
		t.Fatalf("list state events failed: %v", err)
	}
	return events
}

func assertMoney(t *testing.T, label string, got models.Money, want string) {
	t.Helper()
	if !got.Decimal.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s: expected %s, got %s", label, want, got.String())
	}
}

func assertCode(t *testing.T, err error, want *OrderError) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", want.Code)
	}
	var orderErr *OrderError
	if !errors.As(err, &orderErr) || orderErr.Code != want.Code {
		t.Fatalf("expected %s, got %v", want.Code, err)
	}
}
