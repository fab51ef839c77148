package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/logger"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	samplePin   = "1234"
	sampleLogin = "demo-distributor"
)

func main() {
	var withGiftCard bool
	flag.BoolVar(&withGiftCard, "gift-card", true, "同时创建一张示例礼品卡")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.InitDefaultRoles(); err != nil {
		stdLog.Fatalf("Failed to init roles: %v", err)
	}

	var user models.User
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		s := &seeder{db: tx}
		s.seedReference()
		s.seedShipping()
		s.seedTax()
		s.seedPaymentMethods()
		s.seedCatalog()
		user = s.seedUser()
		if withGiftCard {
			s.seedGiftCard()
		}
		return s.err
	})
	if err != nil {
		stdLog.Fatalf("Seed failed: %v", err)
	}

	token, expiresAt, err := service.GenerateUserJWT(cfg.JWT, &user)
	if err != nil {
		stdLog.Fatalf("Failed to sign dev token: %v", err)
	}
	fmt.Printf("seeded user %s (id=%d)\n", user.Login, user.ID)
	fmt.Printf("dev token (expires %s):\n%s\n", expiresAt.Format("2006-01-02 15:04"), token)
}

// seeder 记录首个错误，之后的步骤全部跳过
type seeder struct {
	db  *gorm.DB
	err error

	usd      models.Currency
	us       models.Country
	oregon   models.State
	domestic models.Zone
	taxCat   models.TaxCategory
	ground   models.ShippingMethod
	variant  models.Variant
}

func (s *seeder) firstOrCreate(dest interface{}, query interface{}, args ...interface{}) {
	if s.err != nil {
		return
	}
	if err := s.db.Where(query, args...).FirstOrCreate(dest).Error; err != nil {
		s.err = fmt.Errorf("seed %T: %w", dest, err)
	}
}

func (s *seeder) seedReference() {
	s.usd = models.Currency{ISOCode: "USD", Symbol: "$", Name: "US Dollar"}
	s.firstOrCreate(&s.usd, "iso_code = ?", s.usd.ISOCode)

	s.us = models.Country{ISO: "US", ISO3: "USA", Name: "United States", CurrencyID: &s.usd.ID}
	s.firstOrCreate(&s.us, "iso = ?", s.us.ISO)

	s.oregon = models.State{CountryID: s.us.ID, Abbr: "OR", Name: "Oregon"}
	s.firstOrCreate(&s.oregon, "country_id = ? AND abbr = ?", s.us.ID, s.oregon.Abbr)

	s.firstOrCreate(&models.CountryShipment{OriginCountryID: s.us.ID, DestCountryID: s.us.ID},
		"origin_country_id = ? AND dest_country_id = ?", s.us.ID, s.us.ID)

	s.domestic = models.Zone{Name: "US Domestic", Description: "Continental United States"}
	s.firstOrCreate(&s.domestic, "name = ?", s.domestic.Name)
	s.firstOrCreate(&models.ZoneMember{ZoneID: s.domestic.ID, CountryID: s.us.ID},
		"zone_id = ? AND country_id = ? AND state_id IS NULL", s.domestic.ID, s.us.ID)
}

func (s *seeder) seedShipping() {
	s.ground = models.ShippingMethod{Name: "Ground", IsDefault: true, ShippingAddressChangeable: true, Active: true}
	s.firstOrCreate(&s.ground, "name = ?", s.ground.Name)
	s.firstOrCreate(&models.ShippingMethodZone{ShippingMethodID: s.ground.ID, ZoneID: s.domestic.ID},
		"shipping_method_id = ? AND zone_id = ?", s.ground.ID, s.domestic.ID)
	s.firstOrCreate(&models.Calculator{
		Type:           constants.CalculatorFlexiRate,
		CalculableType: constants.CalculableTypeShipping,
		CalculableID:   s.ground.ID,
		Preferences: models.JSON{
			"first_item":      "8.95",
			"additional_item": "1.50",
			"max_items":       10,
		},
	}, "calculable_type = ? AND calculable_id = ?", constants.CalculableTypeShipping, s.ground.ID)

	pickup := models.ShippingMethod{Name: "Will Call", PickupCountryIDs: models.UintArray{s.us.ID}, Active: true, Position: 1}
	s.firstOrCreate(&pickup, "name = ?", pickup.Name)
	s.firstOrCreate(&models.ShippingMethodZone{ShippingMethodID: pickup.ID, ZoneID: s.domestic.ID},
		"shipping_method_id = ? AND zone_id = ?", pickup.ID, s.domestic.ID)
	s.firstOrCreate(&models.Calculator{
		Type:           constants.CalculatorFlatRate,
		CalculableType: constants.CalculableTypeShipping,
		CalculableID:   pickup.ID,
		Preferences:    models.JSON{"amount": "0"},
	}, "calculable_type = ? AND calculable_id = ?", constants.CalculableTypeShipping, pickup.ID)
}

func (s *seeder) seedTax() {
	s.taxCat = models.TaxCategory{Name: "Clothing", IsDefault: true}
	s.firstOrCreate(&s.taxCat, "name = ?", s.taxCat.Name)
	s.firstOrCreate(&models.TaxRate{ZoneID: s.domestic.ID, TaxCategoryID: s.taxCat.ID, Amount: decimal.RequireFromString("0.05")},
		"zone_id = ? AND tax_category_id = ?", s.domestic.ID, s.taxCat.ID)

	shipping := models.TaxCategory{Name: "Shipping"}
	s.firstOrCreate(&shipping, "name = ?", shipping.Name)
	s.firstOrCreate(&models.TaxRate{ZoneID: s.domestic.ID, TaxCategoryID: shipping.ID, Amount: decimal.RequireFromString("0.02")},
		"zone_id = ? AND tax_category_id = ?", s.domestic.ID, shipping.ID)
}

func (s *seeder) seedPaymentMethods() {
	methods := []models.PaymentMethod{
		{Name: "Credit Card", Type: constants.PaymentMethodTypeCreditcard, Active: true, AutoshipAvailable: true},
		{Name: "Gift Card", Type: constants.PaymentMethodTypeGiftCard, Active: true, Position: 1},
		{Name: "Cash", Type: constants.PaymentMethodTypeCash, Active: true, Position: 2},
		{Name: "Pay Later", Type: constants.PaymentMethodTypeDeferred, Active: true, Position: 3},
	}
	for i := range methods {
		s.firstOrCreate(&methods[i], "name = ?", methods[i].Name)
	}
}

func (s *seeder) seedCatalog() {
	product := models.Product{Name: "Daily Essentials Pack", TaxCategoryID: &s.taxCat.ID, IsDiscountable: true}
	s.firstOrCreate(&product, "name = ?", product.Name)
	s.firstOrCreate(&models.ProductCountry{ProductID: product.ID, CountryID: s.us.ID},
		"product_id = ? AND country_id = ?", product.ID, s.us.ID)

	s.variant = models.Variant{ProductID: product.ID, SKU: "DEP-001", CountOnHand: 500}
	s.firstOrCreate(&s.variant, "sku = ?", s.variant.SKU)

	// 每个角色一档价格，零售价统一
	prices := map[string]string{
		constants.RoleCodeDistributor:    "39.95",
		constants.RoleCodePreferred:      "44.95",
		constants.RoleCodeRetailCustomer: "49.95",
	}
	for code, price := range prices {
		role := s.role(code)
		if role == nil {
			continue
		}
		s.firstOrCreate(&models.VariantPrice{
			VariantID:   s.variant.ID,
			RoleID:      role.ID,
			CatalogCode: constants.CatalogCodeDefault,
			Price:       models.NewMoneyFromString(price),
			RetailPrice: models.NewMoneyFromString("49.95"),
		}, "variant_id = ? AND role_id = ? AND catalog_code = ?", s.variant.ID, role.ID, constants.CatalogCodeDefault)
		for _, commission := range []string{"DTV", "FTV", "UV"} {
			s.firstOrCreate(&models.VariantCommission{
				VariantID:      s.variant.ID,
				RoleID:         role.ID,
				CommissionCode: commission,
				Volume:         decimal.RequireFromString("30"),
			}, "variant_id = ? AND role_id = ? AND commission_code = ?", s.variant.ID, role.ID, commission)
		}
	}
}

func (s *seeder) role(code string) *models.Role {
	if s.err != nil {
		return nil
	}
	var role models.Role
	if err := s.db.Where("code = ?", code).First(&role).Error; err != nil {
		s.err = fmt.Errorf("load role %s: %w", code, err)
		return nil
	}
	return &role
}

func (s *seeder) seedUser() models.User {
	user := models.User{Login: sampleLogin, Email: sampleLogin + "@example.com", Status: constants.UserStatusActive}
	s.firstOrCreate(&user, "login = ?", user.Login)
	if role := s.role(constants.RoleCodeDistributor); role != nil {
		if err := s.db.Model(&user).Association("Roles").Replace([]models.Role{*role}); err != nil {
			s.err = fmt.Errorf("assign role: %w", err)
		}
	}
	s.firstOrCreate(&models.Distributor{UserID: user.ID, Active: true}, "user_id = ?", user.ID)

	address := models.Address{
		UserID:    user.ID,
		Firstname: "Demo",
		Lastname:  "Distributor",
		Address1:  "100 SW Main St",
		City:      "Portland",
		Zipcode:   "97204",
		Phone:     "503-555-0100",
		CountryID: s.us.ID,
		StateID:   &s.oregon.ID,
	}
	s.firstOrCreate(&address, "user_id = ? AND address1 = ?", user.ID, address.Address1)
	if s.err == nil && user.ShipAddressID == nil {
		s.err = s.db.Model(&user).Updates(map[string]interface{}{
			"home_address_id": address.ID,
			"ship_address_id": address.ID,
			"bill_address_id": address.ID,
		}).Error
	}
	return user
}

func (s *seeder) seedGiftCard() {
	if s.err != nil {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(samplePin), bcrypt.DefaultCost)
	if err != nil {
		s.err = fmt.Errorf("hash gift card pin: %w", err)
		return
	}
	code := "GC-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	card := models.GiftCard{
		Code:     code,
		PinHash:  string(hash),
		Amount:   models.NewMoneyFromString("100"),
		Balance:  models.NewMoneyFromString("100"),
		Currency: s.usd.ISOCode,
		Active:   true,
	}
	if err := s.db.Create(&card).Error; err != nil {
		s.err = fmt.Errorf("create gift card: %w", err)
		return
	}
	fmt.Printf("gift card %s (pin %s)\n", card.Code, samplePin)
}
