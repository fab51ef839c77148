package provider

import (
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/authz"
	"github.com/hustbill/nodejs-api-server-sub001/internal/cache"
	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
	"github.com/hustbill/nodejs-api-server-sub001/internal/logger"
	"github.com/hustbill/nodejs-api-server-sub001/internal/metrics"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/payment/stripe"
	"github.com/hustbill/nodejs-api-server-sub001/internal/queue"
	"github.com/hustbill/nodejs-api-server-sub001/internal/repository"
	"github.com/hustbill/nodejs-api-server-sub001/internal/service"
	"github.com/hustbill/nodejs-api-server-sub001/internal/taxservice"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Metrics     *metrics.Metrics

	// Repositories
	UserRepo       repository.UserRepository
	OrderRepo      repository.OrderRepository
	LineItemRepo   repository.LineItemRepository
	AdjustmentRepo repository.AdjustmentRepository
	PaymentRepo    repository.PaymentRepository
	ShipmentRepo   repository.ShipmentRepository
	EventRepo      repository.StateEventRepository
	RARepo         repository.ReturnAuthorizationRepository
	RefRepo        repository.ReferenceRepository
	CatalogRepo    repository.CatalogRepository
	GiftCardRepo   repository.GiftCardRepository

	// Services
	AuthzService  *authz.Service
	EmailService  *service.EmailService
	ReferenceData *service.ReferenceData
	OrderStates   *service.OrderStateMachine
	Payments      *service.PaymentOrchestrator
	OrderService  *service.OrderService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端，未启用时为空操作客户端
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	m, err := metrics.NewGlobalMetrics()
	if err != nil {
		logger.Warnw("provider_init_metrics_failed", "error", err)
		m = nil
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Metrics:     m,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.LineItemRepo = repository.NewLineItemRepository(db)
	c.AdjustmentRepo = repository.NewAdjustmentRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.ShipmentRepo = repository.NewShipmentRepository(db)
	c.EventRepo = repository.NewStateEventRepository(db)
	c.RARepo = repository.NewReturnAuthorizationRepository(db)
	c.RefRepo = repository.NewReferenceRepository(db)
	c.CatalogRepo = repository.NewCatalogRepository(db)
	c.GiftCardRepo = repository.NewGiftCardRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	orderCfg := c.Config.Order
	c.EmailService = service.NewEmailService(&c.Config.Email)
	c.ReferenceData = service.NewReferenceData(c.RefRepo)
	c.OrderStates = service.NewOrderStateMachine(models.DB, c.OrderRepo, c.EventRepo, c.RARepo, c.Metrics)

	completion := service.NewDefaultCompletionRunner(service.CompletionDeps{
		ShipmentRepo: c.ShipmentRepo,
		UserRepo:     c.UserRepo,
		CatalogRepo:  c.CatalogRepo,
		GiftCardRepo: c.GiftCardRepo,
		Queue:        c.QueueClient,
		Mailer:       c.EmailService,
		Renewal:      orderCfg.Renewal,
	}, c.Metrics)

	c.Payments = service.NewPaymentOrchestrator(service.PaymentOrchestratorDeps{
		RefRepo:      c.RefRepo,
		PaymentRepo:  c.PaymentRepo,
		GiftCardRepo: c.GiftCardRepo,
		UserRepo:     c.UserRepo,
		Gateways:     service.NewDefaultPaymentGatewayRouter(models.DB, c.GiftCardRepo, c.stripeConfig()),
		States:       c.OrderStates,
		Completion:   completion,
		Metrics:      c.Metrics,
	})

	tax := service.NewTaxCalculator(c.RefRepo, c.ReferenceData, c.taxQuoter(), orderCfg.FreeTax, c.Config.TaxService)
	c.OrderService = service.NewOrderService(service.OrderServiceDeps{
		DB:             models.DB,
		Config:         orderCfg,
		OrderRepo:      c.OrderRepo,
		LineItemRepo:   c.LineItemRepo,
		AdjustmentRepo: c.AdjustmentRepo,
		PaymentRepo:    c.PaymentRepo,
		ShipmentRepo:   c.ShipmentRepo,
		EventRepo:      c.EventRepo,
		RARepo:         c.RARepo,
		RefRepo:        c.RefRepo,
		UserRepo:       c.UserRepo,
		CatalogRepo:    c.CatalogRepo,
		GiftCardRepo:   c.GiftCardRepo,
		RefData:        c.ReferenceData,
		Resolver:       service.NewLineItemResolver(c.UserRepo, c.CatalogRepo, orderCfg.CommissionVolumeCodes),
		Validation:     service.NewDefaultValidationPipeline(c.CatalogRepo, c.OrderRepo, orderCfg.Validators),
		Shipping:       service.NewShippingResolver(c.RefRepo),
		Adjustments:    service.NewAdjustmentCalculator(c.ReferenceData, service.NewCalculatorRegistry(), tax, orderCfg.DiscountRoleCodes),
		Payments:       c.Payments,
		States:         c.OrderStates,
		SpendLimiter:   service.NewSpendLimiter(c.OrderRepo, orderCfg.SpendLimit),
		Queue:          c.QueueClient,
		Authorizer:     c.AuthzService,
		Metrics:        c.Metrics,
	})
}

// stripeConfig 未配置密钥时信用卡网关不可用
func (c *Container) stripeConfig() *stripe.Config {
	cfg := c.Config.Stripe
	if cfg.SecretKey == "" {
		return nil
	}
	return &stripe.Config{
		SecretKey:  cfg.SecretKey,
		APIBaseURL: cfg.APIBaseURL,
		Timeout:    time.Duration(cfg.TimeoutMS) * time.Millisecond,
	}
}

// taxQuoter 外部税务服务未启用或配置无效时只使用本地税率
func (c *Container) taxQuoter() service.TaxQuoter {
	cfg := c.Config.TaxService
	if !cfg.Enabled {
		return nil
	}
	client, err := taxservice.NewClient(taxservice.Config{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		CompanyCode: cfg.CompanyCode,
		Timeout:     cfg.Timeout(),
	})
	if err != nil {
		logger.Warnw("provider_init_tax_service_failed", "error", err)
		return nil
	}
	return client
}
