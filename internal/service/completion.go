package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/cache"
	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/logger"
	"github.com/hustbill/nodejs-api-server-sub001/internal/metrics"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/queue"
	"github.com/hustbill/nodejs-api-server-sub001/internal/repository"
)

// postTaxDelay 完成后延迟提交税务，留出取消窗口
const postTaxDelay = 10 * time.Minute

// CompletionContext 完成任务共享的上下文
type CompletionContext struct {
	Order      *models.Order
	Owner      *models.User
	OperatorID uint
	Policy     CompanyPolicy
	Now        time.Time

	taxonCache map[string]bool
}

// CompletionTask 订单付清后的附带任务，失败只记录日志
type CompletionTask interface {
	Name() string
	Run(ctx context.Context, cc *CompletionContext) error
}

// OrderMailer 队列不可用时直接发送订单邮件
type OrderMailer interface {
	SendOrderMail(toEmail string, input OrderMailInput) error
}

// CompletionDeps 完成任务依赖
type CompletionDeps struct {
	ShipmentRepo repository.ShipmentRepository
	UserRepo     repository.UserRepository
	CatalogRepo  repository.CatalogRepository
	GiftCardRepo repository.GiftCardRepository
	Queue        *queue.Client
	Mailer       OrderMailer
	Renewal      config.RenewalConfig
}

// CompletionRunner 按顺序执行完成任务
type CompletionRunner struct {
	tasks   []CompletionTask
	metrics *metrics.Metrics
}

// NewCompletionRunner 创建执行器
func NewCompletionRunner(m *metrics.Metrics, tasks ...CompletionTask) *CompletionRunner {
	return &CompletionRunner{tasks: tasks, metrics: m}
}

// NewDefaultCompletionRunner 默认任务链
func NewDefaultCompletionRunner(deps CompletionDeps, m *metrics.Metrics) *CompletionRunner {
	return NewCompletionRunner(m,
		&inventoryUnitTask{shipmentRepo: deps.ShipmentRepo},
		&registrationTask{userRepo: deps.UserRepo, renewal: deps.Renewal},
		&businessCenterTask{userRepo: deps.UserRepo, catalogRepo: deps.CatalogRepo},
		lifetimeRankTask{},
		&renewalTask{userRepo: deps.UserRepo, catalogRepo: deps.CatalogRepo, renewal: deps.Renewal},
		&giftCardActivationTask{giftCardRepo: deps.GiftCardRepo},
		&confirmationMailTask{queue: deps.Queue, mailer: deps.Mailer},
		&promotionalCatalogTask{catalogRepo: deps.CatalogRepo},
		&postTaxTask{queue: deps.Queue},
	)
}

// Names 任务名列表
func (r *CompletionRunner) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for _, task := range r.tasks {
		names = append(names, task.Name())
	}
	return names
}

// Run 逐个执行，单个任务失败不影响后续任务
func (r *CompletionRunner) Run(ctx context.Context, cc *CompletionContext) {
	if r == nil || cc == nil || cc.Order == nil {
		return
	}
	if cc.Now.IsZero() {
		cc.Now = time.Now()
	}
	if cc.Policy == nil {
		cc.Policy = defaultPolicy{}
	}
	for _, task := range r.tasks {
		err := runCompletionTask(ctx, task, cc)
		r.metrics.RecordCompletionTask(ctx, task.Name(), err == nil)
		if err != nil {
			logger.Ctx(ctx).Warnw("order_completion_task_failed",
				"order_id", cc.Order.ID,
				"task", task.Name(),
				"error", err,
			)
		}
	}
}

func runCompletionTask(ctx context.Context, task CompletionTask, cc *CompletionContext) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()
	return task.Run(ctx, cc)
}

// orderInTaxon 订单中是否有商品属于指定分类，结果按分类名缓存
func orderInTaxon(cc *CompletionContext, catalogRepo repository.CatalogRepository, taxon string) (bool, error) {
	if cached, ok := cc.taxonCache[taxon]; ok {
		return cached, nil
	}
	found := false
	for _, item := range cc.Order.LineItems {
		ok, err := catalogRepo.IsProductInTaxonByNames(item.ProductID, []string{taxon})
		if err != nil {
			return false, err
		}
		if ok {
			found = true
			break
		}
	}
	if cc.taxonCache == nil {
		cc.taxonCache = make(map[string]bool)
	}
	cc.taxonCache[taxon] = found
	return found, nil
}

// inventoryUnitTask 每件商品生成一条已售库存单元
type inventoryUnitTask struct {
	shipmentRepo repository.ShipmentRepository
}

func (t *inventoryUnitTask) Name() string { return "inventory_units" }

func (t *inventoryUnitTask) Run(_ context.Context, cc *CompletionContext) error {
	count, err := t.shipmentRepo.CountInventoryUnits(cc.Order.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	shipments, err := t.shipmentRepo.ListByOrder(cc.Order.ID)
	if err != nil {
		return err
	}
	var shipmentID *uint
	if len(shipments) > 0 {
		id := shipments[0].ID
		shipmentID = &id
	}
	var units []models.InventoryUnit
	for _, item := range cc.Order.LineItems {
		for i := 0; i < item.Quantity; i++ {
			units = append(units, models.InventoryUnit{
				OrderID:    cc.Order.ID,
				ShipmentID: shipmentID,
				LineItemID: item.ID,
				VariantID:  item.VariantID,
				State:      constants.InventoryUnitSold,
				CreatedAt:  cc.Now,
			})
		}
	}
	return t.shipmentRepo.CreateInventoryUnits(units)
}

// registrationTask 未注册用户首单付清后升级为经销商
type registrationTask struct {
	userRepo repository.UserRepository
	renewal  config.RenewalConfig
}

func (t *registrationTask) Name() string { return "registration" }

func (t *registrationTask) Run(ctx context.Context, cc *CompletionContext) error {
	if cc.Owner == nil || cc.Owner.Status != constants.UserStatusUnregistered {
		return nil
	}
	role, err := t.userRepo.GetRoleByCode(constants.RoleCodeDistributor)
	if err != nil {
		return err
	}
	if role == nil {
		return fmt.Errorf("role %s not found", constants.RoleCodeDistributor)
	}
	if err := t.userRepo.AddRole(cc.Owner.ID, role.ID); err != nil {
		return err
	}
	if err := t.userRepo.UpdateStatus(cc.Owner.ID, constants.UserStatusActive); err != nil {
		return err
	}
	distributor, err := t.userRepo.GetDistributorByUserID(cc.Owner.ID)
	if err != nil {
		return err
	}
	if distributor != nil {
		renewalDate := cc.Policy.RenewalDate(cc.Now, t.renewal.Months, t.renewal.CutoffDay)
		if err := t.userRepo.UpdateDistributor(distributor.ID, map[string]interface{}{
			"active":       true,
			"renewal_date": renewalDate,
		}); err != nil {
			return err
		}
	}
	// 角色变化后旧 Token 不再可用
	if err := t.userRepo.BumpTokenVersion(cc.Owner.ID, cc.Now); err != nil {
		return err
	}
	cc.Owner.Status = constants.UserStatusActive
	return cache.DelUserAuthState(ctx, cc.Owner.ID)
}

// businessCenterTask 租户开启时购买业务中心商品创建业务中心
type businessCenterTask struct {
	userRepo    repository.UserRepository
	catalogRepo repository.CatalogRepository
}

func (t *businessCenterTask) Name() string { return "business_center" }

func (t *businessCenterTask) Run(_ context.Context, cc *CompletionContext) error {
	if !cc.Policy.CreatesBusinessCenter() {
		return nil
	}
	ok, err := orderInTaxon(cc, t.catalogRepo, constants.TaxonBusinessCenter)
	if err != nil || !ok {
		return err
	}
	distributor, err := t.userRepo.GetDistributorByUserID(cc.Order.UserID)
	if err != nil || distributor == nil {
		return err
	}
	return t.userRepo.CreateBusinessCenter(&models.BusinessCenter{
		DistributorID: distributor.ID,
		OrderID:       cc.Order.ID,
		CreatedAt:     cc.Now,
	})
}

// lifetimeRankTask 历史最高等级由佣金系统回写
type lifetimeRankTask struct{}

func (lifetimeRankTask) Name() string { return "lifetime_rank" }

func (lifetimeRankTask) Run(context.Context, *CompletionContext) error { return nil }

// renewalTask 购买续期商品后顺延会员续期日
type renewalTask struct {
	userRepo    repository.UserRepository
	catalogRepo repository.CatalogRepository
	renewal     config.RenewalConfig
}

func (t *renewalTask) Name() string { return "renewal" }

func (t *renewalTask) Run(ctx context.Context, cc *CompletionContext) error {
	ok, err := orderInTaxon(cc, t.catalogRepo, constants.TaxonRenewal)
	if err != nil || !ok {
		return err
	}
	distributor, err := t.userRepo.GetDistributorByUserID(cc.Order.UserID)
	if err != nil || distributor == nil {
		return err
	}
	anchor := cc.Now
	if distributor.RenewalDate != nil && distributor.RenewalDate.After(anchor) {
		anchor = *distributor.RenewalDate
	}
	renewalDate := cc.Policy.RenewalDate(anchor, t.renewal.Months, t.renewal.CutoffDay)
	if err := t.userRepo.UpdateDistributor(distributor.ID, map[string]interface{}{
		"renewal_date": renewalDate,
		"active":       true,
	}); err != nil {
		return err
	}
	_, err = cache.InvalidateUserCatalogs(ctx, cc.Order.UserID)
	return err
}

// giftCardActivationTask 激活本订单购买的礼品卡
type giftCardActivationTask struct {
	giftCardRepo repository.GiftCardRepository
}

func (t *giftCardActivationTask) Name() string { return "gift_card_activation" }

func (t *giftCardActivationTask) Run(_ context.Context, cc *CompletionContext) error {
	activated, err := t.giftCardRepo.ActivateByOrder(cc.Order.ID, cc.Now)
	if err != nil {
		return err
	}
	if activated > 0 {
		logger.Infow("order_gift_cards_activated", "order_id", cc.Order.ID, "count", activated)
	}
	return nil
}

// confirmationMailTask 优先入队，队列未启用时直接发送
type confirmationMailTask struct {
	queue  *queue.Client
	mailer OrderMailer
}

func (t *confirmationMailTask) Name() string { return "confirmation_mail" }

func (t *confirmationMailTask) Run(_ context.Context, cc *CompletionContext) error {
	if t.queue.Enabled() {
		return t.queue.EnqueueOrderMail(queue.OrderMailPayload{
			OrderID:  cc.Order.ID,
			Template: constants.MailTemplateConfirmed,
		})
	}
	if t.mailer == nil || cc.Owner == nil {
		return nil
	}
	return t.mailer.SendOrderMail(cc.Owner.Email, BuildOrderMailInput(cc.Order, cc.Owner, constants.MailTemplateConfirmed))
}

// promotionalCatalogTask 购买促销商品后该用户可购目录发生变化
type promotionalCatalogTask struct {
	catalogRepo repository.CatalogRepository
}

func (t *promotionalCatalogTask) Name() string { return "promotional_catalog" }

func (t *promotionalCatalogTask) Run(ctx context.Context, cc *CompletionContext) error {
	ok, err := orderInTaxon(cc, t.catalogRepo, constants.TaxonPromotional)
	if err != nil || !ok {
		return err
	}
	_, err = cache.InvalidateUserCatalogs(ctx, cc.Order.UserID)
	return err
}

// postTaxTask 外部计税订单完成后提交税务记录
type postTaxTask struct {
	queue *queue.Client
}

func (t *postTaxTask) Name() string { return "post_tax" }

func (t *postTaxTask) Run(_ context.Context, cc *CompletionContext) error {
	if !cc.Order.ExternalTax {
		return nil
	}
	return t.queue.EnqueueOrderPostTax(queue.OrderPostTaxPayload{OrderID: cc.Order.ID}, postTaxDelay)
}

// BuildOrderMailInput 组装订单邮件内容
func BuildOrderMailInput(order *models.Order, owner *models.User, template string) OrderMailInput {
	input := OrderMailInput{
		Template:     template,
		OrderNumber:  order.Number,
		State:        order.State,
		PaymentState: order.PaymentState,
		Currency:     order.Currency,
		ItemTotal:    order.ItemTotal,
		Adjustments:  order.Adjustments,
		Total:        order.Total,
		PaymentTotal: order.PaymentTotal,
		LineItems:    order.LineItems,
	}
	if owner != nil {
		input.CustomerName = owner.Login
	}
	for _, adjustment := range order.Adjustments {
		if adjustment.SourceType == constants.AdjustmentSourceShipment {
			input.ShippingLabel = adjustment.Label
			break
		}
	}
	return input
}
