package constants

// 订单主状态常量
const (
	OrderStateCart           = "cart"
	OrderStatePayment        = "payment"
	OrderStateComplete       = "complete"
	OrderStateCancelled      = "cancelled"
	OrderStateAwaitingReturn = "awaiting_return"
	OrderStateReturned       = "returned"
)

// 订单支付状态常量
const (
	PaymentStateBalanceDue = "balance_due"
	PaymentStatePaid       = "paid"
	PaymentStateCreditOwed = "credit_owed"
	PaymentStateFailed     = "failed"
	PaymentStateRefund     = "refund"
	PaymentStatePending    = "pending"
)

// 订单发货状态常量
const (
	ShipmentStatePending   = "pending"
	ShipmentStateReady     = "ready"
	ShipmentStateBackorder = "backorder"
	ShipmentStateAssemble  = "assemble"
	ShipmentStateShipped   = "shipped"
)

// 单笔支付记录状态常量
const (
	PaymentRecordCheckout  = "checkout"
	PaymentRecordPending   = "pending"
	PaymentRecordCompleted = "completed"
	PaymentRecordFailed    = "failed"
	PaymentRecordVoid      = "void"
)

// 退货授权状态常量
const (
	ReturnAuthorizationAuthorized = "authorized"
	ReturnAuthorizationReceived   = "received"
	ReturnAuthorizationCancelled  = "cancelled"
)

// 库存单元状态常量
const (
	InventoryUnitSold     = "sold"
	InventoryUnitShipped  = "shipped"
	InventoryUnitReturned = "returned"
)

// 状态事件名称常量
const (
	StateEventOrder               = "order"
	StateEventPayment             = "payment"
	StateEventShipment            = "shipment"
	StateEventReturnAuthorization = "return_authorization"
)

// 状态事件主体类型常量
const (
	StatefulTypeOrder               = "Order"
	StatefulTypeReturnAuthorization = "ReturnAuthorization"
)

// 调整项来源常量
const (
	AdjustmentSourceShipment            = "Shipment"
	AdjustmentSourceOrder               = "Order"
	AdjustmentSourceReturnAuthorization = "ReturnAuthorization"
)

// 调整项发起方常量
const (
	AdjustmentOriginatorShippingMethod = "ShippingMethod"
	AdjustmentOriginatorTaxRate        = "TaxRate"
	AdjustmentOriginatorClientRank     = "ClientRank"
	AdjustmentOriginatorBonusRank      = "BonusRank"
)

// 支付方式类型常量
const (
	PaymentMethodTypeCash       = "cash"
	PaymentMethodTypeGiftCard   = "giftcard"
	PaymentMethodTypeCreditcard = "creditcard"
	PaymentMethodTypeDeferred   = "deferred"
)

// 支付来源类型常量
const (
	PaymentSourceCreditcard = "Creditcard"
	PaymentSourceGiftCard   = "GiftCard"
	PaymentSourceCash       = "Cash"
)

// 运费计算器类型常量
const (
	CalculatorFlatRate         = "flat_rate"
	CalculatorFlatPercent      = "flat_percent_item_total"
	CalculatorPerItem          = "per_item"
	CalculatorFlexiRate        = "flexi_rate"
	CalculatorPriceSack        = "price_sack"
	CalculableTypeShipping     = "ShippingMethod"
	CalculableTypeTaxRate      = "TaxRate"
	ShippingTaxCategoryPattern = "shipping"
)

// 用户状态常量
const (
	UserStatusActive       = "active"
	UserStatusInactive     = "inactive"
	UserStatusUnregistered = "unregistered"
)

// 角色编码常量
const (
	RoleCodeDistributor    = "D"
	RoleCodeRetailCustomer = "R"
	RoleCodePreferred      = "P"
	RoleCodeAdmin          = "A"
	RoleCodeSupport        = "CS"
	RoleCodeFulfillment    = "FS"
)

// 分类（taxon）名称常量
const (
	TaxonSystemKit      = "System Kit"
	TaxonPromotional    = "Promotional"
	TaxonBusinessCenter = "Business Center"
	TaxonRenewal        = "Renewal"
	TaxonGiftCard       = "Gift Card"
	TaxonRegistration   = "Registration"
)

// 队列常量
const (
	QueueDefault          = "default"
	TaskOrderMail         = "order:mail"
	TaskOrderPostTax      = "order:post_tax"
	MailTemplateConfirmed = "order_confirmation"
	MailTemplateCancelled = "order_cancelled"
	MailTemplateShipped   = "order_shipped"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "oc"
)

// 偏好设置键常量
const (
	PreferenceAllowCancelInAssemble = "allow_cancel_order_in_assemble"
	PreferenceDefaultCurrency       = "default_currency"
)

// 目录常量
const (
	CatalogCodeDefault = "SP"
)
