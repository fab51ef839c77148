package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hustbill/nodejs-api-server-sub001/internal/authz"
	"github.com/hustbill/nodejs-api-server-sub001/internal/cache"
	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
	adminhandlers "github.com/hustbill/nodejs-api-server-sub001/internal/http/handlers/admin"
	publichandlers "github.com/hustbill/nodejs-api-server-sub001/internal/http/handlers/public"
	"github.com/hustbill/nodejs-api-server-sub001/internal/http/response"
	"github.com/hustbill/nodejs-api-server-sub001/internal/logger"
	"github.com/hustbill/nodejs-api-server-sub001/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按用户侧/运营侧分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "oc"
	}
	redisClient := cache.Client()
	checkoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:checkout", redisPrefix),
		WindowSeconds: cfg.Security.CheckoutRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CheckoutRateLimit.MaxRequests,
		Message:       "too many checkout attempts",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.JWT.SecretKey, c.UserRepo))
		{
			user.POST("/orders", RateLimitMiddleware(redisClient, checkoutRule, KeyByUserID), publicHandler.Checkout)
			user.POST("/orders/preview", publicHandler.PreviewOrder)
			user.GET("/orders", publicHandler.ListOrders)
			user.GET("/orders/:id", publicHandler.GetOrder)
			user.GET("/orders/:id/state-events", publicHandler.ListStateEvents)
			user.POST("/orders/:id/cancel", publicHandler.CancelOrder)
			user.POST("/orders/:id/payments", publicHandler.PayOrder)
			user.PUT("/orders/:id/line-items", publicHandler.ChangeLineItems)
			user.PUT("/orders/:id/shipping-address", publicHandler.ChangeShippingAddress)
			user.PUT("/orders/:id/shipping-method", publicHandler.ChangeShippingMethod)
			user.GET("/orders/:id/return-authorizations", publicHandler.ListReturnAuthorizations)
			user.POST("/orders/:id/return-authorizations", publicHandler.CreateReturnAuthorization)
		}

		// 运营接口（需鉴权 + RBAC）
		admin := apiV1.Group("/admin")
		admin.Use(UserJWTAuthMiddleware(cfg.JWT.SecretKey, c.UserRepo), AdminRBACMiddleware(c.AuthzService, c.UserRepo))
		{
			admin.GET("/orders", adminHandler.AdminListOrders)
			admin.GET("/orders/:id", adminHandler.AdminGetOrder)
			admin.GET("/orders/:id/state-events", adminHandler.AdminListStateEvents)
			admin.GET("/orders/:id/return-authorizations", adminHandler.AdminListReturnAuthorizations)
			admin.POST("/users/:user_id/orders", adminHandler.AdminCheckout)
			admin.POST("/orders/:id/adjustments", adminHandler.AdminAddAdjustment)
			admin.POST("/orders/:id/payments", adminHandler.AdminPayOrder)
			admin.POST("/orders/:id/payments/:payment_id/capture", adminHandler.AdminCapturePayment)
			admin.POST("/orders/:id/cancel", adminHandler.AdminCancelOrder)
			admin.POST("/orders/:id/refund", adminHandler.AdminRefundOrder)
			admin.PATCH("/orders/:id/shipment", adminHandler.AdminUpdateShipment)
			admin.POST("/return-authorizations/:id/receive", adminHandler.AdminReceiveReturnAuthorization)
			admin.POST("/return-authorizations/:id/cancel", adminHandler.AdminCancelReturnAuthorization)
			admin.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
			admin.POST("/authz/roles/:role/policies", adminHandler.GrantAuthzRolePolicy)
			admin.DELETE("/authz/roles/:role/policies", adminHandler.RevokeAuthzRolePolicy)
			admin.POST("/authz/users/:user_id/policies", adminHandler.GrantAuthzUserPolicy)
			admin.POST("/authz/reload", adminHandler.ReloadAuthzPolicy)
			admin.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
				response.Success(ctx, buildAdminPermissionCatalog(r))
			})
		}
	}

	// 健康检查
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok", "redis": cache.Status(ctx.Request.Context())})
	})

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	if segments[1] == "authz" {
		return "authz"
	}
	return segments[1]
}
