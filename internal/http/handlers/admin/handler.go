package admin

import "github.com/hustbill/nodejs-api-server-sub001/internal/provider"

// Handler 运营后台接口处理器入口
// 说明：操作人为已登录用户，访问权限由 RBAC 中间件与订单读写授权共同决定。
type Handler struct {
	*provider.Container
}

// New 创建后台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
