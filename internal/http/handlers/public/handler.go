package public

import "github.com/hustbill/nodejs-api-server-sub001/internal/provider"

// Handler 用户侧订单接口处理器入口
type Handler struct {
	*provider.Container
}

// New 创建用户侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
