package shared

import (
	"github.com/hustbill/nodejs-api-server-sub001/internal/http/response"
	"github.com/hustbill/nodejs-api-server-sub001/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 携带 request_id 与当前用户的日志实例
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	var kv []interface{}
	if id := c.GetString("request_id"); id != "" {
		kv = append(kv, "request_id", id)
	}
	if uid, ok := c.Get("user_id"); ok {
		kv = append(kv, "user_id", uid)
	}
	return logger.SW(kv...)
}

// RespondError 返回错误响应；4xx 记 warn，其余记 error
func RespondError(c *gin.Context, code int, msg string, err error) {
	if err != nil {
		log := RequestLog(c)
		fields := []interface{}{"code", code, "message", msg, "path", c.FullPath(), "error", err}
		if code >= 400 && code < 500 {
			log.Warnw("handler_rejected", fields...)
		} else {
			log.Errorw("handler_error", fields...)
		}
	}
	response.Error(c, code, msg)
}
