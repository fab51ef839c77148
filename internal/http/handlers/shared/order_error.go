package shared

import (
	"context"
	"errors"

	"github.com/hustbill/nodejs-api-server-sub001/internal/http/response"
	"github.com/hustbill/nodejs-api-server-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// MappedError 定义非业务错误到接口错误响应的映射关系。
type MappedError struct {
	Target error
	Code   int
	Msg    string
}

// commonErrorRules 订单接口通用的错误映射
var commonErrorRules = []MappedError{
	{Target: context.DeadlineExceeded, Code: response.CodeBadGateway, Msg: "upstream request timed out"},
	{Target: context.Canceled, Code: response.CodeBadRequest, Msg: "request cancelled"},
	{Target: service.ErrEmailServiceNotConfigured, Code: response.CodeInternal, Msg: "email service not configured"},
}

// RespondOrderError 将订单错误转换为接口响应。
// 业务错误携带稳定编码与字段失败列表，外部依赖错误只返回通用提示。
func RespondOrderError(c *gin.Context, err error, rules ...MappedError) {
	if err == nil {
		return
	}
	var orderErr *service.OrderError
	if errors.As(err, &orderErr) {
		respondTypedOrderError(c, orderErr)
		return
	}
	for _, rule := range append(rules, commonErrorRules...) {
		if errors.Is(err, rule.Target) {
			RespondError(c, rule.Code, rule.Msg, err)
			return
		}
	}
	RespondError(c, response.CodeInternal, "internal error", err)
}

func respondTypedOrderError(c *gin.Context, orderErr *service.OrderError) {
	status := orderErr.Status()
	data := gin.H{"code": orderErr.Code}
	if len(orderErr.Failures) > 0 {
		data["failures"] = orderErr.Failures
	}

	if orderErr.Kind == service.ErrorKindExternal {
		RequestLog(c).Errorw("order_external_dependency_failed",
			"code", orderErr.Code,
			"error", orderErr,
		)
		response.ErrorWithData(c, status, externalMessage(orderErr), data)
		return
	}

	msg := orderErr.Message
	if msg == "" {
		msg = orderErr.Code
	}
	if status >= response.CodeInternal {
		RequestLog(c).Errorw("order_handler_error", "code", orderErr.Code, "error", orderErr)
	}
	response.ErrorWithData(c, status, msg, data)
}

func externalMessage(orderErr *service.OrderError) string {
	switch {
	case errors.Is(orderErr, service.ErrPaymentFailed):
		return "payment was not accepted"
	case errors.Is(orderErr, service.ErrTaxServiceUnavailable):
		return "tax service unavailable"
	default:
		return "upstream service unavailable"
	}
}
