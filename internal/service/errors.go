package service

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind 业务错误分类
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindPermission ErrorKind = "permission"
	ErrorKindNotFound   ErrorKind = "not_found"
	ErrorKindConflict   ErrorKind = "conflict"
	ErrorKindExternal   ErrorKind = "external"
)

// FieldFailure 字段级校验失败
type FieldFailure struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// OrderError 订单业务错误，Code 为稳定的机器可读编码
type OrderError struct {
	Kind     ErrorKind
	Code     string
	Message  string
	Failures []FieldFailure
	Err      error
}

func (e *OrderError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Code
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OrderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is 按错误编码比较，便于 errors.Is 匹配哨兵错误
func (e *OrderError) Is(target error) bool {
	var other *OrderError
	if !errors.As(target, &other) || other == nil || e == nil {
		return false
	}
	return e.Code == other.Code
}

// Status 对应的 HTTP 状态码
func (e *OrderError) Status() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case ErrorKindValidation:
		return http.StatusBadRequest
	case ErrorKindPermission:
		return http.StatusForbidden
	case ErrorKindNotFound:
		return http.StatusNotFound
	case ErrorKindConflict:
		return http.StatusConflict
	case ErrorKindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newOrderError(kind ErrorKind, code string) *OrderError {
	return &OrderError{Kind: kind, Code: code}
}

// withDetail 基于哨兵错误生成带上下文的新错误
func withDetail(sentinel *OrderError, format string, args ...interface{}) *OrderError {
	return &OrderError{
		Kind:    sentinel.Kind,
		Code:    sentinel.Code,
		Message: fmt.Sprintf(format, args...),
	}
}

// withFailures 附加字段级失败信息
func withFailures(sentinel *OrderError, failures []FieldFailure) *OrderError {
	return &OrderError{
		Kind:     sentinel.Kind,
		Code:     sentinel.Code,
		Failures: failures,
	}
}

// wrapExternal 外部依赖错误，内部细节只保留在 Err 中
func wrapExternal(sentinel *OrderError, err error) *OrderError {
	return &OrderError{
		Kind:    sentinel.Kind,
		Code:    sentinel.Code,
		Message: sentinel.Message,
		Err:     err,
	}
}

var (
	ErrInvalidVariantID               = newOrderError(ErrorKindValidation, "InvalidVariantId")
	ErrInvalidRoleID                  = newOrderError(ErrorKindValidation, "InvalidRoleId")
	ErrInvalidRoleCode                = newOrderError(ErrorKindValidation, "InvalidRoleCode")
	ErrInvalidPersonalizedValues      = newOrderError(ErrorKindValidation, "InvalidPersonalizedValues")
	ErrInvalidLineItems               = newOrderError(ErrorKindValidation, "InvalidLineItems")
	ErrInvalidShippingAddress         = newOrderError(ErrorKindValidation, "InvalidShippingAddress")
	ErrInvalidBillingAddress          = newOrderError(ErrorKindValidation, "InvalidBillingAddress")
	ErrInvalidShippingMethodID        = newOrderError(ErrorKindValidation, "InvalidShippingMethodId")
	ErrShippingMethodIsNotAvailable   = newOrderError(ErrorKindValidation, "ShippingMethodIsNotAvailable")
	ErrInvalidPaymentMethodID         = newOrderError(ErrorKindValidation, "InvalidPaymentMethodId")
	ErrInvalidPaymentAmount           = newOrderError(ErrorKindValidation, "InvalidPaymentAmount")
	ErrInvalidGiftCardCode            = newOrderError(ErrorKindValidation, "InvalidGiftCardCode")
	ErrInvalidAdjustment              = newOrderError(ErrorKindValidation, "InvalidAdjustment")
	ErrInvalidReturnItems             = newOrderError(ErrorKindValidation, "InvalidReturnItems")
	ErrInvalidShipmentState           = newOrderError(ErrorKindValidation, "InvalidShipmentState")
	ErrNoPermissionToGetVariantDetail = newOrderError(ErrorKindPermission, "NoPermissionToGetVariantDetail")
	ErrNoPermissionToAccessOrder      = newOrderError(ErrorKindPermission, "NoPermissionToAccessOrder")
	ErrFeatureDisabled                = newOrderError(ErrorKindPermission, "FeatureDisabled")
	ErrOrderNotFound                  = newOrderError(ErrorKindNotFound, "OrderNotFound")
	ErrUserNotFound                   = newOrderError(ErrorKindNotFound, "UserNotFound")
	ErrPaymentNotFound                = newOrderError(ErrorKindNotFound, "PaymentNotFound")
	ErrReturnAuthorizationNotFound    = newOrderError(ErrorKindNotFound, "ReturnAuthorizationNotFound")
	ErrOutOfStock                     = newOrderError(ErrorKindConflict, "InvalidLineItems")
	ErrQuantityCapExceeded            = newOrderError(ErrorKindConflict, "InvalidLineItems")
	ErrInsufficientGiftCardBalance    = newOrderError(ErrorKindConflict, "InsufficientGiftCardBalance")
	ErrNotAllowedToCancelOrder        = newOrderError(ErrorKindConflict, "NotAllowedToCancelOrder")
	ErrNotAllowedToRefundOrder        = newOrderError(ErrorKindConflict, "NotAllowedToRefundOrder")
	ErrNotAllowedToCreateReturnAuth   = newOrderError(ErrorKindConflict, "NotAllowedToCreateReturnAuthorization")
	ErrNotAllowedToChangeReturnAuth   = newOrderError(ErrorKindConflict, "NotAllowedToChangeReturnAuthorization")
	ErrNotAllowedToChangeOrder        = newOrderError(ErrorKindConflict, "NotAllowedToChangeOrder")
	ErrNotAllowedToCapturePayment     = newOrderError(ErrorKindConflict, "NotAllowedToCapturePayment")
	ErrOrderTotalChanged              = newOrderError(ErrorKindConflict, "OrderTotalChanged")
	ErrSpendLimitExceeded             = newOrderError(ErrorKindConflict, "SpendLimitExceeded")
	ErrClientRequestConflict          = newOrderError(ErrorKindConflict, "ClientRequestConflict")
	ErrPaymentFailed                  = &OrderError{Kind: ErrorKindExternal, Code: "PaymentFailed", Message: "payment was not accepted"}
	ErrTaxServiceUnavailable          = &OrderError{Kind: ErrorKindExternal, Code: "TaxServiceUnavailable", Message: "tax service unavailable"}
)
