package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid   = errors.New("stripe config invalid")
	ErrRequestFailed   = errors.New("stripe request failed")
	ErrResponseInvalid = errors.New("stripe response invalid")
)

const (
	defaultAPIBaseURL = "https://api.stripe.com"
	defaultTimeout    = 12 * time.Second
)

// 支付意图在订单侧的归一化状态
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {},
	"CLP": {},
	"DJF": {},
	"GNF": {},
	"JPY": {},
	"KMF": {},
	"KRW": {},
	"MGA": {},
	"PYG": {},
	"RWF": {},
	"UGX": {},
	"VND": {},
	"VUV": {},
	"XAF": {},
	"XOF": {},
	"XPF": {},
}

type idempotencyKeyCtx struct{}

// WithIdempotencyKey 为本次网关请求附加幂等键
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

// Config 信用卡网关配置
type Config struct {
	SecretKey  string        `json:"secret_key"`
	APIBaseURL string        `json:"api_base_url"`
	Timeout    time.Duration `json:"timeout"`
}

// AuthorizeInput 预授权输入
type AuthorizeInput struct {
	OrderNumber   string
	PaymentID     uint
	Amount        string
	Currency      string
	PaymentMethod string // 网关保存的卡令牌
	Customer      string
	Description   string
}

// IntentResult 支付意图结果
type IntentResult struct {
	PaymentIntentID string
	Status          string // completed / pending / failed
	GatewayStatus   string
	Amount          string
	Currency        string
	FailureMessage  string
	Raw             map[string]interface{}
}

// ValidateConfig 校验配置
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return fmt.Errorf("%w: secret_key is required", ErrConfigInvalid)
	}
	cfg.normalize()
	if _, err := url.ParseRequestURI(cfg.APIBaseURL); err != nil {
		return fmt.Errorf("%w: api_base_url is invalid", ErrConfigInvalid)
	}
	return nil
}

// Authorize 创建并确认手动扣款的支付意图，成功时资金处于冻结状态
func Authorize(ctx context.Context, cfg *Config, input AuthorizeInput) (*IntentResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	orderNumber := strings.TrimSpace(input.OrderNumber)
	if orderNumber == "" {
		return nil, fmt.Errorf("%w: order_number is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(input.PaymentMethod) == "" {
		return nil, fmt.Errorf("%w: payment_method is required", ErrConfigInvalid)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrConfigInvalid)
	}
	minorAmount, err := toMinorAmount(input.Amount, currency)
	if err != nil {
		return nil, err
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = orderNumber
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(minorAmount, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("capture_method", "manual")
	form.Set("confirm", "true")
	form.Set("payment_method", strings.TrimSpace(input.PaymentMethod))
	form.Set("description", description)
	form.Set("metadata[payment_id]", strconv.FormatUint(uint64(input.PaymentID), 10))
	form.Set("metadata[order_number]", orderNumber)
	if customer := strings.TrimSpace(input.Customer); customer != "" {
		form.Set("customer", customer)
	}

	respBody, statusCode, err := doFormRequest(ctx, cfg, http.MethodPost, "/v1/payment_intents", form)
	if err != nil {
		return nil, err
	}
	return parseIntentResponse(respBody, statusCode, "create payment intent")
}

// Capture 扣款已冻结的支付意图，amount 为空时扣全额
func Capture(ctx context.Context, cfg *Config, paymentIntentID string, amount string, currency string) (*IntentResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, fmt.Errorf("%w: payment_intent_id is required", ErrConfigInvalid)
	}
	form := url.Values{}
	if strings.TrimSpace(amount) != "" {
		minorAmount, err := toMinorAmount(amount, currency)
		if err != nil {
			return nil, err
		}
		form.Set("amount_to_capture", strconv.FormatInt(minorAmount, 10))
	}
	path := fmt.Sprintf("/v1/payment_intents/%s/capture", url.PathEscape(paymentIntentID))
	respBody, statusCode, err := doFormRequest(ctx, cfg, http.MethodPost, path, form)
	if err != nil {
		return nil, err
	}
	return parseIntentResponse(respBody, statusCode, "capture payment intent")
}

// Cancel 释放尚未扣款的冻结资金
func Cancel(ctx context.Context, cfg *Config, paymentIntentID string) (*IntentResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, fmt.Errorf("%w: payment_intent_id is required", ErrConfigInvalid)
	}
	path := fmt.Sprintf("/v1/payment_intents/%s/cancel", url.PathEscape(paymentIntentID))
	respBody, statusCode, err := doFormRequest(ctx, cfg, http.MethodPost, path, url.Values{})
	if err != nil {
		return nil, err
	}
	return parseIntentResponse(respBody, statusCode, "cancel payment intent")
}

// parseIntentResponse 402 视为卡被拒，返回 failed 结果而不是错误
func parseIntentResponse(body []byte, statusCode int, action string) (*IntentResult, error) {
	raw, err := decodeRawMap(body)
	if err != nil {
		return nil, err
	}
	if statusCode == http.StatusPaymentRequired {
		errRaw := readMap(raw, "error")
		result := &IntentResult{
			Status:         StatusFailed,
			GatewayStatus:  strings.TrimSpace(readString(errRaw, "code")),
			FailureMessage: strings.TrimSpace(readString(errRaw, "message")),
			Raw:            raw,
		}
		if intent := readMap(errRaw, "payment_intent"); intent != nil {
			result.PaymentIntentID = strings.TrimSpace(readString(intent, "id"))
		}
		return result, nil
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("%w: %s status %d", ErrResponseInvalid, action, statusCode)
	}
	result := &IntentResult{Raw: raw}
	result.PaymentIntentID = strings.TrimSpace(readString(raw, "id"))
	result.GatewayStatus = strings.TrimSpace(readString(raw, "status"))
	result.Status = MapIntentStatus(result.GatewayStatus)
	result.Currency = strings.ToUpper(strings.TrimSpace(readString(raw, "currency")))
	amountMinor := readInt64(raw, "amount_received")
	if amountMinor <= 0 {
		amountMinor = readInt64(raw, "amount")
	}
	if amountMinor > 0 && result.Currency != "" {
		result.Amount = fromMinorAmount(amountMinor, result.Currency)
	}
	if lastErr := readMap(raw, "last_payment_error"); lastErr != nil {
		result.FailureMessage = strings.TrimSpace(readString(lastErr, "message"))
	}
	if result.PaymentIntentID == "" {
		return nil, fmt.Errorf("%w: missing payment intent id", ErrResponseInvalid)
	}
	return result, nil
}

// MapIntentStatus 支付意图状态映射为订单支付状态
func MapIntentStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "succeeded":
		return StatusCompleted
	case "canceled", "requires_payment_method":
		return StatusFailed
	default:
		return StatusPending
	}
}

func (c *Config) normalize() {
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
}

func (c *Config) timeout() time.Duration {
	if c == nil || c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

func (c *Config) idempotencyKey(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	key, _ := ctx.Value(idempotencyKeyCtx{}).(string)
	return key
}

func toMinorAmount(amount string, currency string) (int64, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("%w: amount is invalid", ErrConfigInvalid)
	}
	if parsed.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("%w: amount must be greater than zero", ErrConfigInvalid)
	}
	scale := currencyScale(currency)
	minor := parsed.Shift(int32(scale)).Round(0)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount precision is invalid", ErrConfigInvalid)
	}
	return minor.IntPart(), nil
}

func fromMinorAmount(minor int64, currency string) string {
	scale := currencyScale(currency)
	return decimal.NewFromInt(minor).Shift(int32(-scale)).StringFixed(int32(scale))
}

func currencyScale(currency string) int {
	upper := strings.ToUpper(strings.TrimSpace(currency))
	if _, ok := zeroDecimalCurrencies[upper]; ok {
		return 0
	}
	return 2
}

func doFormRequest(ctx context.Context, cfg *Config, method, path string, form url.Values) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if key := strings.TrimSpace(cfg.idempotencyKey(ctx)); key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := (&http.Client{Timeout: cfg.timeout()}).Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	return body, resp.StatusCode, nil
}

func decodeRawMap(body []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return raw, nil
}

func readString(raw map[string]interface{}, key string) string {
	if raw == nil || strings.TrimSpace(key) == "" {
		return ""
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case float64:
		return strings.TrimSpace(strconv.FormatInt(int64(typed), 10))
	case int64:
		return strings.TrimSpace(strconv.FormatInt(typed, 10))
	case int:
		return strings.TrimSpace(strconv.Itoa(typed))
	default:
		return ""
	}
}

func readMap(raw map[string]interface{}, key string) map[string]interface{} {
	if raw == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return nil
	}
	mapped, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	return mapped
}

func readInt64(raw map[string]interface{}, key string) int64 {
	if raw == nil || strings.TrimSpace(key) == "" {
		return 0
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return 0
	}
	switch typed := value.(type) {
	case int64:
		return typed
	case int:
		return int64(typed)
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
		floatVal, err := typed.Float64()
		if err != nil {
			return 0
		}
		return int64(floatVal)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
