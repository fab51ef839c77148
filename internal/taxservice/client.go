package taxservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid   = errors.New("tax service config invalid")
	ErrRequestFailed   = errors.New("tax service request failed")
	ErrResponseInvalid = errors.New("tax service response invalid")
)

const defaultTimeout = 5 * time.Second

// Config 外部税务服务配置
type Config struct {
	BaseURL     string
	APIKey      string
	CompanyCode string
	Timeout     time.Duration
}

// Address 税务地址
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Line 报价行
type Line struct {
	Number   string          `json:"number"`
	ItemCode string          `json:"item_code"`
	Quantity int             `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
	TaxCode  string          `json:"tax_code,omitempty"`
}

// QuoteRequest 税额报价请求
type QuoteRequest struct {
	DocumentCode string          `json:"document_code"`
	CustomerCode string          `json:"customer_code"`
	CompanyCode  string          `json:"company_code"`
	Currency     string          `json:"currency"`
	Date         string          `json:"date"`
	Address      Address         `json:"address"`
	Lines        []Line          `json:"lines"`
	Shipping     decimal.Decimal `json:"shipping"`
}

// LineTax 单行税额
type LineTax struct {
	Number string          `json:"number"`
	Tax    decimal.Decimal `json:"tax"`
}

// Quote 税额报价结果
type Quote struct {
	TotalItemTax decimal.Decimal `json:"total_item_tax"`
	ShippingTax  decimal.Decimal `json:"shipping_tax"`
	Lines        []LineTax       `json:"lines"`
}

// LineTaxes 按行号索引的税额
func (q *Quote) LineTaxes() map[string]decimal.Decimal {
	result := make(map[string]decimal.Decimal)
	if q == nil {
		return result
	}
	for _, line := range q.Lines {
		result[line.Number] = line.Tax
	}
	return result
}

// Client 外部税务服务客户端
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient 创建客户端
func NewClient(cfg Config) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base_url is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: base_url is invalid", ErrConfigInvalid)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{cfg: cfg, httpClient: &http.Client{}}, nil
}

// Quote 获取订单税额（不落账）
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	var quote Quote
	if err := c.post(ctx, "/v1/tax/quote", req, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// Commit 提交已完成订单的税额
func (c *Client) Commit(ctx context.Context, req QuoteRequest) error {
	return c.post(ctx, "/v1/tax/commit", req, nil)
}

func (c *Client) post(ctx context.Context, path string, payload QuoteRequest, dest interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if payload.CompanyCode == "" {
		payload.CompanyCode = c.cfg.CompanyCode
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode request failed", ErrRequestFailed)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s status %d", ErrResponseInvalid, path, resp.StatusCode)
	}
	if dest == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, dest); err != nil {
		return fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return nil
}
