package service

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
)

var (
	ErrEmailServiceDisabled      = errors.New("email service disabled")
	ErrEmailServiceNotConfigured = errors.New("email service not configured")
	ErrInvalidEmail              = errors.New("invalid email address")
	ErrEmailRecipientRejected    = errors.New("email recipient rejected")
)

// OrderMailInput 订单邮件内容
type OrderMailInput struct {
	Template      string
	OrderNumber   string
	CustomerName  string
	State         string
	PaymentState  string
	Currency      string
	ItemTotal     models.Money
	Adjustments   []models.Adjustment
	Total         models.Money
	PaymentTotal  models.Money
	LineItems     []models.LineItem
	ShippingLabel string
}

// EmailService 邮件发送服务
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// SendOrderMail 按模板发送订单通知
func (s *EmailService) SendOrderMail(toEmail string, input OrderMailInput) error {
	subject, body := buildOrderMailContent(input)
	return s.sendTextEmail(toEmail, subject, body)
}

func (s *EmailService) sendTextEmail(toEmail, subject, body string) error {
	if s.cfg == nil || !s.cfg.Enabled {
		return ErrEmailServiceDisabled
	}
	if s.cfg.Host == "" || s.cfg.Port == 0 || s.cfg.From == "" {
		return ErrEmailServiceNotConfigured
	}
	if _, err := mail.ParseAddress(toEmail); err != nil {
		return ErrInvalidEmail
	}

	from := buildFromAddress(s.cfg.From, s.cfg.FromName)
	msg := []byte(buildEmailMessage(from, toEmail, subject, body))
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" || s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	return normalizeEmailSendError(deliverSMTP(addr, auth, s.cfg, []string{toEmail}, msg))
}

func buildOrderMailContent(input OrderMailInput) (string, string) {
	var buf strings.Builder
	name := strings.TrimSpace(input.CustomerName)
	if name == "" {
		name = "Customer"
	}
	fmt.Fprintf(&buf, "Dear %s,\n\n", name)

	var subject string
	switch input.Template {
	case constants.MailTemplateCancelled:
		subject = fmt.Sprintf("Order %s cancelled", input.OrderNumber)
		fmt.Fprintf(&buf, "Your order %s has been cancelled.", input.OrderNumber)
		if input.PaymentTotal.Decimal.IsPositive() {
			fmt.Fprintf(&buf, " A credit of %s %s will be refunded.", input.PaymentTotal.String(), input.Currency)
		}
		buf.WriteString("\n")
		return subject, buf.String()
	case constants.MailTemplateShipped:
		subject = fmt.Sprintf("Order %s shipped", input.OrderNumber)
		fmt.Fprintf(&buf, "Your order %s is on its way via %s.\n", input.OrderNumber, input.ShippingLabel)
		return subject, buf.String()
	default:
		subject = fmt.Sprintf("Order %s confirmation", input.OrderNumber)
		fmt.Fprintf(&buf, "Thank you for your order %s.\n\n", input.OrderNumber)
	}

	for _, item := range input.LineItems {
		fmt.Fprintf(&buf, "%-10s %-32s x%-4d %s\n", item.SKU, item.Name, item.Quantity, models.NewMoneyFromDecimal(item.Amount()).String())
	}
	fmt.Fprintf(&buf, "\nSubtotal: %s %s\n", input.ItemTotal.String(), input.Currency)
	for _, adjustment := range input.Adjustments {
		fmt.Fprintf(&buf, "%s: %s %s\n", adjustment.Label, adjustment.Amount.String(), input.Currency)
	}
	fmt.Fprintf(&buf, "Total: %s %s\n", input.Total.String(), input.Currency)
	if input.PaymentState == constants.PaymentStateBalanceDue {
		fmt.Fprintf(&buf, "Balance due: %s %s\n", input.Total.Minus(input.PaymentTotal).String(), input.Currency)
	}
	return subject, buf.String()
}

func buildFromAddress(from, name string) string {
	if strings.TrimSpace(name) == "" {
		return from
	}
	encoded := mime.QEncoding.Encode("UTF-8", name)
	return (&mail.Address{Name: encoded, Address: from}).String()
}

func buildEmailMessage(from, to, subject, body string) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.String()
}

// deliverSMTP UseSSL 为隐式 TLS，UseTLS 为 STARTTLS
func deliverSMTP(addr string, auth smtp.Auth, cfg *config.EmailConfig, to []string, msg []byte) error {
	var client *smtp.Client
	if cfg.UseSSL {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.Host})
		if err != nil {
			return err
		}
		client, err = smtp.NewClient(conn, cfg.Host)
		if err != nil {
			conn.Close()
			return err
		}
	} else {
		var err error
		client, err = smtp.Dial(addr)
		if err != nil {
			return err
		}
		if cfg.UseTLS {
			if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
				client.Close()
				return err
			}
		}
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}
	if err := client.Mail(cfg.From); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func normalizeEmailSendError(err error) error {
	if err == nil {
		return nil
	}
	if isEmailRecipientRejected(err) {
		return ErrEmailRecipientRejected
	}
	return err
}

func isEmailRecipientRejected(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	if message == "" {
		return false
	}
	for _, keyword := range []string{
		"no such recipient",
		"no such user",
		"recipient address rejected",
		"user unknown",
		"mailbox unavailable",
	} {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	if strings.Contains(message, "550") {
		for _, hint := range []string{"recipient", "user", "mailbox", "rcpt"} {
			if strings.Contains(message, hint) {
				return true
			}
		}
	}
	return false
}
