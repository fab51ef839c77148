package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hustbill/nodejs-api-server-sub001/internal/logger"
	"github.com/hustbill/nodejs-api-server-sub001/internal/provider"
	"github.com/hustbill/nodejs-api-server-sub001/internal/queue"
	"github.com/hustbill/nodejs-api-server-sub001/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderMail, c.handleOrderMail)
	mux.HandleFunc(queue.TaskOrderPostTax, c.handleOrderPostTax)
}

func (c *Consumer) handleOrderMail(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.Container == nil {
		logger.Debugw("worker_order_mail_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderMailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_mail_unmarshal_failed", "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_mail_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.OrderService == nil || c.EmailService == nil {
		logger.Warnw("worker_order_mail_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	err := c.OrderService.DeliverOrderMail(ctx, payload.OrderID, payload.Template, c.EmailService)
	return classifyOrderMailError(payload, err)
}

// classifyOrderMailError 不可恢复的错误不再重试
func classifyOrderMailError(payload queue.OrderMailPayload, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrOrderNotFound):
		logger.Debugw("worker_order_mail_skip_order_not_found", "order_id", payload.OrderID)
		return nil
	case errors.Is(err, service.ErrEmailServiceDisabled),
		errors.Is(err, service.ErrEmailServiceNotConfigured):
		logger.Debugw("worker_order_mail_skip_email_disabled", "order_id", payload.OrderID, "error", err)
		return nil
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrEmailRecipientRejected):
		logger.Warnw("worker_order_mail_receiver_rejected", "order_id", payload.OrderID, "template", payload.Template, "error", err)
		return nil
	default:
		logger.Warnw("worker_order_mail_send_failed", "order_id", payload.OrderID, "template", payload.Template, "error", err)
		return err
	}
}

func (c *Consumer) handleOrderPostTax(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.Container == nil {
		logger.Debugw("worker_order_post_tax_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderPostTaxPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_post_tax_unmarshal_failed", "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_post_tax_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.OrderService == nil {
		logger.Warnw("worker_order_post_tax_skip_order_service_nil", "order_id", payload.OrderID)
		return nil
	}
	err := c.OrderService.CommitOrderTax(ctx, payload.OrderID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrOrderNotFound):
		logger.Debugw("worker_order_post_tax_skip_order_not_found", "order_id", payload.OrderID)
		return nil
	default:
		// 交由队列按退避重试
		logger.Warnw("worker_order_post_tax_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
}
