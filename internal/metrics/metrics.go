package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/hustbill/nodejs-api-server-sub001/order-core"

// Metrics 订单核心指标，nil 接收者上的记录调用均为空操作
type Metrics struct {
	checkoutsTotal       metric.Int64Counter
	paymentsTotal        metric.Int64Counter
	stateEventsTotal     metric.Int64Counter
	completionTasksTotal metric.Int64Counter
	checkoutDuration     metric.Float64Histogram
}

// NewMetrics 创建指标
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.checkoutsTotal, err = meter.Int64Counter(
		"order_checkouts_total",
		metric.WithDescription("Total number of checkout attempts by outcome"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_checkouts_total counter: %w", err)
	}

	m.paymentsTotal, err = meter.Int64Counter(
		"order_payments_total",
		metric.WithDescription("Total number of payment legs by method type and state"),
		metric.WithUnit("{payment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_payments_total counter: %w", err)
	}

	m.stateEventsTotal, err = meter.Int64Counter(
		"order_state_events_total",
		metric.WithDescription("Total number of recorded state transitions"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_state_events_total counter: %w", err)
	}

	m.completionTasksTotal, err = meter.Int64Counter(
		"order_completion_tasks_total",
		metric.WithDescription("Total number of post-payment completion tasks by outcome"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_completion_tasks_total counter: %w", err)
	}

	m.checkoutDuration, err = meter.Float64Histogram(
		"order_checkout_duration_seconds",
		metric.WithDescription("Duration of checkout operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_checkout_duration histogram: %w", err)
	}

	return m, nil
}

// NewGlobalMetrics 使用全局 MeterProvider 创建指标
func NewGlobalMetrics() (*Metrics, error) {
	return NewMetrics(otel.GetMeterProvider().Meter(meterName))
}

// RecordCheckout outcome: created / replayed / rejected / failed
func (m *Metrics) RecordCheckout(ctx context.Context, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.checkoutsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.checkoutDuration.Record(ctx, durationSeconds, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordPayment 记录一笔支付的结果
func (m *Metrics) RecordPayment(ctx context.Context, methodType string, state string) {
	if m == nil {
		return
	}
	m.paymentsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method_type", methodType),
		attribute.String("state", state),
	))
}

// RecordStateEvent 记录状态变更
func (m *Metrics) RecordStateEvent(ctx context.Context, name string, nextState string) {
	if m == nil {
		return
	}
	m.stateEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("name", name),
		attribute.String("next_state", nextState),
	))
}

// RecordCompletionTask 记录完成任务结果
func (m *Metrics) RecordCompletionTask(ctx context.Context, task string, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.completionTasksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task", task),
		attribute.String("status", status),
	))
}
