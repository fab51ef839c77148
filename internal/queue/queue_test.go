package queue

import (
	"encoding/json"
	"testing"

	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
)

func TestDisabledClientSkipsEnqueue(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("expected disabled client")
	}
	if err := client.EnqueueOrderMail(OrderMailPayload{OrderID: 1, Template: "order_confirmation"}); err != nil {
		t.Fatalf("enqueue mail: %v", err)
	}
	if err := client.EnqueueOrderPostTax(OrderPostTaxPayload{OrderID: 1}, -1); err != nil {
		t.Fatalf("enqueue post tax: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestTaskPayloads(t *testing.T) {
	task, taskID, err := NewOrderMailTask(OrderMailPayload{OrderID: 9, Template: "order_confirmation"})
	if err != nil {
		t.Fatalf("new mail task: %v", err)
	}
	if task.Type() != TaskOrderMail {
		t.Fatalf("unexpected type: %s", task.Type())
	}
	if taskID != TaskOrderMail+":9:order_confirmation" {
		t.Fatalf("unexpected task id: %s", taskID)
	}
	var payload OrderMailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.OrderID != 9 || payload.Template != "order_confirmation" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	taxTask, taxTaskID, err := NewOrderPostTaxTask(OrderPostTaxPayload{OrderID: 3})
	if err != nil {
		t.Fatalf("new post tax task: %v", err)
	}
	if taxTask.Type() != TaskOrderPostTax {
		t.Fatalf("unexpected type: %s", taxTask.Type())
	}
	// 同一订单重复投递应得到相同任务 ID
	_, again, _ := NewOrderPostTaxTask(OrderPostTaxPayload{OrderID: 3})
	if again != taxTaskID {
		t.Fatalf("task id should be stable, got %s and %s", taxTaskID, again)
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, cfg := BuildServerConfig(&config.QueueConfig{Host: " redis ", Port: 6380, DB: 2})
	if opt.Addr != "redis:6380" || opt.DB != 2 {
		t.Fatalf("unexpected redis opt: %+v", opt)
	}
	if cfg.Concurrency != 10 || cfg.Queues[DefaultQueue] != 1 || cfg.Logger == nil {
		t.Fatalf("unexpected server config: %+v", cfg)
	}
	opt, _ = BuildServerConfig(nil)
	if opt.Addr != "127.0.0.1:6379" {
		t.Fatalf("unexpected default addr: %s", opt.Addr)
	}
}
