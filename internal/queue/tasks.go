package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderMail 订单通知邮件任务
	TaskOrderMail = constants.TaskOrderMail
	// TaskOrderPostTax 向外部税务服务提交已完成订单
	TaskOrderPostTax = constants.TaskOrderPostTax
)

// OrderMailPayload 订单邮件任务载荷
type OrderMailPayload struct {
	OrderID  uint   `json:"order_id"`
	Template string `json:"template"`
}

// OrderPostTaxPayload 订单税务提交任务载荷
type OrderPostTaxPayload struct {
	OrderID uint `json:"order_id"`
}

// NewOrderMailTask 同一订单同一模板的邮件只保留一个任务
func NewOrderMailTask(payload OrderMailPayload) (*asynq.Task, string, error) {
	task, err := newJSONTask(TaskOrderMail, payload)
	if err != nil {
		return nil, "", err
	}
	return task, fmt.Sprintf("%s:%d:%s", TaskOrderMail, payload.OrderID, payload.Template), nil
}

// NewOrderPostTaxTask 每个订单只提交一次税务
func NewOrderPostTaxTask(payload OrderPostTaxPayload) (*asynq.Task, string, error) {
	task, err := newJSONTask(TaskOrderPostTax, payload)
	if err != nil {
		return nil, "", err
	}
	return task, fmt.Sprintf("%s:%d", TaskOrderPostTax, payload.OrderID), nil
}

func newJSONTask(taskType string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, body), nil
}
