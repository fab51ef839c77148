package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/logger"

	"github.com/hibiken/asynq"
)

// DefaultQueue 默认队列名称
const DefaultQueue = constants.QueueDefault

const (
	mailMaxRetry    = 5
	postTaxMaxRetry = 10
	taskRetention   = 24 * time.Hour
)

// Client 队列客户端，未启用时所有投递均为空操作
type Client struct {
	client *asynq.Client
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{}, nil
	}
	return &Client{client: asynq.NewClient(buildRedisOpt(cfg))}, nil
}

func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// EnqueueOrderMail 推送订单邮件任务
func (c *Client) EnqueueOrderMail(payload OrderMailPayload, opts ...asynq.Option) error {
	if !c.Enabled() {
		return nil
	}
	task, taskID, err := NewOrderMailTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task, taskID, append([]asynq.Option{asynq.MaxRetry(mailMaxRetry)}, opts...)...)
}

// EnqueueOrderPostTax 延迟提交税务，失败由队列退避重试
func (c *Client) EnqueueOrderPostTax(payload OrderPostTaxPayload, delay time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	if delay < 0 {
		delay = 0
	}
	task, taskID, err := NewOrderPostTaxTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task, taskID, asynq.MaxRetry(postTaxMaxRetry), asynq.ProcessIn(delay))
}

// enqueue 任务 ID 冲突说明已在队列中，视为成功
func (c *Client) enqueue(task *asynq.Task, taskID string, opts ...asynq.Option) error {
	options := append([]asynq.Option{
		asynq.Queue(DefaultQueue),
		asynq.TaskID(taskID),
		asynq.Retention(taskRetention),
	}, opts...)
	info, err := c.client.Enqueue(task, options...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		logger.Debugw("queue_task_already_enqueued", "task", task.Type(), "task_id", taskID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	logger.Debugw("queue_task_enqueued", "task", task.Type(), "task_id", info.ID, "queue", info.Queue)
	return nil
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	serverCfg := asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{DefaultQueue: 1},
		Logger:      logger.S(),
	}
	if cfg != nil && cfg.Concurrency > 0 {
		serverCfg.Concurrency = cfg.Concurrency
	}
	if cfg != nil && len(cfg.Queues) > 0 {
		serverCfg.Queues = cfg.Queues
	}
	return buildRedisOpt(cfg), serverCfg
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	opt := asynq.RedisClientOpt{Addr: "127.0.0.1:6379"}
	if cfg == nil {
		return opt
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	opt.Addr = fmt.Sprintf("%s:%d", host, port)
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	return opt
}
