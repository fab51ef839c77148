package app

import (
	"context"
	"errors"

	"github.com/hustbill/nodejs-api-server-sub001/internal/cache"
	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
	"github.com/hustbill/nodejs-api-server-sub001/internal/provider"
	"github.com/hustbill/nodejs-api-server-sub001/internal/router"
	"github.com/hustbill/nodejs-api-server-sub001/internal/telemetry"
	"github.com/hustbill/nodejs-api-server-sub001/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(opts Options) (*Runner, error) {
	opts = normalizeOptions(opts)
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := validateMode(opts.Mode); err != nil {
		return nil, err
	}

	var services []Service

	// 指标导出需在容器创建前安装全局 MeterProvider
	tel, err := telemetry.Initialize(context.Background(), cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	if tel != nil {
		services = append(services, newTelemetryService(tel))
	}

	container := provider.NewContainer(cfg)

	if opts.runsAPI() {
		engine := router.SetupRouter(cfg, container)
		services = append(services, NewHTTPService(listenAddr(cfg), engine, cfg.Server.ReadHeaderTimeout()))
	}

	if opts.runsWorker() {
		workerService, err := buildWorker(cfg, container)
		switch {
		case err == nil:
			services = append(services, workerService)
		case errors.Is(err, worker.ErrQueueDisabled) && opts.Mode == ModeAll:
			// all 模式下队列未启用时只运行 API
			opts.Logger.Warnw("app_worker_skipped", "error", err)
		default:
			return nil, err
		}
	}

	if countRunnable(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}
	return NewRunner(services...), nil
}

func buildWorker(cfg *config.Config, container *provider.Container) (Service, error) {
	svc, err := worker.NewService(&cfg.Queue, worker.NewConsumer(container))
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func listenAddr(cfg *config.Config) string {
	return cfg.Server.Host + ":" + cfg.Server.Port
}

func countRunnable(services []Service) int {
	count := 0
	for _, svc := range services {
		if _, ok := svc.(*telemetryService); ok {
			continue
		}
		count++
	}
	return count
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts)
	if err != nil {
		return err
	}

	defer func() {
		if err := cache.Close(); err != nil {
			opts.Logger.Warnw("app_close_redis_failed", "error", err)
		}
	}()

	opts.Logger.Infow("app_start", "addr", listenAddr(opts.Config), "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
