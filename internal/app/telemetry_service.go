package app

import (
	"context"

	"github.com/hustbill/nodejs-api-server-sub001/internal/telemetry"
)

// telemetryService 随进程生命周期运行指标导出，停止时刷新剩余数据
type telemetryService struct {
	tel *telemetry.Telemetry
}

func newTelemetryService(tel *telemetry.Telemetry) *telemetryService {
	return &telemetryService{tel: tel}
}

func (s *telemetryService) Name() string {
	return "telemetry"
}

func (s *telemetryService) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *telemetryService) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.tel.Shutdown(ctx)
}
