package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rewardhub/internal/config"
	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/logger"
	"github.com/rewardhub/internal/queue"
	svc "github.com/rewardhub/internal/service"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务
type Service struct {
	name              string
	server            *asynq.Server
	mux               *asynq.ServeMux
	consumer          *Consumer
	reconcileInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Queue.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	interval := time.Duration(cfg.Provisioning.ReconcileIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Duration(constants.DefaultReconcileIntervalSecs) * time.Second
	}
	return &Service{
		name:              "worker",
		server:            server,
		mux:               mux,
		consumer:          consumer,
		reconcileInterval: interval,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.ReconciliationService != nil {
		go s.runReconcileLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runReconcileLoop 周期扫描滞留的采购单，修复超时后状态未知的订单
func (s *Service) runReconcileLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.ReconciliationService == nil {
		return
	}
	runOnce := func() {
		summary, err := s.consumer.ReconciliationService.ReconcileOnce(ctx)
		if err != nil {
			if errors.Is(err, svc.ErrPurchaseMisconfigured) || errors.Is(err, context.Canceled) {
				return
			}
			logger.Warnw("worker_reconcile_loop_failed", "error", err)
			return
		}
		if summary != nil && summary.Scanned > 0 {
			logger.Infow("worker_reconcile_loop_done",
				"scanned", summary.Scanned,
				"completed", summary.Completed,
				"failed", summary.Failed,
				"pending", summary.Pending,
			)
		}
	}
	runOnce()

	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
