package promexport

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/meterreadings/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("prometheus.export",
	fx.Provide(NewRegistry),
	fx.Provide(New),
	fx.Provide(NewPusher),
	fx.Invoke(startPushWorker),
)

// Gatherer merges the upload series with the default registry, where the
// gorm prometheus plugin and the Go collectors register.
func Gatherer(c *Collector) prometheus.Gatherer {
	if c == nil {
		return prometheus.DefaultGatherer
	}
	return prometheus.Gatherers{c.Registry(), prometheus.DefaultGatherer}
}

func startPushWorker(lc fx.Lifecycle, cfg config.Config, c *Collector, pusher Pusher, logger *zap.Logger) {
	if pusher == nil || c == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := time.Duration(cfg.Prometheus.PushInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting prometheus push worker", zap.Duration("interval", interval))
			go func() {
				defer close(done)
				runPushLoop(ctx, c, pusher, interval, logger)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func runPushLoop(ctx context.Context, c *Collector, pusher Pusher, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c.updateSystemMetrics()
		pushCtx, cancel := context.WithTimeout(ctx, defaultPushTimeout)
		if err := pusher.Push(pushCtx, c.Registry()); err != nil && ctx.Err() == nil {
			logger.Warn("prometheus push failed", zap.Error(err))
		}
		cancel()

		select {
		case <-ticker.C:
		case <-ctx.Done():
			logger.Info("stopping prometheus push worker")
			return
		}
	}
}
