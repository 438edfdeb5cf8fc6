package workers

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"context"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HealthMonitoringWorker periodically logs the relay counters next to the
// process resource usage.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	monitoring     *observability.MonitoringManager
	subscribers    contract.SubscriberCounter
	metricInterval time.Duration
	pid            int32
}

func NewHealthMonitoringWorker(
	log *slog.Logger,
	monitoring *observability.MonitoringManager,
	subscribers contract.SubscriberCounter,
	metricInterval time.Duration,
) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		monitoring:     monitoring,
		subscribers:    subscribers,
		metricInterval: metricInterval,
		pid:            int32(os.Getpid()),
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	proc, err := process.NewProcess(w.pid)
	if err != nil {
		w.log.Warn("Process stats unavailable", "pid", w.pid, "err", err)
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			w.report(proc)
		}
	}
}

func (w *HealthMonitoringWorker) report(proc *process.Process) {
	attrs := w.monitoring.Snapshot().LogAttrs()
	attrs = append(attrs,
		"subscribers", w.subscribers.SubscriberCount(),
		"goroutines", goruntime.NumGoroutine(),
	)

	if proc != nil {
		if mem, err := proc.MemoryInfo(); err != nil {
			w.log.Debug("Error while finding process ram usage", "err", err)
		} else {
			attrs = append(attrs, "rss_bytes", mem.RSS)
		}
		if cpu, err := proc.CPUPercent(); err != nil {
			w.log.Debug("Error while finding process cpu usage", "err", err)
		} else {
			attrs = append(attrs, "cpu_percent", cpu)
		}
	}

	w.log.Info("Relay health", attrs...)
}
