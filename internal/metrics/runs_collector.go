package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/osvaldoandrade/nftminter/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// RunCounter reports how many tracked runs sit in each state.
type RunCounter interface {
	CountByState(ctx context.Context) (map[domain.PipelineState]int, error)
}

type runsCollector struct {
	runs   RunCounter
	rdb    *redis.Client
	logger *slog.Logger

	runsDesc  *prometheus.Desc
	locksDesc *prometheus.Desc
}

func newRunsCollector(runs RunCounter, rdb *redis.Client, logger *slog.Logger) *runsCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &runsCollector{
		runs:   runs,
		rdb:    rdb,
		logger: logger,
		runsDesc: prometheus.NewDesc(
			"nftminter_pipeline_runs",
			"Tracked pipeline runs by state.",
			[]string{"state"},
			nil,
		),
		locksDesc: prometheus.NewDesc(
			"nftminter_nonce_locks_held",
			"Nonce locks currently held in Redis.",
			nil,
			nil,
		),
	}
}

func (c *runsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.runsDesc
	ch <- c.locksDesc
}

func (c *runsCollector) Collect(ch chan<- prometheus.Metric) {
	// Keep reads bounded so scrapes do not hang.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if c.runs != nil {
		counts, err := c.runs.CountByState(ctx)
		if err != nil {
			c.logger.Warn("prometheus run collector failed", "err", err)
		} else {
			for _, st := range []domain.PipelineState{domain.StateGenerating, domain.StateUploading, domain.StateMinting, domain.StateDone, domain.StateFailed} {
				emitGauge(ch, c.runsDesc, float64(counts[st]), string(st))
			}
		}
	}

	if c.rdb != nil {
		var held int
		iter := c.rdb.Scan(ctx, 0, "nftminter:nonce:*", 100).Iterator()
		for iter.Next(ctx) {
			held++
		}
		if err := iter.Err(); err != nil {
			c.logger.Warn("prometheus redis collector failed", "err", err)
			return
		}
		emitGauge(ch, c.locksDesc, float64(held))
	}
}

func emitGauge(ch chan<- prometheus.Metric, desc *prometheus.Desc, v float64, labelValues ...string) {
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v, labelValues...)
	if err != nil {
		return
	}
	ch <- m
}

var registerRunsCollectorOnce sync.Once

func RegisterRunsCollector(runs RunCounter, rdb *redis.Client, logger *slog.Logger) {
	registerRunsCollectorOnce.Do(func() {
		prometheus.MustRegister(newRunsCollector(runs, rdb, logger))
	})
}
