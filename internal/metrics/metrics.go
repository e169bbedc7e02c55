package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "nftminter"

var (
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total number of finished pipeline runs, labeled by final state and the stage that failed.",
		},
		[]string{"state", "failed_stage"},
	)

	StageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage (seconds).",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"stage", "outcome"},
	)

	GenerationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_total",
			Help:      "Total number of image generations, labeled by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	UploadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_total",
			Help:      "Total number of pinning calls, labeled by kind (file, json) and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	MintTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mint_total",
			Help:      "Total number of mint transactions, labeled by network and outcome.",
		},
		[]string{"network", "outcome"},
	)

	TokenIDResolutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_id_resolution_total",
			Help:      "How minted token ids were recovered: event, total_supply or unresolved.",
		},
		[]string{"source"},
	)

	RateLimitHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		},
		[]string{"scope", "operation"},
	)
)

func init() {
	prometheus.MustRegister(
		PipelineRunsTotal,
		StageDurationSeconds,
		GenerationTotal,
		UploadTotal,
		MintTotal,
		TokenIDResolutionTotal,
		RateLimitHitsTotal,
	)
}
