package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels
const (
	OutcomeSuccess = "success"
)

var (
	// GenerationsTotal - 생성 요청 결과별 개수. outcome 은 success 또는 에러 code.
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clonesome_image_generations_total",
			Help: "Total number of image generation requests by outcome.",
		},
		[]string{"outcome"},
	)

	// GenerationDuration - submit 부터 terminal 상태까지 걸린 시간
	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clonesome_image_generation_duration_seconds",
		Help:    "Duration of image generation requests, submit to terminal state.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// PollAttempts - 요청당 status 조회 횟수
	PollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clonesome_image_generation_poll_attempts",
		Help:    "Number of status queries issued per generation request.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144},
	})

	// QueueJobsTotal - 큐 job 처리 결과
	QueueJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clonesome_queue_jobs_total",
			Help: "Total number of queued generation jobs processed by final status.",
		},
		[]string{"status"},
	)
)
