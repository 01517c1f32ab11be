package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SweeperMetrics tracks the background sweep loop.
type SweeperMetrics struct {
	sweeperRuns          *prometheus.CounterVec
	stuckTradesSwept     prometheus.Counter
	broadcastsDispatched prometheus.Counter
	runDuration          prometheus.Histogram
}

var (
	sweeperMetricsOnce sync.Once
	sweeperMetrics     *SweeperMetrics
)

// Sweeper returns the process-wide sweeper metrics, registering them on
// first use.
func Sweeper(cfg Config) *SweeperMetrics {
	sweeperMetricsOnce.Do(func() {
		sweeperMetrics = newSweeperMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return sweeperMetrics
}

func ResetSweeperMetricsForTest() {
	sweeperMetricsOnce = sync.Once{}
	sweeperMetrics = nil
}

func newSweeperMetrics(registerer prometheus.Registerer, cfg Config) *SweeperMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := cfg.constLabels()

	sweeperRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "plant_sweeper_runs_total",
			Help:        "Total sweep loop passes by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // success | failed
	)
	stuckTradesSwept := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "plant_sweeper_stuck_trades_total",
			Help:        "Trades in invoiced status that the sweep loop backfilled an invoice for.",
			ConstLabels: constLabels,
		},
	)
	broadcastsDispatched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "plant_sweeper_broadcasts_dispatched_total",
			Help:        "Scheduled notification broadcasts released by the sweep loop.",
			ConstLabels: constLabels,
		},
	)
	runDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "plant_sweeper_run_duration_seconds",
			Help:        "Duration of one full sweep pass.",
			Buckets:     []float64{0.05, 0.25, 1, 5, 15, 30, 60},
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(sweeperRuns, stuckTradesSwept, broadcastsDispatched, runDuration)

	return &SweeperMetrics{
		sweeperRuns:          sweeperRuns,
		stuckTradesSwept:     stuckTradesSwept,
		broadcastsDispatched: broadcastsDispatched,
		runDuration:          runDuration,
	}
}

func (m *SweeperMetrics) IncRun(result string) {
	if m == nil {
		return
	}
	m.sweeperRuns.WithLabelValues(result).Inc()
}

func (m *SweeperMetrics) AddStuckTradesSwept(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.stuckTradesSwept.Add(float64(count))
}

func (m *SweeperMetrics) AddBroadcastsDispatched(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.broadcastsDispatched.Add(float64(count))
}

func (m *SweeperMetrics) ObserveRunDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(duration.Seconds())
}
