// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Unstake loop metrics
	CyclesTotal       *prometheus.CounterVec
	DecisionsTotal    *prometheus.CounterVec
	ExecutionsTotal   *prometheus.CounterVec
	UnstakedAlpha     prometheus.Counter
	ReceivedTao       prometheus.Counter
	ExpectedSlippage  prometheus.Histogram
	FetchErrors       prometheus.Counter
	LastSnapshotBlock prometheus.Gauge
	StakeAlpha        *prometheus.GaugeVec
	FreeBalanceTao    prometheus.Gauge

	// Monitor metrics
	SubnetCount        prometheus.Gauge
	SubnetsDetected    prometheus.Counter
	RegistrationsTotal *prometheus.CounterVec

	// Chain metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCErrors      *prometheus.CounterVec
	WSReconnects   prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "bittensor_strat"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unstake",
			Name:      "cycles_total",
			Help:      "Polling cycles by resulting state",
		}, []string{"next"}),
		DecisionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unstake",
			Name:      "decisions_total",
			Help:      "Per-target verdicts",
		}, []string{"verdict"}),
		ExecutionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unstake",
			Name:      "executions_total",
			Help:      "Submitted unstakes by outcome status",
		}, []string{"mode", "status"}),
		UnstakedAlpha: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unstake",
			Name:      "unstaked_alpha_total",
			Help:      "Stake removed by successful executions, in alpha",
		}),
		ReceivedTao: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unstake",
			Name:      "received_tao_total",
			Help:      "Free balance credited by successful executions, in TAO",
		}),
		ExpectedSlippage: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "unstake",
			Name:      "expected_slippage_percent",
			Help:      "Expected slippage of executed unstakes",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 50},
		}),
		FetchErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unstake",
			Name:      "fetch_errors_total",
			Help:      "Snapshot fetches that failed",
		}),
		LastSnapshotBlock: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "last_snapshot_block",
			Help:      "Block number of the last snapshot",
		}),
		StakeAlpha: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "unstake",
			Name:      "stake_alpha",
			Help:      "Current stake per target",
		}, []string{"hotkey", "netuid"}),
		FreeBalanceTao: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "free_balance_tao",
			Help:      "Free balance of the coldkey",
		}),

		SubnetCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "subnet_count",
			Help:      "Number of subnets at the last check",
		}),
		SubnetsDetected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "subnets_detected_total",
			Help:      "New subnets detected",
		}),
		RegistrationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "register",
			Name:      "attempts_total",
			Help:      "Burned registration attempts by result",
		}, []string{"result"}),

		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_latency_seconds",
			Help:      "Gateway RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_errors_total",
			Help:      "Gateway RPC errors by kind",
		}, []string{"method", "kind"}),
		WSReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "ws_reconnects_total",
			Help:      "Head subscription reconnects",
		}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulCycle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last cycle that fetched a snapshot",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordCycle counts a polling cycle by the state it moves to.
func RecordCycle(next string) {
	DefaultMetrics.CyclesTotal.WithLabelValues(next).Inc()
	if next != "FETCH_ERROR" {
		DefaultMetrics.LastSuccessfulCycle.SetToCurrentTime()
	}
}

// RecordDecision counts one per-target verdict.
func RecordDecision(verdict string) {
	DefaultMetrics.DecisionsTotal.WithLabelValues(verdict).Inc()
}

// RecordExecution records a submitted unstake.
// unstaked and received are only added for successful executions.
func RecordExecution(mode, status string, succeeded bool, slippagePct, unstaked, received float64) {
	DefaultMetrics.ExecutionsTotal.WithLabelValues(mode, status).Inc()
	DefaultMetrics.ExpectedSlippage.Observe(slippagePct)
	if succeeded {
		DefaultMetrics.UnstakedAlpha.Add(unstaked)
		DefaultMetrics.ReceivedTao.Add(received)
	}
}

// RecordFetchError counts a failed snapshot fetch.
func RecordFetchError() {
	DefaultMetrics.FetchErrors.Inc()
}

// UpdateSnapshot sets the snapshot gauges.
func UpdateSnapshot(block uint64, freeBalance float64) {
	DefaultMetrics.LastSnapshotBlock.Set(float64(block))
	DefaultMetrics.FreeBalanceTao.Set(freeBalance)
}

// UpdateStake sets the stake gauge of one target.
func UpdateStake(hotkey, netuid string, stake float64) {
	DefaultMetrics.StakeAlpha.WithLabelValues(hotkey, netuid).Set(stake)
}

// UpdateSubnetCount sets the monitored subnet count.
func UpdateSubnetCount(n int) {
	DefaultMetrics.SubnetCount.Set(float64(n))
}

// RecordSubnetsDetected counts newly detected subnets.
func RecordSubnetsDetected(n int) {
	DefaultMetrics.SubnetsDetected.Add(float64(n))
}

// RecordRegistration counts a registration attempt.
func RecordRegistration(result string) {
	DefaultMetrics.RegistrationsTotal.WithLabelValues(result).Inc()
}

// RecordRPC records a gateway call.
func RecordRPC(method string, seconds float64, errKind string) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if errKind != "" {
		DefaultMetrics.RPCErrors.WithLabelValues(method, errKind).Inc()
	}
}

// RecordWSReconnect counts a head subscription reconnect.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// Serve exposes /metrics and /health on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("Starting metrics server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
}
