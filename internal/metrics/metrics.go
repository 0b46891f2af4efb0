package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Transfer kinds and outcomes used as label values.
const (
	KindDeposit    = "deposit"
	KindWithdraw   = "withdraw"
	KindTransfer   = "transfer"
	KindFeeless    = "feeless_transfer"
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

var (
	// Registry holds the ledger's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkledger",
			Subsystem: "ledger",
			Name:      "transfers_total",
			Help:      "Total number of balance operations processed.",
		},
		[]string{"kind", "outcome"},
	)

	distributions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkledger",
			Subsystem: "distribution",
			Name:      "runs_total",
			Help:      "Total number of per-account distribution runs.",
		},
		[]string{"outcome"},
	)

	distributionPayout = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "linkledger",
			Subsystem: "distribution",
			Name:      "payout_total",
			Help:      "Total amount moved from reserves into balances.",
		},
	)

	eligibleAccounts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "linkledger",
			Subsystem: "distribution",
			Name:      "eligible_accounts",
			Help:      "Accounts found in the eligibility index at the last sweep.",
		},
	)

	rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkledger",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of gRPC requests handled.",
		},
		[]string{"method", "code"},
	)

	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "linkledger",
			Subsystem: "rpc",
			Name:      "duration_seconds",
			Help:      "Duration of gRPC requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
		[]string{"method"},
	)
)

func init() {
	Registry.MustRegister(
		transfers,
		distributions,
		distributionPayout,
		eligibleAccounts,
		rpcRequests,
		rpcDuration,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveTransfer counts one balance operation.
func ObserveTransfer(kind, outcome string) {
	transfers.WithLabelValues(kind, outcome).Inc()
}

// ObserveDistribution counts one distribution run and the amount it paid out.
func ObserveDistribution(outcome string, paid decimal.Decimal) {
	distributions.WithLabelValues(outcome).Inc()
	if paid.IsPositive() {
		distributionPayout.Add(paid.InexactFloat64())
	}
}

// SetEligibleAccounts records the size of the eligibility index.
func SetEligibleAccounts(n int) {
	eligibleAccounts.Set(float64(n))
}

// ObserveRPC records one gRPC call.
func ObserveRPC(method, code string, elapsed time.Duration) {
	rpcRequests.WithLabelValues(method, code).Inc()
	rpcDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
