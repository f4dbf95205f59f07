// Package metrics exposes payment and HTTP counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"paylor/internal/core/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Recorder implements ports.PaymentMetrics.
type Recorder struct {
	registry *prometheus.Registry

	intentsInitiated *prometheus.CounterVec
	intentsFinalized *prometheus.CounterVec
	callbacks        *prometheus.CounterVec
	walletCredits    *prometheus.CounterVec
	walletCreditSum  *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates a Recorder on a private registry that also carries the Go and
// process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Recorder{
		registry: reg,
		intentsInitiated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paylor_payment_intents_initiated_total",
			Help: "STK push initiations by resulting intent status.",
		}, []string{"status"}),
		intentsFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paylor_payment_intents_finalized_total",
			Help: "Intents moved to a terminal status.",
		}, []string{"status"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paylor_provider_callbacks_total",
			Help: "Provider callbacks by reconciliation result.",
		}, []string{"result"}),
		walletCredits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paylor_wallet_credits_total",
			Help: "Wallet credits applied.",
		}, []string{"currency"}),
		walletCreditSum: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paylor_wallet_credited_amount_total",
			Help: "Sum of credited amounts in major currency units.",
		}, []string{"currency"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paylor_provider_dispatch_duration_seconds",
			Help:    "STK push dispatch latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paylor_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paylor_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		r.intentsInitiated,
		r.intentsFinalized,
		r.callbacks,
		r.walletCredits,
		r.walletCreditSum,
		r.dispatchDuration,
		r.httpRequests,
		r.httpDuration,
	)
	return r
}

func (r *Recorder) IntentInitiated(status domain.IntentStatus) {
	r.intentsInitiated.WithLabelValues(string(status)).Inc()
}

func (r *Recorder) IntentFinalized(status domain.IntentStatus) {
	r.intentsFinalized.WithLabelValues(string(status)).Inc()
}

func (r *Recorder) CallbackReceived(result string) {
	r.callbacks.WithLabelValues(result).Inc()
}

func (r *Recorder) WalletCredited(currency string, amount decimal.Decimal) {
	r.walletCredits.WithLabelValues(currency).Inc()
	r.walletCreditSum.WithLabelValues(currency).Add(amount.InexactFloat64())
}

func (r *Recorder) ObserveDispatch(d time.Duration, err error) {
	r.dispatchDuration.WithLabelValues(dispatchOutcome(err)).Observe(d.Seconds())
}

func dispatchOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Middleware counts requests per matched route. Unmatched paths share one
// label so scanners cannot blow up cardinality.
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		r.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		r.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
