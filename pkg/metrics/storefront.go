package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	ResultOK                = "ok"
	ResultNoop              = "noop"
	ResultInsufficientStock = "insufficient_stock"
	ResultUnavailable       = "unavailable"
	ResultInvalid           = "invalid"
	ResultNotFound          = "not_found"
	ResultError             = "error"
)

// Recorder exports HTTP, cart, transfer, checkout and scheduled job activity. A nil Recorder is a no-op.
type Recorder struct {
	httpDuration     *prometheus.HistogramVec
	cartMutations    *prometheus.CounterVec
	transfers        *prometheus.CounterVec
	transferredLines prometheus.Counter
	transferDuration prometheus.Histogram
	checkouts        *prometheus.CounterVec
	checkoutDuration prometheus.Histogram
	paymentResults   *prometheus.CounterVec
	cronRuns         *prometheus.CounterVec
	cronDuration     *prometheus.HistogramVec
	expiredOrders    prometheus.Counter
}

// NewRecorder registers the storefront metrics on the provided registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		return &Recorder{}
	}
	r := &Recorder{
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route pattern and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Cart mutations by operation, backing store and result.",
		}, []string{"op", "store", "result"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_session_transfers_total",
			Help: "Guest session to user transfers by result.",
		}, []string{"result"}),
		transferredLines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_session_transferred_lines_total",
			Help: "Cart lines and favorites merged into user records.",
		}),
		transferDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_session_transfer_duration_seconds",
			Help:    "Duration of guest session transfers in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkouts_total",
			Help: "Checkout attempts by result.",
		}, []string{"result"}),
		checkoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_checkout_duration_seconds",
			Help:    "Duration of checkout attempts in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		paymentResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_payment_results_total",
			Help: "Payment confirmations applied to orders by status and result.",
		}, []string{"status", "result"}),
		cronRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cron_job_runs_total",
			Help: "Scheduled job runs by job and result.",
		}, []string{"job", "result"}),
		cronDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_cron_job_duration_seconds",
			Help:    "Duration of scheduled job runs in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		expiredOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_expired_total",
			Help: "Unpaid orders cancelled after the payment window closed.",
		}),
	}
	reg.MustRegister(
		r.httpDuration,
		r.cartMutations,
		r.transfers,
		r.transferredLines,
		r.transferDuration,
		r.checkouts,
		r.checkoutDuration,
		r.paymentResults,
		r.cronRuns,
		r.cronDuration,
		r.expiredOrders,
	)
	return r
}

// HTTPRequest observes a served request. route must be the matched pattern,
// never the raw path.
func (r *Recorder) HTTPRequest(method, route string, status int, duration time.Duration) {
	if r == nil || r.httpDuration == nil {
		return
	}
	r.httpDuration.WithLabelValues(normalizeLabel(method), normalizeLabel(route), strconv.Itoa(status)).Observe(duration.Seconds())
}

// CartMutation counts a cart write.
func (r *Recorder) CartMutation(op, store string, err error) {
	if r == nil || r.cartMutations == nil {
		return
	}
	r.cartMutations.WithLabelValues(normalizeLabel(op), normalizeLabel(store), ResultFromError(err)).Inc()
}

// Transfer records a session transfer outcome.
func (r *Recorder) Transfer(result string, lines int, duration time.Duration) {
	if r == nil || r.transfers == nil {
		return
	}
	r.transfers.WithLabelValues(normalizeLabel(result)).Inc()
	if lines > 0 {
		r.transferredLines.Add(float64(lines))
	}
	r.transferDuration.Observe(duration.Seconds())
}

// Checkout records a checkout attempt.
func (r *Recorder) Checkout(err error, duration time.Duration) {
	if r == nil || r.checkouts == nil {
		return
	}
	r.checkouts.WithLabelValues(ResultFromError(err)).Inc()
	r.checkoutDuration.Observe(duration.Seconds())
}

// PaymentResult counts a payment confirmation applied to an order.
func (r *Recorder) PaymentResult(status string, err error) {
	if r == nil || r.paymentResults == nil {
		return
	}
	r.paymentResults.WithLabelValues(normalizeLabel(status), ResultFromError(err)).Inc()
}

// CronJob records one run of a scheduled job.
func (r *Recorder) CronJob(job string, err error, duration time.Duration) {
	if r == nil || r.cronRuns == nil {
		return
	}
	r.cronRuns.WithLabelValues(normalizeLabel(job), ResultFromError(err)).Inc()
	r.cronDuration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// OrdersExpired counts orders cancelled by the pending order sweep.
func (r *Recorder) OrdersExpired(n int) {
	if r == nil || r.expiredOrders == nil || n <= 0 {
		return
	}
	r.expiredOrders.Add(float64(n))
}

// ResultFromError maps a service error onto a low-cardinality result label.
func ResultFromError(err error) string {
	if err == nil {
		return ResultOK
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return ResultError
	}
	switch typed.Code() {
	case pkgerrors.CodeInsufficientStock:
		return ResultInsufficientStock
	case pkgerrors.CodeItemUnavailable:
		return ResultUnavailable
	case pkgerrors.CodeCartInvalid, pkgerrors.CodeValidation:
		return ResultInvalid
	case pkgerrors.CodeNotFound:
		return ResultNotFound
	default:
		return ResultError
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
