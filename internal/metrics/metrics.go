package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	BidsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bids_accepted_total",
		Help: "Bids accepted by the bid coordinator.",
	})

	BidsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bids_rejected_total",
			Help: "Bids rejected, by reason code.",
		},
		[]string{"reason"},
	)

	AuctionExtensions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auction_extensions_total",
		Help: "Deadline extensions caused by bids inside the snipe window.",
	})

	ProxyBidsTriggered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proxy_bids_triggered_total",
		Help: "Ledger rows placed by a proxy ceiling.",
	})

	AuctionsSold = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auctions_sold_total",
		Help: "Auctions closed early through buy-now.",
	})

	AuctionsClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auctions_closed_total",
		Help: "Auctions marked closed by the expiry sweep.",
	})

	CommitRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bid_commit_retries_total",
		Help: "Bid commits retried after a store failure.",
	})

	LockWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bid_lock_wait_seconds",
		Help:    "Time spent waiting for the per-auction lock.",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2, 5},
	})

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Init registers every collector in the default registry. Safe to call repeatedly.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			BidsAccepted, BidsRejected, AuctionExtensions, ProxyBidsTriggered,
			AuctionsSold, AuctionsClosed, CommitRetries, LockWait,
			httpInFlight, httpRequestsTotal, httpRequestDuration,
		)
	})
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLockWait records how long a caller waited for an auction lock
func ObserveLockWait(d time.Duration) {
	LockWait.Observe(d.Seconds())
}

// Instrument is gin middleware recording request count, latency and in-flight requests.
// Routes are labelled by their pattern so auction ids do not explode cardinality.
func Instrument(c *gin.Context) {
	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	method := c.Request.Method

	httpInFlight.Inc()
	start := time.Now()

	c.Next()

	status := strconv.Itoa(c.Writer.Status())
	httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpInFlight.Dec()
}
