package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
)

type metrics struct {
	registry       *prometheus.Registry
	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	billsCreated   *prometheus.CounterVec
	billedRevenue  prometheus.Counter
	stockShortfall *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		billsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_bills_created_total",
				Help: "Bills persisted, by payment method",
			},
			[]string{"payment_method"},
		),
		billedRevenue: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "billing_revenue_total",
				Help: "Sum of persisted bill totals",
			},
		),
		stockShortfall: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_stock_shortfalls_total",
				Help: "Bill lines that could not be fully covered by stock, by reason",
			},
			[]string{"reason"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.latency,
		m.billsCreated,
		m.billedRevenue,
		m.stockShortfall,
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) observeBill(bill domain.Bill) {
	m.billsCreated.WithLabelValues(bill.PaymentMethod).Inc()
	m.billedRevenue.Add(bill.Total.InexactFloat64())
	for _, s := range bill.Shortfalls {
		m.stockShortfall.WithLabelValues(s.Reason).Inc()
	}
}

// instrument records request count and latency labelled by the matched route
// template, so /api/bills/{id} stays one series. Requests that match no route
// share the "unmatched" label.
func (m *metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w}
		startedAt := time.Now()
		next.ServeHTTP(rec, r)

		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status())).Inc()
		m.latency.WithLabelValues(r.Method, route).Observe(time.Since(startedAt).Seconds())
	})
}
