package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvester", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "harvester", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvester", Name: "external_requests_total", Help: "Outbound page fetches."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "harvester", Name: "external_request_duration_seconds",
			Help:    "Outbound page fetch duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	Pages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvester", Name: "pages_total", Help: "Review pages processed."},
		[]string{"app"},
	)
	Records = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvester", Name: "records_total", Help: "Review records retained."},
		[]string{"app"},
	)
	ExtractionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvester", Name: "extraction_failures_total", Help: "Review nodes skipped as malformed."},
		[]string{"app"},
	)
	TraversalStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvester", Name: "traversal_stops_total", Help: "Finished traversals by stop reason."},
		[]string{"reason"},
	)
	ProgressEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvester", Name: "progress_events_total", Help: "Progress channel notify/read/error events."},
		[]string{"channel", "event"},
	)
)

// Serve exposes the harvester metrics on addr; empty disables it.
func Serve(addr string) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(InitRegistry()))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency,
		Pages, Records, ExtractionFailures, TraversalStops, ProgressEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObservePage(app string)              { Pages.WithLabelValues(app).Inc() }
func ObserveRecord(app string)            { Records.WithLabelValues(app).Inc() }
func ObserveExtractionFailure(app string) { ExtractionFailures.WithLabelValues(app).Inc() }
func ObserveStop(reason string)           { TraversalStops.WithLabelValues(reason).Inc() }

func ObserveProgress(channel, event string) { // event: notify|read|miss|error
	ProgressEvents.WithLabelValues(channel, event).Inc()
}

func LabelErr(err error) string {
	if err == nil {
		return "none"
	}
	return fmt.Sprintf("%T", err)
}
