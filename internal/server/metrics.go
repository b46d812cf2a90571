package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type serverMetrics struct {
	registry           *prometheus.Registry
	predictionCounter  *prometheus.CounterVec
	predictionDuration prometheus.Histogram
	apiRequests        *prometheus.CounterVec
}

func newServerMetrics() *serverMetrics {
	m := &serverMetrics{
		registry: prometheus.NewRegistry(),
		predictionCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brand_predictions_total",
			Help: "Total brand predictions",
		}, []string{"status"}),
		predictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "brand_prediction_duration_seconds",
			Help: "Brand prediction duration",
		}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests",
		}, []string{"method", "endpoint", "status"}),
	}
	m.registry.MustRegister(m.predictionCounter, m.predictionDuration, m.apiRequests)
	return m
}

// requestMetrics counts every request by method, path, and response status.
func (m *serverMetrics) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		m.apiRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(ww.Status())).Inc()
	})
}

func (m *serverMetrics) observePrediction(status string, start time.Time) {
	m.predictionCounter.WithLabelValues(status).Inc()
	m.predictionDuration.Observe(time.Since(start).Seconds())
}
