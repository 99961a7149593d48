// Package metrics exposes prometheus instrumentation for the engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SyncTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "classline", Name: "sync_ticks_total", Help: "Completed synchronization ticks",
	})
	FetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classline", Name: "fetch_errors_total", Help: "Remote read failures",
	}, []string{"kind"})
	SendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "classline", Name: "send_errors_total", Help: "Remote write failures",
	})
	StaleFetchesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "classline", Name: "stale_fetches_dropped_total", Help: "Fetch results discarded because a newer generation superseded them",
	})
	NotificationsFired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classline", Name: "notifications_fired_total", Help: "Notification signals fired",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(SyncTicks, FetchErrors, SendErrors, StaleFetchesDropped, NotificationsFired)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler { return promhttp.Handler() }
