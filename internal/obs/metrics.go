package obs

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	RequestsTotal    *prometheus.CounterVec // class=1ms..disabled
	ReleasesTotal    prometheus.Counter
	UpdatesTotal     *prometheus.CounterVec // result=changed|unchanged
	TransitionsTotal *prometheus.CounterVec // direction=elevate|raise|lower|clear

	ActiveClassMS prometheus.Gauge
	HandlesLive   prometheus.Gauge

	BackendCallSeconds *prometheus.HistogramVec // call=start|stop

	RemoteHandles      prometheus.Gauge
	LeasesExpiredTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hrtime_requests_total",
				Help: "Total resolution requests by quantized class",
			},
			[]string{"class"},
		),
		ReleasesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hrtime_releases_total",
			Help: "Total handle releases",
		}),
		UpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hrtime_updates_total",
				Help: "Total handle updates by whether the class changed",
			},
			[]string{"result"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hrtime_transitions_total",
				Help: "Total applied OS policy transitions by direction",
			},
			[]string{"direction"},
		),
		ActiveClassMS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hrtime_active_class_ms",
			Help: "Currently applied resolution class in ms (0 = baseline)",
		}),
		HandlesLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hrtime_handles_live",
			Help: "Number of live resolution handles",
		}),
		BackendCallSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hrtime_backend_call_seconds",
				Help:    "Latency of platform backend start/stop calls",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10), // 1us .. ~260ms
			},
			[]string{"call"},
		),
		RemoteHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hrtime_remote_handles",
			Help: "Number of handles held on behalf of HTTP clients",
		}),
		LeasesExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hrtime_leases_expired_total",
			Help: "Total remote handle leases released by the expiry sweeper",
		}),
	}

	prometheus.MustRegister(
		m.RequestsTotal,
		m.ReleasesTotal,
		m.UpdatesTotal,
		m.TransitionsTotal,
		m.ActiveClassMS,
		m.HandlesLive,
		m.BackendCallSeconds,
		m.RemoteHandles,
		m.LeasesExpiredTotal,
	)

	return m
}
