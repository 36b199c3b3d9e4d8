package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_created_total",
		Help: "Total sessions created",
	})

	metricSessionsJoined = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessions_joined_total",
		Help: "Total successful joins by entry path",
	}, []string{"via"})

	metricSessionsExtended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_extended_total",
		Help: "Total session extensions applied",
	})

	metricSessionsTerminated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_terminated_total",
		Help: "Total sessions explicitly terminated",
	})

	metricSessionsLazyExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_lazy_expired_total",
		Help: "Sessions flipped to expired during a status or join check",
	})
)
