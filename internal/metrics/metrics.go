package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posagent_deliveries_total",
			Help: "Delivery outcomes by kind and result",
		},
		[]string{"kind", "result"}, // fresh|redelivery , success|failure
	)

	RecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posagent_records_total",
			Help: "Record counts by stage",
		},
		[]string{"stage"}, // synced|buffered|redelivered
	)

	HeartbeatsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posagent_heartbeats_total",
			Help: "Heartbeat send outcomes",
		},
		[]string{"result"}, // success|failure
	)

	PendingBatches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "posagent_pending_batches",
			Help: "Pending batches in the sync buffer at last stats read",
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		DeliveriesTotal,
		RecordsTotal,
		HeartbeatsTotal,
		PendingBatches,
	)
}
