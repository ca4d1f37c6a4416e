package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_created_total",
		Help: "Notifications created, by type.",
	}, []string{"type"})
	notificationsMarkedRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_marked_read_total",
		Help: "Notification rows flipped to read.",
	})
	notificationsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_deleted_total",
		Help: "Notification rows deleted by archive, delete or retention.",
	})
)

// RecordPurged counts rows removed outside a request, e.g. by retention.
func RecordPurged(n int64) {
	notificationsDeleted.Add(float64(n))
}
