package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the write paths that matter operationally. Exposed on
// /metrics via promhttp.
var (
	MarksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apsconnect_attendance_marks_total",
		Help: "Attendance mark attempts by method and result.",
	}, []string{"method", "result"})

	IssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apsconnect_library_issues_total",
		Help: "Library issue attempts by result.",
	}, []string{"result"})

	ReturnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apsconnect_library_returns_total",
		Help: "Library return attempts by result.",
	}, []string{"result"})

	ApprovalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apsconnect_approvals_total",
		Help: "Approval workflow transitions by resulting status.",
	}, []string{"status"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apsconnect_notifications_total",
		Help: "Notification inserts by result.",
	}, []string{"result"})
)
