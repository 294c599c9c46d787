// AngelaMos | 2026
// metrics.go

package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinicd_session_logins_total",
		Help: "Login and register attempts by result.",
	}, []string{"result"})

	logoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinicd_session_logouts_total",
		Help: "Session teardowns by reason.",
	}, []string{"reason"})

	revalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinicd_session_revalidations_total",
		Help: "Server revalidations of a restored session by result.",
	}, []string{"result"})

	feedRestartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clinicd_session_feed_restarts_total",
		Help: "Storage change feeds that closed and were reopened.",
	})
)

const (
	reasonUser        = "user"
	reasonRevalidate  = "revalidation_failed"
	reasonExternal    = "external"
	resultSuccess     = "success"
	resultFailure     = "failure"
	resultConfirmed   = "confirmed"
	resultDiscarded   = "discarded"
	resultUnreachable = "failed"
)
