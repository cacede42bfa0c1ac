package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mLogin = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_total", Help: "Login attempts by result",
	}, []string{"result"})
	mRefresh = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_refresh_total", Help: "Refresh rotations by result",
	}, []string{"result"})
	mResetRequest = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_reset_request_total", Help: "Password reset requests by result",
	}, []string{"result"})
	mResetConfirm = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_reset_confirm_total", Help: "Password reset confirmations by result",
	}, []string{"result"})
	mNotifyErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_notify_errors_total", Help: "Reset notifications that failed to send",
	})
)
