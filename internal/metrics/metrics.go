// Package metrics содержит счётчики Prometheus для исходов аутентификации.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Значения метки result.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Значения метки reason для отказов авторизации.
const (
	ReasonMissingToken = "missing_token"
	ReasonInvalidToken = "invalid_token"
	ReasonExpiredToken = "expired_token"
	ReasonInactiveUser = "inactive_user"
	ReasonUnknownUser  = "unknown_user"
	ReasonForbidden    = "forbidden"
	ReasonRateLimited  = "rate_limited"
)

// Значения метки stage сброса пароля.
const (
	StageRequest  = "request"
	StageComplete = "complete"
)

// LoginTotal попытки входа по исходу.
var LoginTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_login_total",
		Help: "Total number of login attempts",
	},
	[]string{"result"},
)

// AuthorizerDenied отказы проверки запроса по причине.
var AuthorizerDenied = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_authorizer_denied_total",
		Help: "Total number of requests denied by the authorizer",
	},
	[]string{"reason"},
)

// RefreshTotal обмены refresh-токена по исходу.
var RefreshTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_refresh_total",
		Help: "Total number of refresh token exchanges",
	},
	[]string{"result"},
)

// PasswordResetTotal этапы сброса пароля по исходу.
var PasswordResetTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_password_reset_total",
		Help: "Total number of password reset operations",
	},
	[]string{"stage", "result"},
)

// RegisterMetrics регистрирует счётчики в реестре. Вызывается один раз при старте.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoginTotal)
	reg.MustRegister(AuthorizerDenied)
	reg.MustRegister(RefreshTotal)
	reg.MustRegister(PasswordResetTotal)
}

// RecordLogin учитывает попытку входа.
func RecordLogin(result string) {
	LoginTotal.WithLabelValues(result).Inc()
}

// RecordDenied учитывает отказ авторизации.
func RecordDenied(reason string) {
	AuthorizerDenied.WithLabelValues(reason).Inc()
}

// RecordRefresh учитывает обмен refresh-токена.
func RecordRefresh(result string) {
	RefreshTotal.WithLabelValues(result).Inc()
}

// RecordPasswordReset учитывает этап сброса пароля.
func RecordPasswordReset(stage, result string) {
	PasswordResetTotal.WithLabelValues(stage, result).Inc()
}
