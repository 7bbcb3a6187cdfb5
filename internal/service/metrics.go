package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	otpIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scansek",
			Name:      "otp_issued_total",
			Help:      "OTPs issued and handed to the mailer, by purpose.",
		},
		[]string{"purpose"},
	)

	otpVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scansek",
			Name:      "otp_verifications_total",
			Help:      "OTP verification attempts, by purpose and result.",
		},
		[]string{"purpose", "result"},
	)

	otpThrottled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scansek",
			Name:      "otp_throttled_total",
			Help:      "OTP requests rejected by the resend throttle, by purpose.",
		},
		[]string{"purpose"},
	)

	sweptAccounts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scansek",
			Name:      "sweep_deleted_accounts_total",
			Help:      "Unverified accounts removed by the maintenance sweep.",
		},
	)
)

func verificationResult(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
