package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Checkout orchestration metrics
	checkoutAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Total checkout initialization attempts",
	}, []string{
		"path",   // backend, direct, test
		"plan",   // monthly, annual
		"status", // success, failure
	})

	// Verification metrics
	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Total payment verification attempts",
	}, []string{
		"status", // success, failed, error
	})

	subscriptionRevenueMinorUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_revenue_minor_units_total",
		Help: "Total verified subscription revenue in minor currency units",
	}, []string{
		"plan",
		"currency",
	})

	// Entitlement gate metrics
	entitlementChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entitlement_checks_total",
		Help: "Total entitlement gate decisions",
	}, []string{
		"feature",
		"decision", // granted, denied, bypass, error
	})

	subscriptionCancellationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_cancellations_total",
		Help: "Total subscription cancellations",
	}, []string{
		"processor_cancel", // success, failed, skipped
	})
)

// RecordCheckoutAttempt records one orchestrator path attempt
func RecordCheckoutAttempt(path, plan, status string) {
	checkoutAttemptsTotal.WithLabelValues(path, plan, status).Inc()
}

// RecordVerification records a verification outcome
func RecordVerification(status string) {
	verificationsTotal.WithLabelValues(status).Inc()
}

// RecordRevenue records verified revenue in minor units
func RecordRevenue(plan, currency string, minorUnits int64) {
	subscriptionRevenueMinorUnits.WithLabelValues(plan, currency).Add(float64(minorUnits))
}

// RecordEntitlementCheck records a gate decision
func RecordEntitlementCheck(feature, decision string) {
	entitlementChecksTotal.WithLabelValues(feature, decision).Inc()
}

// RecordCancellation records a cancellation and the processor-side outcome
func RecordCancellation(processorCancel string) {
	subscriptionCancellationsTotal.WithLabelValues(processorCancel).Inc()
}
