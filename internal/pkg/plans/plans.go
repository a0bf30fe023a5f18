package plans

import "strings"

// Plan identifies an AgendaHub subscription tier.
type Plan string

const (
	PlanEssencial    Plan = "ESSENCIAL"
	PlanProfissional Plan = "PROFISSIONAL"
)

// Feature flag names toggled by service activation.
const (
	FeatureOnlineBooking   = "online_booking"
	FeatureAdvancedReports = "advanced_reports"
)

// BillingType identifies the payment instrument sent to the gateway.
type BillingType string

const (
	BillingPix        BillingType = "PIX"
	BillingCreditCard BillingType = "CREDIT_CARD"
)

// ParsePlan normalizes a plan string and reports whether it is known.
func ParsePlan(s string) (Plan, bool) {
	switch Plan(strings.ToUpper(strings.TrimSpace(s))) {
	case PlanEssencial:
		return PlanEssencial, true
	case PlanProfissional:
		return PlanProfissional, true
	default:
		return "", false
	}
}

// ParseBillingType normalizes a billing type string and reports whether it is known.
func ParseBillingType(s string) (BillingType, bool) {
	switch BillingType(strings.ToUpper(strings.TrimSpace(s))) {
	case BillingPix:
		return BillingPix, true
	case BillingCreditCard:
		return BillingCreditCard, true
	default:
		return "", false
	}
}

// FeatureFor returns the feature flag a plan tier unlocks.
func FeatureFor(plan Plan) string {
	switch plan {
	case PlanProfissional:
		return FeatureAdvancedReports
	default:
		return FeatureOnlineBooking
	}
}

// Installments returns the installment count for a gateway payment of the
// given instrument. Subscriptions are single-charge, so cards always get 1;
// PIX has no installment concept at all.
func Installments(bt BillingType) int {
	if bt == BillingCreditCard {
		return 1
	}
	return 0
}
