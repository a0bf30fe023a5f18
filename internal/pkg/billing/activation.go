package billing

import (
	"context"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/agendahub/payments-api/internal/pkg/plans"
)

// ServiceActivator is the narrow capability the transition engine uses for
// downstream side effects. Concrete integrations (CRM, messaging
// provisioning) can replace FeatureActivator without touching the engine.
type ServiceActivator interface {
	Activate(ctx context.Context, customerID uint, plan plans.Plan) error
	Deactivate(ctx context.Context, customerID uint) error
}

// FeatureActivator toggles per-customer feature flags in the database.
type FeatureActivator struct {
	repo Repository
}

func NewFeatureActivator(repo Repository) *FeatureActivator {
	return &FeatureActivator{repo: repo}
}

// Activate upserts the plan's feature flag: the row is created when absent
// and marked active otherwise.
func (a *FeatureActivator) Activate(ctx context.Context, customerID uint, plan plans.Plan) error {
	_ = ctx
	feature := plans.FeatureFor(plan)
	if err := a.repo.UpsertCustomerFeature(customerID, feature, true); err != nil {
		return err
	}
	fiberlog.Infof("[Billing] activated feature %s for customer %d (plan %s)", feature, customerID, plan)
	return nil
}

// Deactivate is intentionally a stub extension point: it looks the known
// feature rows up and logs them for audit visibility. No automated teardown
// happens on refunds yet.
func (a *FeatureActivator) Deactivate(ctx context.Context, customerID uint) error {
	_ = ctx
	for _, feature := range []string{plans.FeatureOnlineBooking, plans.FeatureAdvancedReports} {
		cf, err := a.repo.GetCustomerFeature(customerID, feature)
		if err != nil {
			return err
		}
		if cf != nil && cf.Active {
			fiberlog.Warnf("[Billing] customer %d still has feature %s active after refund, manual review required", customerID, feature)
		}
	}
	return nil
}
