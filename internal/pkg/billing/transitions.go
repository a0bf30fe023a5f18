package billing

import (
	"context"
	"fmt"
	"strings"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/agendahub/payments-api/app/models"
	"github.com/agendahub/payments-api/internal/pkg/env"
	"github.com/agendahub/payments-api/internal/pkg/plans"
)

// TransitionPolicy decides whether out-of-lifecycle transitions are applied.
// The gateway is authoritative, so the default is lenient: the engine follows
// whatever the event instructs. Strict mode consults allowedTransitions and
// rejects everything else.
type TransitionPolicy string

const (
	PolicyLenient TransitionPolicy = "lenient"
	PolicyStrict  TransitionPolicy = "strict"
)

// PolicyFromEnv reads TRANSITION_POLICY, defaulting to lenient.
func PolicyFromEnv() TransitionPolicy {
	if strings.EqualFold(strings.TrimSpace(env.GetEnv("TRANSITION_POLICY", "")), string(PolicyStrict)) {
		return PolicyStrict
	}
	return PolicyLenient
}

// allowedTransitions is consulted only under PolicyStrict.
var allowedTransitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentStatusPending:   {models.PaymentStatusConfirmed, models.PaymentStatusReceived, models.PaymentStatusOverdue, models.PaymentStatusCancelled},
	models.PaymentStatusConfirmed: {models.PaymentStatusReceived, models.PaymentStatusCancelled, models.PaymentStatusRefunded},
	models.PaymentStatusReceived:  {models.PaymentStatusRefunded, models.PaymentStatusCancelled},
	models.PaymentStatusOverdue:   {models.PaymentStatusReceived, models.PaymentStatusConfirmed, models.PaymentStatusCancelled, models.PaymentStatusPending},
	models.PaymentStatusCancelled: {models.PaymentStatusPending},
	models.PaymentStatusRefunded:  {},
}

func transitionAllowed(from, to models.PaymentStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionResult reports what applying one status transition did.
type TransitionResult struct {
	PaymentID      uint
	AsaasPaymentID string
	From           models.PaymentStatus
	To             models.PaymentStatus
	Applied        bool
	// NoOp is the idempotent short-circuit: the payment already sat at the
	// target status, which is how duplicate deliveries report success.
	NoOp bool
	// SideEffectErr records an activation/deactivation failure. The status
	// transition itself is never rolled back for it.
	SideEffectErr error
}

// Engine applies gateway-instructed status transitions to local payments.
type Engine struct {
	repo      Repository
	activator ServiceActivator
	policy    TransitionPolicy
}

func NewEngine(repo Repository, activator ServiceActivator, policy TransitionPolicy) *Engine {
	return &Engine{repo: repo, activator: activator, policy: policy}
}

// ApplyTransition moves the payment identified by its asaas id to the target
// status, idempotently. Duplicate deliveries hit the NoOp short-circuit; a
// conditional update that matches zero rows after the existence check means
// another writer won the race and yields ErrStaleTransition, never a retry.
func (e *Engine) ApplyTransition(ctx context.Context, asaasPaymentID string, target models.PaymentStatus) (*TransitionResult, error) {
	payment, err := e.repo.GetPaymentByAsaasID(asaasPaymentID)
	if err != nil {
		return nil, err
	}

	res := &TransitionResult{
		PaymentID:      payment.ID,
		AsaasPaymentID: payment.AsaasPaymentID,
		From:           payment.Status,
		To:             target,
	}

	if payment.Status == target {
		res.NoOp = true
		return res, nil
	}

	if e.policy == PolicyStrict && !transitionAllowed(payment.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTransitionRejected, payment.Status, target)
	}

	rows, err := e.repo.UpdatePaymentStatusIfChanged(asaasPaymentID, target)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		fiberlog.Warnf("[Billing] lost transition race for %s (%s -> %s)", asaasPaymentID, payment.Status, target)
		return nil, ErrStaleTransition
	}
	res.Applied = true

	switch target {
	case models.PaymentStatusReceived:
		plan, _ := plans.ParsePlan(payment.PlanType)
		if err := e.activator.Activate(ctx, payment.CustomerID, plan); err != nil {
			fiberlog.Errorf("[Billing] service activation failed for customer %d: %v", payment.CustomerID, err)
			res.SideEffectErr = err
		}
	case models.PaymentStatusRefunded:
		if err := e.activator.Deactivate(ctx, payment.CustomerID); err != nil {
			fiberlog.Errorf("[Billing] service deactivation failed for customer %d: %v", payment.CustomerID, err)
			res.SideEffectErr = err
		}
	}

	return res, nil
}
