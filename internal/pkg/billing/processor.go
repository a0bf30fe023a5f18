package billing

import (
	"context"
	"errors"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/agendahub/payments-api/app/models"
)

// Outcome classifies what processing one webhook delivery did.
type Outcome string

const (
	OutcomeApplied         Outcome = "applied"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeUnhandledEvent  Outcome = "unhandled_event"
	OutcomeNoPaymentID     Outcome = "no_payment_id"
	OutcomePaymentNotFound Outcome = "payment_not_found"
	OutcomeStale           Outcome = "stale"
	OutcomeRejected        Outcome = "rejected"
)

// ProcessResult reports what happened to one delivery. Everything except a
// signature failure, a malformed payload or a log-write failure is an
// acknowledged outcome: the delivery is logged and the gateway must not keep
// redelivering it.
type ProcessResult struct {
	LogID     uint
	EventType string
	PaymentID string
	Outcome   Outcome
	Status    models.PaymentStatus
	Note      string
}

// Processor is the webhook entry point: verify, log durably, dispatch to the
// transition engine, mark the log row.
type Processor struct {
	repo   Repository
	engine *Engine
	secret string
}

func NewProcessor(repo Repository, engine *Engine, secret string) *Processor {
	return &Processor{repo: repo, engine: engine, secret: secret}
}

// Process handles one inbound delivery. Order matters: signature first (a
// rejected delivery is never logged), then the durable log row (the replay
// and audit anchor, written even for payloads that later turn out to be
// garbage), then the business dispatch.
func (p *Processor) Process(ctx context.Context, rawBody []byte, signature string) (*ProcessResult, error) {
	if WebhookSecretConfigured(p.secret) && !VerifyAsaasWebhookSignature(rawBody, signature, p.secret) {
		return nil, ErrInvalidSignature
	}

	eventType, paymentID := peekEnvelope(rawBody)
	logRow := &models.WebhookLog{
		AsaasPaymentID: paymentID,
		EventType:      eventType,
		Payload:        models.JSON(rawBody),
	}
	if err := p.repo.CreateWebhookLog(logRow); err != nil {
		// The one fatal path: without the log row there is no audit anchor,
		// so the gateway should retry this delivery.
		return nil, err
	}

	return p.dispatch(ctx, logRow.ID, rawBody)
}

// Reprocess re-runs a stored delivery by webhook log id, for manual recovery
// and debugging. Signature verification and logging are not repeated.
func (p *Processor) Reprocess(ctx context.Context, webhookLogID uint) (*ProcessResult, error) {
	logRow, err := p.repo.GetWebhookLogByID(webhookLogID)
	if err != nil {
		return nil, err
	}
	return p.dispatch(ctx, logRow.ID, []byte(logRow.Payload))
}

func (p *Processor) dispatch(ctx context.Context, logID uint, rawBody []byte) (*ProcessResult, error) {
	event, parseErr := ParseWebhookEvent(rawBody)
	if errors.Is(parseErr, ErrMalformedEvent) {
		if err := p.repo.RecordWebhookError(logID, parseErr.Error()); err != nil {
			fiberlog.Errorf("[Webhook] could not record parse error on log %d: %v", logID, err)
		}
		return nil, parseErr
	}

	res := &ProcessResult{
		LogID:     logID,
		EventType: string(event.Type),
		PaymentID: event.PaymentID,
	}

	if errors.Is(parseErr, ErrUnknownEvent) {
		res.Outcome = OutcomeUnhandledEvent
		res.Note = "unhandled event type"
		fiberlog.Infof("[Webhook] unhandled event type %s (log %d)", event.Type, logID)
		return res, p.markProcessed(event, logID, res.Note)
	}

	if event.PaymentID == "" {
		res.Outcome = OutcomeNoPaymentID
		res.Note = "event carries no payment id"
		return res, p.markProcessed(event, logID, res.Note)
	}

	target, _ := TargetStatus(event.Type)
	transition, err := p.engine.ApplyTransition(ctx, event.PaymentID, target)
	switch {
	case errors.Is(err, ErrPaymentNotFound):
		res.Outcome = OutcomePaymentNotFound
		res.Note = "no local payment for " + event.PaymentID
		fiberlog.Warnf("[Webhook] %s for unknown payment %s (log %d)", event.Type, event.PaymentID, logID)
	case errors.Is(err, ErrStaleTransition):
		res.Outcome = OutcomeStale
		res.Note = err.Error()
	case errors.Is(err, ErrTransitionRejected):
		res.Outcome = OutcomeRejected
		res.Note = err.Error()
	case err != nil:
		if recErr := p.repo.RecordWebhookError(logID, err.Error()); recErr != nil {
			fiberlog.Errorf("[Webhook] could not record error on log %d: %v", logID, recErr)
		}
		return nil, err
	case transition.NoOp:
		res.Outcome = OutcomeDuplicate
		res.Status = transition.To
		res.Note = "already at " + string(transition.To)
	default:
		res.Outcome = OutcomeApplied
		res.Status = transition.To
		if transition.SideEffectErr != nil {
			res.Note = "side effect failed: " + transition.SideEffectErr.Error()
		}
	}

	return res, p.markProcessed(event, logID, res.Note)
}

func (p *Processor) markProcessed(event *PaymentEvent, logID uint, note string) error {
	var err error
	if event.PaymentID != "" {
		err = p.repo.MarkLatestWebhookProcessed(event.PaymentID, string(event.Type), note)
	} else {
		err = p.repo.MarkWebhookProcessed(logID, note)
	}
	if err != nil {
		fiberlog.Errorf("[Webhook] could not mark log %d processed: %v", logID, err)
	}
	// Best effort: the business outcome is already decided.
	return nil
}
