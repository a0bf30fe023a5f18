package billing

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/agendahub/payments-api/app/models"
)

// EventType is the Asaas webhook event taxonomy this service reacts to.
type EventType string

const (
	EventPaymentCreated              EventType = "PAYMENT_CREATED"
	EventPaymentAwaitingRiskAnalysis EventType = "PAYMENT_AWAITING_RISK_ANALYSIS"
	EventPaymentConfirmed            EventType = "PAYMENT_CONFIRMED"
	EventPaymentReceived             EventType = "PAYMENT_RECEIVED"
	EventPaymentOverdue              EventType = "PAYMENT_OVERDUE"
	EventPaymentDeleted              EventType = "PAYMENT_DELETED"
	EventPaymentRestored             EventType = "PAYMENT_RESTORED"
	EventPaymentRefunded             EventType = "PAYMENT_REFUNDED"
)

var (
	// ErrMalformedEvent means the payload is not a decodable event envelope.
	// The raw bytes still get a webhook log row before this surfaces.
	ErrMalformedEvent = errors.New("malformed webhook event payload")

	// ErrUnknownEvent means the envelope decoded fine but names an event type
	// outside the taxonomy. The parsed event is still returned so the caller
	// can log it as unhandled.
	ErrUnknownEvent = errors.New("unknown webhook event type")
)

// PaymentEvent is one parsed webhook delivery. Raw keeps the payload
// byte-for-byte for the audit log.
type PaymentEvent struct {
	Type      EventType
	PaymentID string
	Status    string
	Raw       []byte
}

type eventEnvelope struct {
	Event   string `json:"event"`
	Payment struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"payment"`
}

// ParseWebhookEvent decodes a raw delivery into a typed event. It fails
// closed: undecodable JSON or a missing event name yields ErrMalformedEvent;
// an event name outside the taxonomy yields ErrUnknownEvent together with the
// partially populated event.
func ParseWebhookEvent(raw []byte) (*PaymentEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ErrMalformedEvent
	}

	name := strings.ToUpper(strings.TrimSpace(env.Event))
	if name == "" {
		return nil, ErrMalformedEvent
	}

	ev := &PaymentEvent{
		Type:      EventType(name),
		PaymentID: strings.TrimSpace(env.Payment.ID),
		Status:    strings.TrimSpace(env.Payment.Status),
		Raw:       raw,
	}
	if _, known := TargetStatus(ev.Type); !known {
		return ev, ErrUnknownEvent
	}
	return ev, nil
}

// peekEnvelope extracts the event name and payment id on a best-effort basis,
// for the durable log row that must exist before any real parsing happens.
func peekEnvelope(raw []byte) (eventType, paymentID string) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", ""
	}
	return strings.ToUpper(strings.TrimSpace(env.Event)), strings.TrimSpace(env.Payment.ID)
}

// TargetStatus maps an event type to the payment status it instructs.
// The gateway is authoritative: this table is a follower of its lifecycle.
func TargetStatus(t EventType) (models.PaymentStatus, bool) {
	switch t {
	case EventPaymentCreated, EventPaymentAwaitingRiskAnalysis, EventPaymentRestored:
		return models.PaymentStatusPending, true
	case EventPaymentConfirmed:
		return models.PaymentStatusConfirmed, true
	case EventPaymentReceived:
		return models.PaymentStatusReceived, true
	case EventPaymentOverdue:
		return models.PaymentStatusOverdue, true
	case EventPaymentDeleted:
		return models.PaymentStatusCancelled, true
	case EventPaymentRefunded:
		return models.PaymentStatusRefunded, true
	default:
		return "", false
	}
}
