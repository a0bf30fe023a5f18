package constants

// API route paths, shared by the router and the controller tests.
const (
	CreatePaymentRoute      = "/create-payment"
	CreateSubscriptionRoute = "/create-subscription"
	PaymentStatusRoute      = "/payment-status/:id"
	PaymentsRoute           = "/payments"
	AsaasWebhookRoute       = "/webhook/asaas"
	ReprocessWebhookRoute   = "/webhook/reprocess/:webhookId"
	HealthRoute             = "/health"
)
