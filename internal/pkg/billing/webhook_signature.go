package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Placeholder values that count as "no secret configured". Deployments that
// never filled in the env template must not end up with a secret of
// "changeme" silently rejecting every delivery.
var placeholderSecrets = map[string]struct{}{
	"changeme":            {},
	"secret":              {},
	"your-webhook-secret": {},
}

// WebhookSecretConfigured reports whether signature verification is active.
// An empty or placeholder secret disables it entirely (explicit opt-out).
func WebhookSecretConfigured(secret string) bool {
	s := strings.ToLower(strings.TrimSpace(secret))
	if s == "" {
		return false
	}
	_, placeholder := placeholderSecrets[s]
	return !placeholder
}

// VerifyAsaasWebhookSignature checks the asaas-signature header: a hex
// HMAC-SHA256 digest over the raw JSON body, keyed by the shared secret.
func VerifyAsaasWebhookSignature(payload []byte, signatureHeader, secret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" || !WebhookSecretConfigured(secret) {
		return false
	}

	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(secret)))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decoded)
}
