package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"go.uber.org/zap"
)

// Verifier authenticates Graph change notifications. Two mechanisms apply:
// the validationToken echo when Graph validates the subscription endpoint,
// and an HMAC-SHA256 signature over the body on notification deliveries.
type Verifier struct {
	clientState string
	secret      string
	logger      *zap.Logger
}

// NewVerifier creates a webhook verifier. An empty secret disables
// signature checks (local development).
func NewVerifier(clientState, secret string, logger *zap.Logger) *Verifier {
	return &Verifier{
		clientState: clientState,
		secret:      secret,
		logger:      logger,
	}
}

// VerifySignature checks the base64 HMAC-SHA256 signature over the raw body
func (v *Verifier) VerifySignature(signature string, body []byte) bool {
	if v.secret == "" {
		return true
	}
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyClientState checks the clientState echoed inside each notification
// against the value registered with the subscription.
func (v *Verifier) VerifyClientState(clientState string) bool {
	if v.clientState == "" {
		return true
	}
	return clientState == v.clientState
}
