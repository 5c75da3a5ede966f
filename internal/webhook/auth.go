package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/KretovDmitry/fraud-review-service/pkg/logger"
)

// Webhook topics that are accepted without a case lookup.
const (
	// TopicTest only proves the endpoint is reachable.
	TopicTest = "cases/test"
	// TopicCreation is acknowledged but never acted on: case creation is
	// driven by the order placement path, acting here would race it.
	TopicCreation = "cases/creation"
)

// Authenticator verifies webhook signatures against the per-merchant
// shared secret. It fails closed: an empty body, an empty signature or a
// verification mismatch all yield "not authenticated".
type Authenticator struct {
	logger logger.Logger
}

func NewAuthenticator(logger logger.Logger) *Authenticator {
	return &Authenticator{logger: logger}
}

// Valid recomputes the HMAC-SHA256 of the raw body with the scope secret
// and compares it to the provided signature in constant time.
func (a *Authenticator) Valid(body []byte, signature, secret string) bool {
	if len(body) == 0 || signature == "" || secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		a.logger.Debugf("webhook signature verification failed")
		return false
	}

	return true
}
