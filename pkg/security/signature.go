package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifyHMACSHA256 checks that signatureHex (optionally prefixed, e.g.
// "sha256=") is the HMAC-SHA256 of payload under secret. The hex decode and
// the final comparison are both constant-time with respect to the MAC value.
func VerifyHMACSHA256(secret string, payload []byte, signatureHex, prefix string) bool {
	if secret == "" || signatureHex == "" {
		return false
	}
	if prefix != "" {
		trimmed := strings.TrimPrefix(signatureHex, prefix)
		if trimmed == signatureHex {
			return false
		}
		signatureHex = trimmed
	}

	provided, err := hex.DecodeString(strings.TrimSpace(signatureHex))
	if err != nil || len(provided) != sha256.Size {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(provided, mac.Sum(nil))
}

// VerifyWhatsAppSignature validates the Meta Cloud API X-Hub-Signature-256
// header ("sha256=<hex>") against the raw request body.
func VerifyWhatsAppSignature(appSecret string, body []byte, header string) bool {
	return VerifyHMACSHA256(appSecret, body, header, "sha256=")
}

// VerifyNextcloudTalkSignature validates the Talk bot signature: the MAC is
// computed over the X-Nextcloud-Talk-Random value concatenated with the body.
func VerifyNextcloudTalkSignature(secret, random string, body []byte, signatureHex string) bool {
	if random == "" {
		return false
	}
	payload := make([]byte, 0, len(random)+len(body))
	payload = append(payload, random...)
	payload = append(payload, body...)
	return VerifyHMACSHA256(secret, payload, signatureHex, "")
}

// VerifyLinqSignature validates the Linq webhook signature: the MAC covers the
// timestamp header concatenated with the body. A missing timestamp fails
// outright since replay protection depends on it.
func VerifyLinqSignature(secret, timestamp string, body []byte, signatureHex string) bool {
	if timestamp == "" {
		return false
	}
	payload := make([]byte, 0, len(timestamp)+len(body))
	payload = append(payload, timestamp...)
	payload = append(payload, body...)
	return VerifyHMACSHA256(secret, payload, signatureHex, "")
}

// HashWebhookSecret returns the lowercase hex SHA-256 of the shared webhook
// secret. Only the hash is held in memory after startup; incoming secrets are
// hashed and compared so the comparison length is fixed.
func HashWebhookSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
