package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func mac(secret string, payload []byte) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write(payload)
	return hex.EncodeToString(m.Sum(nil))
}

func TestVerifyHMACSHA256(t *testing.T) {
	body := []byte(`{"message":"hello"}`)
	sig := mac("topsecret", body)

	assert.True(t, VerifyHMACSHA256("topsecret", body, sig, ""))
	assert.False(t, VerifyHMACSHA256("topsecret", []byte("tampered"), sig, ""))
	assert.False(t, VerifyHMACSHA256("wrong", body, sig, ""))
	assert.False(t, VerifyHMACSHA256("topsecret", body, "", ""))
	assert.False(t, VerifyHMACSHA256("", body, sig, ""))
	assert.False(t, VerifyHMACSHA256("topsecret", body, "zz"+sig[2:], ""))
	assert.False(t, VerifyHMACSHA256("topsecret", body, sig[:32], ""))
}

func TestVerifyWhatsAppSignature(t *testing.T) {
	body := []byte(`{"entry":[]}`)
	sig := mac("appsecret", body)

	assert.True(t, VerifyWhatsAppSignature("appsecret", body, "sha256="+sig))
	// Prefix is mandatory for the Meta header.
	assert.False(t, VerifyWhatsAppSignature("appsecret", body, sig))
	assert.False(t, VerifyWhatsAppSignature("appsecret", body, "sha1="+sig))
	assert.False(t, VerifyWhatsAppSignature("appsecret", []byte("x"), "sha256="+sig))
}

func TestVerifyNextcloudTalkSignature(t *testing.T) {
	body := []byte(`{"object":{"name":"message"}}`)
	random := "abc123random"
	sig := mac("botsecret", []byte(random+string(body)))

	assert.True(t, VerifyNextcloudTalkSignature("botsecret", random, body, sig))
	assert.False(t, VerifyNextcloudTalkSignature("botsecret", "", body, sig))
	assert.False(t, VerifyNextcloudTalkSignature("botsecret", "other", body, sig))
	assert.False(t, VerifyNextcloudTalkSignature("botsecret", random, []byte("x"), sig))
}

func TestVerifyLinqSignature(t *testing.T) {
	body := []byte(`{"data":{}}`)
	ts := "1700000000"
	sig := mac("linqsecret", []byte(ts+string(body)))

	assert.True(t, VerifyLinqSignature("linqsecret", ts, body, sig))
	assert.False(t, VerifyLinqSignature("linqsecret", "", body, sig))
	assert.False(t, VerifyLinqSignature("linqsecret", "1700000001", body, sig))
	assert.False(t, VerifyLinqSignature("linqsecret", ts, body, mac("other", body)))
}

func TestHashWebhookSecret(t *testing.T) {
	h := HashWebhookSecret("hello")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashWebhookSecret("hello"))
	assert.NotEqual(t, h, HashWebhookSecret("hello2"))
	// Known vector.
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", h)
}

func TestIsPublicBind(t *testing.T) {
	assert.False(t, IsPublicBind("127.0.0.1"))
	assert.False(t, IsPublicBind("::1"))
	assert.False(t, IsPublicBind("localhost"))
	assert.False(t, IsPublicBind(""))
	assert.True(t, IsPublicBind("0.0.0.0"))
	assert.True(t, IsPublicBind("::"))
	assert.True(t, IsPublicBind("192.168.1.20"))
	assert.True(t, IsPublicBind("example.com"))
}
