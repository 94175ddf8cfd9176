package channels

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightjar-ai/nightjar/pkg/config"
)

func TestWhatsAppSendBodyShape(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewWhatsAppClient(&config.WhatsAppChannelConfig{
		AccessToken:   "tok",
		PhoneNumberID: "555",
	})
	c.graphBase = srv.URL

	require.NoError(t, c.Send(context.Background(), "+15551234", "hello"))
	assert.Equal(t, "/555/messages", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "whatsapp", gotBody["messaging_product"])
	assert.Equal(t, "+15551234", gotBody["to"])
	assert.Equal(t, map[string]any{"body": "hello"}, gotBody["text"])
}

func TestNextcloudTalkSendSignsMessage(t *testing.T) {
	const secret = "shared-secret"
	var gotRandom, gotSig string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.Header.Get("OCS-APIRequest"))
		gotRandom = r.Header.Get("X-Nextcloud-Talk-Bot-Random")
		gotSig = r.Header.Get("X-Nextcloud-Talk-Bot-Signature")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewNextcloudTalkClient(&config.NextcloudTalkChannelConfig{
		BaseURL:       srv.URL,
		WebhookSecret: secret,
	})
	require.NoError(t, c.Send(context.Background(), "room1", "bot reply"))

	assert.Equal(t, "bot reply", gotBody["message"])
	require.NotEmpty(t, gotRandom)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gotRandom))
	mac.Write([]byte("bot reply"))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSig)
}

func TestWatiSendEncodesMessageInQuery(t *testing.T) {
	var gotURI string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewWatiClient(&config.WatiChannelConfig{APIToken: "tok", APIURL: srv.URL})
	require.NoError(t, c.Send(context.Background(), "4477", "hi & bye"))
	assert.Equal(t, "/api/v1/sendSessionMessage/4477?messageText=hi+%26+bye", gotURI)
}

func TestSendSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"bad token"}`))
	}))
	defer srv.Close()

	c := NewLinqClient(&config.LinqChannelConfig{APIToken: "tok"})
	c.baseURL = srv.URL
	err := c.Send(context.Background(), "+1555", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
