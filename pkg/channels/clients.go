package channels

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nightjar-ai/nightjar/pkg/config"
)

// Channel names for the third-party integrations.
const (
	ChannelWhatsApp      = "whatsapp"
	ChannelLinq          = "linq"
	ChannelNextcloudTalk = "nextcloud-talk"
	ChannelWati          = "wati"
)

var clientHTTP = &http.Client{Timeout: 30 * time.Second}

func postJSON(ctx context.Context, url, bearer string, headers map[string]string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := clientHTTP.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return fmt.Errorf("channel API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// WhatsAppClient sends messages through the Meta Cloud API.
type WhatsAppClient struct {
	accessToken   string
	phoneNumberID string
	verifyToken   string
	graphBase     string
}

// NewWhatsAppClient builds a client from the channel config section.
func NewWhatsAppClient(cfg *config.WhatsAppChannelConfig) *WhatsAppClient {
	return &WhatsAppClient{
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		verifyToken:   cfg.VerifyToken,
		graphBase:     "https://graph.facebook.com/v19.0",
	}
}

func (w *WhatsAppClient) Name() string { return ChannelWhatsApp }

// VerifyToken is the value Meta echoes during GET webhook verification.
func (w *WhatsAppClient) VerifyToken() string { return w.verifyToken }

func (w *WhatsAppClient) Send(ctx context.Context, recipient, message string) error {
	return postJSON(ctx, w.graphBase+"/"+w.phoneNumberID+"/messages", w.accessToken, nil, map[string]any{
		"messaging_product": "whatsapp",
		"to":                recipient,
		"type":              "text",
		"text":              map[string]string{"body": message},
	})
}

func (w *WhatsAppClient) Listen(ctx context.Context) error { return nil }

func (w *WhatsAppClient) HealthCheck(ctx context.Context) error {
	if w.accessToken == "" || w.phoneNumberID == "" {
		return fmt.Errorf("whatsapp cloud credentials missing")
	}
	return nil
}

// LinqClient sends iMessage/RCS/SMS replies through the Linq API.
type LinqClient struct {
	apiToken  string
	fromPhone string
	baseURL   string
}

// NewLinqClient builds a client from the channel config section.
func NewLinqClient(cfg *config.LinqChannelConfig) *LinqClient {
	return &LinqClient{
		apiToken:  cfg.APIToken,
		fromPhone: cfg.FromPhone,
		baseURL:   "https://api.linqapp.com",
	}
}

func (l *LinqClient) Name() string { return ChannelLinq }

func (l *LinqClient) Send(ctx context.Context, recipient, message string) error {
	return postJSON(ctx, l.baseURL+"/api/v1/messages", l.apiToken, nil, map[string]any{
		"from": l.fromPhone,
		"to":   recipient,
		"body": message,
	})
}

func (l *LinqClient) Listen(ctx context.Context) error { return nil }

func (l *LinqClient) HealthCheck(ctx context.Context) error {
	if l.apiToken == "" {
		return fmt.Errorf("linq api token missing")
	}
	return nil
}

// NextcloudTalkClient posts bot messages into a Talk room. Outbound messages
// are signed the same way inbound webhooks are: HMAC-SHA256 over a random
// value concatenated with the message.
type NextcloudTalkClient struct {
	baseURL string
	secret  string
}

// NewNextcloudTalkClient builds a client from the channel config section.
func NewNextcloudTalkClient(cfg *config.NextcloudTalkChannelConfig) *NextcloudTalkClient {
	return &NextcloudTalkClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  cfg.WebhookSecret,
	}
}

func (n *NextcloudTalkClient) Name() string { return ChannelNextcloudTalk }

// Send posts message into the Talk conversation identified by recipient.
func (n *NextcloudTalkClient) Send(ctx context.Context, recipient, message string) error {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return fmt.Errorf("generate signature random: %w", err)
	}
	random := hex.EncodeToString(randomBytes)

	mac := hmac.New(sha256.New, []byte(n.secret))
	mac.Write([]byte(random))
	mac.Write([]byte(message))

	return postJSON(ctx,
		n.baseURL+"/ocs/v2.php/apps/spreed/api/v1/bot/"+url.PathEscape(recipient)+"/message",
		"", map[string]string{
			"OCS-APIRequest":              "true",
			"X-Nextcloud-Talk-Bot-Random": random,
			"X-Nextcloud-Talk-Bot-Signature": hex.EncodeToString(mac.Sum(nil)),
		}, map[string]any{"message": message})
}

func (n *NextcloudTalkClient) Listen(ctx context.Context) error { return nil }

func (n *NextcloudTalkClient) HealthCheck(ctx context.Context) error {
	if n.baseURL == "" {
		return fmt.Errorf("nextcloud talk base url missing")
	}
	return nil
}

// WatiClient sends WhatsApp replies through the WATI session message API.
type WatiClient struct {
	apiToken string
	apiURL   string
}

// NewWatiClient builds a client from the channel config section.
func NewWatiClient(cfg *config.WatiChannelConfig) *WatiClient {
	return &WatiClient{
		apiToken: cfg.APIToken,
		apiURL:   strings.TrimRight(cfg.APIURL, "/"),
	}
}

func (w *WatiClient) Name() string { return ChannelWati }

func (w *WatiClient) Send(ctx context.Context, recipient, message string) error {
	endpoint := w.apiURL + "/api/v1/sendSessionMessage/" + url.PathEscape(recipient) +
		"?messageText=" + url.QueryEscape(message)
	return postJSON(ctx, endpoint, w.apiToken, nil, map[string]any{})
}

func (w *WatiClient) Listen(ctx context.Context) error { return nil }

func (w *WatiClient) HealthCheck(ctx context.Context) error {
	if w.apiToken == "" || w.apiURL == "" {
		return fmt.Errorf("wati credentials missing")
	}
	return nil
}
