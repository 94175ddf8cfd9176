package channels

import (
	"encoding/json"
	"strings"
)

// InboundMessage is one user message extracted from a webhook payload.
type InboundMessage struct {
	From     string
	Text     string
	ThreadID string
}

// ParseWhatsAppPayload extracts text messages from a Meta Cloud API webhook
// body. Non-text entries (statuses, media) are skipped; an unrecognized body
// yields an empty slice, which the handler acks with 200.
func ParseWhatsAppPayload(body []byte) []InboundMessage {
	var payload struct {
		Entry []struct {
			Changes []struct {
				Value struct {
					Messages []struct {
						From string `json:"from"`
						Type string `json:"type"`
						Text struct {
							Body string `json:"body"`
						} `json:"text"`
					} `json:"messages"`
				} `json:"value"`
			} `json:"changes"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}

	var out []InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || strings.TrimSpace(msg.Text.Body) == "" {
					continue
				}
				out = append(out, InboundMessage{
					From:     msg.From,
					Text:     msg.Text.Body,
					ThreadID: msg.From,
				})
			}
		}
	}
	return out
}

// ParseLinqPayload extracts the message from a Linq webhook body.
func ParseLinqPayload(body []byte) []InboundMessage {
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			From string `json:"from"`
			Body string `json:"body"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	if strings.TrimSpace(payload.Data.Body) == "" || payload.Data.From == "" {
		return nil
	}
	return []InboundMessage{{
		From:     payload.Data.From,
		Text:     payload.Data.Body,
		ThreadID: payload.Data.From,
	}}
}

// ParseNextcloudTalkPayload extracts the message from a Talk bot webhook.
// The object content is itself a JSON document with a "message" field.
func ParseNextcloudTalkPayload(body []byte) []InboundMessage {
	var payload struct {
		Type  string `json:"type"`
		Actor struct {
			ID string `json:"id"`
		} `json:"actor"`
		Object struct {
			Name    string `json:"name"`
			Content string `json:"content"`
		} `json:"object"`
		Target struct {
			ID string `json:"id"`
		} `json:"target"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	if payload.Type != "Create" || payload.Object.Name != "message" {
		return nil
	}

	var content struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(payload.Object.Content), &content); err != nil {
		return nil
	}
	if strings.TrimSpace(content.Message) == "" {
		return nil
	}

	from := strings.TrimPrefix(payload.Actor.ID, "users/")
	return []InboundMessage{{
		From:     from,
		Text:     content.Message,
		ThreadID: payload.Target.ID,
	}}
}

// ParseWatiPayload extracts the message from a WATI webhook body.
func ParseWatiPayload(body []byte) []InboundMessage {
	var payload struct {
		WaID string `json:"waId"`
		Text string `json:"text"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	if payload.Type != "text" || strings.TrimSpace(payload.Text) == "" || payload.WaID == "" {
		return nil
	}
	return []InboundMessage{{
		From:     payload.WaID,
		Text:     payload.Text,
		ThreadID: payload.WaID,
	}}
}
