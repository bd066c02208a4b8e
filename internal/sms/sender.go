package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrSMSDisabled signals that SMS delivery is disabled via configuration.
var ErrSMSDisabled = errors.New("sms: delivery disabled")

// Message represents an outbound text message.
type Message struct {
	To   string
	Body string
}

// Sender defines behaviour for delivering text messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// WebhookSettings capture the runtime configuration of the webhook sender.
type WebhookSettings struct {
	Enabled bool
	URL     string
	APIKey  string
	From    string
	Timeout time.Duration
}

// WebhookSender delivers messages by posting JSON to a gateway webhook.
type WebhookSender struct {
	cfg  WebhookSettings
	http *http.Client
}

// NewWebhookSender validates the settings and builds a webhook sender.
func NewWebhookSender(cfg WebhookSettings) (*WebhookSender, error) {
	if cfg.Enabled && strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("sms: webhook url is required when enabled")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WebhookSender{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}, nil
}

type webhookPayload struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

// Send posts the message to the configured gateway.
func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	if !s.cfg.Enabled {
		return ErrSMSDisabled
	}

	to := strings.TrimSpace(msg.To)
	if to == "" {
		return errors.New("sms: recipient is required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return errors.New("sms: message body is required")
	}

	body, err := json.Marshal(webhookPayload{To: to, From: s.cfg.From, Message: msg.Body})
	if err != nil {
		return fmt.Errorf("sms: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sms: gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
