package senders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type SMSSender interface {
	Send(ctx context.Context, to, message string) error
}

// WebhookSMSSender posts messages to an SMS gateway webhook.
type WebhookSMSSender struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewWebhookSMSSender(url, token string) *WebhookSMSSender {
	return &WebhookSMSSender{
		URL:    url,
		Token:  token,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebhookSMSSender) Send(ctx context.Context, to, message string) error {
	payload, err := json.Marshal(map[string]string{"to": to, "message": message})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}
	return nil
}

// NoopSMSSender logs instead of sending; used when no gateway is set.
type NoopSMSSender struct {
	Logger *slog.Logger
}

func (s *NoopSMSSender) Send(_ context.Context, to, _ string) error {
	s.Logger.Info("sms suppressed (no gateway configured)", "to", to)
	return nil
}
