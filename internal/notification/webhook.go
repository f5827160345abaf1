package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Option configures an HTTP-backed notifier.
type Option func(*httpSender)

// WithRateLimit caps deliveries per minute.
func WithRateLimit(perMinute int) Option {
	return func(s *httpSender) {
		if perMinute <= 0 {
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *httpSender) {
		s.client.Timeout = timeout
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *httpSender) {
		s.client = c
	}
}

// httpSender is the shared POST-JSON transport of the HTTP notifiers.
type httpSender struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
}

func newHTTPSender(name string, opts []Option) httpSender {
	s := httpSender{
		name:    name,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s *httpSender) postJSON(ctx context.Context, url string, payload any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit wait: %w", s.name, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", s.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", s.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", s.name, resp.StatusCode)
	}
	return nil
}

// WebhookNotifier sends alerts to a generic HTTP webhook endpoint.
type WebhookNotifier struct {
	url string
	httpSender
}

// NewWebhookNotifier creates a webhook notifier posting to url.
func NewWebhookNotifier(url string, opts ...Option) *WebhookNotifier {
	return &WebhookNotifier{url: url, httpSender: newHTTPSender("webhook", opts)}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	if err := w.postJSON(ctx, w.url, alert); err != nil {
		return err
	}
	slog.Info("[webhook] sent alert", "alert_id", alert.ID, "title", alert.Title)
	return nil
}
