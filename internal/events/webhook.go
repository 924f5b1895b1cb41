package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultHTTPStatusThreshold = 300
	defaultWebhookTimeout      = 5 * time.Second
)

// WebhookNotifier forwards session events to an HTTP endpoint. Delivery is
// asynchronous and best-effort.
type WebhookNotifier struct {
	client     *http.Client
	log        *zap.SugaredLogger
	webhookURL string
	wg         sync.WaitGroup
}

func NewWebhookNotifier(log *zap.SugaredLogger, webhookURL string) *WebhookNotifier {
	return &WebhookNotifier{
		client:     &http.Client{Timeout: defaultWebhookTimeout},
		log:        log,
		webhookURL: webhookURL,
	}
}

func (s *WebhookNotifier) HandleSessionEvent(ctx context.Context, e Event) {
	if s.webhookURL == "" {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		payload, err := json.Marshal(e)
		if err != nil {
			s.log.Errorw("failed to marshal webhook payload", "error", err)
			return
		}

		req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, s.webhookURL, bytes.NewBuffer(payload))
		if err != nil {
			s.log.Errorw("failed to create webhook request", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			s.log.Errorw("failed to send webhook", "error", err, "kind", e.Kind)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= defaultHTTPStatusThreshold {
			s.log.Warnw("webhook returned non-2xx status", "status", resp.StatusCode, "kind", e.Kind)
		}
	}()
}

// Wait blocks until in-flight deliveries finish.
func (s *WebhookNotifier) Wait() {
	s.wg.Wait()
}
