// Package notify delivers completion callbacks with bounded
// exponential-backoff retries. Delivery is best-effort: the publish itself
// has already succeeded by the time the notifier runs, so exhausting the
// retry budget reports false instead of failing anything.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/pagepub/internal/logfields"
	"git.home.luguber.info/inful/pagepub/internal/metrics"
	"git.home.luguber.info/inful/pagepub/internal/retry"
)

// Notifier posts JSON payloads to caller-supplied callback URLs.
type Notifier struct {
	client  *http.Client
	policy  retry.Policy
	logger  *slog.Logger
	metrics metrics.Recorder

	maxAttempts int
	sleep       func(time.Duration)
}

// New builds a notifier with the given attempt budget and initial backoff.
// The delay doubles after every failed attempt.
func New(maxAttempts int, initialDelay time.Duration, logger *slog.Logger, recorder metrics.Recorder) *Notifier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Notifier{
		client:      &http.Client{Timeout: 30 * time.Second},
		policy:      retry.NewPolicy(retry.BackoffExponential, initialDelay, initialDelay<<uint(maxAttempts), maxAttempts-1),
		logger:      logger,
		metrics:     recorder,
		maxAttempts: maxAttempts,
		sleep:       time.Sleep,
	}
}

// Notify POSTs the payload to the callback URL. Success is strictly a 200
// response; any other status or transport error burns one attempt. Returns
// whether delivery succeeded within the attempt budget.
func (n *Notifier) Notify(ctx context.Context, url string, payload any) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("callback payload not serializable", logfields.URL(url), logfields.Error(err))
		n.metrics.IncNotifyResult(false)
		return false
	}

	log := n.logger.With(logfields.URL(url))
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		if n.post(ctx, url, body) {
			log.Info("callback delivered", logfields.Attempt(attempt))
			n.metrics.IncNotifyResult(true)
			return true
		}
		if attempt < n.maxAttempts {
			delay := n.policy.Delay(attempt)
			log.Warn("callback delivery failed, backing off",
				logfields.Attempt(attempt),
				slog.Duration("delay", delay))
			n.sleep(delay)
		}
	}

	log.Error("callback delivery exhausted", logfields.Attempt(n.maxAttempts))
	n.metrics.IncNotifyResult(false)
	return false
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
