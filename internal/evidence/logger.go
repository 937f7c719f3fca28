package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/pagepub/internal/logfields"
)

// Logger fans each record out to the remote evidence endpoint and the local
// journal. Submission is detached: the caller gets no result channel, and
// sink failures are logged at warn level and otherwise swallowed.
type Logger struct {
	url    string
	store  *SQLiteStore // optional
	client *http.Client
	logger *slog.Logger

	wg sync.WaitGroup
}

// NewLogger builds an evidence logger. Either sink may be absent: an empty
// url disables the remote post, a nil store disables the journal.
func NewLogger(url string, store *SQLiteStore, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		url:    url,
		store:  store,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Submit records evidence in the background and returns immediately.
func (l *Logger) Submit(record Record) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.deliver(record)
	}()
}

// Wait blocks until all in-flight submissions finish. Used by tests and
// graceful shutdown; normal request handling never calls it.
func (l *Logger) Wait() {
	l.wg.Wait()
}

func (l *Logger) deliver(record Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	if l.store != nil {
		if err := l.store.Save(ctx, record); err != nil {
			l.logger.Warn("evidence journal write failed",
				logfields.Task(record.Task), logfields.Error(err))
		}
	}

	if l.url == "" {
		return
	}
	body, err := json.Marshal(record)
	if err != nil {
		l.logger.Warn("evidence record not serializable", logfields.Error(err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		l.logger.Warn("evidence request construction failed", logfields.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		l.logger.Warn("evidence post failed", logfields.URL(l.url), logfields.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		l.logger.Warn("evidence endpoint rejected record",
			logfields.URL(l.url), logfields.HTTPStatus(resp.StatusCode))
	}
}
