package evidence

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRecord(task string, round int) Record {
	return Record{
		RequestID: "req-1",
		Task:      task,
		Round:     round,
		Email:     "dev@example.com",
		RemoteIP:  "10.0.0.1",
		URL:       "http://localhost:5000/api-endpoint",
		Status:    "success",
		RepoURL:   "https://github.com/tester/" + task,
		PagesURL:  "https://tester.github.io/" + task + "/",
		CommitSHA: "abc123",
	}
}

func TestStoreSaveAndQuery(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleRecord("calc", 1)))
	require.NoError(t, store.Save(ctx, sampleRecord("calc", 2)))
	require.NoError(t, store.Save(ctx, sampleRecord("notes", 1)))

	byTask, err := store.ByTask(ctx, "calc")
	require.NoError(t, err)
	require.Len(t, byTask, 2)
	assert.Equal(t, 1, byTask[0].Round)
	assert.Equal(t, 2, byTask[1].Round)
	assert.Equal(t, "success", byTask[0].Status)
	assert.False(t, byTask[0].CreatedAt.IsZero())

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "notes", recent[0].Task)
}

func TestLoggerPostsAndJournals(t *testing.T) {
	received := make(chan Record, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rec Record
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
		received <- rec
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	l := NewLogger(srv.URL, store, discardLogger())
	l.Submit(sampleRecord("calc", 1))
	l.Wait()

	select {
	case rec := <-received:
		assert.Equal(t, "calc", rec.Task)
		assert.Equal(t, "success", rec.Status)
	case <-time.After(time.Second):
		t.Fatal("remote endpoint never received the record")
	}

	journaled, err := store.ByTask(context.Background(), "calc")
	require.NoError(t, err)
	assert.Len(t, journaled, 1)
}

func TestLoggerSwallowsSinkFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // unreachable

	l := NewLogger(srv.URL, nil, discardLogger())
	l.Submit(sampleRecord("calc", 1)) // must not panic or block
	l.Wait()
}

func TestLoggerWithoutSinks(t *testing.T) {
	l := NewLogger("", nil, discardLogger())
	l.Submit(sampleRecord("calc", 1))
	l.Wait()
}
