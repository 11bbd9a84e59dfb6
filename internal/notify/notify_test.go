package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	mu     sync.Mutex
	events []*entity.NotificationEvent
}

func (r *recordingSender) Send(_ context.Context, e *entity.NotificationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func TestDispatcher_DrainsOnShutdown(t *testing.T) {
	rec := &recordingSender{}
	d := NewDispatcher(rec, discardLogger(), WithWorkers(3), WithQueueSize(64))

	for i := 0; i < 20; i++ {
		d.Notify(context.Background(), &entity.NotificationEvent{RequestID: int64(i), Kind: "request_submitted"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.Shutdown(ctx)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.events, 20)

	// after shutdown events are ignored rather than panicking
	d.Notify(context.Background(), &entity.NotificationEvent{Kind: "late"})
	d.Shutdown(ctx)
}

func TestWebhookSender_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "payment_notification", body.Type)
		assert.Equal(t, "request_approved", r.Header.Get("X-Payments-Event"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, time.Second, 5, discardLogger())
	err := s.Send(context.Background(), &entity.NotificationEvent{Kind: "request_approved", RequestID: 7})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookSender_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, time.Second, 5, discardLogger())
	err := s.Send(context.Background(), &entity.NotificationEvent{Kind: "request_rejected"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}
