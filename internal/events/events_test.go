package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var got []string

	bus.Subscribe(ListenerFunc(func(_ context.Context, e Event) { got = append(got, "first:"+string(e.Kind)) }))
	bus.Subscribe(ListenerFunc(func(_ context.Context, e Event) { got = append(got, "second:"+string(e.Kind)) }))

	bus.Publish(context.Background(), Event{Kind: KindExpired})

	assert.Equal(t, []string{"first:session.expired", "second:session.expired"}, got)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsubscribe := bus.Subscribe(ListenerFunc(func(context.Context, Event) { calls++ }))

	bus.Publish(context.Background(), Event{Kind: KindStarted})
	unsubscribe()
	bus.Publish(context.Background(), Event{Kind: KindEnded})

	assert.Equal(t, 1, calls)
}

func TestBus_StampsEventTime(t *testing.T) {
	bus := NewBus()
	var got Event
	bus.Subscribe(ListenerFunc(func(_ context.Context, e Event) { got = e }))

	bus.Publish(context.Background(), Event{Kind: KindRefreshed})

	assert.False(t, got.At.IsZero())
}

func TestWebhookNotifier_PostsEvent(t *testing.T) {
	var (
		mu       sync.Mutex
		received Event
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(zap.NewNop().Sugar(), srv.URL)
	notifier.HandleSessionEvent(context.Background(), Event{Kind: KindExpired, UserID: 7, RedirectTo: "/login"})
	notifier.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, KindExpired, received.Kind)
	assert.Equal(t, int64(7), received.UserID)
	assert.Equal(t, "/login", received.RedirectTo)
}

func TestWebhookNotifier_NoURLIsNoop(t *testing.T) {
	notifier := NewWebhookNotifier(zap.NewNop().Sugar(), "")
	notifier.HandleSessionEvent(context.Background(), Event{Kind: KindStarted})
	notifier.Wait()
}
