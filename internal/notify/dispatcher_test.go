package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lojinha-dev/storefront-api/internal/notify"
	"github.com/lojinha-dev/storefront-api/internal/queue"
	"github.com/lojinha-dev/storefront-api/internal/resilience"
	"github.com/lojinha-dev/storefront-api/internal/store"
)

type fakeStore struct {
	mu        sync.Mutex
	endpoints map[uuid.UUID]store.WebhookEndpoint
	events    map[uuid.UUID]store.DomainEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		endpoints: make(map[uuid.UUID]store.WebhookEndpoint),
		events:    make(map[uuid.UUID]store.DomainEvent),
	}
}

func (f *fakeStore) GetWebhookEndpoint(_ context.Context, id uuid.UUID) (store.WebhookEndpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ep, ok := f.endpoints[id]
	if !ok {
		return store.WebhookEndpoint{}, store.ErrNotFound
	}
	return ep, nil
}

func (f *fakeStore) ListActiveWebhookEndpointsForTopic(_ context.Context, storeID uuid.UUID, topic string) ([]store.WebhookEndpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.WebhookEndpoint
	for _, ep := range f.endpoints {
		if ep.StoreID != storeID || !ep.IsActive {
			continue
		}
		for _, t := range ep.Topics {
			if t == topic {
				out = append(out, ep)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) GetDomainEvent(_ context.Context, id uuid.UUID) (store.DomainEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return store.DomainEvent{}, store.ErrNotFound
	}
	return ev, nil
}

func httpClient() *resilience.HTTPClient {
	return &resilience.HTTPClient{
		Client:      &http.Client{Timeout: time.Second},
		Breaker:     resilience.NewBreaker(1, 1, time.Second),
		MaxAttempts: 1,
	}
}

func TestNotifySchedulesOnlySubscribedEndpoints(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	storeID := uuid.New()
	fs := newFakeStore()
	subscribed := store.WebhookEndpoint{ID: uuid.New(), StoreID: storeID, URL: "https://example.com/hook", Secret: "s1", Topics: []string{"order.created"}, IsActive: true}
	other := store.WebhookEndpoint{ID: uuid.New(), StoreID: storeID, URL: "https://example.com/other", Secret: "s2", Topics: []string{"order.cancelled"}, IsActive: true}
	fs.endpoints[subscribed.ID] = subscribed
	fs.endpoints[other.ID] = other

	d := &notify.Dispatcher{
		Q:       fs,
		Queue:   queue.Enqueuer{R: client, Prefix: "wh"},
		Enabled: true,
		Logger:  zerolog.Nop(),
	}
	ev := store.DomainEvent{ID: uuid.New(), StoreID: storeID, Topic: "order.created", AggregateID: uuid.New(), Payload: []byte(`{}`)}
	require.NoError(t, d.Notify(context.Background(), ev))

	depth, err := client.ZCard(context.Background(), "wh:queue:"+notify.TaskKind).Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), depth)

	// a second schedule of the same event is deduplicated
	require.NoError(t, d.Notify(context.Background(), ev))
	depth, err = client.ZCard(context.Background(), "wh:queue:"+notify.TaskKind).Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), depth)
}

func TestHandleTaskDeliversSignedPayload(t *testing.T) {
	storeID := uuid.New()
	eventID := uuid.New()
	secret := "topsecret"

	received := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- r
		bodies <- body
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	fs := newFakeStore()
	ep := store.WebhookEndpoint{ID: uuid.New(), StoreID: storeID, URL: srv.URL, Secret: secret, Topics: []string{"order.created"}, IsActive: true}
	fs.endpoints[ep.ID] = ep
	fs.events[eventID] = store.DomainEvent{ID: eventID, StoreID: storeID, Topic: "order.created", AggregateID: uuid.New(), Payload: []byte(`{"orderId":"x"}`), OccurredAt: time.Now()}

	d := &notify.Dispatcher{Q: fs, Enabled: true, Client: httpClient(), Logger: zerolog.Nop()}
	payload, err := json.Marshal(map[string]string{"endpointId": ep.ID.String(), "eventId": eventID.String()})
	require.NoError(t, err)

	require.NoError(t, d.HandleTask(context.Background(), queue.Task{Kind: notify.TaskKind, Payload: payload}))

	req := <-received
	body := <-bodies
	require.Equal(t, eventID.String(), req.Header.Get("X-Event-ID"))
	ts, err := strconv.ParseInt(req.Header.Get("X-Timestamp"), 10, 64)
	require.NoError(t, err)
	require.Equal(t, notify.ComputeSignature(secret, ts, eventID.String(), body), req.Header.Get("X-Signature"))

	var delivered struct {
		EventID string          `json:"eventId"`
		Topic   string          `json:"topic"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &delivered))
	require.Equal(t, "order.created", delivered.Topic)
	require.JSONEq(t, `{"orderId":"x"}`, string(delivered.Data))
}

func TestHandleTaskFailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	storeID := uuid.New()
	eventID := uuid.New()
	fs := newFakeStore()
	ep := store.WebhookEndpoint{ID: uuid.New(), StoreID: storeID, URL: srv.URL, Secret: "s", Topics: []string{"order.created"}, IsActive: true}
	fs.endpoints[ep.ID] = ep
	fs.events[eventID] = store.DomainEvent{ID: eventID, StoreID: storeID, Topic: "order.created", AggregateID: uuid.New(), Payload: []byte(`{}`), OccurredAt: time.Now()}

	d := &notify.Dispatcher{Q: fs, Enabled: true, Client: httpClient(), Logger: zerolog.Nop()}
	payload, err := json.Marshal(map[string]string{"endpointId": ep.ID.String(), "eventId": eventID.String()})
	require.NoError(t, err)

	require.Error(t, d.HandleTask(context.Background(), queue.Task{Kind: notify.TaskKind, Payload: payload}))
}

func TestHandleTaskDropsRemovedEndpoint(t *testing.T) {
	fs := newFakeStore()
	d := &notify.Dispatcher{Q: fs, Enabled: true, Client: httpClient(), Logger: zerolog.Nop()}
	payload, err := json.Marshal(map[string]string{"endpointId": uuid.NewString(), "eventId": uuid.NewString()})
	require.NoError(t, err)
	require.NoError(t, d.HandleTask(context.Background(), queue.Task{Kind: notify.TaskKind, Payload: payload}))
}
