package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lojinha-dev/storefront-api/internal/events"
	"github.com/lojinha-dev/storefront-api/internal/store"
)

type stubStore struct {
	inserted []store.DomainEvent
	err      error
}

func (s *stubStore) InsertDomainEvent(_ context.Context, storeID uuid.UUID, topic string, aggregateID uuid.UUID, payload []byte) (store.DomainEvent, error) {
	if s.err != nil {
		return store.DomainEvent{}, s.err
	}
	ev := store.DomainEvent{
		ID:          uuid.New(),
		StoreID:     storeID,
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}
	s.inserted = append(s.inserted, ev)
	return ev, nil
}

type captureNotifier struct {
	events []store.DomainEvent
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event store.DomainEvent) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitPersistsAndNotifies(t *testing.T) {
	t.Parallel()

	st := &stubStore{}
	notifier := &captureNotifier{}
	bus := &events.Bus{Store: st, Notifiers: []events.Notifier{notifier}}

	storeID := uuid.New()
	orderID := uuid.New()
	ev, err := bus.Emit(context.Background(), storeID, events.TopicOrderCreated, orderID, map[string]any{"total": 12_500})
	require.NoError(t, err)
	require.Equal(t, events.TopicOrderCreated, ev.Topic)
	require.Len(t, st.inserted, 1)
	require.Len(t, notifier.events, 1)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	require.EqualValues(t, 12_500, payload["total"])
}

func TestEmitNotifierFailureKeepsEvent(t *testing.T) {
	t.Parallel()

	st := &stubStore{}
	notifier := &captureNotifier{err: errors.New("boom")}
	bus := &events.Bus{Store: st, Notifiers: []events.Notifier{notifier}}

	_, err := bus.Emit(context.Background(), uuid.New(), events.TopicOrderCancelled, uuid.New(), nil)
	require.Error(t, err)
	require.Len(t, st.inserted, 1)
}

func TestEmitValidation(t *testing.T) {
	t.Parallel()

	bus := &events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), uuid.New(), " ", uuid.New(), nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), uuid.New(), events.TopicOrderCreated, uuid.Nil, nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), uuid.New(), events.TopicOrderCreated, uuid.New(), []byte("not json"))
	require.Error(t, err)
}
