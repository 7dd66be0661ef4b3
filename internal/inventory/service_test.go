package inventory_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lojinha-dev/storefront-api/internal/events"
	"github.com/lojinha-dev/storefront-api/internal/inventory"
	"github.com/lojinha-dev/storefront-api/internal/store"
)

// fakeInventoryStore layers the reporting reads over fakeQuerier.
type fakeInventoryStore struct {
	*fakeQuerier
	storeIDs []uuid.UUID
	lowStock map[uuid.UUID][]store.LowStockRow
	totals   map[uuid.UUID][]store.StockTotal
}

func newFakeInventoryStore() *fakeInventoryStore {
	return &fakeInventoryStore{
		fakeQuerier: newFakeQuerier(),
		lowStock:    map[uuid.UUID][]store.LowStockRow{},
		totals:      map[uuid.UUID][]store.StockTotal{},
	}
}

func (f *fakeInventoryStore) ListLowStock(_ context.Context, storeID uuid.UUID, _ int32) ([]store.LowStockRow, error) {
	return f.lowStock[storeID], nil
}

func (f *fakeInventoryStore) ListStockMovements(_ context.Context, storeID uuid.UUID, optionID *uuid.UUID, _, _ int32) ([]store.StockMovement, error) {
	out := []store.StockMovement{}
	for _, m := range f.movements {
		if m.StoreID != storeID {
			continue
		}
		if optionID != nil && m.VariantOptionID != *optionID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeInventoryStore) StockTotals(_ context.Context, storeID uuid.UUID) ([]store.StockTotal, error) {
	return f.totals[storeID], nil
}

func (f *fakeInventoryStore) ListStoreIDs(_ context.Context) ([]uuid.UUID, error) {
	return f.storeIDs, nil
}

func (f *fakeInventoryStore) InTx(_ context.Context, fn func(inventory.Store) error) error {
	return fn(f)
}

type stubEventStore struct {
	events []store.DomainEvent
}

func (s *stubEventStore) InsertDomainEvent(_ context.Context, storeID uuid.UUID, topic string, aggregateID uuid.UUID, payload []byte) (store.DomainEvent, error) {
	ev := store.DomainEvent{ID: uuid.New(), StoreID: storeID, Topic: topic, AggregateID: aggregateID, Payload: payload}
	s.events = append(s.events, ev)
	return ev, nil
}

func TestAdjustPositiveDelta(t *testing.T) {
	storeID := uuid.New()
	db := newFakeInventoryStore()
	opt := seed(db.fakeQuerier, storeID, 2)
	svc := &inventory.Service{Q: db, Tx: db, Logger: zerolog.Nop()}

	require.NoError(t, svc.Adjust(context.Background(), storeID, opt.ID, 5, "recount", "operator-1"))
	require.Equal(t, int32(7), db.options[opt.ID].Stock)
	require.Len(t, db.movements, 1)
	require.Equal(t, store.MovementIn, db.movements[0].Type)
	require.Equal(t, int32(5), db.movements[0].Quantity)
	require.Equal(t, "operator-1", db.movements[0].CreatedBy)
}

func TestAdjustNegativeDeltaHitsGuard(t *testing.T) {
	storeID := uuid.New()
	db := newFakeInventoryStore()
	opt := seed(db.fakeQuerier, storeID, 2)
	svc := &inventory.Service{Q: db, Tx: db, Logger: zerolog.Nop()}

	require.NoError(t, svc.Adjust(context.Background(), storeID, opt.ID, -2, "damage", "operator-1"))
	require.Equal(t, int32(0), db.options[opt.ID].Stock)

	err := svc.Adjust(context.Background(), storeID, opt.ID, -1, "damage", "operator-1")
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	require.Equal(t, int32(0), db.options[opt.ID].Stock)
}

func TestAdjustZeroDeltaRejected(t *testing.T) {
	svc := &inventory.Service{Q: newFakeInventoryStore(), Logger: zerolog.Nop()}
	require.Error(t, svc.Adjust(context.Background(), uuid.New(), uuid.New(), 0, "noop", ""))
}

func TestAuditFlagsProjectionDrift(t *testing.T) {
	storeID := uuid.New()
	db := newFakeInventoryStore()
	db.storeIDs = []uuid.UUID{storeID}
	driftOption := uuid.New()
	db.totals[storeID] = []store.StockTotal{
		{VariantOptionID: uuid.New(), Stock: 5, MovementSum: 5},
		{VariantOptionID: driftOption, Stock: 5, MovementSum: 3},
	}
	sink := &stubEventStore{}
	svc := &inventory.Service{
		Q:      db,
		Tx:     db,
		Events: &events.Bus{Store: sink},
		Logger: zerolog.Nop(),
	}

	report, err := svc.Audit(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.StoresChecked)
	require.Equal(t, 2, report.OptionsChecked)
	require.Len(t, report.Mismatches, 1)
	require.Equal(t, driftOption, report.Mismatches[0].VariantOptionID)

	require.Len(t, sink.events, 1)
	require.Equal(t, events.TopicInventoryInconsistency, sink.events[0].Topic)
}

func TestCheckLowStockEmitsPerRow(t *testing.T) {
	storeID := uuid.New()
	db := newFakeInventoryStore()
	db.storeIDs = []uuid.UUID{storeID}
	db.lowStock[storeID] = []store.LowStockRow{
		{VariantOptionID: uuid.New(), ProductID: uuid.New(), SKU: "CAM-P-001", Stock: 2},
		{VariantOptionID: uuid.New(), ProductID: uuid.New(), SKU: "CAM-M-001", Stock: 1},
	}
	sink := &stubEventStore{}
	svc := &inventory.Service{
		Q:      db,
		Tx:     db,
		Events: &events.Bus{Store: sink},
		Logger: zerolog.Nop(),
	}

	require.NoError(t, svc.CheckLowStock(context.Background()))
	require.Len(t, sink.events, 2)
	for _, ev := range sink.events {
		require.Equal(t, events.TopicInventoryLowStock, ev.Topic)
	}
}
