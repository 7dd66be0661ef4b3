package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// InsertDomainEvent appends one event row and returns its generated id.
func (q *Queries) InsertDomainEvent(ctx context.Context, storeID uuid.UUID, topic string, aggregateID uuid.UUID, payload []byte) (DomainEvent, error) {
	const sql = `
		INSERT INTO domain_events (id, store_id, topic, aggregate_id, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING occurred_at`
	ev := DomainEvent{
		ID:          uuid.New(),
		StoreID:     storeID,
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
	}
	if err := q.db.QueryRow(ctx, sql, pgUUID(ev.ID), pgUUID(storeID), topic, pgUUID(aggregateID), payload).Scan(&ev.OccurredAt); err != nil {
		return DomainEvent{}, err
	}
	return ev, nil
}

// GetDomainEvent fetches one event row by id.
func (q *Queries) GetDomainEvent(ctx context.Context, id uuid.UUID) (DomainEvent, error) {
	const sql = `
		SELECT id, store_id, topic, aggregate_id, payload, occurred_at
		FROM domain_events
		WHERE id = $1`
	var (
		ev  DomainEvent
		eid pgtype.UUID
		sid pgtype.UUID
		aid pgtype.UUID
	)
	err := q.db.QueryRow(ctx, sql, pgUUID(id)).Scan(&eid, &sid, &ev.Topic, &aid, &ev.Payload, &ev.OccurredAt)
	if err != nil {
		return DomainEvent{}, notFound(err)
	}
	ev.ID = fromPGUUID(eid)
	ev.StoreID = fromPGUUID(sid)
	ev.AggregateID = fromPGUUID(aid)
	return ev, nil
}
