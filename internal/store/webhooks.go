package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// InsertWebhookEndpoint persists one delivery endpoint.
func (q *Queries) InsertWebhookEndpoint(ctx context.Context, ep WebhookEndpoint) error {
	const sql = `
		INSERT INTO webhook_endpoints (id, store_id, url, secret, topics, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := q.db.Exec(ctx, sql,
		pgUUID(ep.ID), pgUUID(ep.StoreID), ep.URL, ep.Secret, ep.Topics, ep.IsActive)
	return err
}

// GetWebhookEndpoint fetches one endpoint by id.
func (q *Queries) GetWebhookEndpoint(ctx context.Context, id uuid.UUID) (WebhookEndpoint, error) {
	const sql = `
		SELECT id, store_id, url, secret, topics, is_active, created_at
		FROM webhook_endpoints
		WHERE id = $1`
	return q.scanWebhookEndpoint(q.db.QueryRow(ctx, sql, pgUUID(id)))
}

// ListWebhookEndpoints returns all endpoints of a store, newest first.
func (q *Queries) ListWebhookEndpoints(ctx context.Context, storeID uuid.UUID) ([]WebhookEndpoint, error) {
	const sql = `
		SELECT id, store_id, url, secret, topics, is_active, created_at
		FROM webhook_endpoints
		WHERE store_id = $1
		ORDER BY created_at DESC`
	rows, err := q.db.Query(ctx, sql, pgUUID(storeID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var endpoints []WebhookEndpoint
	for rows.Next() {
		ep, err := q.scanWebhookEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, rows.Err()
}

// ListActiveWebhookEndpointsForTopic returns the active endpoints of a store
// subscribed to the given topic.
func (q *Queries) ListActiveWebhookEndpointsForTopic(ctx context.Context, storeID uuid.UUID, topic string) ([]WebhookEndpoint, error) {
	const sql = `
		SELECT id, store_id, url, secret, topics, is_active, created_at
		FROM webhook_endpoints
		WHERE store_id = $1 AND is_active AND $2 = ANY(topics)`
	rows, err := q.db.Query(ctx, sql, pgUUID(storeID), topic)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var endpoints []WebhookEndpoint
	for rows.Next() {
		ep, err := q.scanWebhookEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, rows.Err()
}

// DeleteWebhookEndpoint removes an endpoint of a store.
func (q *Queries) DeleteWebhookEndpoint(ctx context.Context, storeID, id uuid.UUID) error {
	const sql = `DELETE FROM webhook_endpoints WHERE store_id = $1 AND id = $2`
	tag, err := q.db.Exec(ctx, sql, pgUUID(storeID), pgUUID(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) scanWebhookEndpoint(row rowScanner) (WebhookEndpoint, error) {
	var (
		ep  WebhookEndpoint
		id  pgtype.UUID
		sid pgtype.UUID
	)
	if err := row.Scan(&id, &sid, &ep.URL, &ep.Secret, &ep.Topics, &ep.IsActive, &ep.CreatedAt); err != nil {
		return WebhookEndpoint{}, notFound(err)
	}
	ep.ID = fromPGUUID(id)
	ep.StoreID = fromPGUUID(sid)
	return ep, nil
}
