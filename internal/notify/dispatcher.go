package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lojinha-dev/storefront-api/internal/lock"
	"github.com/lojinha-dev/storefront-api/internal/obs"
	"github.com/lojinha-dev/storefront-api/internal/queue"
	"github.com/lojinha-dev/storefront-api/internal/resilience"
	"github.com/lojinha-dev/storefront-api/internal/store"
)

// TaskKind is the queue kind consumed by the webhook delivery worker.
const TaskKind = "webhook-delivery"

// Store defines the persistence operations webhook delivery needs.
type Store interface {
	GetWebhookEndpoint(ctx context.Context, id uuid.UUID) (store.WebhookEndpoint, error)
	ListActiveWebhookEndpointsForTopic(ctx context.Context, storeID uuid.UUID, topic string) ([]store.WebhookEndpoint, error)
	GetDomainEvent(ctx context.Context, id uuid.UUID) (store.DomainEvent, error)
}

// Dispatcher fans domain events out to store-configured webhook endpoints.
// Scheduling enqueues one redis task per subscribed endpoint; the worker side
// performs the signed HTTP delivery. Retries and dead-lettering ride on the
// queue.
type Dispatcher struct {
	Q           Store
	Queue       queue.Enqueuer
	Client      *resilience.HTTPClient
	MaxAttempts int
	Enabled     bool
	Locker      lock.Locker
	LockTTL     time.Duration
	Logger      zerolog.Logger
}

type deliveryTask struct {
	EndpointID uuid.UUID `json:"endpointId"`
	EventID    uuid.UUID `json:"eventId"`
}

// Notify implements events.Notifier: one queue task per subscribed endpoint.
func (d *Dispatcher) Notify(ctx context.Context, event store.DomainEvent) error {
	if d == nil || !d.Enabled || d.Q == nil {
		return nil
	}
	endpoints, err := d.Q.ListActiveWebhookEndpointsForTopic(ctx, event.StoreID, event.Topic)
	if err != nil {
		return err
	}
	maxAttempts := d.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 6
	}
	var joined error
	for _, ep := range endpoints {
		payload, err := json.Marshal(deliveryTask{EndpointID: ep.ID, EventID: event.ID})
		if err != nil {
			joined = errors.Join(joined, err)
			continue
		}
		task := queue.Task{
			Kind:           TaskKind,
			Payload:        payload,
			IdempotencyKey: ep.ID.String() + ":" + event.ID.String(),
			MaxAttempts:    maxAttempts,
		}
		if err := d.Queue.Enqueue(ctx, task); err != nil {
			joined = errors.Join(joined, fmt.Errorf("enqueue delivery for %s: %w", ep.ID, err))
		}
	}
	return joined
}

// HandleTask is the queue handler performing one delivery attempt.
func (d *Dispatcher) HandleTask(ctx context.Context, task queue.Task) error {
	var dt deliveryTask
	if err := json.Unmarshal(task.Payload, &dt); err != nil {
		return nil // malformed payload, nothing to retry
	}
	if d.Locker.R == nil {
		return d.attempt(ctx, dt)
	}
	ttl := d.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	key := fmt.Sprintf("lock:delivery:%s:%s", dt.EndpointID, dt.EventID)
	return d.Locker.WithLock(ctx, key, ttl, func(ctx context.Context) error {
		return d.attempt(ctx, dt)
	})
}

func (d *Dispatcher) attempt(ctx context.Context, dt deliveryTask) error {
	endpoint, err := d.Q.GetWebhookEndpoint(ctx, dt.EndpointID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil // endpoint removed, drop the delivery
		}
		return err
	}
	if !endpoint.IsActive {
		return nil
	}
	event, err := d.Q.GetDomainEvent(ctx, dt.EventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	status, err := d.deliver(ctx, endpoint, event)
	if err == nil && status >= 200 && status < 300 {
		if obs.WebhookDeliveriesTotal != nil {
			obs.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
		}
		return nil
	}
	if obs.WebhookDeliveriesTotal != nil {
		obs.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
	}
	if err != nil {
		d.Logger.Warn().Err(err).Str("endpoint_id", endpoint.ID.String()).Str("topic", event.Topic).Msg("webhook delivery failed")
		return err
	}
	return fmt.Errorf("webhook delivery: endpoint answered %d", status)
}

func (d *Dispatcher) deliver(ctx context.Context, ep store.WebhookEndpoint, ev store.DomainEvent) (int, error) {
	if d.Client == nil {
		return 0, errors.New("notify: http client not configured")
	}
	ctx, span := otel.Tracer("notify.Dispatcher").Start(ctx, "Dispatcher.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.endpoint_id", ep.ID.String()),
		attribute.String("webhook.topic", ev.Topic),
	)
	if err := validateURL(ep.URL); err != nil {
		span.RecordError(err)
		return 0, err
	}
	body, err := json.Marshal(struct {
		EventID    string          `json:"eventId"`
		Topic      string          `json:"topic"`
		Data       json.RawMessage `json:"data"`
		OccurredAt time.Time       `json:"occurredAt"`
	}{
		EventID:    ev.ID.String(),
		Topic:      ev.Topic,
		Data:       json.RawMessage(ev.Payload),
		OccurredAt: ev.OccurredAt,
	})
	if err != nil {
		return 0, err
	}
	ts := time.Now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "storefront-api-webhooks/1.0")
	req.Header.Set("X-Event-ID", ev.ID.String())
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", ComputeSignature(ep.Secret, ts, ev.ID.String(), body))
	resp, err := d.Client.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp.StatusCode, nil
}

// ComputeSignature calculates the webhook signature for the provided payload.
// The format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using the endpoint
// secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validateURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}
