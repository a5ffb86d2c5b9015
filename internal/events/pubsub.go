package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// WebsocketChannel is the central pub/sub channel every node publishes
// broadcasts to and subscribes on.
const WebsocketChannel = "sibyl:websocket:events"

// Bridge fans a single process's Broadcast calls out over Redis pub/sub
// so every node's ConnectionRegistry ends up delivering the same event,
// and folds remote publishes from other nodes back into its own registry.
type Bridge struct {
	client   *redis.Client
	registry *ConnectionRegistry
	logger   *slog.Logger
}

// NewBridge wires registry to Redis's shared broadcast channel. A nil
// logger falls back to slog.Default().
func NewBridge(client *redis.Client, registry *ConnectionRegistry, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{client: client, registry: registry, logger: logger}
}

// Publish asynchronously publishes the event to Redis; this node's own
// ConnectionRegistry delivers it only once Run receives it back off the
// subscription, the same as every other node: there is no separate
// direct-local-delivery path, matching the pod-A-publishes-pod-A-receives
// round trip the fabric relies on. Publish never blocks the caller on the
// network round trip.
func (b *Bridge) Publish(ctx context.Context, event string, data any, orgID *uuid.UUID) {
	env := newEnvelope(event, data, orgID)
	payload, err := json.Marshal(env)
	if err != nil {
		b.logger.Error("failed to marshal broadcast envelope", "event", event, "error", err)
		return
	}
	go func() {
		if err := b.client.Publish(context.Background(), WebsocketChannel, payload).Err(); err != nil {
			b.logger.Error("failed to publish broadcast", "event", event, "error", err)
		}
	}()
}

// Run subscribes to the shared channel and forwards every received
// envelope into the local registry until ctx is cancelled. Run is
// intended to be started once per node as a background goroutine.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, WebsocketChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Error("failed to unmarshal broadcast envelope", "error", err)
				continue
			}
			b.registry.Broadcast(ctx, env.Event, env.Data, env.OrgID)
		}
	}
}
