// Package dispatch fans events out to every live connection of a set of users.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/00vDragos/RealTime-Chat/internal/events"
	"github.com/00vDragos/RealTime-Chat/internal/metrics"
	"github.com/00vDragos/RealTime-Chat/pkg/state"
)

const DefaultDeliveredTimeout = 5 * time.Second

// DeliveryStore persists the first time a message reached a user.
type DeliveryStore interface {
	MarkMessageDelivered(ctx context.Context, messageID, userID string, at time.Time) error
}

type Config struct {
	DeliveredTimeout time.Duration
}

type Dispatcher struct {
	registry state.Registry
	store    DeliveryStore
	config   Config
	metrics  *metrics.Metrics
	now      func() time.Time

	// detached delivered-map writes
	pending sync.WaitGroup

	logger *slog.Logger
}

func New(registry state.Registry, store DeliveryStore, config Config, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if config.DeliveredTimeout <= 0 {
		config.DeliveredTimeout = DefaultDeliveredTimeout
	}
	return &Dispatcher{
		registry: registry,
		store:    store,
		config:   config,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(slog.String("component", "dispatcher")),
	}
}

// Broadcast encodes ev once and hands it to every live connection of each
// distinct user in userIDs. Offline users are skipped. Sends are non-blocking
// enqueues, so one slow recipient never holds up another, and Broadcast
// returns without waiting for any write to reach the wire.
//
// For new_message events, each recipient other than the sender that received
// the frame on at least one connection gets a delivered-map entry, written by a
// detached task that does not block the caller.
func (d *Dispatcher) Broadcast(userIDs []string, ev events.Event) {
	if len(userIDs) == 0 {
		return
	}
	payload, err := ev.Encode()
	if err != nil {
		d.logger.Error("Failed to encode event", slog.String("event", string(ev.Kind)), slog.Any("error", err))
		return
	}
	d.metrics.EventBroadcast(string(ev.Kind))

	seen := make(map[string]struct{}, len(userIDs))
	var reached []string
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		if d.registry.Send(userID, payload) > 0 && ev.TracksDelivery() && userID != ev.SenderID {
			reached = append(reached, userID)
		}
	}

	if len(reached) > 0 && d.store != nil {
		d.markDelivered(ev.MessageID, reached)
	}

	d.logger.Debug("Event broadcast",
		slog.String("event", string(ev.Kind)),
		slog.String("conversationID", ev.ConversationID),
		slog.Int("targets", len(seen)),
	)
}

func (d *Dispatcher) markDelivered(messageID string, userIDs []string) {
	at := d.now()
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.config.DeliveredTimeout)
		defer cancel()

		for _, userID := range userIDs {
			err := d.store.MarkMessageDelivered(ctx, messageID, userID, at)
			d.metrics.DeliveryMarked(err)
			if err != nil {
				d.logger.Warn("Failed to mark message delivered",
					slog.String("messageID", messageID),
					slog.String("userID", userID),
					slog.Any("error", err),
				)
			}
		}
	}()
}

// Wait blocks until every detached delivered-map write has finished.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}
