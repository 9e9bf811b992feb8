// Package presence turns registry transitions into presence_update events.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/00vDragos/RealTime-Chat/internal/events"
	"github.com/00vDragos/RealTime-Chat/pkg/state"
)

const DefaultTimeout = 5 * time.Second

type Peers interface {
	CoParticipants(ctx context.Context, userID string) []string
}

type LastSeenStore interface {
	SetUserLastSeen(ctx context.Context, userID string, at time.Time) error
}

type Broadcaster interface {
	Broadcast(userIDs []string, ev events.Event)
}

// Notifier owns the connect/disconnect path: it updates the registry and, on
// a transition, tells every co-participant. It also handles users taken
// offline by failed sends.
//
// Announcements for one user are serialized and always carry the registry's
// state at the time they are made, so the last event peers see for a user
// matches whether that user is connected.
type Notifier struct {
	registry state.Registry
	peers    Peers
	store    LastSeenStore
	out      Broadcaster
	timeout  time.Duration
	now      func() time.Time

	mu    sync.Mutex
	users map[string]*userPresence

	logger *slog.Logger
}

// userPresence is the last state announced for a user.
type userPresence struct {
	mu     sync.Mutex
	online bool
	refs   int
}

func NewNotifier(registry state.Registry, peers Peers, store LastSeenStore, out Broadcaster, timeout time.Duration, logger *slog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	n := &Notifier{
		registry: registry,
		peers:    peers,
		store:    store,
		out:      out,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
		users:    make(map[string]*userPresence),
		logger:   logger.With(slog.String("component", "presence")),
	}
	registry.SetOfflineHandler(func(userID string) {
		n.Sync(context.Background(), userID)
	})
	return n
}

// Connect registers conn and announces the user if this was their first connection.
func (n *Notifier) Connect(ctx context.Context, userID string, conn *state.Connection) {
	if n.registry.Connect(userID, conn) {
		n.Sync(ctx, userID)
	}
}

// TryConnect registers conn unless the user already holds limit connections.
// A limit of zero or less admits every connection.
func (n *Notifier) TryConnect(ctx context.Context, userID string, conn *state.Connection, limit int) bool {
	cameOnline, admitted := n.registry.TryConnect(userID, conn, limit)
	if cameOnline {
		n.Sync(ctx, userID)
	}
	return admitted
}

// Disconnect removes conn and announces the user if it was their last connection.
func (n *Notifier) Disconnect(ctx context.Context, userID string, conn *state.Connection) {
	if n.registry.Disconnect(userID, conn) {
		n.Sync(ctx, userID)
	}
}

// Sync announces the user's current registry state if it differs from the
// last one announced. Transitions that were overtaken by a later one while
// waiting their turn collapse into nothing.
func (n *Notifier) Sync(ctx context.Context, userID string) {
	p := n.acquire(userID)
	defer n.release(userID, p)

	online := n.registry.IsOnline(userID)
	if online == p.online {
		return
	}
	if online {
		n.announceOnline(ctx, userID)
	} else {
		n.announceOffline(ctx, userID)
	}
	p.online = online
}

func (n *Notifier) acquire(userID string) *userPresence {
	n.mu.Lock()
	p, ok := n.users[userID]
	if !ok {
		p = &userPresence{}
		n.users[userID] = p
	}
	p.refs++
	n.mu.Unlock()

	p.mu.Lock()
	return p
}

func (n *Notifier) release(userID string, p *userPresence) {
	online := p.online
	p.mu.Unlock()

	n.mu.Lock()
	p.refs--
	// an offline user with no pending sync needs no entry
	if p.refs == 0 && !online {
		delete(n.users, userID)
	}
	n.mu.Unlock()
}

func (n *Notifier) announceOnline(ctx context.Context, userID string) {
	ctx, cancel := n.detached(ctx)
	defer cancel()

	interested := n.peers.CoParticipants(ctx, userID)
	n.out.Broadcast(interested, events.Presence(userID, true, nil))
	n.logger.Debug("User online", slog.String("userID", userID), slog.Int("notified", len(interested)))
}

// announceOffline persists last-seen before fanning out, so a client reacting
// to the event and reading the store sees the new value.
func (n *Notifier) announceOffline(ctx context.Context, userID string) {
	ctx, cancel := n.detached(ctx)
	defer cancel()

	lastSeen := n.now()
	if err := n.store.SetUserLastSeen(ctx, userID, lastSeen); err != nil {
		n.logger.Warn("Failed to persist last seen", slog.String("userID", userID), slog.Any("error", err))
	}

	interested := n.peers.CoParticipants(ctx, userID)
	n.out.Broadcast(interested, events.Presence(userID, false, &lastSeen))
	n.logger.Debug("User offline", slog.String("userID", userID), slog.Int("notified", len(interested)))
}

// disconnects often run while the request context is already cancelled
func (n *Notifier) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
}
