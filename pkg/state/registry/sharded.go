package registry

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/00vDragos/RealTime-Chat/internal/metrics"
	"github.com/00vDragos/RealTime-Chat/pkg/state"
)

const DefaultShards = 32

type shard struct {
	mu    sync.RWMutex
	users map[string]*state.User
}

// Sharded is an in-memory state.Registry. Users are spread over a fixed set of
// shards by hash so that unrelated users never contend on the same lock.
type Sharded struct {
	shards []*shard

	hookMu    sync.RWMutex
	onOffline func(userID string)

	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewSharded(logger *slog.Logger, shards int, m *metrics.Metrics) *Sharded {
	if shards <= 0 {
		shards = DefaultShards
	}
	r := &Sharded{
		shards:  make([]*shard, shards),
		metrics: m,
		logger:  logger.With(slog.String("component", "connection_registry")),
	}
	for i := range r.shards {
		r.shards[i] = &shard{users: make(map[string]*state.User)}
	}
	return r
}

// compile-time check to ensure Sharded implements Registry.
var _ state.Registry = (*Sharded)(nil)

func (r *Sharded) shardFor(userID string) *shard {
	return r.shards[xxhash.Sum64String(userID)%uint64(len(r.shards))]
}

func (r *Sharded) Connect(userID string, conn *state.Connection) bool {
	cameOnline, _ := r.TryConnect(userID, conn, 0)
	return cameOnline
}

// TryConnect checks the limit and registers under the same lock, so
// concurrent upgrades for one user can never exceed it.
func (r *Sharded) TryConnect(userID string, conn *state.Connection, limit int) (bool, bool) {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if exists {
		if _, dup := user.Connections[conn.ID]; dup {
			r.logger.Debug("Connection already registered", slog.String("connID", conn.ID.String()), slog.String("userID", userID))
			return false, true
		}
		if limit > 0 && len(user.Connections) >= limit {
			r.logger.Debug("Connection limit reached", slog.String("userID", userID), slog.Int("limit", limit))
			return false, false
		}
	} else {
		user = &state.User{
			ID:          userID,
			Connections: make(map[uuid.UUID]*state.Connection),
			OnlineSince: time.Now(),
		}
		s.users[userID] = user
	}

	conn.UserID = userID
	user.Connections[conn.ID] = conn
	cameOnline := len(user.Connections) == 1
	r.metrics.ConnectionOpened(cameOnline)

	r.logger.Debug("Connection registered",
		slog.String("connID", conn.ID.String()),
		slog.String("userID", userID),
		slog.Int("connections", len(user.Connections)),
	)
	return cameOnline, true
}

func (r *Sharded) Disconnect(userID string, conn *state.Connection) bool {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return false
	}
	if _, ok := user.Connections[conn.ID]; !ok {
		// already removed by a concurrent close or a failed send
		return false
	}
	delete(user.Connections, conn.ID)

	wentOffline := len(user.Connections) == 0
	if wentOffline {
		delete(s.users, userID)
	}
	r.metrics.ConnectionClosed(wentOffline)

	r.logger.Debug("Connection deregistered",
		slog.String("connID", conn.ID.String()),
		slog.String("userID", userID),
		slog.Bool("offline", wentOffline),
	)
	return wentOffline
}

func (r *Sharded) IsOnline(userID string) bool {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	return ok && len(user.Connections) > 0
}

func (r *Sharded) Send(userID string, payload []byte) int {
	conns := r.snapshot(userID)
	if len(conns) == 0 {
		return 0
	}

	delivered := 0
	for _, conn := range conns {
		if err := conn.Transport.Send(payload); err != nil {
			r.evict(userID, conn, err)
			continue
		}
		r.metrics.FrameSent()
		delivered++
	}
	return delivered
}

// evict removes a connection whose send failed and closes it. The offline
// handler fires only if this removal took the user's last connection.
func (r *Sharded) evict(userID string, conn *state.Connection, err error) {
	r.metrics.SendFailed()
	r.logger.Warn("Send failed, evicting connection",
		slog.String("connID", conn.ID.String()),
		slog.String("userID", userID),
		slog.Any("error", err),
	)

	wentOffline := r.Disconnect(userID, conn)
	conn.Transport.Close(err)

	if !wentOffline {
		return
	}
	r.hookMu.RLock()
	handler := r.onOffline
	r.hookMu.RUnlock()
	if handler != nil {
		go handler(userID)
	}
}

func (r *Sharded) snapshot(userID string) []*state.Connection {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil
	}
	conns := make([]*state.Connection, 0, len(user.Connections))
	for _, c := range user.Connections {
		conns = append(conns, c)
	}
	return conns
}

func (r *Sharded) ConnectionCount(userID string) int {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return 0
	}
	return len(user.Connections)
}

func (r *Sharded) OldestConnection(userID string) (*state.Connection, bool) {
	var oldest *state.Connection
	for _, conn := range r.snapshot(userID) {
		if oldest == nil || conn.CreatedAt.Before(oldest.CreatedAt) {
			oldest = conn
		}
	}
	return oldest, oldest != nil
}

// OnlineUsers returns the online user ids in sorted order.
func (r *Sharded) OnlineUsers() []string {
	var ids []string
	for _, s := range r.shards {
		s.mu.RLock()
		for id := range s.users {
			ids = append(ids, id)
		}
		s.mu.RUnlock()
	}
	sort.Strings(ids)
	return ids
}

func (r *Sharded) Connections() []*state.Connection {
	var conns []*state.Connection
	for _, s := range r.shards {
		s.mu.RLock()
		for _, u := range s.users {
			for _, c := range u.Connections {
				conns = append(conns, c)
			}
		}
		s.mu.RUnlock()
	}
	return conns
}

func (r *Sharded) SetOfflineHandler(handler func(userID string)) {
	r.hookMu.Lock()
	r.onOffline = handler
	r.hookMu.Unlock()
}
