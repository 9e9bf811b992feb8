// Package memory is a process-local store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/00vDragos/RealTime-Chat/internal/models"
)

type participant struct {
	userID            string
	joinedAt          time.Time
	lastReadMessageID string
}

type conversation struct {
	models.Conversation
	members map[string]*participant
}

type Store struct {
	mu            sync.RWMutex
	users         map[string]*models.User
	conversations map[string]*conversation
	messages      map[string]*models.Message
	order         []string // message ids in insertion order
	deletions     map[string]map[string]time.Time // message id -> user id -> time
}

func New() *Store {
	return &Store{
		users:         make(map[string]*models.User),
		conversations: make(map[string]*conversation),
		messages:      make(map[string]*models.Message),
		deletions:     make(map[string]map[string]time.Time),
	}
}

// AddUser creates or renames a user.
func (s *Store) AddUser(id, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.DisplayName = displayName
		return
	}
	s.users[id] = &models.User{ID: id, DisplayName: displayName}
}

func (s *Store) GetUser(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	return *u, nil
}

func (s *Store) ConversationParticipants(_ context.Context, conversationID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return nil, nil
	}
	return slices.Clone(c.Participants), nil
}

func (s *Store) UserConversations(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, c := range s.conversations {
		if _, ok := c.members[userID]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) UserDisplayName(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return "", fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	return u.DisplayName, nil
}

func (s *Store) MarkMessageDelivered(_ context.Context, messageID, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[messageID]
	if !ok {
		return fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
	}
	m.DeliveredAt.MarkIfAbsent(userID, at)
	return nil
}

func (s *Store) SetUserLastSeen(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		u = &models.User{ID: userID}
		s.users[userID] = u
	}
	u.LastSeen = &at
	return nil
}

func (s *Store) CreateMessage(_ context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[msg.ConversationID]
	if !ok {
		return models.Message{}, fmt.Errorf("conversation %s: %w", msg.ConversationID, models.ErrNotFound)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.Reactions = models.Reactions{}
	msg.DeliveredAt = models.Receipts{}
	msg.SeenAt = models.Receipts{}

	stored := msg
	s.messages[msg.ID] = &stored
	s.order = append(s.order, msg.ID)

	created := msg.CreatedAt
	c.LastMessageID = msg.ID
	c.LastMessagePreview = models.Preview(msg.Body)
	c.LastMessageCreatedAt = &created

	return cloneMessage(&stored), nil
}

func (s *Store) GetMessage(_ context.Context, messageID string) (models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[messageID]
	if !ok {
		return models.Message{}, fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
	}
	return cloneMessage(m), nil
}

func (s *Store) ListMessages(_ context.Context, conversationID string, limit, offset int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var live []*models.Message
	for _, id := range s.order {
		m := s.messages[id]
		if m.ConversationID == conversationID && !m.DeletedForEveryone {
			live = append(live, m)
		}
	}
	sort.SliceStable(live, func(i, j int) bool { return live[i].CreatedAt.Before(live[j].CreatedAt) })

	out := []models.Message{}
	for i := max(offset, 0); i < len(live) && (limit <= 0 || len(out) < limit); i++ {
		out = append(out, cloneMessage(live[i]))
	}
	return out, nil
}

func (s *Store) EditMessage(_ context.Context, messageID, body string, at time.Time) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[messageID]
	if !ok {
		return models.Message{}, fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
	}
	m.Body = body
	m.EditedAt = &at
	return cloneMessage(m), nil
}

func (s *Store) DeleteMessage(_ context.Context, messageID, userID string, at time.Time) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[messageID]
	if !ok {
		return models.Message{}, fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
	}
	m.DeletedForEveryone = true
	if s.deletions[messageID] == nil {
		s.deletions[messageID] = make(map[string]time.Time)
	}
	s.deletions[messageID][userID] = at
	return cloneMessage(m), nil
}

func (s *Store) UpdateReactions(_ context.Context, messageID string, fn func(models.Reactions) error) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[messageID]
	if !ok {
		return models.Message{}, fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
	}
	reactions := m.Reactions.Clone()
	if err := fn(reactions); err != nil {
		return models.Message{}, err
	}
	m.Reactions = reactions
	return cloneMessage(m), nil
}

func (s *Store) CreateConversation(_ context.Context, conv models.Conversation) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	conv.Participants = slices.Clone(conv.Participants)

	c := &conversation{Conversation: conv, members: make(map[string]*participant, len(conv.Participants))}
	for _, id := range conv.Participants {
		c.members[id] = &participant{userID: id, joinedAt: conv.CreatedAt}
	}
	s.conversations[conv.ID] = c
	return s.conversationOf(c), nil
}

func (s *Store) GetConversation(_ context.Context, conversationID string) (models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return models.Conversation{}, fmt.Errorf("conversation %s: %w", conversationID, models.ErrNotFound)
	}
	return s.conversationOf(c), nil
}

func (s *Store) FindDirectConversation(_ context.Context, userA, userB string) (models.Conversation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.conversations {
		if c.Type != models.ConversationDirect || len(c.members) != 2 {
			continue
		}
		_, hasA := c.members[userA]
		_, hasB := c.members[userB]
		if hasA && hasB {
			return s.conversationOf(c), true, nil
		}
	}
	return models.Conversation{}, false, nil
}

func (s *Store) MarkRead(_ context.Context, conversationID, userID, messageID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", conversationID, models.ErrNotFound)
	}
	p, ok := c.members[userID]
	if !ok {
		return fmt.Errorf("participant %s: %w", userID, models.ErrNotFound)
	}
	p.lastReadMessageID = messageID

	for _, m := range s.messages {
		if m.ConversationID == conversationID && !m.CreatedAt.After(at) {
			m.SeenAt.MarkIfAbsent(userID, at)
		}
	}
	return nil
}

// LastRead returns the user's last-read message pointer in a conversation.
func (s *Store) LastRead(conversationID, userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return ""
	}
	if p, ok := c.members[userID]; ok {
		return p.lastReadMessageID
	}
	return ""
}

// DeletedBy reports who deleted a message and when.
func (s *Store) DeletedBy(messageID string) map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]time.Time, len(s.deletions[messageID]))
	for k, v := range s.deletions[messageID] {
		out[k] = v
	}
	return out
}

// must be called with s.mu held
func (s *Store) conversationOf(c *conversation) models.Conversation {
	conv := c.Conversation
	conv.Participants = slices.Clone(c.Participants)
	conv.ParticipantNames = make(map[string]string, len(conv.Participants))
	for _, id := range conv.Participants {
		if u, ok := s.users[id]; ok {
			conv.ParticipantNames[id] = u.DisplayName
		}
	}
	return conv
}

func cloneMessage(m *models.Message) models.Message {
	out := *m
	out.Reactions = m.Reactions.Clone()
	out.DeliveredAt = m.DeliveredAt.Clone()
	out.SeenAt = m.SeenAt.Clone()
	return out
}
