// Package chat validates mutations, persists them and fans the resulting
// events out to the conversation's participants.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/00vDragos/RealTime-Chat/internal/directory"
	"github.com/00vDragos/RealTime-Chat/internal/events"
	"github.com/00vDragos/RealTime-Chat/internal/models"
)

type Broadcaster interface {
	Broadcast(userIDs []string, ev events.Event)
}

type Service struct {
	store Store
	dir   *directory.Directory
	out   Broadcaster
	now   func() time.Time

	logger *slog.Logger
}

func NewService(store Store, dir *directory.Directory, out Broadcaster, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		dir:    dir,
		out:    out,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "chat")),
	}
}

func (s *Service) requireParticipant(ctx context.Context, conversationID, userID string) error {
	ok, err := s.dir.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return ErrNotParticipant
	}
	return nil
}

// liveMessage loads a message that has not been deleted for everyone and
// checks that userID belongs to its conversation.
func (s *Service) liveMessage(ctx context.Context, messageID, userID string) (models.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.DeletedForEveryone {
		return models.Message{}, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if err := s.requireParticipant(ctx, msg.ConversationID, userID); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Messages returns a page of the conversation's history, oldest first. Messages
// deleted for everyone are left out. This is how a client catches up on events
// it missed while offline.
func (s *Service) Messages(ctx context.Context, conversationID, userID string, limit, offset int) ([]models.Message, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)
	offset = max(offset, 0)

	msgs, err := s.store.ListMessages(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (s *Service) SendMessage(ctx context.Context, conversationID, senderID, body string) (models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return models.Message{}, ErrEmptyBody
	}
	if err := s.requireParticipant(ctx, conversationID, senderID); err != nil {
		return models.Message{}, err
	}

	msg, err := s.store.CreateMessage(ctx, models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("create message: %w", err)
	}

	name := s.dir.DisplayNameOf(ctx, senderID)
	s.out.Broadcast(s.dir.ParticipantsOf(ctx, conversationID), events.NewMessage(msg, name))
	return msg, nil
}

func (s *Service) EditMessage(ctx context.Context, messageID, userID, body string) (models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return models.Message{}, ErrEmptyBody
	}
	msg, err := s.liveMessage(ctx, messageID, userID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.SenderID != userID {
		return models.Message{}, ErrNotSender
	}

	msg, err = s.store.EditMessage(ctx, messageID, body, s.now())
	if err != nil {
		return models.Message{}, fmt.Errorf("edit message: %w", err)
	}

	name := s.dir.DisplayNameOf(ctx, userID)
	s.out.Broadcast(s.dir.ParticipantsOf(ctx, msg.ConversationID), events.MessageEdited(msg, name))
	return msg, nil
}

func (s *Service) DeleteMessage(ctx context.Context, messageID, userID string) error {
	msg, err := s.liveMessage(ctx, messageID, userID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return ErrNotSender
	}

	if _, err := s.store.DeleteMessage(ctx, messageID, userID, s.now()); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	name := s.dir.DisplayNameOf(ctx, userID)
	s.out.Broadcast(s.dir.ParticipantsOf(ctx, msg.ConversationID), events.MessageDeleted(msg.ConversationID, messageID, userID, name))
	return nil
}

func (s *Service) AddReaction(ctx context.Context, messageID, userID, emoji string) (models.Message, error) {
	return s.react(ctx, messageID, userID, events.ReactionAdded, func(r models.Reactions) error {
		return r.Add(userID, emoji)
	})
}

func (s *Service) ChangeReaction(ctx context.Context, messageID, userID, emoji string) (models.Message, error) {
	return s.react(ctx, messageID, userID, events.ReactionChanged, func(r models.Reactions) error {
		return r.Change(userID, emoji)
	})
}

// RemoveReaction succeeds even when the user had no such reaction.
func (s *Service) RemoveReaction(ctx context.Context, messageID, userID, emoji string) (models.Message, error) {
	return s.react(ctx, messageID, userID, events.ReactionRemoved, func(r models.Reactions) error {
		r.Remove(userID, emoji)
		return nil
	})
}

func (s *Service) react(ctx context.Context, messageID, userID string, action events.ReactionAction, fn func(models.Reactions) error) (models.Message, error) {
	if _, err := s.liveMessage(ctx, messageID, userID); err != nil {
		return models.Message{}, err
	}

	msg, err := s.store.UpdateReactions(ctx, messageID, fn)
	if err != nil {
		return models.Message{}, err
	}

	s.out.Broadcast(s.dir.ParticipantsOf(ctx, msg.ConversationID), events.ReactionUpdated(msg, userID, action))
	return msg, nil
}

// Typing relays a typing indicator to every participant, the typist included,
// so the typist's other sessions see it too.
func (s *Service) Typing(ctx context.Context, conversationID, userID string, started bool) error {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}

	name := s.dir.DisplayNameOf(ctx, userID)
	s.out.Broadcast(s.dir.ParticipantsOf(ctx, conversationID), events.Typing(conversationID, userID, name, started))
	return nil
}

// CreateConversation creates a direct conversation for two participants,
// reusing an existing one between the same pair, or a group otherwise. The
// returned flag is false when an existing conversation was reused, in which
// case nothing is broadcast.
func (s *Service) CreateConversation(ctx context.Context, creatorID string, participantIDs []string, title string) (models.Conversation, bool, error) {
	members := []string{creatorID}
	for _, id := range participantIDs {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(members, id) {
			members = append(members, id)
		}
	}
	if len(members) < 2 {
		return models.Conversation{}, false, ErrInvalidConversation
	}

	kind := models.ConversationGroup
	if len(members) == 2 {
		kind = models.ConversationDirect
		existing, found, err := s.store.FindDirectConversation(ctx, members[0], members[1])
		if err != nil {
			return models.Conversation{}, false, fmt.Errorf("find direct conversation: %w", err)
		}
		if found {
			return existing, false, nil
		}
	}

	conv, err := s.store.CreateConversation(ctx, models.Conversation{
		Type:         kind,
		Title:        title,
		CreatedAt:    s.now(),
		Participants: members,
	})
	if err != nil {
		return models.Conversation{}, false, fmt.Errorf("create conversation: %w", err)
	}
	if conv.ParticipantNames == nil {
		conv.ParticipantNames = make(map[string]string, len(members))
		for _, id := range members {
			conv.ParticipantNames[id] = s.dir.DisplayNameOf(ctx, id)
		}
	}

	s.out.Broadcast(conv.Participants, events.ConversationCreated(conv, creatorID))
	s.logger.Info("Conversation created", slog.String("conversationID", conv.ID), slog.String("type", string(kind)))
	return conv, true, nil
}

// MarkRead records that userID has read the conversation up to now. No event is sent.
func (s *Service) MarkRead(ctx context.Context, conversationID, userID, messageID string) error {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := s.store.MarkRead(ctx, conversationID, userID, messageID, s.now()); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}
