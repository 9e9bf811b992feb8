package chat

import (
	"context"
	"time"

	"github.com/00vDragos/RealTime-Chat/internal/directory"
	"github.com/00vDragos/RealTime-Chat/internal/models"
)

// Store is the relational collaborator the chat service mutates. Lookups of
// missing rows return models.ErrNotFound.
type Store interface {
	directory.Store

	MarkMessageDelivered(ctx context.Context, messageID, userID string, at time.Time) error
	SetUserLastSeen(ctx context.Context, userID string, at time.Time) error

	// CreateMessage inserts the message and updates the conversation's last message preview.
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	// ListMessages pages through a conversation's messages oldest first,
	// leaving out those deleted for everyone.
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error)
	EditMessage(ctx context.Context, messageID, body string, at time.Time) (models.Message, error)
	// DeleteMessage marks the message deleted for everyone and records who deleted it.
	DeleteMessage(ctx context.Context, messageID, userID string, at time.Time) (models.Message, error)
	// UpdateReactions applies fn to the message's reactions atomically. Nothing
	// is written when fn returns an error.
	UpdateReactions(ctx context.Context, messageID string, fn func(models.Reactions) error) (models.Message, error)

	CreateConversation(ctx context.Context, conv models.Conversation) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (models.Conversation, error)
	FindDirectConversation(ctx context.Context, userA, userB string) (models.Conversation, bool, error)
	// MarkRead moves the user's last-read pointer and back-fills seen timestamps
	// for every message in the conversation created up to at.
	MarkRead(ctx context.Context, conversationID, userID, messageID string, at time.Time) error
}
