package chat

import (
	"errors"

	"github.com/00vDragos/RealTime-Chat/internal/models"
)

var (
	ErrNotParticipant      = errors.New("user is not a participant of this conversation")
	ErrNotSender           = errors.New("only the sender can modify this message")
	ErrInvalidConversation = errors.New("a conversation needs at least one other participant")
	ErrEmptyBody           = errors.New("message body must not be empty")
	ErrNotFound            = models.ErrNotFound
	ErrReactionExists      = models.ErrReactionExists
	ErrNoReaction          = models.ErrNoReaction
)
