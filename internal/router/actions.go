package router

import (
	"errors"
	"log/slog"

	"github.com/00vDragos/RealTime-Chat/internal/throttle"
)

const (
	eventTypingStart = "typing_start"
	eventTypingStop  = "typing_stop"
)

var errMissingConversation = errors.New("conversation_id is required")

func (r *EventRouter) actionTypingStart(actx *ActionContext) error {
	convID := actx.Message.ConversationID
	if convID == "" {
		return errMissingConversation
	}
	if !r.limiter.Allow(actx.Context, throttle.Key(convID, actx.Conn.UserID)) {
		r.metrics.TypingThrottled()
		r.logger.Debug("Typing indicator throttled", slog.String("conversationID", convID), slog.String("userID", actx.Conn.UserID))
		return nil
	}
	return r.typist.Typing(actx.Context, convID, actx.Conn.UserID, true)
}

// stop indicators are never throttled and reopen the start window, so the
// last indicator peers see always matches the client's state.
func (r *EventRouter) actionTypingStop(actx *ActionContext) error {
	convID := actx.Message.ConversationID
	if convID == "" {
		return errMissingConversation
	}
	r.limiter.Reset(actx.Context, throttle.Key(convID, actx.Conn.UserID))
	return r.typist.Typing(actx.Context, convID, actx.Conn.UserID, false)
}
