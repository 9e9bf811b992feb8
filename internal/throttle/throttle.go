// Package throttle debounces typing indicators per (conversation, user) key.
package throttle

import "context"

// Limiter reports whether an event for key may pass now. Reset reopens the
// window for key, so the next event passes.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
	Reset(ctx context.Context, key string)
}

// Key builds the throttle key for a user typing in a conversation.
func Key(conversationID, userID string) string {
	return conversationID + ":" + userID
}

// Noop lets every event through.
type Noop struct{}

func (Noop) Allow(context.Context, string) bool { return true }
func (Noop) Reset(context.Context, string) {}
