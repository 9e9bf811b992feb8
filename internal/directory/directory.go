// Package directory answers who belongs to a conversation and what users are called.
package directory

import (
	"context"
	"log/slog"
	"slices"
	"sort"
)

// Store is the read side of persistence the directory needs.
type Store interface {
	ConversationParticipants(ctx context.Context, conversationID string) ([]string, error)
	UserConversations(ctx context.Context, userID string) ([]string, error)
	UserDisplayName(ctx context.Context, userID string) (string, error)
}

// Directory wraps a Store with the fan-out semantics: lookup failures degrade
// to empty results so a broadcast reaches nobody rather than failing the caller.
type Directory struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Directory {
	return &Directory{
		store:  store,
		logger: logger.With(slog.String("component", "directory")),
	}
}

// ParticipantsOf returns the distinct participants of a conversation.
func (d *Directory) ParticipantsOf(ctx context.Context, conversationID string) []string {
	ids, err := d.store.ConversationParticipants(ctx, conversationID)
	if err != nil {
		d.logger.Warn("Participant lookup failed", slog.String("conversationID", conversationID), slog.Any("error", err))
		return nil
	}
	return dedupe(ids)
}

// IsParticipant is the explicit membership check used to authorize mutations.
func (d *Directory) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	ids, err := d.store.ConversationParticipants(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, userID), nil
}

// DisplayNameOf returns the user's display name, or "" if unknown.
func (d *Directory) DisplayNameOf(ctx context.Context, userID string) string {
	name, err := d.store.UserDisplayName(ctx, userID)
	if err != nil {
		d.logger.Debug("Display name lookup failed", slog.String("userID", userID), slog.Any("error", err))
		return ""
	}
	return name
}

// ConversationsOf returns the ids of conversations the user participates in.
func (d *Directory) ConversationsOf(ctx context.Context, userID string) []string {
	ids, err := d.store.UserConversations(ctx, userID)
	if err != nil {
		d.logger.Warn("Conversation lookup failed", slog.String("userID", userID), slog.Any("error", err))
		return nil
	}
	return dedupe(ids)
}

// CoParticipants returns everyone who shares at least one conversation with
// userID, excluding userID, in sorted order.
func (d *Directory) CoParticipants(ctx context.Context, userID string) []string {
	seen := make(map[string]struct{})
	for _, convID := range d.ConversationsOf(ctx, userID) {
		for _, p := range d.ParticipantsOf(ctx, convID) {
			if p != userID {
				seen[p] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
