package models

import "slices"

// Reactions maps an emoji to the users who reacted with it. A user holds at
// most one reaction per message and empty keys are never kept.
type Reactions map[string][]string

// Of returns the emoji userID reacted with, if any.
func (r Reactions) Of(userID string) (string, bool) {
	for emoji, users := range r {
		if slices.Contains(users, userID) {
			return emoji, true
		}
	}
	return "", false
}

// Add records a first reaction by userID.
func (r Reactions) Add(userID, emoji string) error {
	if _, ok := r.Of(userID); ok {
		return ErrReactionExists
	}
	r[emoji] = append(r[emoji], userID)
	return nil
}

// Change moves userID's reaction to emoji. Changing to the same emoji is a no-op.
func (r Reactions) Change(userID, emoji string) error {
	current, ok := r.Of(userID)
	if !ok {
		return ErrNoReaction
	}
	if current == emoji {
		return nil
	}
	r.drop(current, userID)
	r[emoji] = append(r[emoji], userID)
	return nil
}

// Remove drops userID from emoji. Removing an absent reaction is a no-op.
func (r Reactions) Remove(userID, emoji string) {
	r.drop(emoji, userID)
}

func (r Reactions) drop(emoji, userID string) {
	users, ok := r[emoji]
	if !ok {
		return
	}
	users = slices.DeleteFunc(slices.Clone(users), func(u string) bool { return u == userID })
	if len(users) == 0 {
		delete(r, emoji)
		return
	}
	r[emoji] = users
}

// Clone returns a deep copy, never nil.
func (r Reactions) Clone() Reactions {
	out := make(Reactions, len(r))
	for emoji, users := range r {
		out[emoji] = slices.Clone(users)
	}
	return out
}
