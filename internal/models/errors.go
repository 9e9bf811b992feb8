package models

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrReactionExists = errors.New("user already has a reaction on this message")
	ErrNoReaction     = errors.New("user has no reaction on this message")
)
