package models

import "time"

// Receipts maps a user id to the first time a message reached them.
type Receipts map[string]time.Time

// MarkIfAbsent records at for userID unless a timestamp already exists.
// It reports whether the map changed.
func (r Receipts) MarkIfAbsent(userID string, at time.Time) bool {
	if _, ok := r[userID]; ok {
		return false
	}
	r[userID] = at
	return true
}

func (r Receipts) Clone() Receipts {
	out := make(Receipts, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
