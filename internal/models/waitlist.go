package models

import "time"

// WaitlistEntry is a queued seat request for a full session.
// Position is never stored; it is recomputed from enqueue order on read.
type WaitlistEntry struct {
	ID         string    `db:"id" json:"id"`
	SessionID  string    `db:"session_id" json:"session_id"`
	MemberID   string    `db:"member_id" json:"member_id"`
	EnqueuedAt time.Time `db:"enqueued_at" json:"enqueued_at"`
}

// WaitlistPosition reports the derived 1-based rank of an entry.
type WaitlistPosition struct {
	EntryID   string `json:"entry_id"`
	SessionID string `json:"session_id"`
	Position  int    `json:"position"`
}
