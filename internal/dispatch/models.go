package dispatch

import "time"

// Key identifies one logical downstream event. The same external signal may
// be observed many times; at most one dispatch ever happens per Key.
type Key struct {
	InstanceID    string
	EventType     string
	CorrelationID string
}

// Entry is the append-only ledger record proving a dispatch was admitted.
// Entries are never updated or removed.
type Entry struct {
	Key          Key
	DispatchedAt time.Time
}
