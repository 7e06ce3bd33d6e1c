package dispatch

import "context"

// LedgerStore is the append-only idempotency record store backing the Guard.
// Insert must be atomic per key: of any number of concurrent inserts for the
// same key, exactly one observes inserted == true.
type LedgerStore interface {
	// Insert records the entry if no entry exists for its key. Returns
	// whether this call created the entry.
	Insert(ctx context.Context, entry Entry) (bool, error)

	// Has reports whether an entry exists for the key.
	Has(ctx context.Context, key Key) (bool, error)
}
