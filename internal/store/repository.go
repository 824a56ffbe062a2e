package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup finds nothing.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned when a uniqueness constraint would be violated.
var ErrDuplicate = errors.New("store: duplicate")

// Repository is the abstract terminal/key entity store. Implementations
// must perform RotateKey atomically: the new Key is saved and the
// Terminal's key_ref updated (and any prior Key deactivated) as a single
// all-or-nothing operation.
type Repository interface {
	FindTerminal(ctx context.Context, terminalID string) (*Terminal, error)
	SaveTerminal(ctx context.Context, t *Terminal) (*Terminal, error)
	ExistsTerminal(ctx context.Context, terminalID string) (bool, error)

	FindKey(ctx context.Context, keyID string) (*Key, error)
	SaveKey(ctx context.Context, k *Key) (*Key, error)
	ExistsKeyValue(ctx context.Context, value string) (bool, error)

	ActiveTerminals(ctx context.Context) ([]*Terminal, error)
	TerminalsWithoutKeys(ctx context.Context) ([]*Terminal, error)
	TerminalsWithExpiredKeys(ctx context.Context) ([]*Terminal, error)
	KeysExpiringBefore(ctx context.Context, when time.Time) ([]*Key, error)
	DuplicateKeyValues(ctx context.Context) ([]string, error)

	// RotateKey saves newKey, deactivates the terminal's previous key (if
	// any, recording an audit note), and updates the terminal's key_ref,
	// key_change_count, and timestamps, all within one transaction.
	RotateKey(ctx context.Context, terminal *Terminal, newKey *Key) (*Terminal, *Key, error)
}
