package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemRepository is the mandatory in-memory Repository implementation: two
// maps guarded by one mutex, matching the coarse single-owner locking
// strategy the concurrency model calls for (the repository is the only
// mutable shared state; readers must never observe a torn rotation).
type MemRepository struct {
	mu        sync.RWMutex
	terminals map[string]*Terminal
	keys      map[string]*Key
}

// NewMemRepository returns an empty in-memory repository.
func NewMemRepository() *MemRepository {
	return &MemRepository{
		terminals: make(map[string]*Terminal),
		keys:      make(map[string]*Key),
	}
}

func cloneTerminal(t *Terminal) *Terminal {
	c := *t

	return &c
}

func cloneKey(k *Key) *Key {
	c := *k

	return &c
}

func (r *MemRepository) FindTerminal(_ context.Context, terminalID string) (*Terminal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.terminals[terminalID]
	if !ok {
		return nil, ErrNotFound
	}

	return cloneTerminal(t), nil
}

func (r *MemRepository) SaveTerminal(_ context.Context, t *Terminal) (*Terminal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := cloneTerminal(t)
	r.terminals[t.TerminalID] = stored

	return cloneTerminal(stored), nil
}

func (r *MemRepository) ExistsTerminal(_ context.Context, terminalID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.terminals[terminalID]

	return ok, nil
}

func (r *MemRepository) FindKey(_ context.Context, keyID string) (*Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[keyID]
	if !ok {
		return nil, ErrNotFound
	}

	return cloneKey(k), nil
}

func (r *MemRepository) SaveKey(_ context.Context, k *Key) (*Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := cloneKey(k)
	r.keys[k.KeyID] = stored

	return cloneKey(stored), nil
}

func (r *MemRepository) ExistsKeyValue(_ context.Context, value string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.keys {
		if k.Value == value {
			return true, nil
		}
	}

	return false, nil
}

func (r *MemRepository) ActiveTerminals(_ context.Context) ([]*Terminal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Terminal
	for _, t := range r.terminals {
		if t.Status == TerminalActive {
			out = append(out, cloneTerminal(t))
		}
	}

	return out, nil
}

func (r *MemRepository) TerminalsWithoutKeys(_ context.Context) ([]*Terminal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Terminal
	for _, t := range r.terminals {
		if t.KeyRef == "" {
			out = append(out, cloneTerminal(t))
		}
	}

	return out, nil
}

// TerminalsWithExpiredKeys returns every terminal whose assigned key is
// already marked expired, or whose expiry timestamp has passed regardless
// of its recorded status.
func (r *MemRepository) TerminalsWithExpiredKeys(_ context.Context) ([]*Terminal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := time.Now().UTC()
	var out []*Terminal
	for _, t := range r.terminals {
		if t.KeyRef == "" {
			continue
		}
		k, ok := r.keys[t.KeyRef]
		if !ok {
			continue
		}
		if k.Status == KeyExpired || (k.Expiry != nil && k.Expiry.Before(now)) {
			out = append(out, cloneTerminal(t))
		}
	}

	return out, nil
}

func (r *MemRepository) KeysExpiringBefore(_ context.Context, when time.Time) ([]*Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Key
	for _, k := range r.keys {
		if k.Status == KeyActive && k.Expiry != nil && k.Expiry.Before(when) {
			out = append(out, cloneKey(k))
		}
	}

	return out, nil
}

// DuplicateKeyValues returns every distinct key value shared by more than
// one key row, a symptom of key-generation entropy failure.
func (r *MemRepository) DuplicateKeyValues(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int, len(r.keys))
	for _, k := range r.keys {
		counts[k.Value]++
	}
	var out []string
	for value, n := range counts {
		if n > 1 {
			out = append(out, value)
		}
	}

	return out, nil
}

// RotateKey performs the save-new-key/deactivate-old-key/update-terminal
// sequence under a single write lock, so no reader ever observes a state
// where the new key exists but the terminal still points at the old one.
func (r *MemRepository) RotateKey(_ context.Context, terminal *Terminal, newKey *Key) (*Terminal, *Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if terminal.KeyRef != "" {
		if prev, ok := r.keys[terminal.KeyRef]; ok {
			prev.Status = KeyInactive
			prev.Notes = fmt.Sprintf("%sdeactivated: superseded by key %s at %s\n",
				prev.Notes, newKey.KeyID, time.Now().UTC().Format(time.RFC3339))
		}
	}

	r.keys[newKey.KeyID] = cloneKey(newKey)

	terminal.KeyRef = newKey.KeyID
	terminal.KeyChangeCount++
	terminal.LastKeyChange = time.Now().UTC()
	terminal.Updated = terminal.LastKeyChange
	r.terminals[terminal.TerminalID] = cloneTerminal(terminal)

	return cloneTerminal(terminal), cloneKey(newKey), nil
}
