package keychange

import (
	"context"
	"testing"

	"github.com/kevshake/isogateway/internal/store"
)

var testConfig = Config{AutoCreate: true, KeyLength: 2, KeyExpiryDays: 365}

// Scenario D — key change creates terminal and key.
func TestProcessCreatesTerminalAndKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := store.NewMemRepository()

	res, err := Process(ctx, repo, testConfig, "NEWTID01", "MERCH01")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Success {
		t.Fatal("expected success")
	}
	if res.Terminal.Status != store.TerminalActive {
		t.Errorf("terminal status = %s, want ACTIVE", res.Terminal.Status)
	}
	if res.Terminal.KeyChangeCount != 1 {
		t.Errorf("KeyChangeCount = %d, want 1", res.Terminal.KeyChangeCount)
	}

	key, err := repo.FindKey(ctx, res.KeyID)
	if err != nil {
		t.Fatalf("FindKey: %v", err)
	}
	if key.Status != store.KeyActive {
		t.Errorf("key status = %s, want ACTIVE", key.Status)
	}
	if len(key.Value) != 32 {
		t.Errorf("key value length = %d, want 32", len(key.Value))
	}
}

// Scenario E — key rotation deactivates prior key.
func TestProcessRotatesExistingKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := store.NewMemRepository()

	first, err := Process(ctx, repo, testConfig, "NEWTID01", "MERCH01")
	if err != nil {
		t.Fatalf("Process (first): %v", err)
	}

	second, err := Process(ctx, repo, testConfig, "NEWTID01", "MERCH01")
	if err != nil {
		t.Fatalf("Process (second): %v", err)
	}
	if second.Terminal.KeyChangeCount != 2 {
		t.Errorf("KeyChangeCount = %d, want 2", second.Terminal.KeyChangeCount)
	}
	if second.KeyID == first.KeyID {
		t.Error("expected a new key id on rotation")
	}

	prevKey, err := repo.FindKey(ctx, first.KeyID)
	if err != nil {
		t.Fatalf("FindKey: %v", err)
	}
	if prevKey.Status != store.KeyInactive {
		t.Errorf("previous key status = %s, want INACTIVE", prevKey.Status)
	}
	if prevKey.Value == "" {
		t.Fatal("expected previous key to retain its value")
	}

	newKey, err := repo.FindKey(ctx, second.KeyID)
	if err != nil {
		t.Fatalf("FindKey new: %v", err)
	}
	if newKey.Value == prevKey.Value {
		t.Error("expected rotated key value to differ from previous")
	}
}

func TestProcessRejectsUnknownTerminalWhenAutoCreateDisabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := store.NewMemRepository()
	cfg := Config{AutoCreate: false, KeyLength: 2, KeyExpiryDays: 365}

	if _, err := Process(ctx, repo, cfg, "UNKNOWN", ""); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
