package store

import (
	"context"
	"testing"
	"time"
)

func TestRotateKeyDeactivatesPrevious(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewMemRepository()

	term := &Terminal{TerminalID: "NEWTID01", Status: TerminalActive}
	k1 := &Key{KeyID: "k1", Value: "AAAA", Status: KeyActive}
	term, k1, err := repo.RotateKey(ctx, term, k1)
	if err != nil {
		t.Fatalf("RotateKey (first): %v", err)
	}
	if term.KeyChangeCount != 1 {
		t.Errorf("KeyChangeCount = %d, want 1", term.KeyChangeCount)
	}

	k2 := &Key{KeyID: "k2", Value: "BBBB", Status: KeyActive}
	term, _, err = repo.RotateKey(ctx, term, k2)
	if err != nil {
		t.Fatalf("RotateKey (second): %v", err)
	}
	if term.KeyChangeCount != 2 {
		t.Errorf("KeyChangeCount = %d, want 2", term.KeyChangeCount)
	}
	if term.KeyRef != "k2" {
		t.Errorf("KeyRef = %s, want k2", term.KeyRef)
	}

	prev, err := repo.FindKey(ctx, "k1")
	if err != nil {
		t.Fatalf("FindKey: %v", err)
	}
	if prev.Status != KeyInactive {
		t.Errorf("previous key status = %s, want INACTIVE", prev.Status)
	}
	if prev.Notes == "" {
		t.Error("expected audit note on deactivated key")
	}
}

func TestExistsKeyValueDetectsCollision(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewMemRepository()
	if _, err := repo.SaveKey(ctx, &Key{KeyID: "k1", Value: "AAAA"}); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	ok, err := repo.ExistsKeyValue(ctx, "AAAA")
	if err != nil {
		t.Fatalf("ExistsKeyValue: %v", err)
	}
	if !ok {
		t.Error("expected collision to be detected")
	}
}

func TestFindTerminalNotFound(t *testing.T) {
	t.Parallel()
	repo := NewMemRepository()
	if _, err := repo.FindTerminal(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTerminalsWithExpiredKeysFindsExpiredAndOverdue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewMemRepository()
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	if _, err := repo.SaveKey(ctx, &Key{KeyID: "expired", Value: "AAAA", Status: KeyExpired}); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	if _, err := repo.SaveKey(ctx, &Key{KeyID: "overdue", Value: "BBBB", Status: KeyActive, Expiry: &past}); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	if _, err := repo.SaveKey(ctx, &Key{KeyID: "healthy", Value: "CCCC", Status: KeyActive, Expiry: &future}); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}

	for _, tm := range []*Terminal{
		{TerminalID: "T-EXPIRED", Status: TerminalActive, KeyRef: "expired"},
		{TerminalID: "T-OVERDUE", Status: TerminalActive, KeyRef: "overdue"},
		{TerminalID: "T-HEALTHY", Status: TerminalActive, KeyRef: "healthy"},
		{TerminalID: "T-NOKEY", Status: TerminalActive},
	} {
		if _, err := repo.SaveTerminal(ctx, tm); err != nil {
			t.Fatalf("SaveTerminal: %v", err)
		}
	}

	got, err := repo.TerminalsWithExpiredKeys(ctx)
	if err != nil {
		t.Fatalf("TerminalsWithExpiredKeys: %v", err)
	}
	ids := make(map[string]bool, len(got))
	for _, t := range got {
		ids[t.TerminalID] = true
	}
	if !ids["T-EXPIRED"] || !ids["T-OVERDUE"] {
		t.Errorf("expected T-EXPIRED and T-OVERDUE, got %v", ids)
	}
	if ids["T-HEALTHY"] || ids["T-NOKEY"] {
		t.Errorf("did not expect healthy or keyless terminals, got %v", ids)
	}
}

func TestDuplicateKeyValuesFindsSharedValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewMemRepository()
	if _, err := repo.SaveKey(ctx, &Key{KeyID: "k1", Value: "SHARED"}); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	if _, err := repo.SaveKey(ctx, &Key{KeyID: "k2", Value: "SHARED"}); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	if _, err := repo.SaveKey(ctx, &Key{KeyID: "k3", Value: "UNIQUE"}); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}

	got, err := repo.DuplicateKeyValues(ctx)
	if err != nil {
		t.Fatalf("DuplicateKeyValues: %v", err)
	}
	if len(got) != 1 || got[0] != "SHARED" {
		t.Errorf("DuplicateKeyValues = %v, want [SHARED]", got)
	}
}
