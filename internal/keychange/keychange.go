// Package keychange implements the key-change protocol: auto-registering a
// terminal if needed, generating a fresh TDES key, and atomically rotating
// it into place while deactivating whatever key preceded it.
package keychange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kevshake/isogateway/internal/store"
	"github.com/kevshake/isogateway/internal/tdes"
)

// ErrNotFound is returned when the terminal is absent and auto-creation is
// disabled.
var ErrNotFound = errors.New("keychange: terminal not found and auto-create disabled")

// ErrUniqueness is returned when 10 candidate keys in a row all collide
// with an existing key value.
var ErrUniqueness = errors.New("keychange: could not generate a unique key")

const maxGenerationAttempts = 10

// Config carries the subset of gateway configuration the protocol needs.
type Config struct {
	AutoCreate    bool
	KeyLength     int // 2 or 3 (double or triple length TDES key, in 8-byte units)
	KeyExpiryDays int
}

// Result is the outcome of a key-change request. It carries no raw key
// value; callers get a reference id and a masked value suitable for logs,
// and must retrieve the raw key through an out-of-band provisioning
// channel.
type Result struct {
	Success      bool
	Terminal     *store.Terminal
	KeyID        string
	MaskedValue  string
	Message      string
}

func maskKeyValue(v string) string {
	if len(v) <= 8 {
		return v
	}

	return v[:4] + "..." + v[len(v)-4:]
}

// Process runs the key-change protocol for terminalID, optionally updating
// merchantID.
func Process(ctx context.Context, repo store.Repository, cfg Config, terminalID, merchantID string) (*Result, error) {
	if terminalID == "" {
		return nil, errors.New("keychange: terminal_id required")
	}

	terminal, err := repo.FindTerminal(ctx, terminalID)
	if errors.Is(err, store.ErrNotFound) {
		if !cfg.AutoCreate {
			return nil, ErrNotFound
		}
		now := time.Now().UTC()
		terminal = &store.Terminal{
			TerminalID:   terminalID,
			MerchantID:   merchantID,
			Status:       store.TerminalActive,
			TerminalType: "POS",
			Created:      now,
			Updated:      now,
			LastActivity: now,
		}
	} else if err != nil {
		return nil, fmt.Errorf("keychange: lookup terminal: %w", err)
	}

	if merchantID != "" && terminal.MerchantID != merchantID {
		terminal.MerchantID = merchantID
	}

	keyBytes := cfg.KeyLength * 8
	if keyBytes != 16 && keyBytes != 24 {
		keyBytes = 16
	}

	var value string
	for attempt := 0; attempt < maxGenerationAttempts; attempt++ {
		candidate, err := tdes.GenerateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("keychange: generating key: %w", err)
		}
		exists, err := repo.ExistsKeyValue(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("keychange: checking key uniqueness: %w", err)
		}
		if !exists {
			value = candidate

			break
		}
	}
	if value == "" {
		return nil, ErrUniqueness
	}

	kcv, err := tdes.Kcv(value, 6)
	if err != nil {
		return nil, fmt.Errorf("keychange: computing kcv: %w", err)
	}

	var expiry *time.Time
	if cfg.KeyExpiryDays > 0 {
		e := time.Now().UTC().AddDate(0, 0, cfg.KeyExpiryDays)
		expiry = &e
	}

	newKey := &store.Key{
		KeyID:      uuid.NewString(),
		Value:      value,
		Type:       "TDES",
		Status:     store.KeyActive,
		KCV:        kcv,
		Length:     cfg.KeyLength,
		TerminalID: terminalID,
		Created:    time.Now().UTC(),
		Expiry:     expiry,
	}

	rotated, savedKey, err := repo.RotateKey(ctx, terminal, newKey)
	if err != nil {
		return nil, fmt.Errorf("keychange: rotating key: %w", err)
	}

	return &Result{
		Success:     true,
		Terminal:    rotated,
		KeyID:       savedKey.KeyID,
		MaskedValue: maskKeyValue(savedKey.Value),
		Message:     "key change successful",
	}, nil
}
