package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// SQLRepository is an optional Repository implementation backed by
// gorm.io/gorm, offered as an alternative to MemRepository for deployments
// that want the terminal/key store to survive a process restart.
type SQLRepository struct {
	db *gorm.DB
}

// OpenSQLRepository connects to a MySQL DSN and migrates the Terminal/Key
// schema.
func OpenSQLRepository(dsn string) (*SQLRepository, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: opening sql repository: %w", err)
	}
	if err := db.AutoMigrate(&Terminal{}, &Key{}); err != nil {
		return nil, fmt.Errorf("store: migrating schema: %w", err)
	}

	return &SQLRepository{db: db}, nil
}

func (r *SQLRepository) FindTerminal(ctx context.Context, terminalID string) (*Terminal, error) {
	var t Terminal
	if err := r.db.WithContext(ctx).First(&t, "terminal_id = ?", terminalID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("store: find terminal: %w", err)
	}

	return &t, nil
}

func (r *SQLRepository) SaveTerminal(ctx context.Context, t *Terminal) (*Terminal, error) {
	if err := r.db.WithContext(ctx).Save(t).Error; err != nil {
		return nil, fmt.Errorf("store: save terminal: %w", err)
	}

	return t, nil
}

func (r *SQLRepository) ExistsTerminal(ctx context.Context, terminalID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Terminal{}).Where("terminal_id = ?", terminalID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("store: exists terminal: %w", err)
	}

	return count > 0, nil
}

func (r *SQLRepository) FindKey(ctx context.Context, keyID string) (*Key, error) {
	var k Key
	if err := r.db.WithContext(ctx).First(&k, "key_id = ?", keyID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("store: find key: %w", err)
	}

	return &k, nil
}

func (r *SQLRepository) SaveKey(ctx context.Context, k *Key) (*Key, error) {
	if err := r.db.WithContext(ctx).Save(k).Error; err != nil {
		return nil, fmt.Errorf("store: save key: %w", err)
	}

	return k, nil
}

func (r *SQLRepository) ExistsKeyValue(ctx context.Context, value string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Key{}).Where("value = ?", value).Count(&count).Error; err != nil {
		return false, fmt.Errorf("store: exists key value: %w", err)
	}

	return count > 0, nil
}

func (r *SQLRepository) ActiveTerminals(ctx context.Context) ([]*Terminal, error) {
	var out []*Terminal
	if err := r.db.WithContext(ctx).Where("status = ?", TerminalActive).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: active terminals: %w", err)
	}

	return out, nil
}

func (r *SQLRepository) TerminalsWithoutKeys(ctx context.Context) ([]*Terminal, error) {
	var out []*Terminal
	if err := r.db.WithContext(ctx).Where("key_ref = ?", "").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: terminals without keys: %w", err)
	}

	return out, nil
}

// TerminalsWithExpiredKeys returns every terminal whose assigned key is
// already marked expired, or whose expiry timestamp has passed regardless
// of its recorded status.
func (r *SQLRepository) TerminalsWithExpiredKeys(ctx context.Context) ([]*Terminal, error) {
	var out []*Terminal
	err := r.db.WithContext(ctx).
		Joins("JOIN keys ON keys.key_id = terminals.key_ref").
		Where("keys.status = ? OR (keys.expiry IS NOT NULL AND keys.expiry < ?)", KeyExpired, time.Now().UTC()).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: terminals with expired keys: %w", err)
	}

	return out, nil
}

func (r *SQLRepository) KeysExpiringBefore(ctx context.Context, when time.Time) ([]*Key, error) {
	var out []*Key
	if err := r.db.WithContext(ctx).
		Where("status = ? AND expiry IS NOT NULL AND expiry < ?", KeyActive, when).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: keys expiring before: %w", err)
	}

	return out, nil
}

// DuplicateKeyValues returns every distinct key value shared by more than
// one key row, a symptom of key-generation entropy failure.
func (r *SQLRepository) DuplicateKeyValues(ctx context.Context) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).Model(&Key{}).
		Select("value").
		Group("value").
		Having("COUNT(*) > 1").
		Pluck("value", &out).Error
	if err != nil {
		return nil, fmt.Errorf("store: duplicate key values: %w", err)
	}

	return out, nil
}

// RotateKey wraps the save-new-key/deactivate-old-key/update-terminal
// sequence in a gorm transaction so it is atomic against concurrent readers.
func (r *SQLRepository) RotateKey(ctx context.Context, terminal *Terminal, newKey *Key) (*Terminal, *Key, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if terminal.KeyRef != "" {
			note := fmt.Sprintf("deactivated: superseded by key %s at %s\n",
				newKey.KeyID, time.Now().UTC().Format(time.RFC3339))
			if err := tx.Model(&Key{}).Where("key_id = ?", terminal.KeyRef).
				Updates(map[string]any{
					"status": KeyInactive,
					"notes":  gorm.Expr("CONCAT(notes, ?)", note),
				}).Error; err != nil {
				return fmt.Errorf("deactivating previous key: %w", err)
			}
		}

		if err := tx.Save(newKey).Error; err != nil {
			return fmt.Errorf("saving new key: %w", err)
		}

		terminal.KeyRef = newKey.KeyID
		terminal.KeyChangeCount++
		terminal.LastKeyChange = time.Now().UTC()
		terminal.Updated = terminal.LastKeyChange
		if err := tx.Save(terminal).Error; err != nil {
			return fmt.Errorf("updating terminal: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("store: rotate key: %w", err)
	}

	return terminal, newKey, nil
}
