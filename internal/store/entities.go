// Package store holds the Terminal/Key entity model and the abstract
// Repository the key-change protocol and router transact against, plus two
// implementations: an in-memory default and an optional GORM-backed one.
package store

import "time"

// TerminalStatus is the lifecycle state of a Terminal.
type TerminalStatus string

const (
	TerminalActive         TerminalStatus = "ACTIVE"
	TerminalInactive       TerminalStatus = "INACTIVE"
	TerminalSuspended      TerminalStatus = "SUSPENDED"
	TerminalMaintenance    TerminalStatus = "MAINTENANCE"
	TerminalDecommissioned TerminalStatus = "DECOMMISSIONED"
)

// KeyStatus is the lifecycle state of a Key.
type KeyStatus string

const (
	KeyActive     KeyStatus = "ACTIVE"
	KeyInactive   KeyStatus = "INACTIVE"
	KeyExpired    KeyStatus = "EXPIRED"
	KeyCompromised KeyStatus = "COMPROMISED"
	KeyPending    KeyStatus = "PENDING"
)

// Terminal is a POS terminal known to the gateway.
type Terminal struct {
	TerminalID     string `gorm:"primaryKey;column:terminal_id"`
	MerchantID     string `gorm:"column:merchant_id"`
	Status         TerminalStatus
	TerminalType   string `gorm:"column:terminal_type"`
	Created        time.Time
	Updated        time.Time
	LastActivity   time.Time
	LastKeyChange  time.Time
	KeyChangeCount int
	KeyRef         string `gorm:"column:key_ref"`
}

// Key is a TDES key owned (at most) by one Terminal.
type Key struct {
	KeyID      string `gorm:"primaryKey;column:key_id"`
	Value      string `gorm:"uniqueIndex;column:value"`
	Type       string
	Status     KeyStatus
	KCV        string
	Length     int
	TerminalID string `gorm:"column:terminal_id"`
	Created    time.Time
	Expiry     *time.Time
	Notes      string
}
