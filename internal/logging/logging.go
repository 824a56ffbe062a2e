// Package logging initializes zerolog and provides masked transaction
// logging helpers so field 52 (PIN block) and other sensitive fields never
// reach a log sink in the clear.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevshake/isogateway/internal/iso8583"
	"github.com/kevshake/isogateway/internal/masking"
)

// New builds a zerolog.Logger writing to stdout, human-readable when format
// is "human" and structured JSON otherwise.
func New(level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	base := zerolog.New(os.Stdout).With().Timestamp().Logger()

	logger := base
	if format == "human" {
		logger = base.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339Nano,
		})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	return logger.Level(lvl)
}

// LogTransaction emits one structured record per message, carrying each
// field under its own field_NNN key, masking sensitive fields per
// internal/masking's policy before they leave process memory.
func LogTransaction(log zerolog.Logger, direction, peer string, msg *iso8583.Message) {
	masked := masking.MaskFields(msg.Fields)
	evt := log.Info().
		Str("event", "transaction").
		Str("direction", direction).
		Str("peer", peer).
		Str("mti", msg.MTI)
	for n, v := range masked {
		evt = evt.Str(fieldKey(n), v)
	}
	evt.Msg("transaction logged")
}

// LogResult logs a completed transaction's outcome, keyed by STAN.
func LogResult(log zerolog.Logger, stan, responseCode, description string) {
	log.Info().
		Str("event", "transaction_result").
		Str("stan", stan).
		Str("response_code", responseCode).
		Str("description", description).
		Msg("transaction result")
}

func fieldKey(n int) string {
	digits := [3]byte{'0', '0', '0'}
	for i := 2; i >= 0 && n > 0; i-- {
		digits[i] = byte('0' + n%10)
		n /= 10
	}

	return "field_" + string(digits[:])
}
