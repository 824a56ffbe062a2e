package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kevshake/isogateway/internal/iso8583"
)

func TestLogTransactionMasksPan(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	msg := iso8583.New("0200")
	msg.Set(2, "4111111111111111")
	msg.Set(52, "0123456789ABCDEF")

	LogTransaction(log, "inbound", "POS", msg)

	out := buf.String()
	if strings.Contains(out, "4111111111111111") {
		t.Error("expected PAN to be masked in log output")
	}
	if strings.Contains(out, "0123456789ABCDEF") {
		t.Error("expected pin block to be wiped from log output")
	}
	if !strings.Contains(out, "4111") {
		t.Error("expected masked PAN to retain first 4 digits")
	}
}

func TestFieldKeyPadsToThreeDigits(t *testing.T) {
	t.Parallel()
	if got := fieldKey(2); got != "field_002" {
		t.Errorf("fieldKey(2) = %s, want field_002", got)
	}
	if got := fieldKey(126); got != "field_126" {
		t.Errorf("fieldKey(126) = %s, want field_126", got)
	}
}
