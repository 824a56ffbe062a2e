package pintranspose

import (
	"testing"

	"github.com/kevshake/isogateway/internal/pinblock"
	"github.com/kevshake/isogateway/internal/tdes"
)

// Scenario G — PIN transposition round-trip across three key domains.
func TestTransposeRoundTripAcrossThreeKeys(t *testing.T) {
	t.Parallel()

	const (
		terminalKey = "0123456789ABCDEFFEDCBA9876543210"
		gatewayKey  = "FEDCBA98765432100123456789ABCDEF"
		bankKey     = "1122334455667788AABBCCDDEEFF0011"
		pan         = "4532015112830366"
		pin         = "1234"
	)

	clear, err := pinblock.EncodeFormat0(pin, pan)
	if err != nil {
		t.Fatalf("EncodeFormat0: %v", err)
	}
	eT, err := tdes.TdesEncrypt(clear, terminalKey, false)
	if err != nil {
		t.Fatalf("TdesEncrypt: %v", err)
	}

	eG, err := Transpose(terminalKey, gatewayKey, eT, pan)
	if err != nil {
		t.Fatalf("Transpose terminal->gateway: %v", err)
	}
	eB, err := Transpose(gatewayKey, bankKey, eG, pan)
	if err != nil {
		t.Fatalf("Transpose gateway->bank: %v", err)
	}

	decrypted, err := tdes.TdesDecrypt(eB, bankKey, false)
	if err != nil {
		t.Fatalf("TdesDecrypt: %v", err)
	}
	got, err := pinblock.DecodeFormat0(decrypted, pan)
	if err != nil {
		t.Fatalf("DecodeFormat0: %v", err)
	}
	if got != pin {
		t.Errorf("recovered pin = %s, want %s", got, pin)
	}
}

func TestTransposeRejectsAllZeroBlock(t *testing.T) {
	t.Parallel()

	_, err := Transpose(
		"0123456789ABCDEFFEDCBA9876543210",
		"FEDCBA98765432100123456789ABCDEF",
		"0000000000000000",
		"4532015112830366",
	)
	if err == nil {
		t.Error("expected error for all-zero pin block")
	}
}

func TestTransposeRejectsShortPan(t *testing.T) {
	t.Parallel()

	_, err := Transpose(
		"0123456789ABCDEFFEDCBA9876543210",
		"FEDCBA98765432100123456789ABCDEF",
		"1234567890ABCDEF",
		"1234",
	)
	if err == nil {
		t.Error("expected error for short pan")
	}
}
