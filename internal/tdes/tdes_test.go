package tdes

import (
	"encoding/hex"
	"testing"
)

// NIST FIPS 81 / common textbook DES vector.
func TestDesEncryptKnownVector(t *testing.T) {
	t.Parallel()

	got, err := DesEncrypt("0123456789ABCDEF", "133457799BBCDFF1")
	if err != nil {
		t.Fatalf("DesEncrypt: %v", err)
	}
	const want = "85E813540F0AB405"
	if got != want {
		t.Errorf("DesEncrypt() = %s, want %s", got, want)
	}
}

func TestDesRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		block string
		key   string
	}{
		{"zero block", "0000000000000000", "0123456789ABCDEF"},
		{"all ones", "FFFFFFFFFFFFFFFF", "FEDCBA9876543210"},
		{"mixed", "0123456789ABCDEF", "133457799BBCDFF1"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			enc, err := DesEncrypt(tt.block, tt.key)
			if err != nil {
				t.Fatalf("DesEncrypt: %v", err)
			}
			dec, err := DesDecrypt(enc, tt.key)
			if err != nil {
				t.Fatalf("DesDecrypt: %v", err)
			}
			if dec != tt.block {
				t.Errorf("round trip = %s, want %s", dec, tt.block)
			}
		})
	}
}

func TestTdesRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     string
		key      string
		threeKey bool
	}{
		{"EDE-2 single block", "0123456789ABCDEF", "0123456789ABCDEFFEDCBA9876543210", false},
		{"EDE-3 single block", "0123456789ABCDEF", "0123456789ABCDEFFEDCBA9876543210FEDCBA9876543210", true},
		{"EDE-2 two blocks", "0123456789ABCDEF1122334455667788", "0123456789ABCDEFFEDCBA9876543210", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			enc, err := TdesEncrypt(tt.data, tt.key, tt.threeKey)
			if err != nil {
				t.Fatalf("TdesEncrypt: %v", err)
			}
			dec, err := TdesDecrypt(enc, tt.key, tt.threeKey)
			if err != nil {
				t.Fatalf("TdesDecrypt: %v", err)
			}
			if dec != tt.data {
				t.Errorf("round trip = %s, want %s", dec, tt.data)
			}
		})
	}
}

func TestKcvMatchesZeroBlockEncryption(t *testing.T) {
	t.Parallel()

	const key = "0123456789ABCDEFFEDCBA9876543210"
	kcv, err := Kcv(key, 6)
	if err != nil {
		t.Fatalf("Kcv: %v", err)
	}
	full, err := TdesEncrypt("0000000000000000", key, false)
	if err != nil {
		t.Fatalf("TdesEncrypt: %v", err)
	}
	if kcv != full[:6] {
		t.Errorf("Kcv() = %s, want %s", kcv, full[:6])
	}
	if len(kcv) != 6 {
		t.Errorf("Kcv() length = %d, want 6", len(kcv))
	}
}

func TestGenerateKeyParity(t *testing.T) {
	t.Parallel()

	for _, length := range []int{8, 16, 24} {
		key, err := GenerateKey(length)
		if err != nil {
			t.Fatalf("GenerateKey(%d): %v", length, err)
		}
		if len(key) != length*2 {
			t.Errorf("GenerateKey(%d) hex length = %d, want %d", length, len(key), length*2)
		}
		raw, err := hex.DecodeString(key)
		if err != nil {
			t.Fatalf("GenerateKey(%d) returned non-hex key: %v", length, err)
		}
		if !CheckKeyParity(raw) {
			t.Errorf("GenerateKey(%d) = %s, want odd parity in every byte", length, key)
		}
	}
}

func TestTdesEncryptRejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := TdesEncrypt("XYZ", "0123456789ABCDEFFEDCBA9876543210", false); err == nil {
		t.Error("expected error for invalid hex data")
	}
	if _, err := TdesEncrypt("0123456789ABCDEF", "0011", false); err == nil {
		t.Error("expected error for short key")
	}
	if _, err := TdesEncrypt("0123456789ABC", "0123456789ABCDEFFEDCBA9876543210", false); err == nil {
		t.Error("expected error for non-block-aligned data")
	}
}
