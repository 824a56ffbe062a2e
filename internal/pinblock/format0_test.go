package pinblock

import "testing"

func TestFormat0RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pin  string
		pan  string
	}{
		{"4-digit pin", "1234", "4532015112830366"},
		{"12-digit pin", "123456789012", "4532015112830366"},
		{"short pan", "1234", "12345678"},
		{"12-digit pan", "5678", "123456789012"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			blk, err := EncodeFormat0(tt.pin, tt.pan)
			if err != nil {
				t.Fatalf("EncodeFormat0: %v", err)
			}
			if len(blk) != 16 {
				t.Fatalf("block length = %d, want 16", len(blk))
			}
			got, err := DecodeFormat0(blk, tt.pan)
			if err != nil {
				t.Fatalf("DecodeFormat0: %v", err)
			}
			if got != tt.pin {
				t.Errorf("round trip = %s, want %s", got, tt.pin)
			}
		})
	}
}

func TestFormat0RejectsShortPin(t *testing.T) {
	t.Parallel()

	if _, err := EncodeFormat0("123", "4532015112830366"); err == nil {
		t.Error("expected error for 3-digit pin")
	}
}

func TestFormat0RejectsBadBlockLength(t *testing.T) {
	t.Parallel()

	if _, err := DecodeFormat0("1234", "4532015112830366"); err == nil {
		t.Error("expected error for short block")
	}
}
