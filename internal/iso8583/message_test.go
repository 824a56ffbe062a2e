package iso8583

import "testing"

func TestPackUnpackRoundTripPOS(t *testing.T) {
	t.Parallel()

	msg := New("0200")
	msg.Set(2, "4532015112830366")
	msg.Set(3, "000000")
	msg.Set(4, "000000005000")
	msg.Set(11, "000123")
	msg.Set(41, "TERM0001")

	packed, err := Pack(POSDictionary, msg)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	got, err := Unpack(POSDictionary, packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if got.MTI != msg.MTI {
		t.Errorf("MTI = %s, want %s", got.MTI, msg.MTI)
	}
	for n, v := range msg.Fields {
		gv, ok := got.Get(n)
		if !ok || gv != v {
			t.Errorf("field %d = %q (present=%v), want %q", n, gv, ok, v)
		}
	}
}

func TestPackUnpackRoundTripBank(t *testing.T) {
	t.Parallel()

	msg := New("0200")
	msg.Set(3, "000000")
	msg.Set(4, "000000005000")
	msg.Set(7, "0806120000")
	msg.Set(11, "000123")
	msg.Set(41, "TERM0001")

	packed, err := Pack(BankDictionary, msg)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	got, err := Unpack(BankDictionary, packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	for n, v := range msg.Fields {
		gv, ok := got.Get(n)
		if !ok || gv != v {
			t.Errorf("field %d = %q (present=%v), want %q", n, gv, ok, v)
		}
	}
}

func TestSecondaryBitmapEmittedOnlyPastField64(t *testing.T) {
	t.Parallel()

	only64 := New("0800")
	only64.Set(41, "TERM0001")
	packed, err := Pack(POSDictionary, only64)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	// 4 mti + 16 primary bitmap hex chars, no secondary.
	if len(packed) < 20 {
		t.Fatalf("packed too short: %d", len(packed))
	}
	bm, err := Unpack(POSDictionary, packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if _, ok := bm.Get(90); ok {
		t.Errorf("field 90 unexpectedly present")
	}

	with90 := New("0800")
	with90.Set(41, "TERM0001")
	with90.Set(90, "AB")
	packedWith, err := Pack(POSDictionary, with90)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(packedWith) <= len(packed) {
		t.Errorf("expected secondary bitmap to add length")
	}
}

func TestUnpackFailsOnUndefinedField(t *testing.T) {
	t.Parallel()

	tiny := &Dictionary{Name: "tiny", BinaryBitmap: false, Fields: map[int]FieldDef{}}
	// Force a bitmap bit for field 2 without a dictionary entry.
	packed := []byte("0800" + "4000000000000000")
	if _, err := Unpack(tiny, packed); err == nil {
		t.Error("expected error for field not in dictionary")
	}
}

func TestVariableLengthFieldAtZeroAndMax(t *testing.T) {
	t.Parallel()

	msg := New("0200")
	msg.Set(35, "")
	packed, err := Pack(POSDictionary, msg)
	if err != nil {
		t.Fatalf("Pack empty LL field: %v", err)
	}
	got, err := Unpack(POSDictionary, packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if v, _ := got.Get(35); v != "" {
		t.Errorf("field 35 = %q, want empty", v)
	}

	max := make([]byte, 37)
	for i := range max {
		max[i] = '9'
	}
	msg2 := New("0200")
	msg2.Set(35, string(max))
	packed2, err := Pack(POSDictionary, msg2)
	if err != nil {
		t.Fatalf("Pack max LL field: %v", err)
	}
	got2, err := Unpack(POSDictionary, packed2)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if v, _ := got2.Get(35); v != string(max) {
		t.Errorf("field 35 round trip mismatch")
	}
}

func TestTrack2FieldCarriesFieldSeparator(t *testing.T) {
	t.Parallel()

	const track2 = "4532015112830366=29051019999900000000"
	msg := New("0200")
	msg.Set(35, track2)

	packed, err := Pack(POSDictionary, msg)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	got, err := Unpack(POSDictionary, packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if v, _ := got.Get(35); v != track2 {
		t.Errorf("field 35 = %q, want %q", v, track2)
	}
}

func TestField53CarriesKeyChangeStatusText(t *testing.T) {
	t.Parallel()

	const status = "KEY_ID:K1"
	msg := New("0810")
	msg.Set(39, "00")
	msg.Set(53, status)

	packed, err := Pack(POSDictionary, msg)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	got, err := Unpack(POSDictionary, packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if v, _ := got.Get(53); v != status {
		t.Errorf("field 53 = %q, want %q", v, status)
	}
}
