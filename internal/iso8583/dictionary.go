// Package iso8583 packs and unpacks ISO 8583 messages against one of two
// field dictionaries: POS (ASCII-hex bitmap, terminal-facing) and Bank
// (binary-packed bitmap, host-facing).
package iso8583

// FieldType names the wire encoding rule for a field-dictionary entry.
type FieldType int

const (
	// FixedNumeric fields are left-padded with '0' to Length ASCII digits,
	// or BCD-packed into (Length+1)/2 bytes when the dictionary marks them
	// Packed.
	FixedNumeric FieldType = iota
	// FixedChar fields are right-padded with ' ' to Length ASCII bytes.
	FixedChar
	// FixedBinary fields occupy exactly Length raw bytes, held as hex text
	// in a Message's Fields map.
	FixedBinary
	// LLNum fields carry a 2-decimal-digit length header followed by that
	// many ASCII digits.
	LLNum
	// LLChar fields carry a 2-decimal-digit length header followed by that
	// many ASCII bytes (unlike LLNum, the payload is not restricted to
	// digits).
	LLChar
	// LLLChar fields carry a 3-decimal-digit length header followed by that
	// many ASCII bytes.
	LLLChar
	// LLLBinary fields carry a 3-decimal-digit length header (byte count)
	// followed by that many raw bytes, held as hex text in Fields.
	LLLBinary
)

// FieldDef describes one field-dictionary entry.
type FieldDef struct {
	Number int
	Type   FieldType
	Length int  // exact length for fixed types, max length for LL/LLL types
	Packed bool // BCD-pack a FixedNumeric field (Bank dictionary only)
}

// Dictionary maps field numbers to their wire encoding and declares whether
// the bitmap is emitted as binary bytes (Bank) or ASCII-hex text (POS).
type Dictionary struct {
	Name         string
	BinaryBitmap bool
	Fields       map[int]FieldDef
}

func def(n int, t FieldType, length int) FieldDef {
	return FieldDef{Number: n, Type: t, Length: length}
}

func packedDef(n int, length int) FieldDef {
	return FieldDef{Number: n, Type: FixedNumeric, Length: length, Packed: true}
}

// posFieldTable is shared by both dictionaries; the Bank dictionary
// resolves collisions with BCD-packing for its numeric fields below.
var posFieldTable = map[int]FieldDef{
	2:   def(2, LLNum, 19),
	3:   def(3, FixedNumeric, 6),
	4:   def(4, FixedNumeric, 12),
	7:   def(7, FixedNumeric, 10),
	11:  def(11, FixedNumeric, 6),
	12:  def(12, FixedNumeric, 6),
	13:  def(13, FixedNumeric, 4),
	14:  def(14, FixedNumeric, 4),
	22:  def(22, FixedNumeric, 3),
	25:  def(25, FixedNumeric, 2),
	35:  def(35, LLChar, 37),
	37:  def(37, FixedChar, 12),
	38:  def(38, FixedChar, 6),
	39:  def(39, FixedChar, 2),
	41:  def(41, FixedChar, 8),
	42:  def(42, FixedChar, 15),
	43:  def(43, FixedChar, 40),
	49:  def(49, FixedChar, 3),
	52:  def(52, FixedBinary, 8),
	53:  def(53, LLLChar, 999),
	55:  def(55, LLLBinary, 255),
	90:  def(90, FixedChar, 42),
	120: def(120, LLLChar, 999),
	126: def(126, LLLChar, 999),
}

// POSDictionary is the terminal-facing field dictionary: ASCII-hex bitmap,
// text-encoded numeric fields.
var POSDictionary = &Dictionary{
	Name:         "POS",
	BinaryBitmap: false,
	Fields:       posFieldTable,
}

// bankFieldTable starts from posFieldTable and BCD-packs the fixed-numeric
// fields, matching the jPOS-style binary dialect spoken by acquiring hosts.
var bankFieldTable = func() map[int]FieldDef {
	out := make(map[int]FieldDef, len(posFieldTable))
	for n, d := range posFieldTable {
		out[n] = d
	}
	for _, n := range []int{3, 4, 7, 11, 12, 13, 14, 22, 25} {
		out[n] = packedDef(n, out[n].Length)
	}

	return out
}()

// BankDictionary is the host-facing field dictionary: binary-packed bitmap,
// BCD-packed numeric fields.
var BankDictionary = &Dictionary{
	Name:         "Bank",
	BinaryBitmap: true,
	Fields:       bankFieldTable,
}
