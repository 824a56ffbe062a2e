package iso8583

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const mtiLength = 4

// Message is an ISO 8583 message: an MTI plus a sparse field map. Field
// values are held as their logical string form (decimal digits for numeric
// fields, text for char fields, uppercase hex for binary fields) regardless
// of which dictionary will encode them on the wire.
type Message struct {
	MTI    string
	Fields map[int]string
}

// New returns an empty message with the given MTI.
func New(mti string) *Message {
	return &Message{MTI: mti, Fields: make(map[int]string)}
}

// Get returns field n's value and whether it was present.
func (m *Message) Get(n int) (string, bool) {
	v, ok := m.Fields[n]

	return v, ok
}

// Set stores field n's value.
func (m *Message) Set(n int, v string) {
	m.Fields[n] = v
}

// Has reports whether field n is present.
func (m *Message) Has(n int) bool {
	_, ok := m.Fields[n]

	return ok
}

func bcdPack(digits string) ([]byte, error) {
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	out := make([]byte, len(digits)/2)
	for i := 0; i < len(out); i++ {
		hi := digits[i*2]
		lo := digits[i*2+1]
		if hi < '0' || hi > '9' || lo < '0' || lo > '9' {
			return nil, fmt.Errorf("bcd: non-digit character")
		}
		out[i] = (hi-'0')<<4 | (lo - '0')
	}

	return out, nil
}

func bcdUnpack(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		sb.WriteByte('0' + (c >> 4))
		sb.WriteByte('0' + (c & 0x0F))
	}

	return sb.String()
}

// encodeField appends field n's wire encoding to buf per its dictionary
// entry, returning the error type mandated by the codec's decode failure
// modes when the value cannot satisfy the field's rule.
func encodeField(buf *strings.Builder, def FieldDef, value string) error {
	switch def.Type {
	case FixedNumeric:
		if def.Packed {
			padded := value
			if len(padded) < def.Length {
				padded = strings.Repeat("0", def.Length-len(padded)) + padded
			}
			if len(padded) > def.Length {
				return NewFieldDecodeError(def.Number, "numeric value exceeds field length")
			}
			packed, err := bcdPack(padded)
			if err != nil {
				return NewFieldDecodeError(def.Number, err.Error())
			}
			buf.Write(packed) //nolint:errcheck // strings.Builder.Write never errors.

			return nil
		}
		if len(value) > def.Length {
			return NewFieldDecodeError(def.Number, "numeric value exceeds field length")
		}
		for _, c := range value {
			if c < '0' || c > '9' {
				return NewFieldDecodeError(def.Number, "non-numeric where numeric required")
			}
		}
		buf.WriteString(strings.Repeat("0", def.Length-len(value)) + value)

		return nil
	case FixedChar:
		if len(value) > def.Length {
			return NewFieldDecodeError(def.Number, "char value exceeds field length")
		}
		buf.WriteString(value + strings.Repeat(" ", def.Length-len(value)))

		return nil
	case FixedBinary:
		raw, err := hex.DecodeString(value)
		if err != nil || len(raw) != def.Length {
			return NewFieldDecodeError(def.Number, "invalid binary value")
		}
		buf.Write(raw) //nolint:errcheck

		return nil
	case LLNum:
		if len(value) > def.Length {
			return NewFieldDecodeError(def.Number, "value exceeds max length")
		}
		fmt.Fprintf(buf, "%02d%s", len(value), value)

		return nil
	case LLChar:
		if len(value) > def.Length {
			return NewFieldDecodeError(def.Number, "value exceeds max length")
		}
		fmt.Fprintf(buf, "%02d%s", len(value), value)

		return nil
	case LLLChar:
		if len(value) > def.Length {
			return NewFieldDecodeError(def.Number, "value exceeds max length")
		}
		fmt.Fprintf(buf, "%03d%s", len(value), value)

		return nil
	case LLLBinary:
		raw, err := hex.DecodeString(value)
		if err != nil {
			return NewFieldDecodeError(def.Number, "invalid binary value")
		}
		if len(raw) > def.Length {
			return NewFieldDecodeError(def.Number, "value exceeds max length")
		}
		fmt.Fprintf(buf, "%03d", len(raw))
		buf.Write(raw) //nolint:errcheck

		return nil
	default:
		return NewFieldDecodeError(def.Number, "unknown field type")
	}
}

// Pack serializes msg against dict: 4-char MTI, primary (and optional
// secondary) bitmap, then each present field in ascending order.
func Pack(dict *Dictionary, msg *Message) ([]byte, error) {
	if len(msg.MTI) != mtiLength {
		return nil, fmt.Errorf("iso8583: mti must be %d characters", mtiLength)
	}
	bm := buildBitmap(msg.Fields)

	var out strings.Builder
	out.WriteString(msg.MTI)

	if dict.BinaryBitmap {
		out.Write(bm.primary[:]) //nolint:errcheck
		if bm.hasSecondary {
			out.Write(bm.secondary[:]) //nolint:errcheck
		}
	} else {
		out.WriteString(strings.ToUpper(hex.EncodeToString(bm.primary[:])))
		if bm.hasSecondary {
			out.WriteString(strings.ToUpper(hex.EncodeToString(bm.secondary[:])))
		}
	}

	fieldNums := presentFields(bm)
	sort.Ints(fieldNums)
	for _, n := range fieldNums {
		def, ok := dict.Fields[n]
		if !ok {
			return nil, NewFieldDecodeError(n, "field not defined by dictionary")
		}
		if err := encodeField(&out, def, msg.Fields[n]); err != nil {
			return nil, err
		}
	}

	return []byte(out.String()), nil
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("iso8583: unexpected end of message")
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n

	return b, nil
}

func decodeField(r *reader, def FieldDef) (string, error) {
	switch def.Type {
	case FixedNumeric:
		if def.Packed {
			nbytes := (def.Length + 1) / 2
			raw, err := r.take(nbytes)
			if err != nil {
				return "", NewFieldDecodeError(def.Number, "truncated field")
			}
			digits := bcdUnpack(raw)
			if len(digits) > def.Length {
				digits = digits[len(digits)-def.Length:]
			}

			return digits, nil
		}
		raw, err := r.take(def.Length)
		if err != nil {
			return "", NewFieldDecodeError(def.Number, "truncated field")
		}
		for _, c := range raw {
			if c < '0' || c > '9' {
				return "", NewFieldDecodeError(def.Number, "non-numeric where numeric required")
			}
		}

		return string(raw), nil
	case FixedChar:
		raw, err := r.take(def.Length)
		if err != nil {
			return "", NewFieldDecodeError(def.Number, "truncated field")
		}

		return strings.TrimRight(string(raw), " "), nil
	case FixedBinary:
		raw, err := r.take(def.Length)
		if err != nil {
			return "", NewFieldDecodeError(def.Number, "truncated field")
		}

		return strings.ToUpper(hex.EncodeToString(raw)), nil
	case LLNum:
		hdr, err := r.take(2)
		if err != nil {
			return "", NewFieldDecodeError(def.Number, "truncated length header")
		}
		n, err := strconv.Atoi(string(hdr))
		if err != nil || n > def.Length {
			return "", NewFieldDecodeError(def.Number, "invalid length header")
		}
		raw, err := r.take(n)
		if err != nil {
			return "", NewFieldDecodeError(def.Number, "truncated field")
		}
		for _, c := range raw {
			if c < '0' || c > '9' {
				return "", NewFieldDecodeError(def.Number, "non-numeric where numeric required")
			}
		}

		return string(raw), nil
	case LLChar:
		hdr, err := r.take(2)
		if err != nil {
			return "", NewFieldDecodeError(def.Number, "truncated length header")
		}
		n, err := strconv.Atoi(string(hdr))
		if err != nil || n > def.Length {
			return "", NewFieldDecodeError(def.Number, "invalid length header")
		}
		raw, err := r.take(n)
		if err != nil {
			return "", NewFieldDecodeError(def.Number, "truncated field")
		}

		return string(raw), nil
	case LLLChar:
		hdr, err := r.take(3)
		if err != nil {
			return "", NewFieldDecodeError(def.Number, "truncated length header")
		}
		n, err := strconv.Atoi(string(hdr))
		if err != nil || n > def.Length {
			return "", NewFieldDecodeError(def.Number, "invalid length header")
		}
		raw, err := r.take(n)
		if err != nil {
			return "", NewFieldDecodeError(def.Number, "truncated field")
		}

		return string(raw), nil
	case LLLBinary:
		hdr, err := r.take(3)
		if err != nil {
			return "", NewFieldDecodeError(def.Number, "truncated length header")
		}
		n, err := strconv.Atoi(string(hdr))
		if err != nil || n > def.Length {
			return "", NewFieldDecodeError(def.Number, "invalid length header")
		}
		raw, err := r.take(n)
		if err != nil {
			return "", NewFieldDecodeError(def.Number, "truncated field")
		}

		return strings.ToUpper(hex.EncodeToString(raw)), nil
	default:
		return "", NewFieldDecodeError(def.Number, "unknown field type")
	}
}

// Unpack parses data against dict, mirroring Pack's encoding rules. It
// stops and returns the first protocol-fatal error rather than returning a
// partial message.
func Unpack(dict *Dictionary, data []byte) (*Message, error) {
	r := &reader{data: data}
	mtiBytes, err := r.take(mtiLength)
	if err != nil {
		return nil, fmt.Errorf("iso8583: truncated mti: %w", err)
	}

	var bm bitmap
	if dict.BinaryBitmap {
		raw, err := r.take(8)
		if err != nil {
			return nil, fmt.Errorf("iso8583: truncated bitmap: %w", err)
		}
		copy(bm.primary[:], raw)
	} else {
		raw, err := r.take(16)
		if err != nil {
			return nil, fmt.Errorf("iso8583: truncated bitmap: %w", err)
		}
		decoded, err := hex.DecodeString(string(raw))
		if err != nil {
			return nil, fmt.Errorf("iso8583: invalid bitmap hex: %w", err)
		}
		copy(bm.primary[:], decoded)
	}
	if isBitSet(bm.primary, 1) {
		bm.hasSecondary = true
		if dict.BinaryBitmap {
			raw, err := r.take(8)
			if err != nil {
				return nil, fmt.Errorf("iso8583: truncated secondary bitmap: %w", err)
			}
			copy(bm.secondary[:], raw)
		} else {
			raw, err := r.take(16)
			if err != nil {
				return nil, fmt.Errorf("iso8583: truncated secondary bitmap: %w", err)
			}
			decoded, err := hex.DecodeString(string(raw))
			if err != nil {
				return nil, fmt.Errorf("iso8583: invalid secondary bitmap hex: %w", err)
			}
			copy(bm.secondary[:], decoded)
		}
	}

	msg := New(string(mtiBytes))
	for _, n := range presentFields(bm) {
		def, ok := dict.Fields[n]
		if !ok {
			return nil, NewFieldDecodeError(n, "bitmap references field not defined by dictionary")
		}
		v, err := decodeField(r, def)
		if err != nil {
			return nil, err
		}
		msg.Set(n, v)
	}

	return msg, nil
}
