// Package masking implements the field-aware masking policy applied to any
// ISO 8583 field before it reaches a log sink: full masks for cardholder
// data, partial masks for identifiers, and PIN block wiping.
package masking

import "strings"

// fullyMasked fields have their content replaced outright (PAN keeps its
// first/last four digits, matching cardvalidator's display convention).
var fullyMasked = map[int]bool{
	2: true, 14: true, 35: true, 45: true, 55: true, 120: true, 126: true,
}

// partiallyMasked fields keep their first and last few characters visible.
var partiallyMasked = map[int]bool{
	37: true, 41: true, 42: true,
}

const pinField = 52

// Field returns the masked form of field n's value for logging purposes.
func Field(n int, value string) string {
	switch {
	case n == pinField:
		return "****WIPED****"
	case fullyMasked[n]:
		return maskFull(n, value)
	case partiallyMasked[n]:
		return maskPartial(value)
	default:
		return value
	}
}

func maskFull(n int, value string) string {
	if n == 2 && len(value) > 8 {
		return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
	}

	return strings.Repeat("*", len(value))
}

func maskPartial(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	visible := 2
	if len(value) <= 8 {
		visible = 1
	}

	return value[:visible] + strings.Repeat("*", len(value)-2*visible) + value[len(value)-visible:]
}

// MaskFields returns a copy of fields with the masking policy applied to
// every entry, suitable for handing to a log sink.
func MaskFields(fields map[int]string) map[int]string {
	out := make(map[int]string, len(fields))
	for n, v := range fields {
		out[n] = Field(n, v)
	}

	return out
}
