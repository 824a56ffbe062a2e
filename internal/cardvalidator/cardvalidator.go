// Package cardvalidator implements PAN structural validation: Luhn check,
// brand detection by prefix, and display masking.
package cardvalidator

import "regexp"

// Brand identifies a card scheme detected from its PAN prefix.
type Brand string

// Recognized card brands, in the order their patterns are tried.
const (
	Visa           Brand = "VISA"
	Mastercard     Brand = "MASTERCARD"
	AmericanExpress Brand = "AMERICAN_EXPRESS"
	Discover       Brand = "DISCOVER"
	JCB            Brand = "JCB"
	DinersClub     Brand = "DINERS_CLUB"
	Maestro        Brand = "MAESTRO"
	Unknown        Brand = "UNKNOWN"
)

var brandPatterns = []struct {
	brand   Brand
	pattern *regexp.Regexp
}{
	{Visa, regexp.MustCompile(`^4\d{12}(\d{3})?$`)},
	{Mastercard, regexp.MustCompile(`^5[1-5]\d{14}$|^2(22[1-9]|2[3-9]\d|[3-6]\d\d|7([01]\d|20))\d{12}$`)},
	{AmericanExpress, regexp.MustCompile(`^3[47]\d{13}$`)},
	{Discover, regexp.MustCompile(`^6(011|5\d\d)\d{12}$`)},
	{JCB, regexp.MustCompile(`^(2131|1800|35\d{3})\d{11}$`)},
	{DinersClub, regexp.MustCompile(`^3(0[0-5]|[68]\d)\d{11}$`)},
	{Maestro, regexp.MustCompile(`^(5[0678]\d\d|6304|6390|67\d\d)\d{8,15}$`)},
}

const (
	minPanLength = 13
	maxPanLength = 19
)

// Result carries the outcome of validating a PAN.
type Result struct {
	Valid     bool
	LuhnValid bool
	Brand     Brand
	Masked    string
	Error     string
}

func onlyDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}

	return string(out)
}

func detectBrand(pan string) Brand {
	for _, bp := range brandPatterns {
		if bp.pattern.MatchString(pan) {
			return bp.brand
		}
	}

	return Unknown
}

// Luhn reports whether digits (a numeric string) satisfies the Luhn
// checksum: from the rightmost digit moving left, double every second
// digit, subtracting 9 from any result over 9, then sum; valid iff the
// total is a multiple of 10.
func Luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	return sum%10 == 0
}

func mask(pan string) string {
	n := len(pan)
	if n <= 8 {
		return pan
	}

	return pan[:4] + string(repeat('*', n-8)) + pan[n-4:]
}

func repeat(r rune, n int) []rune {
	out := make([]rune, n)
	for i := range out {
		out[i] = r
	}

	return out
}

// Validate strips non-digits from pan, checks length (13..19), detects the
// card brand, runs the Luhn check, and produces a masked display value.
// Valid is true only when the Luhn check passes and a known brand matched.
func Validate(pan string) Result {
	digits := onlyDigits(pan)
	if len(digits) < minPanLength || len(digits) > maxPanLength {
		return Result{Error: "pan length must be 13..19 digits"}
	}

	brand := detectBrand(digits)
	luhnOK := Luhn(digits)

	return Result{
		Valid:     luhnOK && brand != Unknown,
		LuhnValid: luhnOK,
		Brand:     brand,
		Masked:    mask(digits),
	}
}

// CheckDigit computes the Luhn check digit that makes body+digit valid.
func CheckDigit(body string) byte {
	sum := 0
	double := true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	check := (10 - sum%10) % 10

	return byte('0' + check)
}
