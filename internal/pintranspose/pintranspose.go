// Package pintranspose re-encrypts a PIN block from one TDES key to another
// without ever persisting the clear PIN, decrypting under the source key,
// decoding the format-0 PIN field, re-encoding it, and encrypting under the
// destination key.
package pintranspose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kevshake/isogateway/internal/pinblock"
	"github.com/kevshake/isogateway/internal/tdes"
)

var (
	// ErrInvalidPinBlock is returned when the encrypted block fails basic
	// structural checks before any cryptography is attempted.
	ErrInvalidPinBlock = errors.New("pintranspose: invalid pin block")
	// ErrInvalidPan is returned when pan does not carry enough digits.
	ErrInvalidPan = errors.New("pintranspose: invalid pan")
)

const minPanLength = 12

func validate(encryptedPinBlock, pan string) error {
	if len(encryptedPinBlock) != 16 {
		return fmt.Errorf("%w: must be 16 hex chars", ErrInvalidPinBlock)
	}
	if strings.Trim(encryptedPinBlock, "0") == "" {
		return fmt.Errorf("%w: all-zero block", ErrInvalidPinBlock)
	}
	digits := 0
	for _, r := range pan {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < minPanLength {
		return fmt.Errorf("%w: must carry at least %d digits", ErrInvalidPan, minPanLength)
	}

	return nil
}

// Transpose decrypts encryptedPinBlock under sourceKey, decodes the format-0
// PIN field against pan, re-encodes it, and encrypts the result under
// destKey. It is a pure function: the clear PIN is never written to any
// sink and never leaves this call.
func Transpose(sourceKey, destKey, encryptedPinBlock, pan string) (string, error) {
	if err := validate(encryptedPinBlock, pan); err != nil {
		return "", err
	}

	clearBlock, err := tdes.TdesDecrypt(encryptedPinBlock, sourceKey, false)
	if err != nil {
		return "", fmt.Errorf("pintranspose: decrypt under source key: %w", err)
	}

	pin, err := pinblock.DecodeFormat0(clearBlock, pan)
	if err != nil {
		return "", fmt.Errorf("pintranspose: decode pin block: %w", err)
	}

	newClear, err := pinblock.EncodeFormat0(pin, pan)
	if err != nil {
		return "", fmt.Errorf("pintranspose: encode pin block: %w", err)
	}

	out, err := tdes.TdesEncrypt(newClear, destKey, false)
	if err != nil {
		return "", fmt.Errorf("pintranspose: encrypt under destination key: %w", err)
	}

	return out, nil
}
