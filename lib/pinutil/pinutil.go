package pinutil

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPin is returned when a raw PIN does not contain
// exactly 14 digits after stripping formatting.
var ErrInvalidPin = errors.New("invalid pin")

const digitCount = 14

// Normalize strips all non-digit characters from a raw PIN and
// returns the bare 14 digit form the recorder's search endpoint
// expects.
func Normalize(raw string) (string, error) {
	var digits strings.Builder
	for _, c := range raw {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	pin := digits.String()
	if len(pin) != digitCount {
		return "", fmt.Errorf("%w: %q has %d digits, want %d", ErrInvalidPin, raw, len(pin), digitCount)
	}
	return pin, nil
}

// Format renders a canonical PIN in the county's dashed
// NN-NN-NNN-NNN-NNNN display form.
func Format(pin string) string {
	if len(pin) != digitCount {
		return pin
	}
	return strings.Join([]string{
		pin[0:2],
		pin[2:4],
		pin[4:7],
		pin[7:10],
		pin[10:14],
	}, "-")
}
