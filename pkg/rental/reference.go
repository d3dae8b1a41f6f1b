package rental

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ReferenceLength is the fixed length of a booking reference number.
const ReferenceLength = 10

// GenerateReference produces a short human-shareable booking reference:
// the first ten hex characters of md5 over a fresh uuid, uppercased.
// Collision-resistant, not guaranteed unique; callers retry on
// ErrReferenceTaken from the store.
func GenerateReference() string {
	sum := md5.Sum([]byte(uuid.NewString()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:ReferenceLength]
}

// ValidateReference checks the fixed-length uppercase alphanumeric shape
// of a reference number.
func ValidateReference(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) != ReferenceLength {
		return "", fmt.Errorf("%w: must be %d characters", ErrInvalidReference, ReferenceLength)
	}
	for _, char := range trimmed {
		isDigit := char >= '0' && char <= '9'
		isUpper := char >= 'A' && char <= 'Z'
		if !isDigit && !isUpper {
			return "", fmt.Errorf("%w: must be uppercase alphanumeric", ErrInvalidReference)
		}
	}
	return trimmed, nil
}
