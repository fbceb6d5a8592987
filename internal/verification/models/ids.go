package models

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// VerificationID is the system-assigned identifier of a verification record.
type VerificationID string

const verificationIDPrefix = "VER_"

var verificationIDPattern = regexp.MustCompile(`^VER_[0-9A-F]{16}$`)

// NewVerificationID returns a fresh identifier of the form VER_ followed by 16 uppercase hex digits.
// The 64 bits are taken from the random bytes of a v4 UUID: bytes 0-5 and 10-11,
// skipping the version nibble in byte 6 and the variant bits in byte 8.
func NewVerificationID() VerificationID {
	id := uuid.New()
	var b [8]byte
	copy(b[:6], id[0:6])
	copy(b[6:], id[10:12])
	return VerificationID(verificationIDPrefix + strings.ToUpper(hex.EncodeToString(b[:])))
}

// ParseVerificationID validates the textual form of a verification identifier.
func ParseVerificationID(s string) (VerificationID, error) {
	if !verificationIDPattern.MatchString(s) {
		return "", fmt.Errorf("invalid verification id %q", s)
	}
	return VerificationID(s), nil
}

func (id VerificationID) String() string { return string(id) }
