package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Alphabet for public IDs (62 characters: 0-9, a-z, A-Z)
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Fixed prefixes for externally shared IDs. Internal ObjectIDs never leave
// the API; links and exports carry these codes instead.
const (
	IssuePublicIDPrefix = "CIV"
	UserPublicIDPrefix  = "CFU"
	publicIDLength      = 9
)

// randomBase62 returns a cryptographically random Base62 string.
// Rejection sampling avoids modulo bias: 248 is the largest multiple of 62
// below 256.
func randomBase62(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid length: %d", length)
	}

	const maxRandomByte = 248

	out := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}

		for _, b := range buf {
			if b >= maxRandomByte {
				continue
			}
			out[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(out), nil
}

// NewIssuePublicID returns a shareable issue code like "CIVk3xQ9fB2a".
func NewIssuePublicID() (string, error) {
	suffix, err := randomBase62(publicIDLength)
	if err != nil {
		return "", err
	}
	return IssuePublicIDPrefix + suffix, nil
}

// NewUserPublicID returns a shareable user code like "CFUq1mZ8tW4c".
func NewUserPublicID() (string, error) {
	suffix, err := randomBase62(publicIDLength)
	if err != nil {
		return "", err
	}
	return UserPublicIDPrefix + suffix, nil
}

// NewConfirmationToken returns a single-use token for resolution
// confirmation links. 16 random bytes hex encoded: 128 bits of entropy and
// URL-safe, since the token travels as a path segment in an emailed link.
func NewConfirmationToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewOTPCode returns a 6 decimal digit one-time code.
func NewOTPCode() (string, error) {
	// Rejection sampling over 0..249 keeps each digit uniform.
	const digits = 6
	out := make([]byte, digits)
	buf := make([]byte, digits*2)
	written := 0

	for written < digits {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			out[written] = '0' + b%10
			written++
			if written == digits {
				break
			}
		}
	}

	return string(out), nil
}
