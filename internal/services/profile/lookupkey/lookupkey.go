// Package lookupkey derives the remote lookup key for an email address.
//
// Keys are lower-cased and every byte in the reserved set . @ # $ [ ] / -
// is replaced by '-' followed by two lowercase hex digits. The escape byte
// is itself reserved, so decoding is unambiguous and distinct emails never
// share a key.
package lookupkey

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/messenger/internal/platform/errors"
)

const escapeByte = '-'

const hexDigits = "0123456789abcdef"

var (
	// ErrEmailRequired indicates a blank email.
	ErrEmailRequired = apperrors.New(apperrors.CodeEmailRequired, "email is required")
	// ErrEmailInvalid indicates bytes that cannot appear in a lookup key.
	ErrEmailInvalid = apperrors.New(apperrors.CodeEmailInvalid, "email contains unsupported characters")
	// ErrKeyInvalid indicates a key that Sanitize could not have produced.
	ErrKeyInvalid = apperrors.New(apperrors.CodeInvalidArgument, "lookup key is malformed")
)

func reserved(b byte) bool {
	switch b {
	case '.', '@', '#', '$', '[', ']', '/', escapeByte:
		return true
	}
	return false
}

// Sanitize returns the lookup key for email.
func Sanitize(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", ErrEmailRequired
	}

	var b strings.Builder
	b.Grow(len(normalized) * 2)
	for i := 0; i < len(normalized); i++ {
		c := normalized[i]
		if c <= ' ' || c > '~' {
			return "", fmt.Errorf("%w: byte 0x%02x at %d", ErrEmailInvalid, c, i)
		}
		if reserved(c) {
			b.WriteByte(escapeByte)
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
			continue
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

// Desanitize reverses Sanitize.
func Desanitize(key string) (string, error) {
	if key == "" {
		return "", ErrKeyInvalid
	}
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c != escapeByte {
			if reserved(c) || c <= ' ' || c > '~' {
				return "", fmt.Errorf("%w: unescaped byte 0x%02x at %d", ErrKeyInvalid, c, i)
			}
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(key) {
			return "", fmt.Errorf("%w: truncated escape at %d", ErrKeyInvalid, i)
		}
		hi, lo := strings.IndexByte(hexDigits, key[i+1]), strings.IndexByte(hexDigits, key[i+2])
		if hi < 0 || lo < 0 {
			return "", fmt.Errorf("%w: bad escape at %d", ErrKeyInvalid, i)
		}
		decoded := byte(hi<<4 | lo)
		if !reserved(decoded) {
			return "", fmt.Errorf("%w: escaped byte 0x%02x is not reserved", ErrKeyInvalid, decoded)
		}
		b.WriteByte(decoded)
		i += 2
	}
	return b.String(), nil
}

// ProfilePath is the record path of the profile fields.
func ProfilePath(key string) string {
	return key
}

// PresencePath is the record path of the presence flag.
func PresencePath(key string) string {
	return key + "/is_active"
}

// ConversationsPath is the record path of the conversation list.
func ConversationsPath(key string) string {
	return key + "/conversations"
}

// ProfilePicturePath is the blob path of the profile picture.
func ProfilePicturePath(key string) string {
	return "images/" + key + "_profile_picture.png"
}
