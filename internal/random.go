package internal

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// IDLength is the length of every identifier produced by NewID.
const IDLength = 24

const idRawSize = IDLength / 2

// NewID returns a random 24-character lowercase hex identifier.
func NewID() (string, error) {
	var raw [idRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// ValidID reports whether id has the shape produced by NewID.
func ValidID(id string) bool {
	if len(id) != IDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// NormalizeID validates id and returns it in the lowercase form stores hold.
func NormalizeID(id string) (string, bool) {
	if !ValidID(id) {
		return "", false
	}
	return strings.ToLower(id), true
}
