// Package identity computes stable fingerprints for parsed shows.
package identity

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/text/unicode/norm"
)

const (
	// HashLength is the number of hex characters kept from the digest.
	HashLength = 32

	noTimeSentinel = "no-time"
)

// NormalizeName lowercases, trims and collapses internal whitespace.
func NormalizeName(name string) string {
	name = norm.NFC.String(name)
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Hash returns the identity hash for a show. time may be nil.
func Hash(name, date string, time *string) string {
	slot := noTimeSentinel
	if time != nil && strings.TrimSpace(*time) != "" {
		slot = strings.TrimSpace(*time)
	}

	key := NormalizeName(name) + "|" + strings.TrimSpace(date) + "|" + slot
	sum := blake3.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:HashLength]
}

// Fingerprint returns the full hex digest of a raw report body.
func Fingerprint(body string) string {
	sum := blake3.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
