package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode"
)

// ContentID derives the stable record ID from an item's natural name:
// lowercase, whitespace collapsed to single dashes, anything outside
// [a-z0-9._-] dropped. Re-fetching the same named item always maps to the
// same record. Name collisions are not resolved; the source is trusted to
// keep names unique per collection.
func ContentID(name string) string {
	var sb strings.Builder
	lastDash := true // suppress leading dashes
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsSpace(r):
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			sb.WriteRune(r)
			lastDash = r == '-'
		}
	}
	return strings.TrimRight(sb.String(), "-")
}

// contentHash digests the canonical JSON serialization of a content item.
// Callers must pass the bare content struct (Command, Persona, Rule) so
// that ID, Hash and LastUpdated never feed the digest: two fetches of
// unchanged content always produce the same hash.
func contentHash(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Content structs contain only strings, bools and slices of the
		// same, so Marshal cannot fail on them.
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashCommand returns the content digest of a command
func HashCommand(c Command) string { return contentHash(c) }

// HashPersona returns the content digest of a persona
func HashPersona(p Persona) string { return contentHash(p) }

// HashRule returns the content digest of a rule
func HashRule(r Rule) string { return contentHash(r) }
