package model

import (
	"strings"
	"unicode"
)

// IdentityKind tells whose schedule an identity selects.
type IdentityKind string

const (
	IdentityGroup   IdentityKind = "group"
	IdentityTeacher IdentityKind = "teacher"
)

// KindOf classifies an identity: group names always contain a digit,
// teacher names never do.
func KindOf(identity string) IdentityKind {
	for _, r := range identity {
		if unicode.IsDigit(r) {
			return IdentityGroup
		}
	}
	return IdentityTeacher
}

// NormalizeIdentity trims surrounding whitespace.
func NormalizeIdentity(identity string) string {
	return strings.TrimSpace(identity)
}
