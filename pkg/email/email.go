// Package email holds small helpers around user email addresses: the
// validity guard used before sending decision notifications, and a fallback
// display-name derivation for users without a stored name.
package email

import (
	"net/mail"
	"strings"
	"unicode"
)

// Valid reports whether the address can receive mail. Decision logic uses
// this as the send guard: state transitions proceed either way, but sending
// is skipped for invalid addresses.
func Valid(address string) bool {
	address = strings.TrimSpace(address)
	if address == "" {
		return false
	}
	parsed, err := mail.ParseAddress(address)
	return err == nil && parsed.Address == address
}

// DeriveNameFromEmail builds a presentable name from the local part of an
// address, e.g. "ada.lovelace@example.org" -> "Ada Lovelace". Used when a
// submission carries no display name.
func DeriveNameFromEmail(address string) string {
	localPart := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "User"
	}

	for i, part := range parts {
		parts[i] = capitalize(part)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
