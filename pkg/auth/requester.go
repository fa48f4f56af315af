// Package auth identifies the caller of a brain HTTP request.
//
// Authentication itself happens upstream: a gateway verifies the caller and
// forwards its identity in the X-Requester-ID header. This package only reads
// and validates that header.
package auth

import (
	"errors"
	"fmt"
	"unicode"
)

// HeaderRequesterID carries the authenticated caller identity.
const HeaderRequesterID = "X-Requester-ID"

const maxRequesterIDLen = 128

var (
	// ErrMissingRequester is returned when no requester identity was sent.
	ErrMissingRequester = errors.New("requester identity missing")

	// ErrInvalidRequester is returned for a malformed requester identity.
	ErrInvalidRequester = errors.New("requester identity invalid")
)

// ValidateRequesterID checks that id is a plausible user identifier: non
// empty, at most 128 bytes, printable and free of whitespace.
func ValidateRequesterID(id string) error {
	if id == "" {
		return ErrMissingRequester
	}
	if len(id) > maxRequesterIDLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidRequester, maxRequesterIDLen)
	}
	for _, r := range id {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return fmt.Errorf("%w: contains %q", ErrInvalidRequester, r)
		}
	}
	return nil
}
