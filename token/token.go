// Package token encodes and decodes lease ownership tokens. A token combines
// the monotonic resource version with an opaque session identifier and is
// stored verbatim as the lease value, so a session can later prove ownership
// at release or extend time.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrMalformed is returned when a lease value cannot be parsed as a token.
var ErrMalformed = errors.New("token: malformed lease value")

// Encode builds the lease value for a claim. The session identifier must not
// contain ':'.
func Encode(version int64, session string) string {
	return strconv.FormatInt(version, 10) + ":" + session
}

// Parse splits a lease value into its version and session parts. The first
// ':' is the delimiter; anything after it belongs to the session identifier.
func Parse(value string) (int64, string, error) {
	idx := strings.IndexByte(value, ':')
	if idx <= 0 {
		return 0, "", ErrMalformed
	}
	version, err := strconv.ParseInt(value[:idx], 10, 64)
	if err != nil || version < 0 {
		return 0, "", fmt.Errorf("%w: %q", ErrMalformed, value)
	}
	return version, value[idx+1:], nil
}

// NewSession returns a fresh opaque session identifier.
func NewSession() string {
	return uuid.NewString()
}
