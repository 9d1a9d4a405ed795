package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired indicates no credential is cached for the platform;
	// the store owner must complete the login flow out of band.
	ErrAuthRequired = errors.New("platform credential missing, store login required")
	// ErrAuthExpired indicates the platform rejected a previously valid
	// credential mid-flight. The caller must re-authenticate and restart.
	ErrAuthExpired = errors.New("platform credential expired")
	// ErrMalformedResponse indicates an expected structure was absent from a
	// parsed platform response.
	ErrMalformedResponse = errors.New("malformed platform response")
)

// StatusError carries a non-2xx platform response with its raw body.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("platform returned status %d: %s", e.Code, truncate(e.Body, 256))
}

// HasStatus reports whether err is a StatusError with the given code.
func HasStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
