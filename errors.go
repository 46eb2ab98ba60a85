package discussioncache

import (
	"errors"
	"fmt"
)

// ErrRateLimited reports that the upstream rejected a request for quota
// reasons after the one-shot token rotation had been exhausted. Produced
// once at the GraphQL response boundary, never re-derived from message
// text at call sites.
var ErrRateLimited = errors.New("upstream rate limit exceeded")

// ErrNoCredentials reports that no credential source could supply a token.
// Read paths treat this as "fall through to the next source"; write paths
// treat it as fatal.
var ErrNoCredentials = errors.New("no credentials available")

// ErrNotFound is returned when the requested discussion, category, or
// repository does not exist upstream.
var ErrNotFound = errors.New("not found")

// MissingConfigError reports a required setting that has no value.
type MissingConfigError struct {
	Setting string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("missing required setting: %s", e.Setting)
}

// IsMissingConfig reports whether err is a MissingConfigError.
func IsMissingConfig(err error) bool {
	var mce *MissingConfigError
	return errors.As(err, &mce)
}
