package container

import "github.com/pkg/errors"

// Sentinel errors surfaced by Reader, matching the error-handling design
// in spec.md §8: callers type-switch or errors.Is against these rather
// than parsing message text.
var (
	ErrBadMagic  = errors.New("container: bad magic")
	ErrTruncated = errors.New("container: truncated stream")
)
