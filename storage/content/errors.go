package content

import "errors"

// ErrNotFound indicates that an asset record was not found.
var ErrNotFound = errors.New("asset not found")
