package analysis

import "errors"

// ErrNotFound covers a missing image, a missing analysis, or one the clinic
// does not own. Unauthorized lookups are indistinguishable from missing ones.
var ErrNotFound = errors.New("not found")
