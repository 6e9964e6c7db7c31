package archive

import "errors"

// ErrAncestorInconsistent is a Consistency-kind error: a
// segment-write's prev_slot pointed forward instead of backward during a
// back-fill ancestor walk.
var ErrAncestorInconsistent = errors.New("archive: ancestor walk found prev_slot > current slot")
