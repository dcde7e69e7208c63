package taskstore

import "errors"

var errNilOrUnkeyed = errors.New("taskstore: nil task or empty ID")
