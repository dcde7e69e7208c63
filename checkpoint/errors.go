package checkpoint

import "errors"

var errNilOrUnkeyed = errors.New("checkpoint: nil checkpoint or empty threadID")
