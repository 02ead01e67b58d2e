package indexpool

import "errors"

var errWidth = errors.New("indexpool: width must be positive")
