package motivecurve

import "errors"

var errDuplicateOrUnorderedX = errors.New("motivecurve: node x values must be strictly ascending")
