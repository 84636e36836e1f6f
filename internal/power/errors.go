package power

import "errors"

var ErrInvalidState = errors.New("host state properties accept boolean values only")
