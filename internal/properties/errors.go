package properties

import "errors"

var ErrReadOnly = errors.New("property is not externally writable")
