package cart

import "errors"

var ErrLockedItemRequiresPIN = errors.New("locked item requires manager pin to reduce")
