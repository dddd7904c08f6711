package store

import "errors"

var (
	ErrStorage         = errors.New("storage error")
	ErrTableNotInScope = errors.New("table not in transaction scope")
	ErrReadOnly        = errors.New("write in read-only transaction")
	ErrTableMissing    = errors.New("table does not exist")
)
