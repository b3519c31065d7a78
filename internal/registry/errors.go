package registry

import (
	"errors"
	"strings"
)

// ErrDuplicateHash is returned by Insert when another record already owns the
// content hash.
var ErrDuplicateHash = errors.New("content hash already registered")

const sqliteConstraintUnique = 2067

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteConstraintUnique {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
