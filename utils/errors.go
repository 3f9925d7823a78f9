package utils

import "errors"

type PermError string

func (e PermError) Error() string {
	return string(e)
}

func (e PermError) IsPermanent() bool {
	return true
}

type permanent interface {
	IsPermanent() bool
}

// IsPermanent reports whether any error in the chain declares itself permanent.
// Permanent errors are never retried by ReliableExec.
func IsPermanent(err error) bool {
	var p permanent
	if errors.As(err, &p) {
		return p.IsPermanent()
	}
	return false
}
