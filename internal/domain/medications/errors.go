package medications

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrNotFound cubre también "no es tuyo": nunca revelamos si existe.
	ErrNotFound   = errors.New("not found or access denied")
	ErrConflict   = errors.New("this record already exists")
	ErrReferenced = errors.New("record is referenced by other data")
	ErrNetwork    = errors.New("network error")
	ErrBackend    = errors.New("backend error")
)

// ValidationError describe un campo inválido; errors.Is(err, ErrInvalidInput) es true.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// IsTransient indica si el error es elegible para reintento automático.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrUnauthenticated) {
		return false
	}
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrBackend)
}
