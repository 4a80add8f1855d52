package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSignalNotFound        = errors.New("signal not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrRetrievalUnavailable  = errors.New("retrieval engine unavailable")
	ErrEmbeddingsUnavailable = errors.New("embedding provider unavailable")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
