package errors

import (
	"errors"
	"fmt"
)

var (
	ErrFetch        = errors.New("fetch failed")
	ErrParse        = errors.New("no usable content")
	ErrEmbedding    = errors.New("embedding failed")
	ErrSynthesis    = errors.New("insight synthesis failed")
	ErrAnswer       = errors.New("answer generation failed")
	ErrNotFound     = errors.New("not found")
	ErrInvalid      = errors.New("invalid")
	ErrUnavailable  = errors.New("ai provider unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTooMany      = errors.New("too many requests")
)

// Wrap tags err with kind while keeping both inspectable through errors.Is.
func Wrap(kind error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}
