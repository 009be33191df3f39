package orders

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyGroupKey         = errors.New("group key is empty")
	ErrNoItems               = errors.New("no items")
	ErrInvalidQuantity       = errors.New("quantity out of range")
	ErrInvalidPrice          = errors.New("price must not be negative")
	ErrNotFound              = errors.New("not found")
	ErrNothingToDeliver      = errors.New("nothing to deliver")
	ErrConflictOrUnavailable = errors.New("conflict or store unavailable")
	ErrItemNotInBatch        = errors.New("item is not part of the batch")
)

// Unavailable marks a backing-store failure so callers can decide to retry.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConflictOrUnavailable, err)
}

// IsBenign reports failures callers should swallow: the entity may already
// have been resolved by someone else.
func IsBenign(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports input errors that retrying cannot fix.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyGroupKey) ||
		errors.Is(err, ErrNoItems) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrItemNotInBatch)
}
