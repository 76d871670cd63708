package subscriptions

import "errors"

// Repository errors.
var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// Validation errors.
var (
	ErrInvalidUser = errors.New("invalid user id")
	ErrInvalidItem = errors.New("invalid item")
)
