package domain

import "errors"

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrMediaNotFound   = errors.New("media not found")
	ErrPersistence     = errors.New("persistence failure")
	ErrValidation      = errors.New("invalid listing data")
	ErrForbidden       = errors.New("caller not authorized to perform this action")
	ErrUnauthorized    = errors.New("authentication required")
	ErrCacheMiss       = errors.New("cache miss")
)
