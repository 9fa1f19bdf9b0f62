package domain

import "errors"

var (
	ErrOrderNotFound      = errors.New("order_not_found")
	ErrNotPending         = errors.New("order_not_pending")
	ErrEmptyChannels      = errors.New("empty_channel_set")
	ErrInvalidUser        = errors.New("invalid_user")
	ErrCodeSpaceExhausted = errors.New("reference_code_space_exhausted")
)
