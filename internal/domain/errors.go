package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrAlreadyExists          = errors.New("already exists")
	ErrPoolNotInitialized     = errors.New("pool not initialized")
	ErrPoolAlreadyInitialized = errors.New("pool already initialized")
	ErrInvalidFee             = errors.New("invalid fee")
	ErrInvalidTiers           = errors.New("invalid fee tiers")
	ErrLockHeld               = errors.New("lock already held")
)
