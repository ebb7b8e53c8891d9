package models

import "errors"

// Custom errors
var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicateKey        = errors.New("duplicate key violation")
	ErrInvalidSnapshot     = errors.New("snapshot has missing or invalid prices")
	ErrInvalidStake        = errors.New("stake must be positive")
	ErrInsufficientCapital = errors.New("insufficient capital")
	ErrDuplicatePosition   = errors.New("open position already exists for market and side")
	ErrDCALimitReached     = errors.New("dca add-on limit reached")
)
