package common

import "errors"

// The three rejections a submission can surface. Anything else the book
// decides (post-only drop, unknown cancel id) is reported as an outcome,
// not an error.
var (
	// ErrPriceOutOfRange covers price range violations and price or quantity
	// quantization failures.
	ErrPriceOutOfRange = errors.New("price out of range")
	ErrPositionLimit   = errors.New("position limit exceeded")
	ErrRateLimit       = errors.New("rate limit exhausted")
)
