package domain

import "errors"

// Error categories shared by services and adapters. Callers wrap them with
// context and classify with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrRouteComputation = errors.New("route computation failed")
	ErrProviderTimeout  = errors.New("routing provider timeout")
	ErrNotFound         = errors.New("not found")
)
