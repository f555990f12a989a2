package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrUnresolvablePhone is an input error: the caller-supplied phone
	// cannot be normalized to a canonical form.
	ErrUnresolvablePhone = errors.New("unresolvable phone number")

	// ErrSourceDegraded marks a backing source (memory store or CRM) that
	// could not be reached. It is distinct from a clean "not found".
	ErrSourceDegraded = errors.New("source degraded")

	// ErrInconclusiveMiss marks a CRM miss where some phone formats could
	// not be checked. The customer may exist under a format that failed.
	ErrInconclusiveMiss = errors.New("inconclusive miss")

	ErrCustomerCreateFailed = errors.New("customer creation failed")
	ErrInvalidUpstreamData  = errors.New("invalid upstream data")
	ErrNoGreetingScenario   = errors.New("no greeting scenario matched")
)
