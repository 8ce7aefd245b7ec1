package domain

import "errors"

var (
	// Common domain errors
	ErrJobNotFound        = errors.New("job not found")
	ErrUnknownSession     = errors.New("unknown session")
	ErrJobAlreadyFinished = errors.New("job already finished")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNoItems            = errors.New("reading has no cards")
)
