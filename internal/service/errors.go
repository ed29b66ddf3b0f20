package service

import "errors"

var (
	// ErrInvalidQuery is returned when a resolution is requested with
	// neither a case-number nor a debtor-name query.
	ErrInvalidQuery = errors.New("at least one of case number or debtor name is required")

	// ErrInvalidTransition is returned when an assignment transition is
	// attempted on a communication that is not unassigned.
	ErrInvalidTransition = errors.New("communication is not in unassigned state")
)
