package services

import "errors"

// Service errors
var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrInvalidSubmission  = errors.New("invalid submission")
	ErrNoLineItems        = errors.New("no line items")
)
