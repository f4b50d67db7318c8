package models

import "errors"

var (
	// ErrInsufficientHistory marks an entity skipped for having too few days.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrNoCandidateSucceeded marks an entity where every technique failed.
	ErrNoCandidateSucceeded = errors.New("no candidate succeeded")
	ErrDiscovery            = errors.New("entity discovery failed")
	ErrPersistence          = errors.New("forecast persistence failed")
	ErrRunInProgress        = errors.New("a forecast run is already in progress")
	ErrRunNotFound          = errors.New("forecast run not found")
)

// ErrInvalidRequest wraps validation failures of a RunRequest.
var ErrInvalidRequest = errors.New("invalid forecast request")
