package models

import "errors"

// Domain rule violations, compared with errors.Is at the API boundary.
var (
	ErrClassNotFound            = errors.New("class instance not found")
	ErrClassFull                = errors.New("class is full")
	ErrAlreadyBooked            = errors.New("already booked for this class")
	ErrInsufficientCredits      = errors.New("insufficient credits")
	ErrBookingNotFound          = errors.New("booking not found")
	ErrClassBusy                = errors.New("class is being booked, retry shortly")
	ErrCancellationWindowPassed = errors.New("cancellation window has passed")
	ErrForbidden                = errors.New("forbidden")
	ErrNotSameDay               = errors.New("attendance can only be marked on the class day")
	ErrInvalidTransition        = errors.New("invalid booking status transition")
	ErrTemplateNotFound         = errors.New("schedule template not found")
	ErrPackageNotFound          = errors.New("session package not found")
	ErrCreditCeiling            = errors.New("credit would exceed package session count")
	ErrValidation               = errors.New("invalid request")
)
