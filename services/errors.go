package services

import (
	"errors"

	"civicfix-be/repository"
)

var (
	// ErrNotFound mirrors the repository sentinel so handlers only import
	// the services error set.
	ErrNotFound = repository.ErrNotFound
	// ErrNotAuthorized is returned when the caller lacks the admin capability.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrInvalidToken covers a missing, mismatched or already-consumed
	// confirmation token, and a token presented after the workflow moved on.
	ErrInvalidToken = errors.New("invalid or expired confirmation token")
	// ErrInvalidRequest covers malformed responses and transitions that are
	// not in the lifecycle table for the issue's current state.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrOTPExpired is returned when no one-time code is on file for the
	// email, either because none was requested or it aged out.
	ErrOTPExpired = errors.New("verification code expired")
	// ErrOTPInvalid is returned when the presented code does not match.
	ErrOTPInvalid = errors.New("invalid verification code")
	// ErrNotification marks a failed email dispatch. Status transitions
	// never roll back on it; it is surfaced as a warning.
	ErrNotification = errors.New("notification dispatch failed")
)
