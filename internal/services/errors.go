package services

import (
	"errors"
	"fmt"

	"carhire/internal/repositories/interfaces"
	"carhire/pkg/docstore"
)

// Error kinds. Every error a service returns to a caller wraps exactly one of them.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrTransientNetwork = errors.New("transient network error")
	ErrStateConflict    = errors.New("state conflict")
)

var (
	ErrMissingContactInfo       = fmt.Errorf("%w: a verified contact phone number is required to share location", ErrStateConflict)
	ErrLocationPermissionDenied = fmt.Errorf("%w: location permission denied", ErrPermissionDenied)
	ErrPositionUnavailable      = fmt.Errorf("%w: position unavailable", ErrTransientNetwork)
	ErrLocationTimeout          = fmt.Errorf("%w: location request timed out", ErrTransientNetwork)
	ErrNotParticipant           = fmt.Errorf("%w: not a participant", ErrPermissionDenied)
	ErrTripNotActive            = fmt.Errorf("%w: trip is not active", ErrStateConflict)
	ErrThreadExpired            = fmt.Errorf("%w: chat thread expired", ErrNotFound)
	ErrAlreadyReferred          = fmt.Errorf("%w: user was already referred", ErrStateConflict)
	ErrPaymentNotVerified       = fmt.Errorf("%w: payment could not be verified", ErrPermissionDenied)
	ErrInvalidOTP               = fmt.Errorf("%w: invalid or expired code", ErrValidation)
	ErrTooManyAttempts          = fmt.Errorf("%w: too many attempts", ErrStateConflict)

	// ErrTrackingLinkExpired covers absent, mismatched and elapsed tokens alike.
	ErrTrackingLinkExpired = errors.New("tracking link expired")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(resource string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, resource)
}

// storeFailure classifies a repository error into a kind while keeping the cause.
func storeFailure(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, interfaces.ErrNotFound), errors.Is(err, docstore.ErrNotFound):
		return fmt.Errorf("%w: %s: %w", ErrNotFound, op, err)
	case docstore.IsTransient(err):
		return fmt.Errorf("%w: failed to %s: %w", ErrTransientNetwork, op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// Kind returns the kind err wraps, or nil.
func Kind(err error) error {
	for _, kind := range []error{ErrPermissionDenied, ErrNotFound, ErrValidation, ErrTransientNetwork, ErrStateConflict} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
