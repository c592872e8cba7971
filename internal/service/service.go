// Package service implements flight search, airport lookup and delay-risk assessment
// on top of the store, cache and weather client packages.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/flight-risk-service/internal/store"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
)

// loggerFromContext extracts a zap.Logger from request context if present.
// Returns nil if logger is not found or context is invalid.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

func invalidArgument(field string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidArgument, field, err)
}

// translateStoreError maps store sentinels onto the service's error vocabulary.
// Anything unrecognised is returned unchanged and surfaces as an internal error.
func translateStoreError(subject string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", subject, ErrNotFound)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%s already exists: %w", subject, ErrConflict)
	case errors.Is(err, store.ErrInvalidReference):
		return fmt.Errorf("%w: %s references an unknown airport or aircraft", ErrInvalidArgument, subject)
	}
	return err
}
