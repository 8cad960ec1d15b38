package gateway

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by every public operation while the merchant
// credentials are incomplete. No outbound provider call is made in that
// state.
var ErrNotConfigured = errors.New("gateway: payment method not configured")

// ErrMissingEntity marks a lookup of an order or customer the host no
// longer knows about.
var ErrMissingEntity = errors.New("gateway: required entity not found")

// perform wraps an operation with the shared fault policy: a configuration
// guard up front, panic containment, and error logging. Callers always get
// a (zero, error) pair, never a panic.
func perform[T any](ctx context.Context, m *Manager, op string, fn func(context.Context) (T, error)) (result T, err error) {
	log := m.Log.With().Str("operation", op).Logger()
	if !m.Configured() {
		log.Warn().Msg("payment method is not configured")
		return result, ErrNotConfigured
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("gateway: %s panicked: %v", op, r)
			log.Error().Err(err).Msg("operation panicked")
			var zero T
			result = zero
		}
	}()
	result, err = fn(ctx)
	if err != nil {
		log.Error().Err(err).Msg("operation failed")
		var zero T
		return zero, err
	}
	return result, nil
}
