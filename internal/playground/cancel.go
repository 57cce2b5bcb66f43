package playground

import (
	"context"
	"errors"
)

// ErrPanelDisposed is the cancellation cause of work owned by a removed panel.
var ErrPanelDisposed = errors.New("panel disposed")

// ErrSuperseded is the cancellation cause of a discovery replaced by a newer one.
var ErrSuperseded = errors.New("discovery superseded")

func normalizeCancellationErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPanelDisposed) || errors.Is(err, ErrSuperseded) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}

// IsCancelled reports whether err stems from cancelled panel work rather
// than a real failure.
func IsCancelled(err error) bool {
	err = normalizeCancellationErr(err)
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrPanelDisposed) || errors.Is(err, ErrSuperseded)
}

// newWork derives a cancellable context whose cause is reported by
// context.Cause after cancellation.
func newWork(parent context.Context) (context.Context, context.CancelCauseFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithCancelCause(parent)
}
