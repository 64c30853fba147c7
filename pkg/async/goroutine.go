package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/platinummonkey/kotoba/pkg/observability"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// The task context is detached from parentCtx's cancellation so that
// request-scoped work can outlive the response, but keeps its values.
//
// Example:
//
//	SafeGo(r.Context(), logger, 5*time.Second, "expired session delete", func(ctx context.Context) error {
//	    return store.DeleteSession(ctx, id)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		if err := Run(context.WithoutCancel(parentCtx), timeout, taskName, fn); err != nil {
			logger.WithError(err).WithField("task", taskName).Error("background task failed")
		}
	}()
}

// Run executes fn synchronously with a timeout. A panic in fn is returned as
// an error.
func Run(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v\n%s", taskName, r, debug.Stack())
		}
	}()

	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s: %w", taskName, err)
	}
	return nil
}
