package slateauth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/slatekit/slateauth/internal/rate"
)

// The throttle fails open: an unreachable Redis never blocks a sign-in.

func (e *Engine) throttleCheck(ctx context.Context, username string) error {
	if e.throttle == nil {
		return nil
	}
	err := e.throttle.Check(ctx, username)
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrRateLimited
	}
	e.throttleError("check", username, err)
	return nil
}

func (e *Engine) throttleFail(ctx context.Context, username string) {
	if e.throttle == nil {
		return
	}
	e.throttleError("fail", username, e.throttle.Fail(ctx, username))
}

func (e *Engine) throttleReset(ctx context.Context, username string) {
	if e.throttle == nil {
		return
	}
	e.throttleError("reset", username, e.throttle.Reset(ctx, username))
}

func (e *Engine) throttleError(op, username string, err error) {
	if err == nil {
		return
	}
	e.metrics.Inc(MetricThrottleUnavailable)
	e.logger.Warn("sign-in throttle unavailable",
		slog.String("op", op),
		slog.String("username", username),
		slog.Any("error", err),
	)
}

// SignInAttempts reports the failed sign-ins counted for username in the
// current throttle window. It returns 0 when the throttle is disabled.
func (e *Engine) SignInAttempts(ctx context.Context, username string) (int, error) {
	if e == nil || e.throttle == nil {
		return 0, nil
	}
	return e.throttle.Attempts(ctx, username)
}
