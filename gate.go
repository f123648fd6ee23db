package slateauth

import (
	"context"
	"log/slog"

	"github.com/slatekit/slateauth/permission"
)

// GateOutcome is the decision of [Auth.Authorize].
type GateOutcome int

const (
	// GateAllowed lets the request proceed.
	GateAllowed GateOutcome = iota
	// GateUnauthorized means no session is attached.
	GateUnauthorized
	// GateForbidden means the session lacks a required bit.
	GateForbidden
)

func (o GateOutcome) String() string {
	switch o {
	case GateAllowed:
		return "allowed"
	case GateUnauthorized:
		return "unauthorized"
	case GateForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Authorize checks the session projection against required. An empty
// requirement list always passes. The decision uses the flags held in the
// session, which every flag mutation through [Auth] keeps current.
func (a *Auth) Authorize(ctx context.Context, required ...permission.Flags) GateOutcome {
	outcome := a.authorize(ctx, required)
	switch outcome {
	case GateAllowed:
		a.engine.Metrics().Inc(MetricGateAllowed)
	case GateUnauthorized:
		a.engine.Metrics().Inc(MetricGateUnauthorized)
	case GateForbidden:
		a.engine.Metrics().Inc(MetricGateForbidden)
	}
	return outcome
}

func (a *Auth) authorize(ctx context.Context, required []permission.Flags) GateOutcome {
	if len(required) == 0 {
		return GateAllowed
	}
	_, profile, err := a.session(ctx)
	if err != nil {
		if KindOf(err) == Unavailable {
			a.logger.Error("gate session read failed", slog.Any("error", err))
		}
		return GateUnauthorized
	}
	if !profile.Flags.Satisfies(required...) {
		return GateForbidden
	}
	return GateAllowed
}
