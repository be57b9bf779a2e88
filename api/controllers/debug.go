package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/postpilotapp/postpilot-backend/api/responses"
	pkgerrors "github.com/postpilotapp/postpilot-backend/pkg/errors"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

const dispatchReloadTTL = 5 * time.Minute

type flagRaiser interface {
	RaiseFlag(ctx context.Context, name string, ttl time.Duration) error
}

// DebugDispatchReload raises the Redis flag the dispatcher consumes on its
// next tick, clearing its dedupe guard.
func DebugDispatchReload(flags flagRaiser, flagName string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := flags.RaiseFlag(r.Context(), flagName, dispatchReloadTTL); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "raising reload flag"))
			return
		}
		if logg != nil {
			logg.Info(r.Context(), "dispatch reload requested")
		}
		responses.WriteSuccess(w, map[string]bool{"signalled": true})
	}
}
