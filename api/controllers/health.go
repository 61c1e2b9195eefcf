package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/monkelabs/monke-backend/api/responses"
	"github.com/monkelabs/monke-backend/pkg/config"
	"github.com/monkelabs/monke-backend/pkg/logger"
)

const readyProbeTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthLive reports process liveness.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Monke-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness by probing the backing stores.
func HealthReady(cfg *config.Config, logg *logger.Logger, db pinger, redis pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Monke-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		probe := func(name string, p pinger) {
			if p == nil {
				checks[name] = "skipped"
				return
			}
			if err := p.Ping(ctx); err != nil {
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "readiness probe failed", err)
				}
				checks[name] = "down"
				healthy = false
				return
			}
			checks[name] = "ok"
		}
		probe("database", db)
		probe("redis", redis)

		if !healthy {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, checks)
			return
		}
		responses.WriteSuccess(w, checks)
	}
}
