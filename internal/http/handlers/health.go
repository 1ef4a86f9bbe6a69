package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// Health reports ok when every dependency check passes and 503 with the names
// of the failing ones otherwise.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	var failing []string
	for name, check := range a.Checks {
		if err := check(ctx); err != nil {
			a.logger().Warn().Err(err).Str("check", name).Msg("http: health check failed")
			failing = append(failing, name)
		}
	}
	if len(failing) > 0 {
		sort.Strings(failing)
		a.json(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "failing": failing})
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
