package httpx

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck reports whether a dependency can serve traffic.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

const healthCheckTimeout = 2 * time.Second

type healthResponse struct {
	Status string            `json:"status"`
	Failed map[string]string `json:"failed,omitempty"`
}

// healthHandler answers readiness/liveness probes. With no checks it always
// reports ok; a failing check turns the response into a 503.
func healthHandler(checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		code := http.StatusOK

		if len(checks) > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			for _, c := range checks {
				if err := c.Check(ctx); err != nil {
					if resp.Failed == nil {
						resp.Failed = make(map[string]string)
					}
					resp.Failed[c.Name] = err.Error()
				}
			}
		}
		if len(resp.Failed) > 0 {
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
		}

		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			return
		}
		WriteJSON(w, code, resp)
	}
}
