package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger is anything whose reachability can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleHealth reports 200 while the database answers and 503 otherwise.
//
// HTTP: GET /healthz
func HandleHealth(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			Respond[any](w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		Respond[any](w, http.StatusOK, "ok")
	}
}
