package handler

import (
	"net/http"
	"time"

	"github.com/web3-frozen/pool-dashboard/internal/store"
)

func Health(start time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		respondOK(w, map[string]any{
			"status":         "ok",
			"uptime_seconds": int(time.Since(start).Seconds()),
		})
	}
}

func Ready(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Ping(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "database not ready")
			return
		}
		respondOK(w, map[string]string{"status": "ready"})
	}
}
