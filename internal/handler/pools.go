package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/pool-dashboard/internal/store"
)

const maxComparePools = 5

func ListPools(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pools, err := s.ActivePoolsWithStats(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to list pools")
			return
		}
		if pools == nil {
			pools = []store.PoolWithStats{}
		}
		respondOK(w, pools)
	}
}

func GetPool(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pool, err := s.GetPoolWithStats(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "pool not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load pool")
			return
		}
		respondOK(w, pool)
	}
}

// PoolHistory serves a pool's statistics series, oldest first.
// ?period=24h|7d|30d (default 24h), ?limit caps the row count.
func PoolHistory(s *store.Store) http.HandlerFunc {
	periods := map[string]time.Duration{
		"24h": 24 * time.Hour,
		"7d":  7 * 24 * time.Hour,
		"30d": 30 * 24 * time.Hour,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := s.GetPool(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "pool not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "failed to load pool")
			return
		}

		period, ok := periods[r.URL.Query().Get("period")]
		if !ok {
			period = periods["24h"]
		}
		limit := queryInt(r, "limit", 500, 2000)

		stats, err := s.StatisticsSince(r.Context(), id, time.Now().UTC().Add(-period), limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load history")
			return
		}
		if stats == nil {
			stats = []store.PoolStatistic{}
		}
		respondOK(w, stats)
	}
}

// ComparePools returns up to five pools with a recommendation score appended.
func ComparePools(s *store.Store) http.HandlerFunc {
	type scoredPool struct {
		store.PoolWithStats
		Score int `json:"recommendation_score"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.URL.Query().Get("pools"))
		if raw == "" {
			respondError(w, http.StatusBadRequest, "pools parameter required")
			return
		}
		ids := strings.Split(raw, ",")
		if len(ids) > maxComparePools {
			respondError(w, http.StatusBadRequest, "at most 5 pools can be compared")
			return
		}

		result := make([]scoredPool, 0, len(ids))
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			pool, err := s.GetPoolWithStats(r.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "pool not found: "+id)
				return
			}
			if err != nil {
				respondError(w, http.StatusInternalServerError, "failed to load pool")
				return
			}
			result = append(result, scoredPool{PoolWithStats: *pool, Score: scorePool(*pool)})
		}
		respondOK(w, result)
	}
}

func PoolBlocks(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := s.GetPool(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "pool not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "failed to load pool")
			return
		}

		limit := queryInt(r, "limit", 20, 100)
		offset := queryInt(r, "offset", 0, 1<<30)

		blocks, total, err := s.ListBlocks(r.Context(), id, limit, offset)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load blocks")
			return
		}
		if blocks == nil {
			blocks = []store.Block{}
		}
		respondPaginated(w, blocks, newPagination(limit, offset, total))
	}
}

// queryInt parses a non-negative integer query parameter with a default and
// an upper bound.
func queryInt(r *http.Request, key string, def, max int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
