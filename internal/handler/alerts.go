package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/pool-dashboard/internal/store"
)

func Subscribe(s *store.Store) http.HandlerFunc {
	type request struct {
		Email     string   `json:"email"`
		PoolID    *string  `json:"pool_id"`
		AlertType string   `json:"alert_type"`
		Threshold *float64 `json:"threshold"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if _, err := mail.ParseAddress(req.Email); err != nil {
			respondError(w, http.StatusBadRequest, "valid email required")
			return
		}
		if !store.ValidAlertType(req.AlertType) {
			respondError(w, http.StatusBadRequest, "invalid alert_type")
			return
		}
		if req.Threshold != nil && *req.Threshold <= 0 {
			respondError(w, http.StatusBadRequest, "threshold must be positive")
			return
		}
		if req.PoolID != nil && *req.PoolID == "" {
			req.PoolID = nil
		}
		if req.PoolID != nil {
			if _, err := s.GetPool(r.Context(), *req.PoolID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					respondError(w, http.StatusNotFound, "pool not found")
					return
				}
				respondError(w, http.StatusInternalServerError, "failed to verify pool")
				return
			}
		}

		sub := store.AlertSubscription{
			Email:     req.Email,
			PoolID:    req.PoolID,
			AlertType: req.AlertType,
			Threshold: req.Threshold,
			IsActive:  true,
		}
		switch err := s.CreateSubscription(r.Context(), &sub); {
		case errors.Is(err, store.ErrDuplicate):
			respondError(w, http.StatusConflict, "subscription already exists")
			return
		case err != nil:
			respondError(w, http.StatusInternalServerError, "failed to create subscription")
			return
		}
		respondCreated(w, sub, "subscription created")
	}
}

func ManageSubscriptions(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs, err := s.SubscriptionsByEmail(r.Context(), chi.URLParam(r, "email"))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to list subscriptions")
			return
		}
		if subs == nil {
			subs = []store.SubscriptionWithPool{}
		}
		respondOK(w, subs)
	}
}

func AlertHistoryByEmail(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 20, 100)
		offset := queryInt(r, "offset", 0, 1<<30)

		hist, total, err := s.AlertHistoryByEmail(r.Context(), chi.URLParam(r, "email"), limit, offset)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load alert history")
			return
		}
		if hist == nil {
			hist = []store.AlertHistory{}
		}
		respondPaginated(w, hist, newPagination(limit, offset, total))
	}
}

func UpdateSubscription(s *store.Store) http.HandlerFunc {
	type request struct {
		Threshold *float64 `json:"threshold"`
		IsActive  *bool    `json:"is_active"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Threshold == nil && req.IsActive == nil {
			respondError(w, http.StatusBadRequest, "nothing to update")
			return
		}
		if req.Threshold != nil && *req.Threshold <= 0 {
			respondError(w, http.StatusBadRequest, "threshold must be positive")
			return
		}

		sub, err := s.UpdateSubscription(r.Context(), chi.URLParam(r, "id"), req.Threshold, req.IsActive)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "subscription not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to update subscription")
			return
		}
		respondOK(w, sub)
	}
}

func DeleteSubscription(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.DeleteSubscription(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "subscription not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to delete subscription")
			return
		}
		writeEnvelope(w, http.StatusOK, envelope{Success: true, Message: "subscription deleted"})
	}
}
