// internal/activity/handler.go
package activity

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const defaultDisplayWindow = 50

type Handler struct {
	log *Log
}

func NewHandler(log *Log) *Handler {
	return &Handler{log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleRecent)
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultDisplayWindow
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	activities, err := h.log.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type out struct {
		ID string `json:"id"`
		Activity
	}
	payload := make([]out, 0, len(activities))
	for _, a := range activities {
		payload = append(payload, out{ID: a.ID, Activity: a})
	}
	json.NewEncoder(w).Encode(payload)
}
