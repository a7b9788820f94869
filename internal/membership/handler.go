// internal/membership/handler.go
package membership

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the member endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.handleAddMember)
	r.Get("/", h.handleListMembers)
	r.Get("/{memberID}", h.handleGetMember)
	r.Put("/{memberID}", h.handleUpdateMember)
	r.Delete("/{memberID}", h.handleRemoveMember)
}

// AuthRoutes mounts login and password-reset endpoints.
func (h *Handler) AuthRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/password-reset", h.handleCreateReset)
	r.Post("/password-reset/confirm", h.handleConfirmReset)
}

type memberRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	JoinDate     string `json:"joinDate"`
	SeatNumber   string `json:"seatNumber"`
	LockerNumber string `json:"lockerNumber"`
	Shift        string `json:"shift"`
	MonthlyFee   int    `json:"monthlyFee"`
	ProfilePic   string `json:"profilePic"`
	Password     string `json:"password"`
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	member, err := h.service.AddMember(r.Context(), AddMemberInput{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Address:      req.Address,
		JoinDate:     req.JoinDate,
		SeatNumber:   req.SeatNumber,
		LockerNumber: req.LockerNumber,
		Shift:        req.Shift,
		MonthlyFee:   req.MonthlyFee,
		ProfilePic:   req.ProfilePic,
		Password:     req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeMember(w, member)
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	type out struct {
		ID string `json:"id"`
		Member
	}
	payload := make([]out, 0, len(members))
	for _, m := range members {
		payload = append(payload, out{ID: m.ID, Member: m})
	}
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.service.GetMember(r.Context(), chi.URLParam(r, "memberID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMember(w, member)
}

func (h *Handler) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         *string `json:"name"`
		Email        *string `json:"email"`
		Phone        *string `json:"phone"`
		Address      *string `json:"address"`
		SeatNumber   *string `json:"seatNumber"`
		LockerNumber *string `json:"lockerNumber"`
		Shift        *string `json:"shift"`
		MonthlyFee   *int    `json:"monthlyFee"`
		Status       *string `json:"status"`
		ProfilePic   *string `json:"profilePic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := h.service.UpdateMember(r.Context(), chi.URLParam(r, "memberID"), UpdateMemberInput{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Address:      req.Address,
		SeatNumber:   req.SeatNumber,
		LockerNumber: req.LockerNumber,
		Shift:        req.Shift,
		MonthlyFee:   req.MonthlyFee,
		Status:       req.Status,
		ProfilePic:   req.ProfilePic,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveMember(r.Context(), chi.URLParam(r, "memberID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	member, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMember(w, member)
}

func (h *Handler) handleCreateReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The token would be delivered out of band; the response only
	// acknowledges, without revealing whether the email exists.
	if _, err := h.service.CreateResetToken(r.Context(), req.Email); err != nil && !errors.Is(err, ErrMemberNotFound) {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeMember(w http.ResponseWriter, member *Member) {
	type out struct {
		ID string `json:"id"`
		Member
	}
	json.NewEncoder(w).Encode(out{ID: member.ID, Member: *member})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMemberNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidMember), errors.Is(err, ErrResetTokenInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInvalidCredentials):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, ErrRateLimited):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
