// internal/attendance/handler.go
package attendance

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the attendance endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/entry", h.handleEntry)
	r.Post("/exit", h.handleExit)
	r.Get("/today", h.handleToday)
	r.Get("/member/{memberID}", h.handleMember)
	r.Get("/member/{memberID}/current", h.handleCurrentSession)
	r.Get("/monthly", h.handleMonthly)
	r.Get("/export.csv", h.handleExportCSV)
}

func (h *Handler) handleEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID   string `json:"memberId"`
		MemberName string `json:"memberName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.service.MarkEntry(r.Context(), req.MemberID, req.MemberName)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (h *Handler) handleExit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecordID string `json:"recordId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.service.MarkExit(r.Context(), req.RecordID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRecord(w, rec)
}

func (h *Handler) handleToday(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.TodayAttendance(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeRecords(w, records)
}

func (h *Handler) handleMember(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.MemberAttendance(r.Context(), chi.URLParam(r, "memberID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeRecords(w, records)
}

func (h *Handler) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.CurrentSession(r.Context(), chi.URLParam(r, "memberID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if rec == nil {
		http.Error(w, "no open session", http.StatusNotFound)
		return
	}
	writeRecord(w, rec)
}

func (h *Handler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	year, errY := strconv.Atoi(r.URL.Query().Get("year"))
	month, errM := strconv.Atoi(r.URL.Query().Get("month"))
	if errY != nil || errM != nil || month < 1 || month > 12 {
		http.Error(w, "year and month query parameters are required", http.StatusBadRequest)
		return
	}

	records, err := h.service.MonthlyAttendance(r.Context(), year, month)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRecords(w, records)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var records []Record
	var err error
	if memberID := r.URL.Query().Get("memberId"); memberID != "" {
		records, err = h.service.MemberAttendance(r.Context(), memberID)
	} else {
		// No filter: export the month, defaulting to the current one.
		now := time.Now()
		year, month := now.Year(), int(now.Month())
		if y := r.URL.Query().Get("year"); y != "" {
			year, _ = strconv.Atoi(y)
		}
		if m := r.URL.Query().Get("month"); m != "" {
			month, _ = strconv.Atoi(m)
		}
		records, err = h.service.MonthlyAttendance(r.Context(), year, month)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="attendance.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"Date", "Member", "Entry Time", "Exit Time", "Duration (mins)"})
	for _, rec := range records {
		duration := ""
		if rec.Duration != nil {
			duration = strconv.Itoa(*rec.Duration)
		}
		cw.Write([]string{rec.Date, rec.MemberName, rec.EntryTime, rec.ExitTime, duration})
	}
	cw.Flush()
}

func writeRecord(w http.ResponseWriter, rec *Record) {
	type out struct {
		ID string `json:"id"`
		Record
	}
	json.NewEncoder(w).Encode(out{ID: rec.ID, Record: *rec})
}

func writeRecords(w http.ResponseWriter, records []Record) {
	type out struct {
		ID string `json:"id"`
		Record
	}
	payload := make([]out, 0, len(records))
	for _, rec := range records {
		payload = append(payload, out{ID: rec.ID, Record: rec})
	}
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRecordNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrOpenSession), errors.Is(err, ErrSessionClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
