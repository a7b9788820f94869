// internal/fees/handler.go
package fees

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the dues endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/pending", h.handlePending)
	r.Get("/member/{memberID}", h.handleMemberDues)
	r.Get("/export.csv", h.handleExportCSV)
	r.Post("/payments", h.handleRecordPayment)
	r.Delete("/payments/{dueID}", h.handleDeletePayment)
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DueID       string `json:"dueId"`
		MemberID    string `json:"memberId"`
		MemberName  string `json:"memberName"`
		PeriodStart string `json:"periodStart"`
		PeriodEnd   string `json:"periodEnd"`
		Amount      int    `json:"amount"`
		PaymentDate string `json:"paymentDate"`
		ChainNext   bool   `json:"chainNext"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.service.RecordPayment(r.Context(), PaymentInput{
		DueID:       req.DueID,
		MemberID:    req.MemberID,
		MemberName:  req.MemberName,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		Amount:      req.Amount,
		PaymentDate: req.PaymentDate,
		ChainNext:   req.ChainNext,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeRecord(w, rec)
}

func (h *Handler) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePayment(r.Context(), chi.URLParam(r, "dueID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Listing reconciles first: overdue classification is corrected lazily on
// every read of the collection.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Reconcile(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	records, err := h.service.AllDues(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeRecords(w, records)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Reconcile(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	records, err := h.service.PendingDues(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeRecords(w, records)
}

func (h *Handler) handleMemberDues(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Reconcile(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	records, err := h.service.MemberDues(r.Context(), chi.URLParam(r, "memberID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeRecords(w, records)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Reconcile(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	records, err := h.service.AllDues(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="dues.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"Receipt", "Member", "Period Start", "Period End", "Amount", "Due Date", "Status", "Paid Date"})
	for _, rec := range records {
		cw.Write([]string{
			rec.ReceiptNumber,
			rec.MemberName,
			rec.PeriodStart,
			rec.PeriodEnd,
			strconv.Itoa(rec.Amount),
			rec.DueDate,
			string(rec.Status),
			rec.PaidDate,
		})
	}
	cw.Flush()
}

func writeRecord(w http.ResponseWriter, rec *FeeRecord) {
	type out struct {
		ID string `json:"id"`
		FeeRecord
	}
	json.NewEncoder(w).Encode(out{ID: rec.ID, FeeRecord: *rec})
}

func writeRecords(w http.ResponseWriter, records []FeeRecord) {
	type out struct {
		ID string `json:"id"`
		FeeRecord
	}
	payload := make([]out, 0, len(records))
	for _, rec := range records {
		payload = append(payload, out{ID: rec.ID, FeeRecord: rec})
	}
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDueNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrAlreadyPaid), errors.Is(err, ErrDuplicatePeriod):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrInvalidPayment):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
