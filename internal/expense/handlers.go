package expense

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/zombor/xpense/internal/bill"
	"github.com/zombor/xpense/internal/storage"
)

// maxFormSize bounds multipart uploads (high-resolution phone photos)
const maxFormSize = int64(50 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrStorageUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrTitleRequired),
		errors.Is(err, ErrAmountRequired),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrNoParticipants),
		errors.Is(err, bill.ErrEmptyImage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// readFormFile reads an optional file field; a missing field yields nil data
func readFormFile(r *http.Request, field string) ([]byte, string, error) {
	f, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, header.Header.Get("Content-Type"), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalyzeBill uploads and analyzes a bill image without saving an expense
func (s *Server) handleAnalyzeBill(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	data, contentType, err := readFormFile(r, "file")
	if err != nil {
		slog.Error("Error reading file from form", "error", err)
		writeError(w, http.StatusBadRequest, "Error reading file")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "No valid file provided")
		return
	}

	result, err := s.service.AnalyzeBill(r.Context(), data, contentType)
	if err != nil {
		slog.Error("Error analyzing bill", "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleCreateExpense creates an expense from a multipart form
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	amount, err := ParseAmount(r.FormValue("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	image, contentType, err := readFormFile(r, "bill_image")
	if err != nil {
		slog.Error("Error reading bill image", "error", err)
		writeError(w, http.StatusBadRequest, "Error reading bill image")
		return
	}

	in := NewExpense{
		Title:        r.FormValue("title"),
		Amount:       amount,
		Description:  r.FormValue("description"),
		Category:     r.FormValue("category"),
		Participants: r.MultipartForm.Value["participants"],
		BillImage:    image,
		ContentType:  contentType,
	}

	expense, err := s.service.CreateExpense(r.Context(), currentUser(r), in)
	if err != nil {
		slog.Error("Error creating expense", "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, expense)
}

// handleListExpenses returns a page of expenses, optionally only those a
// participant shares in
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := ListFilter{Participant: strings.TrimSpace(query.Get("participant"))}

	var err error
	if filter.Skip, err = queryInt(query.Get("skip"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid skip")
		return
	}
	if filter.Limit, err = queryInt(query.Get("limit"), DefaultListLimit); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	expenses, err := s.service.ListExpenses(filter)
	if err != nil {
		slog.Error("Error listing expenses", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

// queryInt parses a non-negative integer query value
func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid value %q", v)
	}
	return n, nil
}

// handleGetExpense returns a single expense
func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := s.service.GetExpense(r.PathValue("id"))
	if err != nil {
		code := statusFor(err)
		if code == http.StatusNotFound {
			writeError(w, code, "Expense not found")
			return
		}
		slog.Error("Error getting expense", "error", err)
		writeError(w, code, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

// handleDeleteExpense deletes an expense created by the current user
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteExpense(r.PathValue("id"), currentUser(r)); err != nil {
		slog.Error("Error deleting expense", "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetBillFile serves a locally stored bill image
func (s *Server) handleGetBillFile(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	data, err := s.files.Get(key)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", storage.ContentTypeFor(key))
	w.Write(data)
}
