package service

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"

	"github.com/3tharva/split-the-tab-ai/internal/middleware"
	"github.com/3tharva/split-the-tab-ai/internal/receipt"
	"github.com/3tharva/split-the-tab-ai/pkg/billrpc"
)

// ReceiptFormField is the multipart field carrying the receipt image.
const ReceiptFormField = "receipt"

// multipartSlack covers multipart framing around the file itself.
const multipartSlack = 1 << 20

// HTTPRoutes returns the plain-HTTP endpoints, meant to be mounted under /api.
// uploadLimit wraps the upload route, typically with a rate limiter.
func (s *BillService) HTTPRoutes(uploadLimit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireSessionHTTP(s.tokens))
	if uploadLimit != nil {
		r.With(uploadLimit).Post("/sessions/{id}/receipt", s.UploadReceipt)
	} else {
		r.Post("/sessions/{id}/receipt", s.UploadReceipt)
	}
	r.Get("/sessions/{id}/summary.txt", s.DownloadSummary)
	return r
}

// UploadReceipt accepts a multipart upload and ingests it like IngestReceipt.
func (s *BillService) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if middleware.GetSessionID(r.Context()) != sessionID {
		writeError(w, connect.NewError(connect.CodePermissionDenied, ErrSessionMismatch))
		return
	}

	maxBytes := s.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = receipt.DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartSlack)

	file, header, err := r.FormFile(ReceiptFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, toConnectError(receipt.ErrTooLarge))
			return
		}
		writeError(w, connect.NewError(connect.CodeInvalidArgument, errors.New("receipt file is required")))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, connect.NewError(connect.CodeInvalidArgument, err))
		return
	}

	session, err := s.ingest(r.Context(), sessionID, receipt.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(w, toConnectError(err))
		return
	}

	writeJSON(w, http.StatusOK, billrpc.SessionResponse{Session: toSessionMsg(session)})
}

// DownloadSummary serves the text summary as a file download.
func (s *BillService) DownloadSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if middleware.GetSessionID(r.Context()) != sessionID {
		writeError(w, connect.NewError(connect.CodePermissionDenied, ErrSessionMismatch))
		return
	}

	text, err := s.summary(r.Context(), sessionID)
	if err != nil {
		writeError(w, toConnectError(err))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="split-the-tab-summary.txt"`)
	if _, err := io.WriteString(w, text); err != nil {
		slog.Warn("Failed to write summary", "session_id", sessionID, "error", err)
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	code := connect.CodeOf(err)
	msg := err.Error()
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		msg = connectErr.Message()
	}
	writeJSON(w, httpStatus(code), errorBody{Code: code.String(), Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
