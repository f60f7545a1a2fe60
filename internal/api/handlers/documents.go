package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/ragdesk/internal/apperr"
	"github.com/nikhilbhutani/ragdesk/internal/document"
)

type DocumentHandler struct {
	svc      *document.Service
	maxBytes int64
}

// NewDocumentHandler accepts uploads of up to maxFileMB plus 1MB of multipart
// overhead. The size rule itself is enforced by validation.
func NewDocumentHandler(svc *document.Service, maxFileMB int) *DocumentHandler {
	return &DocumentHandler{svc: svc, maxBytes: int64(maxFileMB+1) << 20}
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Code: CodeBadRequest, Message: "upload exceeds size limit"})
			return
		}
		writeError(w, r, fmt.Errorf("invalid multipart form: %w", apperr.ErrBadRequest))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("file required: %w", apperr.ErrBadRequest))
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		writeError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	task, err := h.svc.CreateTask(r.Context(), header.Filename, buf.Bytes())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.svc.GetTask(r.Context(), chi.URLParam(r, "taskId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}
