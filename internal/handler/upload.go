package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
	"github.com/aryan0dhankhar/productcatalog/internal/service"
)

// multipartOverhead is the room left for multipart headers beyond the file
const multipartOverhead = 1 << 20

// UploadResponse is returned after a successful image upload
type UploadResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Message string `json:"message"`
}

// UploadHandler serves POST /api/upload/image
type UploadHandler struct {
	uploads *service.UploadService
	logger  *slog.Logger
}

func NewUploadHandler(uploads *service.UploadService, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{uploads: uploads, logger: logger}
}

// ServeHTTP reads the multipart field "file" and hands it to the upload service
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxBytes()+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, h.logger, domain.Validation("File size too large.", map[string]string{"file": "too large"}))
			return
		}
		writeError(w, r, h.logger, domain.Validation("No file uploaded", map[string]string{"file": "is required"}))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	url, err := h.uploads.Upload(r.Context(), &service.UploadFile{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Success: true,
		URL:     url,
		Message: "File uploaded successfully",
	})
}
