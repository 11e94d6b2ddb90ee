package handlers

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/fotofeed/apiserver/internal/storage"
	"github.com/go-chi/chi/v5"
)

// UploadHandler streams stored blobs back out under /uploads.
type UploadHandler struct {
	storage *storage.Storage
}

// NewUploadHandler constructs a handler over the blob store.
func NewUploadHandler(st *storage.Storage) *UploadHandler {
	return &UploadHandler{storage: st}
}

// UploadRouter registers the blob download route on the given router.
func UploadRouter(r chi.Router, st *storage.Storage) {
	handler := NewUploadHandler(st)

	r.Get("/{key}", handler.GetObject)
}

// GetObject streams one stored object to the client.
func (h *UploadHandler) GetObject(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" || strings.Contains(key, "..") {
		writeError(w, http.StatusBadRequest, "invalid object key")
		return
	}

	object, err := h.storage.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "object not found")
		return
	}
	defer object.Close()

	if contentType := mime.TypeByExtension(filepath.Ext(key)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if _, err := io.Copy(w, object); err != nil {
		// Headers are already out; nothing left to report to the client.
		return
	}
}
