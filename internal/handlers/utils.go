package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/mail"
	"path/filepath"
	"strings"

	"github.com/fotofeed/apiserver/internal/auth"
	"github.com/google/uuid"
)

type contextKey string

const contextClaimsKey contextKey = "claims"

// uploadPathPrefix prefixes every blob reference handed out by the API.
const uploadPathPrefix = "/uploads/"

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ErrorResponse is a simple error payload. Fields carries per-field
// validation messages when present.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func claimsFromContext(ctx context.Context) (auth.Claims, error) {
	claims, ok := ctx.Value(contextClaimsKey).(auth.Claims)
	if !ok || claims.UserID < 1 {
		return auth.Claims{}, errors.New("missing claims")
	}
	return claims, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeValidationError(w http.ResponseWriter, fields []string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fields})
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// imageFromHeader opens an uploaded file, enforces the size limit and
// image content types, and returns its bytes plus content type.
func imageFromHeader(fileHeader *multipart.FileHeader, maxBytes int64) ([]byte, string, error) {
	contentType := fileHeader.Header.Get("Content-Type")
	if _, ok := allowedImageTypes[contentType]; !ok {
		return nil, "", errors.New("file must be a jpeg, png, gif, or webp image")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", errors.New("failed to read upload")
	}
	data, err := readFileLimited(file, maxBytes)
	_ = file.Close()
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}

// uploadKey builds a fresh object key preserving the upload's extension.
func uploadKey(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = allowedImageTypes[contentType]
	}
	return uuid.NewString() + ext
}
