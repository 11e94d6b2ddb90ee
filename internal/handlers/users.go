package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fotofeed/apiserver/internal/services"
	"github.com/fotofeed/apiserver/internal/storage"
	"github.com/fotofeed/apiserver/internal/store"
	"github.com/fotofeed/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	maxAvatarBytes  = 2 << 20
	formFieldAvatar = "avatar"
)

// UserHandler provides HTTP handlers for profile management.
type UserHandler struct {
	userService *services.UserService
	storage     *storage.Storage
}

// NewUserHandler constructs a handler with the provided dependencies.
func NewUserHandler(userService *services.UserService, st *storage.Storage) *UserHandler {
	return &UserHandler{
		userService: userService,
		storage:     st,
	}
}

// UserRouter registers profile routes on the given router. Every route
// requires authentication.
func UserRouter(r chi.Router, userService *services.UserService, st *storage.Storage, authMiddleware func(http.Handler) http.Handler) {
	handler := NewUserHandler(userService, st)

	r.Use(authMiddleware)
	r.Put("/update-avatar", handler.UpdateAvatar)
	r.Put("/update-profile", handler.UpdateProfile)
}

// UpdateAvatar stores a new profile picture and records its reference.
func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File[formFieldAvatar]) == 0 {
		writeError(w, http.StatusBadRequest, "no avatar file uploaded")
		return
	}
	fileHeader := r.MultipartForm.File[formFieldAvatar][0]

	data, contentType, err := imageFromHeader(fileHeader, maxAvatarBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := uploadKey(fileHeader.Filename, contentType)
	if err := h.storage.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store avatar")
		return
	}

	user, err := h.userService.UpdateAvatar(r.Context(), claims.UserID, uploadPathPrefix+key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update avatar")
		return
	}

	writeJSON(w, http.StatusOK, AvatarResponse{Avatar: user.Avatar, User: user})
}

// UpdateProfile updates the name and/or bio. At least one field must be
// present in the request.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Name == nil && req.Bio == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			writeValidationError(w, []string{"name cannot be empty"})
			return
		}
		req.Name = &trimmed
	}

	user, err := h.userService.UpdateProfile(r.Context(), claims.UserID, req.Name, req.Bio)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type UpdateProfileRequest struct {
	Name *string `json:"name"`
	Bio  *string `json:"bio"`
}

// AvatarResponse carries the new avatar reference and the updated user.
type AvatarResponse struct {
	Avatar string     `json:"avatar"`
	User   types.User `json:"user"`
}
