package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fotofeed/apiserver/internal/services"
	"github.com/fotofeed/apiserver/internal/store"
	"github.com/fotofeed/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const maxCommentLength = 1000

// CommentHandler provides HTTP handlers for comments.
type CommentHandler struct {
	commentService *services.CommentService
}

// NewCommentHandler constructs a handler with the provided service.
func NewCommentHandler(commentService *services.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// CommentRouter registers comment routes on the given router. Every route
// requires authentication.
func CommentRouter(r chi.Router, commentService *services.CommentService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewCommentHandler(commentService)

	r.Use(authMiddleware)
	r.Post("/", handler.CreateComment)
	r.Patch("/{commentID}", handler.UpdateComment)
	r.Delete("/{commentID}", handler.DeleteComment)
}

// CreateComment adds a comment to an existing post.
func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	text, fields := validateCommentText(req.Text)
	if req.PostID < 1 {
		fields = append(fields, "post id is required")
	}
	if len(fields) > 0 {
		writeValidationError(w, fields)
		return
	}

	comment, err := h.commentService.Create(r.Context(), claims.UserID, req.PostID, text)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create comment")
		return
	}

	writeJSON(w, http.StatusCreated, CommentResponse{Comment: comment})
}

// UpdateComment edits a comment's text. A comment that is absent or owned
// by someone else yields the same "access denied" so non-owners cannot
// confirm a comment exists.
func (h *CommentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	commentID, err := parseCommentID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	text, fields := validateCommentText(req.Text)
	if len(fields) > 0 {
		writeValidationError(w, fields)
		return
	}

	comment, err := h.commentService.Update(r.Context(), claims.UserID, commentID, text)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusForbidden, "access denied")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update comment")
		return
	}

	writeJSON(w, http.StatusOK, CommentResponse{Comment: comment})
}

// DeleteComment removes a comment; same ownership policy as UpdateComment.
func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	commentID, err := parseCommentID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.commentService.Delete(r.Context(), claims.UserID, commentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusForbidden, "access denied")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete comment")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "comment deleted successfully"})
}

type CreateCommentRequest struct {
	PostID int    `json:"post_id"`
	Text   string `json:"text"`
}

type UpdateCommentRequest struct {
	Text string `json:"text"`
}

// CommentResponse wraps a single comment payload.
type CommentResponse struct {
	Comment types.Comment `json:"comment"`
}

func validateCommentText(text string) (string, []string) {
	text = strings.TrimSpace(text)
	var fields []string
	if text == "" {
		fields = append(fields, "comment text is required")
	}
	if utf8.RuneCountInString(text) > maxCommentLength {
		fields = append(fields, "comment cannot be longer than 1000 characters")
	}
	return text, fields
}

func parseCommentID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "commentID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid comment id")
	}
	return id, nil
}
