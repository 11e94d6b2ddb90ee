package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/fotofeed/apiserver/internal/services"
	"github.com/fotofeed/apiserver/internal/storage"
	"github.com/fotofeed/apiserver/internal/store"
	"github.com/fotofeed/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	maxMultipartMemory = 32 << 20
	maxPostImages      = 5
	maxPostImageBytes  = 5 << 20
	formFieldImages    = "images"
	formFieldCaption   = "caption"
)

// PostHandler provides HTTP handlers for posts.
type PostHandler struct {
	postService    *services.PostService
	commentService *services.CommentService
	storage        *storage.Storage
}

// NewPostHandler constructs a handler with the provided dependencies.
func NewPostHandler(postService *services.PostService, commentService *services.CommentService, st *storage.Storage) *PostHandler {
	return &PostHandler{
		postService:    postService,
		commentService: commentService,
		storage:        st,
	}
}

// PostRouter registers post routes on the given router.
func PostRouter(
	r chi.Router,
	postService *services.PostService,
	commentService *services.CommentService,
	st *storage.Storage,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewPostHandler(postService, commentService, st)

	r.Get("/", handler.ListPosts)
	r.With(authMiddleware).Post("/create", handler.CreatePost)
	r.Route("/{postID}", func(r chi.Router) {
		r.With(authMiddleware).Put("/like", handler.ToggleLike)
		r.Get("/comments", handler.ListComments)
	})
}

// CreatePost uploads the submitted images to the blob store and records
// the post. Zero images is permitted.
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	var files []*multipartFile
	if r.MultipartForm != nil {
		headers := r.MultipartForm.File[formFieldImages]
		if len(headers) > maxPostImages {
			writeError(w, http.StatusBadRequest, "at most 5 images are allowed")
			return
		}
		for _, fileHeader := range headers {
			data, contentType, err := imageFromHeader(fileHeader, maxPostImageBytes)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			files = append(files, &multipartFile{
				key:         uploadKey(fileHeader.Filename, contentType),
				data:        data,
				contentType: contentType,
			})
		}
	}

	images := make([]string, 0, len(files))
	for _, file := range files {
		if err := h.storage.Put(r.Context(), file.key, bytes.NewReader(file.data), int64(len(file.data)), file.contentType); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to store image")
			return
		}
		images = append(images, uploadPathPrefix+file.key)
	}

	caption := r.FormValue(formFieldCaption)
	post, err := h.postService.Create(r.Context(), claims.UserID, images, caption)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create post")
		return
	}

	writeJSON(w, http.StatusCreated, PostResponse{Post: post})
}

// ListPosts returns all posts newest-first with comment counts.
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.postService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}

	writeJSON(w, http.StatusOK, PostListResponse{Posts: posts})
}

// ToggleLike likes or unlikes the post for the authenticated user.
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	postID, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.postService.ToggleLike(r.Context(), postID, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update post")
		return
	}

	writeJSON(w, http.StatusOK, LikeResponse{Post: post, Likes: len(post.LikedBy)})
}

// ListComments returns a post's comments newest-first.
func (h *PostHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	postID, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comments, err := h.commentService.ListByPost(r.Context(), postID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list comments")
		return
	}

	writeJSON(w, http.StatusOK, CommentListResponse{Comments: comments})
}

type multipartFile struct {
	key         string
	data        []byte
	contentType string
}

// PostResponse wraps a single post payload.
type PostResponse struct {
	Post types.Post `json:"post"`
}

// PostListResponse is the feed payload.
type PostListResponse struct {
	Posts []types.Post `json:"posts"`
}

// LikeResponse carries the updated post and its like count.
type LikeResponse struct {
	Post  types.Post `json:"post"`
	Likes int        `json:"likes"`
}

// CommentListResponse is the per-post comment list payload.
type CommentListResponse struct {
	Comments []types.Comment `json:"comments"`
}

func parsePostID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "postID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid post id")
	}
	return id, nil
}
