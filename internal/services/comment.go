package services

import (
	"context"

	"github.com/fotofeed/apiserver/internal/store"
	"github.com/fotofeed/apiserver/types"
)

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
	ListByPost(ctx context.Context, postID int) ([]types.Comment, error)
	UpdateText(ctx context.Context, id, authorID int, text string) (types.Comment, error)
	Delete(ctx context.Context, id, authorID int) error
}

// PostChecker reports whether a post exists.
type PostChecker interface {
	Exists(ctx context.Context, id int) (bool, error)
}

// CommentService encapsulates comment use-cases.
type CommentService struct {
	repo  CommentRepository
	posts PostChecker
}

func NewCommentService(repo CommentRepository, posts PostChecker) *CommentService {
	return &CommentService{repo: repo, posts: posts}
}

// Create stores a comment on an existing post.
func (s *CommentService) Create(ctx context.Context, authorID, postID int, text string) (types.Comment, error) {
	exists, err := s.posts.Exists(ctx, postID)
	if err != nil {
		return types.Comment{}, err
	}
	if !exists {
		return types.Comment{}, store.ErrNotFound
	}
	return s.repo.Create(ctx, types.Comment{
		PostID:   postID,
		AuthorID: authorID,
		Text:     text,
	})
}

func (s *CommentService) ListByPost(ctx context.Context, postID int) ([]types.Comment, error) {
	return s.repo.ListByPost(ctx, postID)
}

// Update edits a comment's text. The ownership check rides in the store's
// conditional update; a non-owner gets store.ErrNotFound.
func (s *CommentService) Update(ctx context.Context, requesterID, commentID int, text string) (types.Comment, error) {
	return s.repo.UpdateText(ctx, commentID, requesterID, text)
}

// Delete removes a comment; same ownership semantics as Update.
func (s *CommentService) Delete(ctx context.Context, requesterID, commentID int) error {
	return s.repo.Delete(ctx, commentID, requesterID)
}
