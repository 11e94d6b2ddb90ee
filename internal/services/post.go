package services

import (
	"context"

	"github.com/fotofeed/apiserver/types"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Get(ctx context.Context, id int) (types.Post, error)
	List(ctx context.Context) ([]types.Post, error)
	Exists(ctx context.Context, id int) (bool, error)
	ToggleLike(ctx context.Context, postID, userID int) (types.Post, error)
}

// PostService encapsulates post use-cases.
type PostService struct {
	repo PostRepository
}

func NewPostService(repo PostRepository) *PostService {
	return &PostService{repo: repo}
}

// Create stores a new post. Images are blob references already uploaded
// by the caller; zero images is permitted.
func (s *PostService) Create(ctx context.Context, authorID int, images []string, caption string) (types.Post, error) {
	if images == nil {
		images = []string{}
	}
	return s.repo.Create(ctx, types.Post{
		AuthorID: authorID,
		Images:   images,
		Caption:  caption,
	})
}

func (s *PostService) Get(ctx context.Context, id int) (types.Post, error) {
	return s.repo.Get(ctx, id)
}

func (s *PostService) List(ctx context.Context) ([]types.Post, error) {
	return s.repo.List(ctx)
}

// ToggleLike likes the post for the user, or unlikes it if already liked.
// Two identical calls return the post to its original membership.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID int) (types.Post, error) {
	return s.repo.ToggleLike(ctx, postID, userID)
}
