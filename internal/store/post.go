package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/fotofeed/apiserver/types"
	"github.com/lib/pq"
)

// PostRepository handles persistence for posts.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now

	imagesJSON, err := json.Marshal(post.Images)
	if err != nil {
		return types.Post{}, err
	}
	if post.LikedBy == nil {
		post.LikedBy = []int64{}
	}

	const query = `
		INSERT INTO posts (author_id, images, caption, liked_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		post.AuthorID,
		imagesJSON,
		post.Caption,
		pq.Array(post.LikedBy),
		post.CreatedAt,
		post.UpdatedAt,
	).Scan(&post.ID); err != nil {
		return types.Post{}, err
	}
	return post, nil
}

func (r *PostRepository) Get(ctx context.Context, id int) (types.Post, error) {
	const query = `
		SELECT p.id, p.author_id, p.images, p.caption, p.liked_by, p.created_at, p.updated_at,
		       (SELECT COUNT(1) FROM comments c WHERE c.post_id = p.id)
		FROM posts p
		WHERE p.id = $1`
	var post types.Post
	var imagesJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&post.ID,
		&post.AuthorID,
		&imagesJSON,
		&post.Caption,
		pq.Array(&post.LikedBy),
		&post.CreatedAt,
		&post.UpdatedAt,
		&post.CommentsCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}

	_ = json.Unmarshal(imagesJSON, &post.Images)
	return post, nil
}

// List returns all posts newest-first, each annotated with its comment count.
func (r *PostRepository) List(ctx context.Context) ([]types.Post, error) {
	const query = `
		SELECT p.id, p.author_id, p.images, p.caption, p.liked_by, p.created_at, p.updated_at,
		       COUNT(c.id)
		FROM posts p
		LEFT JOIN comments c ON c.post_id = p.id
		GROUP BY p.id
		ORDER BY p.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]types.Post, 0)
	for rows.Next() {
		var post types.Post
		var imagesJSON []byte
		if err := rows.Scan(
			&post.ID,
			&post.AuthorID,
			&imagesJSON,
			&post.Caption,
			pq.Array(&post.LikedBy),
			&post.CreatedAt,
			&post.UpdatedAt,
			&post.CommentsCount,
		); err != nil {
			return nil, err
		}

		_ = json.Unmarshal(imagesJSON, &post.Images)
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

// Exists reports whether a post with the given id is present.
func (r *PostRepository) Exists(ctx context.Context, id int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ToggleLike adds the user to the post's liked_by set, or removes them if
// already present, in a single statement so concurrent toggles cannot lose
// updates. Returns the updated post with its comment count.
func (r *PostRepository) ToggleLike(ctx context.Context, postID, userID int) (types.Post, error) {
	const query = `
		UPDATE posts
		SET liked_by = CASE
				WHEN $2 = ANY(liked_by) THEN array_remove(liked_by, $2)
				ELSE array_append(liked_by, $2)
			END,
			updated_at = $3
		WHERE id = $1
		RETURNING id, author_id, images, caption, liked_by, created_at, updated_at,
		          (SELECT COUNT(1) FROM comments c WHERE c.post_id = posts.id)`
	var post types.Post
	var imagesJSON []byte
	err := r.db.QueryRowContext(ctx, query, postID, userID, time.Now()).Scan(
		&post.ID,
		&post.AuthorID,
		&imagesJSON,
		&post.Caption,
		pq.Array(&post.LikedBy),
		&post.CreatedAt,
		&post.UpdatedAt,
		&post.CommentsCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}

	_ = json.Unmarshal(imagesJSON, &post.Images)
	return post, nil
}
