package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fotofeed/apiserver/types"
)

// CommentRepository handles persistence for comments.
type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	now := time.Now()
	comment.CreatedAt = now
	comment.UpdatedAt = now

	const query = `
		INSERT INTO comments (post_id, author_id, text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		comment.PostID,
		comment.AuthorID,
		comment.Text,
		comment.CreatedAt,
		comment.UpdatedAt,
	).Scan(&comment.ID); err != nil {
		return types.Comment{}, err
	}
	return comment, nil
}

// ListByPost returns a post's comments newest-first.
func (r *CommentRepository) ListByPost(ctx context.Context, postID int) ([]types.Comment, error) {
	const query = `
		SELECT id, post_id, author_id, text, created_at, updated_at
		FROM comments
		WHERE post_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]types.Comment, 0)
	for rows.Next() {
		var comment types.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.PostID,
			&comment.AuthorID,
			&comment.Text,
			&comment.CreatedAt,
			&comment.UpdatedAt,
		); err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return comments, nil
}

// UpdateText replaces a comment's text only when authorID matches the stored
// author, in one statement. Returns ErrNotFound when the comment is absent
// or owned by someone else; callers decide how to surface that.
func (r *CommentRepository) UpdateText(ctx context.Context, id, authorID int, text string) (types.Comment, error) {
	const query = `
		UPDATE comments
		SET text = $1,
			updated_at = $2
		WHERE id = $3 AND author_id = $4
		RETURNING id, post_id, author_id, text, created_at, updated_at`
	var comment types.Comment
	err := r.db.QueryRowContext(ctx, query, text, time.Now(), id, authorID).Scan(
		&comment.ID,
		&comment.PostID,
		&comment.AuthorID,
		&comment.Text,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Comment{}, ErrNotFound
		}
		return types.Comment{}, err
	}
	return comment, nil
}

// Delete removes a comment only when authorID matches the stored author.
func (r *CommentRepository) Delete(ctx context.Context, id, authorID int) error {
	const query = `DELETE FROM comments WHERE id = $1 AND author_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, authorID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
