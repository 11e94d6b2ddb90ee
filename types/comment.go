package types

import "time"

// Comment is a user's text attached to a post. Only the author may
// modify or delete it.
type Comment struct {
	// ID is the unique identifier of the comment.
	ID int `json:"id" db:"id"`

	// PostID references the post the comment belongs to.
	PostID int `json:"post_id" db:"post_id"`

	// AuthorID references the user who wrote the comment.
	AuthorID int `json:"author_id" db:"author_id"`

	// Text is the comment body, 1 to 1000 characters after trimming.
	Text string `json:"text" db:"text"`

	// CreatedAt is the timestamp when the comment was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent edit.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
