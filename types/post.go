package types

import "time"

// Post is a feed entry: an ordered set of uploaded images with a caption.
type Post struct {
	// ID is the unique identifier of the post.
	ID int `json:"id" db:"id"`

	// AuthorID references the user who created the post. Immutable.
	AuthorID int `json:"author_id" db:"author_id"`

	// Images holds blob reference paths in upload order.
	Images []string `json:"images" db:"images"`

	// Caption is the optional text attached to the post.
	Caption string `json:"caption" db:"caption"`

	// LikedBy holds the ids of users who currently like the post.
	// Membership semantics: no duplicates.
	LikedBy []int64 `json:"liked_by" db:"liked_by"`

	// CommentsCount is the number of comments on the post. Computed on
	// read, never stored.
	CommentsCount int `json:"comments_count" db:"-"`

	// CreatedAt is the timestamp when the post was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the post.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
