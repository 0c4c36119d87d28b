package types

import "time"

// Post is a short piece of content owned by exactly one user.
type Post struct {
	ID        int       `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	Published bool      `json:"published" db:"published"`
	CreatedAt time.Time `json:"post_created_at" db:"post_created_at"`

	// Ratings is optional and stays null until set.
	Ratings *int `json:"ratings" db:"ratings"`

	// OwnerID references users.id; deleting the owner deletes the post.
	OwnerID int       `json:"owner_id" db:"owner_id"`
	Owner   UserOwner `json:"owner"`
}

type PostCreate struct {
	Title     string
	Content   string
	Published bool
	Ratings   *int
}

// PostPatch carries a partial update; nil fields are left untouched.
type PostPatch struct {
	Title     *string
	Content   *string
	Published *bool
	Ratings   *int
}

func (p PostPatch) Apply(post Post) Post {
	if p.Title != nil {
		post.Title = *p.Title
	}
	if p.Content != nil {
		post.Content = *p.Content
	}
	if p.Published != nil {
		post.Published = *p.Published
	}
	if p.Ratings != nil {
		ratings := *p.Ratings
		post.Ratings = &ratings
	}
	return post
}

// PostQuery filters a post listing. OwnerID 0 lists every owner.
// AfterID skips every post with an id at or below it.
type PostQuery struct {
	OwnerID int
	Search  string
	AfterID int
	Offset  int
	Limit   int
}
