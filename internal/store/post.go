package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/postboard/apiserver/types"
)

const postColumns = `
		p.id, p.title, p.content, p.published, p.post_created_at, p.ratings, p.owner_id,
		u.username, u.email, u.user_created_at, u.user_updated_at`

// PostRepository handles persistence for posts. Every read joins the owner so
// responses can embed it.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) List(ctx context.Context, q types.PostQuery) ([]types.Post, error) {
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Limit < 0 {
		q.Limit = 0
	}

	const query = `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.owner_id
		WHERE ($1 = 0 OR p.owner_id = $1)
		  AND ($2 = '' OR p.title LIKE '%' || $2 || '%')
		  AND p.id > $3
		ORDER BY p.id
		OFFSET $4 LIMIT $5`
	rows, err := r.db.QueryContext(ctx, query, q.OwnerID, escapeLike(q.Search), q.AfterID, q.Offset, q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]types.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *PostRepository) Get(ctx context.Context, id int) (types.Post, error) {
	const query = `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.owner_id
		WHERE p.id = $1`
	return r.getOne(ctx, query, id)
}

// Latest returns the post with the highest id across all owners.
func (r *PostRepository) Latest(ctx context.Context) (types.Post, error) {
	const query = `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.owner_id
		ORDER BY p.id DESC
		LIMIT 1`
	return r.getOne(ctx, query)
}

func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	const query = `
		WITH p AS (
			INSERT INTO posts (title, content, published, ratings, owner_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING *
		)
		SELECT ` + postColumns + `
		FROM p
		JOIN users u ON u.id = p.owner_id`
	created, err := scanPost(r.db.QueryRowContext(
		ctx,
		query,
		post.Title,
		post.Content,
		post.Published,
		nullableInt(post.Ratings),
		post.OwnerID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, translateError(err)
	}
	return created, nil
}

func (r *PostRepository) Update(ctx context.Context, post types.Post) (types.Post, error) {
	const query = `
		WITH p AS (
			UPDATE posts
			SET title = $1,
				content = $2,
				published = $3,
				ratings = $4
			WHERE id = $5
			RETURNING *
		)
		SELECT ` + postColumns + `
		FROM p
		JOIN users u ON u.id = p.owner_id`
	updated, err := scanPost(r.db.QueryRowContext(
		ctx,
		query,
		post.Title,
		post.Content,
		post.Published,
		nullableInt(post.Ratings),
		post.ID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, translateError(err)
	}
	return updated, nil
}

func (r *PostRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM posts WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
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

func (r *PostRepository) getOne(ctx context.Context, query string, args ...any) (types.Post, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	return post, nil
}

func scanPost(row rowScanner) (types.Post, error) {
	var post types.Post
	var ratings sql.NullInt64
	err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Content,
		&post.Published,
		&post.CreatedAt,
		&ratings,
		&post.OwnerID,
		&post.Owner.Username,
		&post.Owner.Email,
		&post.Owner.CreatedAt,
		&post.Owner.UpdatedAt,
	)
	if err != nil {
		return types.Post{}, err
	}
	if ratings.Valid {
		value := int(ratings.Int64)
		post.Ratings = &value
	}
	return post, nil
}

func nullableInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}
