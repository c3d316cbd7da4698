package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/repository"
)

var _ repository.CommentRepository = (*DB)(nil)

// likes is derived from comment_likes on every read, so there is no
// counter to drift out of step with the like rows.
const commentSelect = `SELECT c.id, c.article_id, c.author_id, c.parent_comment_id, c.text,
	(SELECT COUNT(*) FROM comment_likes l WHERE l.comment_id = c.id),
	c.created_at
	FROM comments c`

func (db *DB) CreateComment(ctx context.Context, comment *model.Comment) error {
	comment.ID = xid.New().String()
	comment.CreatedAt = time.Now().UTC()
	comment.Likes = 0

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, article_id, author_id, parent_comment_id, text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		comment.ID,
		comment.ArticleID,
		comment.AuthorID,
		comment.ParentCommentID,
		comment.Text,
		comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating comment: %w", err)
	}
	return nil
}

func (db *DB) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	c, err := scanComment(db.conn.QueryRowContext(ctx, commentSelect+` WHERE c.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("sqlite: getting comment %s: %w", id, err)
	}
	return c, nil
}

// ListComments returns the whole forest for one article in creation order.
// rowid breaks ties between comments written in the same instant.
func (db *DB) ListComments(ctx context.Context, articleID string) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		commentSelect+` WHERE c.article_id = ? ORDER BY c.created_at ASC, c.rowid ASC`,
		articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments for %s: %w", articleID, err)
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comment rows: %w", err)
	}
	return comments, nil
}

func (db *DB) HasLiked(ctx context.Context, commentID, userID string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM comment_likes WHERE comment_id = ? AND user_id = ?)`,
		commentID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking like on %s: %w", commentID, err)
	}
	return exists, nil
}

// AddLike relies on UNIQUE(comment_id, user_id): a duplicate insert is
// ignored by the database, so two racing requests still leave one row.
func (db *DB) AddLike(ctx context.Context, commentID, userID string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO comment_likes (comment_id, user_id, created_at) VALUES (?, ?, ?)`,
		commentID, userID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: liking comment %s: %w", commentID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComment(row rowScanner) (*model.Comment, error) {
	var c model.Comment
	if err := row.Scan(
		&c.ID,
		&c.ArticleID,
		&c.AuthorID,
		&c.ParentCommentID,
		&c.Text,
		&c.Likes,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}
