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

var _ repository.ArticleRepository = (*DB)(nil)

const articleColumns = `id, slug, title, description, body, author_id, image_url, created_at, updated_at`

// CreateArticle inserts article. The caller supplies the slug; a slug that
// is already taken is a Conflict.
func (db *DB) CreateArticle(ctx context.Context, article *model.Article) error {
	now := time.Now().UTC()
	article.ID = xid.New().String()
	article.CreatedAt = now
	article.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO articles (`+articleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		article.ID,
		article.Slug,
		article.Title,
		article.Description,
		article.Body,
		article.AuthorID,
		article.ImageURL,
		article.CreatedAt,
		article.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("article", article.Slug)
		}
		return fmt.Errorf("sqlite: creating article: %w", err)
	}
	return nil
}

func (db *DB) GetArticleBySlug(ctx context.Context, slug string) (*model.Article, error) {
	var a model.Article
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE slug = ?`, slug,
	).Scan(
		&a.ID,
		&a.Slug,
		&a.Title,
		&a.Description,
		&a.Body,
		&a.AuthorID,
		&a.ImageURL,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("article", slug)
		}
		return nil, fmt.Errorf("sqlite: getting article %s: %w", slug, err)
	}
	return &a, nil
}

// ListArticles returns a page of articles, newest first.
func (db *DB) ListArticles(ctx context.Context, opts repository.ListOptions) ([]model.Article, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := max(opts.Offset, 0)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+articleColumns+`
		 FROM articles
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing articles: %w", err)
	}
	defer rows.Close()

	articles := make([]model.Article, 0, limit)
	for rows.Next() {
		var a model.Article
		if err := rows.Scan(
			&a.ID,
			&a.Slug,
			&a.Title,
			&a.Description,
			&a.Body,
			&a.AuthorID,
			&a.ImageURL,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning article row: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating article rows: %w", err)
	}

	return articles, nil
}

// UpdateArticle writes the editable fields. The slug and author never change.
func (db *DB) UpdateArticle(ctx context.Context, article *model.Article) error {
	article.UpdatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE articles
		 SET title = ?, description = ?, body = ?, image_url = ?, updated_at = ?
		 WHERE id = ?`,
		article.Title,
		article.Description,
		article.Body,
		article.ImageURL,
		article.UpdatedAt,
		article.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating article %s: %w", article.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("article", article.Slug)
	}
	return nil
}

// DeleteArticle removes the article; its comments and likes cascade.
func (db *DB) DeleteArticle(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting article %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("article", id)
	}
	return nil
}
