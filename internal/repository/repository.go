// Package repository declares the persistence interfaces the services
// depend on. internal/repository/sqlite implements all of them.
package repository

import (
	"context"

	"github.com/sakif/authors-haven/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository stores identities and their password-reset state.
type UserRepository interface {
	// CreateUser fills in ID and timestamps. A taken email is a Conflict.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// ArmPasswordReset records tokenID as the only reset credential that may
	// commit next and clears the used flag.
	ArmPasswordReset(ctx context.Context, userID, tokenID string) error

	// CommitPasswordReset replaces the password hash and marks the reset used
	// in one step, but only while the row is unused and still armed with
	// tokenID. It reports whether this call made the change.
	CommitPasswordReset(ctx context.Context, userID, email, tokenID, passwordHash string) (bool, error)
}

type ArticleRepository interface {
	CreateArticle(ctx context.Context, article *model.Article) error
	GetArticleBySlug(ctx context.Context, slug string) (*model.Article, error)
	ListArticles(ctx context.Context, opts ListOptions) ([]model.Article, error)
	UpdateArticle(ctx context.Context, article *model.Article) error
	DeleteArticle(ctx context.Context, id string) error
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetComment(ctx context.Context, id string) (*model.Comment, error)

	// ListComments returns every comment on the article, oldest first.
	ListComments(ctx context.Context, articleID string) ([]model.Comment, error)

	HasLiked(ctx context.Context, commentID, userID string) (bool, error)

	// AddLike records the like unless it already exists and reports whether
	// a new row was written.
	AddLike(ctx context.Context, commentID, userID string) (bool, error)
}
