package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/auth"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/repository"
	"github.com/sakif/authors-haven/internal/storage"
)

// maxUploadBytes bounds a multipart article request, image included.
const maxUploadBytes = 10 << 20

// Authenticator resolves a session credential to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*model.User, error)
}

// Set holds the guards that need collaborators.
type Set struct {
	auth     Authenticator
	articles repository.ArticleRepository
	comments repository.CommentRepository
	images   storage.ImageStore
	logger   *slog.Logger
}

func NewSet(
	authn Authenticator,
	articles repository.ArticleRepository,
	comments repository.CommentRepository,
	images storage.ImageStore,
	logger *slog.Logger,
) *Set {
	return &Set{
		auth:     authn,
		articles: articles,
		comments: comments,
		images:   images,
		logger:   logger,
	}
}

// SignInAuth requires a valid session credential from the Authorization
// header or the session cookie and attaches the user it names.
func (s *Set) SignInAuth(r *http.Request, c Context) (Context, error) {
	credential, ok := auth.CredentialFromRequest(r)
	if !ok {
		return c, apperror.Unauthorized("you need to sign in first")
	}

	user, err := s.auth.Authenticate(r.Context(), credential)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return c, apperror.Unauthorized(appErr.Message)
		}
		return c, fmt.Errorf("guard: authenticating request: %w", err)
	}

	c.Identity = user
	return c, nil
}

// ArticleExists loads the article named by {slug}.
func (s *Set) ArticleExists(r *http.Request, c Context) (Context, error) {
	article, err := s.articles.GetArticleBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		return c, err
	}
	c.Article = article
	return c, nil
}

// CommentExists loads the comment named by {commentId}.
func (s *Set) CommentExists(r *http.Request, c Context) (Context, error) {
	comment, err := s.comments.GetComment(r.Context(), chi.URLParam(r, "commentId"))
	if err != nil {
		return c, err
	}
	c.Comment = comment
	return c, nil
}

// ParentCommentExists loads the comment a reply targets, named by {commentid}.
func (s *Set) ParentCommentExists(r *http.Request, c Context) (Context, error) {
	id := chi.URLParam(r, "commentid")
	parent, err := s.comments.GetComment(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return c, apperror.ParentNotFound(id)
		}
		return c, err
	}
	c.Parent = parent
	return c, nil
}

// CheckAuthor allows the request only when the signed-in user wrote the
// article.
func (s *Set) CheckAuthor(_ *http.Request, c Context) (Context, error) {
	if c.Identity == nil || c.Article == nil {
		return c, errors.New("guard: CheckAuthor needs SignInAuth and ArticleExists before it")
	}
	if c.Identity.ID != c.Article.AuthorID {
		return c, apperror.Forbidden("you are not the author of this article")
	}
	return c, nil
}

// DuplicateLike records whether the user already liked the comment. It
// never halts; a failed lookup leaves the flag unset and the store settles
// the like.
func (s *Set) DuplicateLike(r *http.Request, c Context) (Context, error) {
	if c.Identity == nil || c.Comment == nil {
		return c, errors.New("guard: DuplicateLike needs SignInAuth and CommentExists before it")
	}

	liked, err := s.comments.HasLiked(r.Context(), c.Comment.ID, c.Identity.ID)
	if err != nil {
		s.logger.WarnContext(r.Context(), "like lookup failed",
			slog.String("commentID", c.Comment.ID),
			slog.String("error", err.Error()),
		)
		return c, nil
	}
	c.AlreadyLiked = liked
	return c, nil
}

// ImageUpload checks the optional "image" part of a multipart request and
// attaches it. Nothing is stored here; the handler stores the image once
// the rest of the request has been accepted. Requests that are not
// multipart pass through.
func (s *Set) ImageUpload(r *http.Request, c Context) (Context, error) {
	if !isMultipart(r) {
		return c, nil
	}
	if err := parseMultipart(r); err != nil {
		return c, err
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return c, nil
	}
	if err != nil {
		return c, apperror.ValidationFailed("image", "could not read the uploaded image")
	}
	file.Close()

	if _, ok := storage.Extension(header.Filename); !ok {
		return c, apperror.ValidationFailed("image", "image must be a jpg, jpeg, png, gif or webp file")
	}
	if header.Size == 0 {
		return c, apperror.ValidationFailed("image", "the uploaded image is empty")
	}

	c.Image = header
	return c, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// parseMultipart reads a multipart body once, capped at maxUploadBytes.
func parseMultipart(r *http.Request) error {
	if r.MultipartForm != nil {
		return nil
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return apperror.ValidationFailed("body", "could not read the uploaded form")
	}
	return nil
}

// DeleteImage removes the article's stored image. A failed delete is
// logged and the request carries on.
func (s *Set) DeleteImage(r *http.Request, c Context) (Context, error) {
	if c.Article == nil || c.Article.ImageURL == "" {
		return c, nil
	}

	if err := s.images.Delete(r.Context(), c.Article.ImageURL); err != nil {
		s.logger.ErrorContext(r.Context(), "image delete failed",
			slog.String("slug", c.Article.Slug),
			slog.String("url", c.Article.ImageURL),
			slog.String("error", err.Error()),
		)
	}
	return c, nil
}
