package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/rs/xid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/repository"
)

const maxSlugBase = 80

// ArticleService handles business logic for articles.
//
// Image files are not managed here: the upload and delete guards own the
// object store, and the service only records the resulting URL.
type ArticleService struct {
	repo   repository.ArticleRepository
	logger *slog.Logger
}

func NewArticleService(repo repository.ArticleRepository, logger *slog.Logger) *ArticleService {
	return &ArticleService{repo: repo, logger: logger}
}

// Create validates the input, derives a slug from the title and stores the
// article under authorID.
func (s *ArticleService) Create(ctx context.Context, authorID string, in ArticleInput, imageURL string) (*model.Article, error) {
	if err := ValidateArticle(in, false); err != nil {
		return nil, err
	}

	article := &model.Article{
		Slug:        Slugify(in.Title),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Body:        in.Body,
		AuthorID:    authorID,
		ImageURL:    imageURL,
	}
	if err := s.repo.CreateArticle(ctx, article); err != nil {
		return nil, fmt.Errorf("service/article: creating article: %w", err)
	}

	s.logger.InfoContext(ctx, "article created",
		slog.String("slug", article.Slug),
		slog.String("authorID", authorID),
	)
	return article, nil
}

// List returns a page of articles, newest first. Out-of-range paging
// values fall back to the defaults.
func (s *ArticleService) List(ctx context.Context, limit, offset int) ([]model.Article, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	articles, err := s.repo.ListArticles(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("service/article: listing articles: %w", err)
	}
	return articles, nil
}

// Update applies the non-empty fields of in to article. The slug is kept
// so existing links keep working.
func (s *ArticleService) Update(ctx context.Context, article *model.Article, in ArticleInput) (*model.Article, error) {
	if err := ValidateArticle(in, true); err != nil {
		return nil, err
	}

	updated := *article
	if t := strings.TrimSpace(in.Title); t != "" {
		updated.Title = t
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		updated.Description = d
	}
	if strings.TrimSpace(in.Body) != "" {
		updated.Body = in.Body
	}

	if err := s.repo.UpdateArticle(ctx, &updated); err != nil {
		return nil, fmt.Errorf("service/article: updating %s: %w", article.Slug, err)
	}

	s.logger.InfoContext(ctx, "article updated", slog.String("slug", updated.Slug))
	return &updated, nil
}

func (s *ArticleService) Delete(ctx context.Context, article *model.Article) error {
	if err := s.repo.DeleteArticle(ctx, article.ID); err != nil {
		return fmt.Errorf("service/article: deleting %s: %w", article.Slug, err)
	}
	s.logger.InfoContext(ctx, "article deleted", slog.String("slug", article.Slug))
	return nil
}

// Slugify turns a title into a URL-safe slug with a unique suffix:
// "Ünïcode Títle!" becomes "unicode-title-<xid>".
func Slugify(title string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= maxSlugBase {
			break
		}
	}

	base := strings.Trim(b.String(), "-")
	if base == "" {
		base = "article"
	}
	return base + "-" + xid.New().String()
}
