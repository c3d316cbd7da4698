package handler

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/guard"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/service"
	"github.com/sakif/authors-haven/internal/storage"
)

// ArticleHandler serves /articles. Existence and ownership are settled by
// the guards; by the time a method runs, c.Article is the loaded article
// and c.Identity the signed-in user where the route requires one.
type ArticleHandler struct {
	articles *service.ArticleService
	images   storage.ImageStore
	logger   *slog.Logger
}

func NewArticleHandler(articles *service.ArticleService, images storage.ImageStore, logger *slog.Logger) *ArticleHandler {
	return &ArticleHandler{articles: articles, images: images, logger: logger}
}

// HandleList returns a page of articles, newest first.
//
// HTTP: GET /articles?limit=20&offset=0
func (h *ArticleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	articles, err := h.articles.List(r.Context(), limit, offset)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	Respond(w, http.StatusOK, "articles retrieved", articles...)
}

// HTTP: POST /articles (JSON, or multipart with an optional "image" part)
func (h *ArticleHandler) HandleCreate(w http.ResponseWriter, r *http.Request, c guard.Context) {
	in, _ := guard.BodyAs[service.ArticleInput](c)

	imageURL, err := h.storeImage(r.Context(), c.Image)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	article, err := h.articles.Create(r.Context(), c.Identity.ID, in, imageURL)
	if err != nil {
		h.discardImage(r.Context(), imageURL)
		WriteError(w, r, err)
		return
	}
	Respond(w, http.StatusCreated, "article created", *article)
}

// storeImage saves the upload checked by guard.ImageUpload. No upload
// gives an empty URL.
func (h *ArticleHandler) storeImage(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", nil
	}
	file, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("handler: opening upload %s: %w", fh.Filename, err)
	}
	defer file.Close()

	url, err := h.images.Put(ctx, fh.Filename, fh.Header.Get("Content-Type"), file)
	if err != nil {
		return "", fmt.Errorf("handler: storing upload %s: %w", fh.Filename, err)
	}
	h.logger.InfoContext(ctx, "image uploaded", slog.String("url", url))
	return url, nil
}

// discardImage removes an image whose article was never created.
func (h *ArticleHandler) discardImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := h.images.Delete(ctx, url); err != nil {
		h.logger.ErrorContext(ctx, "orphaned image delete failed",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
	}
}

// HTTP: GET /articles/{slug}
func (h *ArticleHandler) HandleGet(w http.ResponseWriter, r *http.Request, c guard.Context) {
	Respond(w, http.StatusOK, "article retrieved", *c.Article)
}

// HTTP: PUT /articles/{slug}
func (h *ArticleHandler) HandleUpdate(w http.ResponseWriter, r *http.Request, c guard.Context) {
	in, _ := guard.BodyAs[service.ArticleInput](c)

	article, err := h.articles.Update(r.Context(), c.Article, in)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	Respond(w, http.StatusOK, "article updated", *article)
}

// HTTP: DELETE /articles/{slug}
func (h *ArticleHandler) HandleDelete(w http.ResponseWriter, r *http.Request, c guard.Context) {
	if err := h.articles.Delete(r.Context(), c.Article); err != nil {
		WriteError(w, r, err)
		return
	}
	Respond[model.Article](w, http.StatusOK, "article deleted")
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a non-negative integer")
	}
	return n, nil
}
