package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/authors-haven/internal/guard"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/service"
)

type CommentHandler struct {
	comments *service.CommentService
	logger   *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

// HandleList returns the article's comments as threads, roots oldest first.
//
// HTTP: GET /articles/{slug}/comments
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request, c guard.Context) {
	threads, err := h.comments.Threads(r.Context(), c.Article.ID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	data := []model.CommentThread{}
	for t := range threads {
		data = append(data, t)
	}
	Respond(w, http.StatusOK, "comments retrieved", data...)
}

// HTTP: POST /articles/{slug}/comment
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request, c guard.Context) {
	in, _ := guard.BodyAs[service.CommentInput](c)

	comment, err := h.comments.CreateComment(r.Context(), c.Article, c.Identity.ID, in.Text)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	Respond(w, http.StatusCreated, "comment created", *comment)
}

// HandleReply answers an existing comment. The reply joins the parent's
// article.
//
// HTTP: POST /articles/{slug}/comment/{commentid}/thread
func (h *CommentHandler) HandleReply(w http.ResponseWriter, r *http.Request, c guard.Context) {
	in, _ := guard.BodyAs[service.CommentInput](c)

	reply, err := h.comments.CreateThreadedComment(r.Context(), c.Parent.ID, c.Identity.ID, in.Text)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	Respond(w, http.StatusCreated, "reply created", *reply)
}

// HandleLike answers 201 for a new like and 200 when the user had already
// liked the comment.
//
// HTTP: POST /articles/comment/{commentId}/like
func (h *CommentHandler) HandleLike(w http.ResponseWriter, r *http.Request, c guard.Context) {
	created, err := h.comments.LikeComment(r.Context(), c.Comment.ID, c.Identity.ID, c.AlreadyLiked)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if !created {
		Respond[model.Comment](w, http.StatusOK, "you have already liked this comment")
		return
	}
	Respond[model.Comment](w, http.StatusCreated, "comment liked")
}
