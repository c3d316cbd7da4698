package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/repository"
)

// CommentService handles comments, replies and likes.
//
// Comments form a forest per article: a root comment has no parent, a reply
// points at the comment it answers and always belongs to the same article.
// Threads are assembled from the flat list when they are read, and like
// counts are derived from the like rows rather than stored.
type CommentService struct {
	repo   repository.CommentRepository
	logger *slog.Logger
}

func NewCommentService(repo repository.CommentRepository, logger *slog.Logger) *CommentService {
	return &CommentService{repo: repo, logger: logger}
}

// CreateComment adds a root comment to article.
func (s *CommentService) CreateComment(ctx context.Context, article *model.Article, authorID, text string) (*model.Comment, error) {
	if err := ValidateCommentText(text); err != nil {
		return nil, err
	}

	comment := &model.Comment{
		ArticleID: article.ID,
		AuthorID:  authorID,
		Text:      strings.TrimSpace(text),
	}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("service/comment: creating comment on %s: %w", article.Slug, err)
	}

	s.logger.InfoContext(ctx, "comment created",
		slog.String("commentID", comment.ID),
		slog.String("articleID", article.ID),
	)
	return comment, nil
}

// CreateThreadedComment replies to parentID. The reply inherits the
// parent's article whatever article the request was addressed to.
func (s *CommentService) CreateThreadedComment(ctx context.Context, parentID, authorID, text string) (*model.Comment, error) {
	if err := ValidateCommentText(text); err != nil {
		return nil, err
	}

	parent, err := s.repo.GetComment(ctx, parentID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ParentNotFound(parentID)
		}
		return nil, fmt.Errorf("service/comment: loading parent %s: %w", parentID, err)
	}

	reply := &model.Comment{
		ArticleID:       parent.ArticleID,
		AuthorID:        authorID,
		ParentCommentID: &parent.ID,
		Text:            strings.TrimSpace(text),
	}
	if err := s.repo.CreateComment(ctx, reply); err != nil {
		return nil, fmt.Errorf("service/comment: replying to %s: %w", parentID, err)
	}

	s.logger.InfoContext(ctx, "reply created",
		slog.String("commentID", reply.ID),
		slog.String("parentID", parent.ID),
	)
	return reply, nil
}

// LikeComment records userID's like on commentID and reports whether it is
// new. alreadyLiked short-circuits when the caller has already checked; the
// store is still the authority when two likes race.
func (s *CommentService) LikeComment(ctx context.Context, commentID, userID string, alreadyLiked bool) (bool, error) {
	if alreadyLiked {
		return false, nil
	}

	created, err := s.repo.AddLike(ctx, commentID, userID)
	if err != nil {
		return false, fmt.Errorf("service/comment: liking %s: %w", commentID, err)
	}
	if created {
		s.logger.InfoContext(ctx, "comment liked",
			slog.String("commentID", commentID),
			slog.String("userID", userID),
		)
	}
	return created, nil
}

// Threads loads the article's comments once and returns its root threads in
// creation order. Each thread is assembled only when the sequence reaches
// it, and the sequence may be ranged over more than once.
func (s *CommentService) Threads(ctx context.Context, articleID string) (iter.Seq[model.CommentThread], error) {
	comments, err := s.repo.ListComments(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("service/comment: listing comments for %s: %w", articleID, err)
	}
	return BuildThreads(comments), nil
}

// BuildThreads arranges a flat, oldest-first comment list into threads.
// A reply whose parent is not in the list is dropped, and no comment is
// emitted twice even if the parent links form a cycle.
func BuildThreads(comments []model.Comment) iter.Seq[model.CommentThread] {
	children := make(map[string][]int, len(comments))
	var roots []int
	for i, c := range comments {
		if c.IsRoot() {
			roots = append(roots, i)
			continue
		}
		children[*c.ParentCommentID] = append(children[*c.ParentCommentID], i)
	}

	return func(yield func(model.CommentThread) bool) {
		visited := make(map[string]bool, len(comments))

		var build func(i int) model.CommentThread
		build = func(i int) model.CommentThread {
			c := comments[i]
			visited[c.ID] = true

			thread := model.CommentThread{Comment: c, Replies: []model.CommentThread{}}
			for _, j := range children[c.ID] {
				if visited[comments[j].ID] {
					continue
				}
				thread.Replies = append(thread.Replies, build(j))
			}
			return thread
		}

		for _, i := range roots {
			if visited[comments[i].ID] {
				continue
			}
			if !yield(build(i)) {
				return
			}
		}
	}
}
