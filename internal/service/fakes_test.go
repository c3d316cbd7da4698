package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/notify"
	"github.com/sakif/authors-haven/internal/repository"
)

// =========================================================================
// FAKES
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. Commit uses the
// same compare-and-set condition as the SQL implementation.
type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[string]*model.User
	nextID  int
	getErr  error
	armErr  error
	created int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	f.created++
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) ArmPasswordReset(_ context.Context, userID, tokenID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armErr != nil {
		return f.armErr
	}
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.ResetUsed = false
	u.ResetTokenID = tokenID
	return nil
}

func (f *fakeUserRepo) CommitPasswordReset(_ context.Context, userID, email, tokenID, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok || u.Email != strings.ToLower(email) || u.ResetUsed || u.ResetTokenID != tokenID {
		return false, nil
	}
	u.PasswordHash = hash
	u.ResetUsed = true
	return true, nil
}

// fakeMailer records every dispatched message.
type fakeMailer struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (m *fakeMailer) Dispatch(_ context.Context, msg notify.Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return true
}

func (m *fakeMailer) last() (notify.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.msgs) == 0 {
		return notify.Message{}, false
	}
	return m.msgs[len(m.msgs)-1], true
}

type fakeArticleRepo struct {
	mu       sync.Mutex
	articles map[string]*model.Article // keyed by slug
	seq      int
	lastOpts repository.ListOptions
}

func newFakeArticleRepo() *fakeArticleRepo {
	return &fakeArticleRepo{articles: make(map[string]*model.Article)}
}

func (f *fakeArticleRepo) CreateArticle(_ context.Context, a *model.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.articles[a.Slug]; ok {
		return apperror.Conflict("article", a.Slug)
	}
	f.seq++
	a.ID = fmt.Sprintf("article-%d", f.seq)
	a.CreatedAt = time.Now().Add(time.Duration(f.seq) * time.Millisecond)
	a.UpdatedAt = a.CreatedAt
	copied := *a
	f.articles[a.Slug] = &copied
	return nil
}

func (f *fakeArticleRepo) GetArticleBySlug(_ context.Context, slug string) (*model.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.articles[slug]
	if !ok {
		return nil, apperror.NotFound("article", slug)
	}
	copied := *a
	return &copied, nil
}

func (f *fakeArticleRepo) ListArticles(_ context.Context, opts repository.ListOptions) ([]model.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOpts = opts
	out := make([]model.Article, 0, len(f.articles))
	for _, a := range f.articles {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if opts.Offset >= len(out) {
		return []model.Article{}, nil
	}
	out = out[opts.Offset:]
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeArticleRepo) UpdateArticle(_ context.Context, a *model.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.articles[a.Slug]; !ok {
		return apperror.NotFound("article", a.Slug)
	}
	copied := *a
	f.articles[a.Slug] = &copied
	return nil
}

func (f *fakeArticleRepo) DeleteArticle(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for slug, a := range f.articles {
		if a.ID == id {
			delete(f.articles, slug)
			return nil
		}
	}
	return apperror.NotFound("article", id)
}

type fakeCommentRepo struct {
	mu       sync.Mutex
	comments []model.Comment
	likes    map[[2]string]bool
	listErr  error
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{likes: make(map[[2]string]bool)}
}

func (f *fakeCommentRepo) CreateComment(_ context.Context, c *model.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = fmt.Sprintf("comment-%d", len(f.comments)+1)
	c.CreatedAt = time.Now()
	f.comments = append(f.comments, *c)
	return nil
}

func (f *fakeCommentRepo) GetComment(_ context.Context, id string) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.comments {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, apperror.NotFound("comment", id)
}

func (f *fakeCommentRepo) ListComments(_ context.Context, articleID string) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.Comment
	for _, c := range f.comments {
		if c.ArticleID == articleID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCommentRepo) HasLiked(_ context.Context, commentID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.likes[[2]string{commentID, userID}], nil
}

func (f *fakeCommentRepo) AddLike(_ context.Context, commentID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]string{commentID, userID}
	if f.likes[key] {
		return false, nil
	}
	f.likes[key] = true
	return true, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
