// Package guard implements the per-route authorization and validation chain.
//
// A route declares an ordered list of guards. Each guard inspects the
// request and the context built so far, and either returns an enriched
// context or halts the chain with an error. The handler only runs once every
// guard has passed, and receives the final context.
//
//	SignInAuth ─▶ ArticleExists ─▶ CheckAuthor ─▶ ValidateArticle ─▶ handler
//	  Identity       Article          (check)         Body
//
// Guards that check ownership must come after the guards that load the
// identity and the resource they compare.
package guard

import (
	"mime/multipart"
	"net/http"

	"github.com/sakif/authors-haven/internal/model"
)

// Context is the request-scoped value threaded through a chain. Guards
// receive it by value and return a new one; nothing is shared between
// requests.
type Context struct {
	Identity     *model.User
	Article      *model.Article
	Comment      *model.Comment
	Parent       *model.Comment
	AlreadyLiked bool

	// Image is the checked but not yet stored "image" upload.
	Image *multipart.FileHeader

	// Body is the decoded request body, set by the validator guards.
	Body any
}

// Guard checks one precondition.
type Guard func(r *http.Request, c Context) (Context, error)

// HandlerFunc is a handler that runs after a chain has passed.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, c Context)

// Chain runs guards in order.
type Chain []Guard

func Of(guards ...Guard) Chain {
	return Chain(guards)
}

// Run applies each guard in turn. The first error halts the chain and no
// later guard runs.
func (ch Chain) Run(r *http.Request, c Context) (Context, error) {
	for _, g := range ch {
		next, err := g(r, c)
		if err != nil {
			return c, err
		}
		c = next
	}
	return c, nil
}

// BodyAs returns the decoded body when it has type T.
func BodyAs[T any](c Context) (T, bool) {
	v, ok := c.Body.(T)
	return v, ok
}
