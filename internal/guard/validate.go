package guard

import (
	"encoding/json"
	"net/http"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/service"
)

const maxJSONBytes = 1 << 20

// decode reads the JSON body into a T.
func decode[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBytes))
	if err := dec.Decode(&v); err != nil {
		return v, apperror.ValidationFailed("body", "request body must be valid JSON")
	}
	return v, nil
}

// validator builds a guard that decodes a T, checks it and stores it as
// the context body.
func validator[T any](check func(T) error) Guard {
	return func(r *http.Request, c Context) (Context, error) {
		v, err := decode[T](r)
		if err != nil {
			return c, err
		}
		if err := check(v); err != nil {
			return c, err
		}
		c.Body = v
		return c, nil
	}
}

var (
	ValidateSignUp = validator(service.ValidateSignUp)
	ValidateSignIn = validator(service.ValidateSignIn)

	ValidateEmail = validator(func(in service.EmailInput) error {
		return service.ValidateEmail(in.Email)
	})

	ValidatePassword = validator(func(in service.PasswordInput) error {
		return service.ValidatePassword(in.Password)
	})

	VerifyText = validator(func(in service.CommentInput) error {
		return service.ValidateCommentText(in.Text)
	})
)

// ValidateArticle checks the article fields from a JSON or multipart body.
// With partial set, absent fields are allowed.
func ValidateArticle(partial bool) Guard {
	return func(r *http.Request, c Context) (Context, error) {
		var in service.ArticleInput
		if isMultipart(r) {
			if err := parseMultipart(r); err != nil {
				return c, err
			}
			in = service.ArticleInput{
				Title:       r.FormValue("title"),
				Description: r.FormValue("description"),
				Body:        r.FormValue("body"),
			}
		} else {
			v, err := decode[service.ArticleInput](r)
			if err != nil {
				return c, err
			}
			in = v
		}

		if err := service.ValidateArticle(in, partial); err != nil {
			return c, err
		}
		c.Body = in
		return c, nil
	}
}
