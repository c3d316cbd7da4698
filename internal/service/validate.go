package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/authors-haven/internal/apperror"
)

// Validation limits.
const (
	MaxNameLength        = 50
	MinPasswordLength    = 8
	MaxPasswordBytes     = 72
	MaxTitleLength       = 150
	MaxDescriptionLength = 300
	MaxCommentLength     = 2000
	DefaultListLimit     = 20
	MaxListLimit         = 100
)

// SignUpInput is the body of POST /users/signup.
type SignUpInput struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// SignInInput is the body of POST /users/signin.
type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ArticleInput is the body of POST and PUT /articles.
type ArticleInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Body        string `json:"body"`
}

// EmailInput is the body of POST /users/forgot-password.
type EmailInput struct {
	Email string `json:"email"`
}

// PasswordInput is the body of PUT /users/reset-password/{token}.
type PasswordInput struct {
	Password string `json:"password"`
}

// CommentInput is the body of the comment and reply routes.
type CommentInput struct {
	Text string `json:"text"`
}

func ValidateSignUp(in SignUpInput) error {
	if err := validateName("firstname", in.Firstname); err != nil {
		return err
	}
	if err := validateName("lastname", in.Lastname); err != nil {
		return err
	}
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	return ValidatePassword(in.Password)
}

// ValidateSignIn only checks presence; the credentials themselves are
// checked by SignIn so a bad shape and a bad password look different.
func ValidateSignIn(in SignInInput) error {
	if strings.TrimSpace(in.Email) == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	if in.Password == "" {
		return apperror.ValidationFailed("password", "password is required")
	}
	return nil
}

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperror.ValidationFailed("email", "email is not a valid address")
	}
	return nil
}

// ValidatePassword requires 8 to 72 bytes with at least one letter and one digit.
func ValidatePassword(password string) error {
	if password == "" {
		return apperror.ValidationFailed("password", "password is required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", MaxPasswordBytes))
	}

	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return apperror.ValidationFailed("password", "password must contain a letter and a digit")
	}
	return nil
}

// ValidateArticle checks a full article, or with partial set only the
// fields that are present.
func ValidateArticle(in ArticleInput, partial bool) error {
	title := strings.TrimSpace(in.Title)
	body := strings.TrimSpace(in.Body)

	if partial && title == "" && body == "" && strings.TrimSpace(in.Description) == "" {
		return apperror.ValidationFailed("body", "nothing to update")
	}
	if !partial && title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if utf8.RuneCountInString(in.Description) > MaxDescriptionLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	if !partial && body == "" {
		return apperror.ValidationFailed("body", "body is required")
	}
	return nil
}

// ValidateCommentText requires non-blank text within the length limit.
func ValidateCommentText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return apperror.ValidationFailed("text", "comment text is required")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return apperror.ValidationFailed("text",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}
	return nil
}

func validateName(field, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return apperror.ValidationFailed(field, field+" is required")
	}
	if utf8.RuneCountInString(v) > MaxNameLength {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be %d characters or less", field, MaxNameLength))
	}
	for _, r := range v {
		if !unicode.IsLetter(r) && r != '-' && r != '\'' && r != ' ' {
			return apperror.ValidationFailed(field, field+" may only contain letters")
		}
	}
	return nil
}
