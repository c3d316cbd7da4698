package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// Profile is what an external identity provider tells us about a person.
// Emails is ordered with the provider's primary address first; it may be
// empty when the person hides every address.
type Profile struct {
	Provider    string
	ExternalID  string
	DisplayName string
	Emails      []string
	Photo       string
}

// PrimaryEmail returns the first non-empty email, or "".
func (p *Profile) PrimaryEmail() string {
	for _, e := range p.Emails {
		if e != "" {
			return e
		}
	}
	return ""
}

// IdentityProvider runs the authorization-code flow against one provider.
type IdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*Profile, error)
}

var _ IdentityProvider = (*GitHubProvider)(nil)

const githubAPI = "https://api.github.com"

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
// 1. Redirect the user to GitHub with our ClientID and scopes.
// 2. GitHub redirects back to CallbackURL with a short-lived "code".
// 3. Exchange the code for an access token (server-to-server, uses ClientSecret).
// 4. Call the GitHub API with the token for the profile and email addresses.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
}

// NewGitHubProvider creates a GitHubProvider with the given credentials.
//
// Scopes we request:
//   - "read:user":  public profile (id, login, name, avatar)
//   - "user:email": the email list, including addresses hidden from the profile
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase: githubAPI,
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
// state is echoed back on the callback and checked against a cookie.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Exchange trades the authorization code for a Profile.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// The client adds "Authorization: Bearer <token>" to every request.
	client := p.config.Client(ctx, oauthToken)

	var gh githubUser
	if err := getJSON(ctx, client, p.apiBase+"/user", &gh); err != nil {
		return nil, err
	}
	if gh.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	profile := &Profile{
		Provider:    "github",
		ExternalID:  strconv.FormatInt(gh.ID, 10),
		DisplayName: gh.Name,
		Photo:       gh.AvatarURL,
	}
	if profile.DisplayName == "" {
		profile.DisplayName = gh.Login
	}

	// The email list is best effort: a failure leaves only the public one.
	var emails []githubEmail
	if err := getJSON(ctx, client, p.apiBase+"/user/emails", &emails); err == nil {
		for _, e := range emails {
			if e.Primary && e.Verified {
				profile.Emails = append([]string{e.Email}, profile.Emails...)
			} else if e.Verified {
				profile.Emails = append(profile.Emails, e.Email)
			}
		}
	}
	if len(profile.Emails) == 0 && gh.Email != "" {
		profile.Emails = []string{gh.Email}
	}

	return profile, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("auth: building request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: %s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("auth: decoding %s: %w", url, err)
	}
	return nil
}
