// Package github reads the public profile and repositories shown next to
// the chat widget.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://api.github.com"

var (
	ErrRateLimited = errors.New("github: rate limit exceeded")
	ErrNotFound    = errors.New("github: user not found")
)

// RateLimitError is returned on 403. It matches ErrRateLimited.
type RateLimitError struct {
	// Reset is when the quota refills, zero if the header was missing.
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s, resets at %s", ErrRateLimited, e.Reset.Format(time.RFC3339))
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// StatusError is any other non-2xx answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github: unexpected status %d: %s", e.StatusCode, e.Body)
}

type User struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	AvatarURL   string `json:"avatar_url"`
	HTMLURL     string `json:"html_url"`
	Location    string `json:"location"`
	Company     string `json:"company"`
	Blog        string `json:"blog"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
}

type Repo struct {
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	Description string    `json:"description"`
	HTMLURL     string    `json:"html_url"`
	Homepage    string    `json:"homepage"`
	Language    string    `json:"language"`
	Topics      []string  `json:"topics"`
	Stars       int       `json:"stargazers_count"`
	Forks       int       `json:"forks_count"`
	Fork        bool      `json:"fork"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Mode string

const (
	ModeAutomatic Mode = "automatic"
	ModeManual    Mode = "manual"
)

// RepoQuery selects the repositories to show. In automatic mode the
// user's repositories are searched; in manual mode exactly the listed
// "owner/name" projects are fetched.
type RepoQuery struct {
	Username     string
	Mode         Mode
	SortBy       string
	Limit        int
	ExcludeForks bool
	Exclude      []string
	Projects     []string
}

type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     logr.Logger
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     logr.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    cfg.HTTPClient,
		log:     cfg.Logger.WithName("github"),
	}
}

func (c *Client) User(ctx context.Context, username string) (*User, error) {
	var u User
	if err := c.get(ctx, "/users/"+url.PathEscape(username), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Repos(ctx context.Context, q RepoQuery) ([]Repo, error) {
	params := url.Values{}
	params.Set("type", "Repositories")

	switch q.Mode {
	case ModeManual:
		if len(q.Projects) == 0 {
			return []Repo{}, nil
		}
		terms := make([]string, 0, len(q.Projects))
		for _, p := range q.Projects {
			terms = append(terms, "repo:"+p)
		}
		params.Set("q", strings.Join(terms, " "))
	default:
		terms := []string{"user:" + q.Username, "fork:" + strconv.FormatBool(!q.ExcludeForks)}
		for _, p := range q.Exclude {
			terms = append(terms, "-repo:"+p)
		}
		params.Set("q", strings.Join(terms, " "))
		if q.SortBy != "" {
			params.Set("sort", q.SortBy)
		}
		if q.Limit > 0 {
			params.Set("per_page", strconv.Itoa(q.Limit))
		}
	}

	var out struct {
		Items []Repo `json:"items"`
	}
	if err := c.get(ctx, "/search/repositories", params, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []Repo{}
	}
	return out.Items, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.log.V(1).Info("request", "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		rl := &RateLimitError{}
		if sec, perr := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); perr == nil {
			rl.Reset = time.Unix(sec, 0).UTC()
		}
		c.log.Info("rate limited", "path", path, "reset", rl.Reset)
		return rl
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}
