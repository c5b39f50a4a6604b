// Package profile assembles the portfolio owner's public profile shown
// next to the chat widget.
package profile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/PabloGalante/folio-chat/internal/adapters/feed"
	"github.com/PabloGalante/folio-chat/internal/adapters/github"
	"github.com/PabloGalante/folio-chat/internal/observability"
)

var ErrNotConfigured = errors.New("profile: no github username configured")

type GitHub interface {
	User(ctx context.Context, username string) (*github.User, error)
	Repos(ctx context.Context, q github.RepoQuery) ([]github.Repo, error)
}

type Feed interface {
	Latest(ctx context.Context, rssURL string, limit int) []feed.Item
}

type Options struct {
	Repos     github.RepoQuery
	RSSURL    string
	FeedLimit int
}

type Profile struct {
	User  *github.User  `json:"user"`
	Repos []github.Repo `json:"repos"`
	Posts []feed.Item   `json:"posts"`
}

type Service struct {
	github GitHub
	feed   Feed
	opts   Options
}

// NewService builds a profile service. feed may be nil.
func NewService(gh GitHub, f Feed, opts Options) *Service {
	return &Service{github: gh, feed: f, opts: opts}
}

// Load fetches the GitHub data and the feed concurrently. GitHub errors
// are returned; the feed only ever contributes an empty list.
func (s *Service) Load(ctx context.Context) (*Profile, error) {
	if s.opts.Repos.Username == "" {
		return nil, ErrNotConfigured
	}

	out := &Profile{Repos: []github.Repo{}, Posts: []feed.Item{}}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		u, err := s.github.User(gctx, s.opts.Repos.Username)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		out.User = u

		if s.opts.Repos.Mode != github.ModeManual && u.PublicRepos == 0 {
			return nil
		}
		repos, err := s.github.Repos(gctx, s.opts.Repos)
		if err != nil {
			return fmt.Errorf("load repos: %w", err)
		}
		out.Repos = repos
		return nil
	})

	if s.feed != nil && s.opts.RSSURL != "" {
		g.Go(func() error {
			out.Posts = s.feed.Latest(gctx, s.opts.RSSURL, s.opts.FeedLimit)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		observability.LoggerFromContext(ctx).Warn("failed to load profile",
			zap.String("username", s.opts.Repos.Username), zap.Error(err))
		return nil, err
	}
	return out, nil
}
