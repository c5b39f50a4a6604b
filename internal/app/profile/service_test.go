package profile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/folio-chat/internal/adapters/feed"
	"github.com/PabloGalante/folio-chat/internal/adapters/github"
	"github.com/PabloGalante/folio-chat/internal/app/profile"
)

type fakeGitHub struct {
	user      *github.User
	userErr   error
	repos     []github.Repo
	repoCalls int
}

func (f *fakeGitHub) User(context.Context, string) (*github.User, error) {
	return f.user, f.userErr
}

func (f *fakeGitHub) Repos(context.Context, github.RepoQuery) ([]github.Repo, error) {
	f.repoCalls++
	return f.repos, nil
}

type fakeFeed []feed.Item

func (f fakeFeed) Latest(context.Context, string, int) []feed.Item { return f }

func TestLoad(t *testing.T) {
	gh := &fakeGitHub{
		user:  &github.User{Login: "octocat", PublicRepos: 2},
		repos: []github.Repo{{Name: "hello"}},
	}
	svc := profile.NewService(gh, fakeFeed{{Title: "post"}}, profile.Options{
		Repos:  github.RepoQuery{Username: "octocat", Mode: github.ModeAutomatic},
		RSSURL: "https://example.com/rss",
	})

	p, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "octocat", p.User.Login)
	assert.Len(t, p.Repos, 1)
	assert.Len(t, p.Posts, 1)
}

func TestLoadSkipsRepoSearchWithoutPublicRepos(t *testing.T) {
	gh := &fakeGitHub{user: &github.User{Login: "octocat"}}
	svc := profile.NewService(gh, nil, profile.Options{
		Repos: github.RepoQuery{Username: "octocat", Mode: github.ModeAutomatic},
	})

	p, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, gh.repoCalls)
	assert.Empty(t, p.Repos)
	assert.Empty(t, p.Posts)
}

func TestLoadPropagatesGitHubErrors(t *testing.T) {
	gh := &fakeGitHub{userErr: github.ErrNotFound}
	svc := profile.NewService(gh, fakeFeed{{Title: "post"}}, profile.Options{
		Repos:  github.RepoQuery{Username: "ghost"},
		RSSURL: "https://example.com/rss",
	})

	_, err := svc.Load(context.Background())
	assert.ErrorIs(t, err, github.ErrNotFound)
}

func TestLoadNotConfigured(t *testing.T) {
	_, err := profile.NewService(&fakeGitHub{}, nil, profile.Options{}).Load(context.Background())
	assert.ErrorIs(t, err, profile.ErrNotConfigured)
}
