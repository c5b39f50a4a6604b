package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/PabloGalante/folio-chat/internal/adapters/backend"
	"github.com/PabloGalante/folio-chat/internal/adapters/feed"
	"github.com/PabloGalante/folio-chat/internal/adapters/github"
	firestorestore "github.com/PabloGalante/folio-chat/internal/adapters/storage/firestore"
	"github.com/PabloGalante/folio-chat/internal/adapters/storage/memory"
	"github.com/PabloGalante/folio-chat/internal/adapters/storage/postgres"
	"github.com/PabloGalante/folio-chat/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/folio-chat/internal/app/conversation"
	"github.com/PabloGalante/folio-chat/internal/app/profile"
	"github.com/PabloGalante/folio-chat/internal/config"
	"github.com/PabloGalante/folio-chat/internal/domain"
	"github.com/PabloGalante/folio-chat/internal/observability"
)

// app holds the wired services of one process.
type app struct {
	conversations *conversation.Service
	dispatches    domain.DispatchRecorder
	profiles      *profile.Service // nil without a github username

	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{}

	chatBackend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a.dispatches, err = a.openDispatchLog(ctx, cfg.DispatchLog)
	if err != nil {
		return nil, err
	}

	a.conversations = conversation.NewService(
		chatBackend,
		memory.NewSessionStore(),
		func() domain.MessageStore { return memory.NewMessageStore() },
		a.dispatches,
		conversation.Settings{
			Timeout:       cfg.Chat.Timeout,
			MaxInputRunes: cfg.Chat.MaxInputRunes,
			Greeting:      cfg.Chat.Greeting,
			MaxSessions:   cfg.Chat.MaxSessions,
		},
	)

	a.profiles = newProfileService(cfg, log)

	log.Info("application wired",
		zap.String("backend", string(cfg.Chat.Backend)),
		zap.String("dispatch_log", string(cfg.DispatchLog.Backend)),
		zap.Bool("profile", a.profiles != nil))
	return a, nil
}

func newBackend(ctx context.Context, cfg *config.Config) (domain.Backend, error) {
	switch cfg.Chat.Backend {
	case config.BackendMock:
		return backend.NewMock(), nil

	case config.BackendGemini:
		var portfolio string
		if cfg.Gemini.ContextFile != "" {
			b, err := os.ReadFile(cfg.Gemini.ContextFile)
			if err != nil {
				return nil, fmt.Errorf("read gemini context file: %w", err)
			}
			portfolio = string(b)
		}
		return backend.NewGeminiClient(ctx, backend.GeminiConfig{
			Project:   cfg.Gemini.Project,
			Location:  cfg.Gemini.Location,
			APIKey:    cfg.Gemini.APIKey,
			Model:     cfg.Gemini.Model,
			Owner:     cfg.Gemini.Owner,
			Portfolio: portfolio,
		})

	default:
		return backend.NewRESTClient(backend.RESTConfig{
			BaseURL: cfg.Chat.BaseURL,
			Path:    cfg.Chat.Path,
		}), nil
	}
}

func (a *app) openDispatchLog(ctx context.Context, c config.DispatchLogConfig) (domain.DispatchRecorder, error) {
	switch c.Backend {
	case config.DispatchLogNone:
		return nil, nil

	case config.DispatchLogSQLite:
		l, err := sqlite.Open(ctx, c.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, l.Close)
		return l, nil

	case config.DispatchLogPostgres:
		l, err := postgres.Open(ctx, c.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, l.Close)
		return l, nil

	case config.DispatchLogFirestore:
		s, err := firestorestore.NewStore(ctx, c.FirestoreProject)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil

	default:
		return memory.NewDispatchLog(c.Capacity), nil
	}
}

func newProfileService(cfg *config.Config, log *zap.Logger) *profile.Service {
	if cfg.GitHub.Username == "" {
		return nil
	}

	gh := github.NewClient(github.Config{
		BaseURL: cfg.GitHub.BaseURL,
		Token:   cfg.GitHub.Token,
		Logger:  observability.Logr(log),
	})

	var fd profile.Feed
	if cfg.Feed.RSSURL != "" {
		fd = feed.NewClient(feed.Config{
			BridgeURL: cfg.Feed.BridgeURL,
			Logger:    observability.Logr(log),
		})
	}

	return profile.NewService(gh, fd, profile.Options{
		Repos: github.RepoQuery{
			Username:     cfg.GitHub.Username,
			Mode:         github.Mode(cfg.GitHub.Mode),
			SortBy:       cfg.GitHub.SortBy,
			Limit:        cfg.GitHub.Limit,
			ExcludeForks: cfg.GitHub.ExcludeForks,
			Exclude:      cfg.GitHub.ExcludeProjects,
			Projects:     cfg.GitHub.ManualProjects,
		},
		RSSURL:    cfg.Feed.RSSURL,
		FeedLimit: cfg.Feed.Limit,
	})
}
