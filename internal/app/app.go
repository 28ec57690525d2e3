// Package app wires the client core together for one signed-in viewer: the API client,
// the relationship repository and every state machine that works on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/locolive/proconnect/internal/client"
	"github.com/locolive/proconnect/internal/config"
	"github.com/locolive/proconnect/internal/connections"
	"github.com/locolive/proconnect/internal/discovery"
	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/engagement"
	"github.com/locolive/proconnect/internal/graph"
	"github.com/locolive/proconnect/internal/notes"
	"github.com/locolive/proconnect/internal/notifications"
	"github.com/locolive/proconnect/internal/session"
	"github.com/locolive/proconnect/internal/storage"
)

const tokenKey = "session/token.json"

type savedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// state is what survives between runs for a viewer
type state struct {
	Graph     graph.Snapshot   `json:"graph"`
	Users     []domain.UserRef `json:"users"`
	Dismissed []domain.UserID  `json:"dismissed"`
	SyncedAt  time.Time        `json:"synced_at"`
}

type App struct {
	Session       *session.Session
	Client        *client.Client
	Graph         *graph.Repository
	Connections   *connections.Service
	Discovery     *discovery.Filter
	Engagement    *engagement.Reconciler
	Notifications *notifications.Tracker
	Notes         *notes.Notes

	store  storage.Store
	logger *zap.Logger

	users    []domain.UserRef
	posts    []domain.Post
	syncedAt time.Time
}

// Login obtains a token for userID and remembers it in the store for later runs
func Login(ctx context.Context, c *client.Client, store storage.Store, userID domain.UserID) (*session.Session, error) {
	tok, err := c.Login(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	sess, err := session.FromToken(tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := storage.SaveJSON(ctx, store, tokenKey, savedToken{AccessToken: tok.AccessToken, ExpiresAt: tok.ExpiresAt}); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return sess, nil
}

// Logout forgets the remembered token
func Logout(ctx context.Context, store storage.Store) error {
	return store.Delete(ctx, tokenKey)
}

// Open builds the core for the viewer named by the configured token, or the remembered one
// if none is configured. Local state from an earlier run is restored.
func Open(ctx context.Context, cfg config.APIConfig, store storage.Store, logger *zap.Logger, opts ...client.Option) (*App, error) {
	token := cfg.Token
	if token == "" {
		saved, err := storage.LoadJSON[savedToken](ctx, store, tokenKey)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("read saved token: %w", err)
		}
		token = saved.AccessToken
	}

	sess, err := session.FromToken(token)
	if err != nil {
		return nil, err
	}
	if err := sess.Valid(time.Now()); err != nil {
		return nil, err
	}

	c := client.New(cfg, logger, opts...)
	c.SetToken(sess.Token)

	repo := graph.NewRepository()
	a := &App{
		Session:       sess,
		Client:        c,
		Graph:         repo,
		Connections:   connections.NewService(sess.Viewer, c, repo, logger),
		Discovery:     discovery.NewFilter(sess.Viewer.ID, repo),
		Engagement:    engagement.NewReconciler(sess.Viewer, c, logger),
		Notifications: notifications.NewTracker(c, logger),
		Notes:         notes.New(store, sess.Viewer.ID),
		store:         store,
		logger:        logger.With(zap.Stringer("viewer", sess.Viewer.ID)),
	}

	if err := a.restore(ctx); err != nil {
		a.logger.Warn("discarding unreadable local state", zap.Error(err))
	}
	return a, nil
}

func (a *App) stateKey() string {
	return "state/" + a.Session.Viewer.ID.String() + ".json"
}

func (a *App) restore(ctx context.Context) error {
	st, err := storage.LoadJSON[state](ctx, a.store, a.stateKey())
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := a.Graph.Restore(st.Graph); err != nil {
		a.logger.Warn("skipped inconsistent records in local state", zap.Error(err))
	}
	a.users = st.Users
	a.Discovery.SetUsers(st.Users)
	for _, id := range st.Dismissed {
		a.Discovery.Dismiss(id)
	}
	a.syncedAt = st.SyncedAt
	return nil
}

// Save writes the confirmed part of the local state to the store
func (a *App) Save(ctx context.Context) error {
	st := state{
		Graph:     a.Graph.Snapshot(),
		Users:     a.users,
		Dismissed: a.Discovery.Dismissed(),
		SyncedAt:  a.syncedAt,
	}
	if err := storage.SaveJSON(ctx, a.store, a.stateKey(), st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Sync pulls the viewer's graph, notifications, the user directory and the feed concurrently
func (a *App) Sync(ctx context.Context) error {
	var (
		users []domain.UserRef
		posts []domain.Post
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Connections.Hydrate(gctx)
	})
	g.Go(func() error {
		return a.Notifications.Load(gctx)
	})
	g.Go(func() error {
		var err error
		users, err = domain.AllPages(gctx, a.Client.ListUsers)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// first page only, the feed is not paged through eagerly
		page, err := a.Client.ListPosts(gctx, 1)
		if err != nil {
			return fmt.Errorf("list posts: %w", err)
		}
		posts = page.Results
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	a.users = users
	a.Discovery.SetUsers(users)
	a.posts = posts
	for _, p := range posts {
		a.Engagement.Track(p)
	}
	a.syncedAt = time.Now().UTC()

	a.logger.Info("synced",
		zap.Int("users", len(users)),
		zap.Int("posts", len(posts)),
		zap.Int("unread", a.Notifications.UnreadCount()),
	)
	return nil
}

// SyncedAt is when the last successful Sync finished, zero if never
func (a *App) SyncedAt() time.Time {
	return a.syncedAt
}

// Posts returns the feed as of the last sync with engagement as the viewer currently sees it
func (a *App) Posts() []domain.Post {
	out := slices.Clone(a.posts)
	for i := range out {
		if st, ok := a.Engagement.State(out[i].ID); ok {
			out[i].LikeCount = st.LikeCount
			out[i].UserHasLiked = st.UserHasLiked
			out[i].Reaction = st.Reaction
			out[i].CommentCount = st.CommentCount
		}
	}
	return out
}

// User looks a user up in the directory, falling back to a bare reference
func (a *App) User(id domain.UserID) domain.UserRef {
	for _, u := range a.users {
		if u.ID == id {
			return u
		}
	}
	return domain.UserRef{ID: id}
}

// Close stops in-flight reconciliation and saves local state
func (a *App) Close(ctx context.Context) error {
	a.Connections.Close()
	return a.Save(ctx)
}
