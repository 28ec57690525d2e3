package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/app"
	"github.com/locolive/proconnect/internal/client"
	"github.com/locolive/proconnect/internal/config"
	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/logging"
	"github.com/locolive/proconnect/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{}
	err := c.rootCmd().ExecuteContext(ctx)
	c.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 when retrying may help and 1 otherwise
func exitCode(err error) int {
	if domain.Recoverable(err) {
		return 2
	}
	return 1
}

// cli carries what every command shares: configuration, the logger and the local store
type cli struct {
	cfg    *config.Config
	logger *zap.Logger
	store  storage.Store

	offline bool
	// clientOpts is set by tests to route requests to an in-process server
	clientOpts []client.Option
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "proconnect",
		Short:         "Manage your professional network from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.Context())
		},
	}
	root.PersistentFlags().BoolVar(&c.offline, "offline", false, "work on the locally saved state without syncing first")

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.syncCmd(),
		c.statusCmd(),
		c.usersCmd(),
		c.suggestCmd(),
		c.dismissCmd(),
		c.undismissCmd(),
		c.requestsCmd(),
		c.connectionsCmd(),
		c.connectCmd(),
		c.respondCmd("accept", domain.ActionAccept),
		c.respondCmd("decline", domain.ActionDecline),
		c.withdrawCmd(),
		c.removeCmd(),
		c.followCmd(),
		c.unfollowCmd(),
		c.feedCmd(),
		c.postCmd(),
		c.likeCmd(),
		c.commentsCmd(),
		c.commentCmd(),
		c.editCommentCmd(),
		c.deleteCommentCmd(),
		c.notificationsCmd(),
		c.readCmd(),
		c.readAllCmd(),
		c.notesCmd(),
	)
	return root
}

func (c *cli) setup(ctx context.Context) error {
	if c.cfg != nil {
		return nil
	}
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log, false)
	if err != nil {
		return err
	}
	store, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open local storage: %w", err)
	}

	c.cfg = cfg
	c.logger = logger
	c.store = store
	return nil
}

func (c *cli) close() {
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Warn("failed to close local storage", zap.Error(err))
		}
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

// withApp opens the signed-in core, syncs it unless sync is false or --offline is set,
// runs fn and saves the local state whatever fn returned
func (c *cli) withApp(ctx context.Context, sync bool, fn func(a *app.App) error) (err error) {
	a, err := app.Open(ctx, c.cfg.API, c.store, c.logger, c.clientOpts...)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return fmt.Errorf("%w: run 'proconnect login <user-id>' first", err)
		}
		return err
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if sync && !c.offline {
		if err := a.Sync(ctx); err != nil {
			return err
		}
	}
	return fn(a)
}
