package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/locolive/proconnect/internal/app"
	"github.com/locolive/proconnect/internal/client"
	"github.com/locolive/proconnect/internal/discovery"
	"github.com/locolive/proconnect/internal/domain"
)

func parseUserID(s string) (domain.UserID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid user id %q: %w", s, domain.ErrValidation)
	}
	return domain.UserID(v), nil
}

func parseID(s string) (domain.ID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid id %q: %w", s, domain.ErrValidation)
	}
	return domain.ID(v), nil
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func userLabel(u domain.UserRef) string {
	if u.DisplayName == "" {
		return "#" + u.ID.String()
	}
	return fmt.Sprintf("%s (#%s)", u.DisplayName, u.ID)
}

func (c *cli) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <user-id>",
		Short: "Sign in as a user and remember the token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			api := client.New(c.cfg.API, c.logger, c.clientOpts...)
			sess, err := app.Login(cmd.Context(), api, c.store, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", userLabel(sess.Viewer))
			return nil
		},
	}
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the remembered token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Logout(cmd.Context(), c.store); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func (c *cli) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull connections, notifications, users and the feed from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				fmt.Fprintf(cmd.OutOrStdout(), "synced at %s\n", a.SyncedAt().Format(time.RFC3339))
				return nil
			})
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [user-id]",
		Short: "Show a summary of your network, or your relationship with one user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), false, func(a *app.App) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					id, err := parseUserID(args[0])
					if err != nil {
						return err
					}
					viewer := a.Session.Viewer.ID
					line := fmt.Sprintf("%s: %s", userLabel(a.User(id)), a.Connections.Status(id))
					if req, ok := a.Graph.PendingBetween(viewer, id); ok {
						line += fmt.Sprintf(" (request %s)", req.ID)
					}
					if conn, ok := a.Graph.ConnectionBetween(viewer, id); ok {
						line += fmt.Sprintf(" (connection %s)", conn.ID)
					}
					if a.Graph.IsFollowing(viewer, id) {
						line += ", following"
					}
					if a.Graph.IsFollowing(id, viewer) {
						line += ", follows you"
					}
					fmt.Fprintln(out, line)
					return nil
				}

				viewer := a.Session.Viewer.ID
				synced := "never"
				if at := a.SyncedAt(); !at.IsZero() {
					synced = at.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "signed in as %s\n", userLabel(a.Session.Viewer))
				fmt.Fprintf(out, "last sync:   %s\n", synced)
				fmt.Fprintf(out, "connections: %d\n", len(a.Graph.Connections(viewer)))
				fmt.Fprintf(out, "incoming:    %d\n", len(a.Graph.PendingIncoming(viewer)))
				fmt.Fprintf(out, "outgoing:    %d\n", len(a.Graph.PendingOutgoing(viewer)))
				fmt.Fprintf(out, "following:   %d\n", len(a.Graph.Following(viewer)))
				fmt.Fprintf(out, "followers:   %d\n", len(a.Graph.Followers(viewer)))
				return nil
			})
		},
	}
}

func (c *cli) usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users [search]",
		Short: "Search the user directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			search := ""
			if len(args) == 1 {
				search = args[0]
			}
			return c.withApp(cmd.Context(), false, func(a *app.App) error {
				page, err := a.Client.SearchUsers(cmd.Context(), search, 1)
				if err != nil {
					return err
				}
				tw := table(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tNAME\tHEADLINE\tSTATUS")
				for _, u := range page.Results {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.DisplayName, u.Headline, a.Connections.Status(u.ID))
				}
				return tw.Flush()
			})
		},
	}
}

func (c *cli) suggestCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "List people you may know",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), false, func(a *app.App) error {
				users := discovery.Top(a.Discovery.Seq(), limit)
				if limit <= 0 {
					users = a.Discovery.List()
				}
				tw := table(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tNAME\tHEADLINE")
				for _, u := range users {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", u.ID, u.DisplayName, u.Headline)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of suggestions, 0 for all")
	return cmd
}

func (c *cli) dismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <user-id>",
		Short: "Hide a user from suggestions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), false, func(a *app.App) error {
				a.Discovery.Dismiss(id)
				fmt.Fprintf(cmd.OutOrStdout(), "dismissed %s\n", userLabel(a.User(id)))
				return nil
			})
		},
	}
}

func (c *cli) undismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undismiss <user-id>",
		Short: "Show a dismissed user in suggestions again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), false, func(a *app.App) error {
				a.Discovery.Undismiss(id)
				fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", userLabel(a.User(id)))
				return nil
			})
		},
	}
}

func (c *cli) requestsCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List pending connection requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				viewer := a.Session.Viewer.ID
				list := append(a.Graph.PendingIncoming(viewer), a.Graph.PendingOutgoing(viewer)...)
				if all {
					list = a.Graph.Requests(viewer)
				}
				tw := table(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tDIRECTION\tUSER\tSTATUS\tMESSAGE")
				for _, req := range list {
					dir, other := "in", req.Sender
					if req.Sender.ID == viewer {
						dir, other = "out", req.Receiver
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", req.ID, dir, userLabel(other), req.Status, req.Message)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include answered and withdrawn requests")
	return cmd
}

func (c *cli) connectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connections",
		Short: "List your connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				viewer := a.Session.Viewer.ID
				tw := table(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tUSER\tSINCE")
				for _, conn := range a.Graph.Connections(viewer) {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", conn.ID, userLabel(conn.Other(viewer)), conn.ConnectedAt.Format(time.DateOnly))
				}
				return tw.Flush()
			})
		},
	}
}

func (c *cli) connectCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "connect <user-id>",
		Short: "Send a connection request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				req, err := a.Connections.SendRequest(cmd.Context(), a.User(id), message)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "request %s sent to %s\n", req.ID, userLabel(req.Receiver))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "note sent along with the request")
	return cmd
}

func (c *cli) respondCmd(name string, action domain.RespondAction) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <request-id>",
		Short: "Answer a connection request addressed to you with " + string(action),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				req, err := a.Connections.Respond(cmd.Context(), id, action)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "request %s from %s %s\n", req.ID, userLabel(req.Sender), req.Status)
				return nil
			})
		},
	}
}

func (c *cli) withdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <request-id>",
		Short: "Cancel a pending request you sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				if err := a.Connections.Withdraw(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "request %s withdrawn\n", id)
				return nil
			})
		},
	}
}

func (c *cli) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <connection-id>",
		Short: "Remove a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				if err := a.Connections.RemoveConnection(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "connection %s removed\n", id)
				return nil
			})
		},
	}
}

func (c *cli) followCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "follow <user-id>",
		Short: "Follow a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				f, err := a.Connections.Follow(cmd.Context(), a.User(id))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "following %s\n", userLabel(f.Following))
				return nil
			})
		},
	}
}

func (c *cli) unfollowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unfollow <user-id>",
		Short: "Stop following a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				if err := a.Connections.Unfollow(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "unfollowed %s\n", userLabel(a.User(id)))
				return nil
			})
		},
	}
}
