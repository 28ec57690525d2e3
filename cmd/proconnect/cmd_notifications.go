package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/locolive/proconnect/internal/app"
	"github.com/locolive/proconnect/internal/domain"
)

func (c *cli) notificationsCmd() *cobra.Command {
	var unread bool
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				list := a.Notifications.All()
				if unread {
					list = a.Notifications.Unread()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d unread\n", a.Notifications.UnreadCount())
				tw := table(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\t\tKIND\tTITLE\tWHEN")
				for _, n := range list {
					mark := ""
					if !n.IsRead {
						mark = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", n.ID, mark, n.Kind, n.Title, n.CreatedAt.Format(time.DateTime))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVarP(&unread, "unread", "u", false, "only unread notifications")
	return cmd
}

func (c *cli) readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <notification-id>...",
		Short: "Mark notifications read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]domain.ID, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				for _, id := range ids {
					if err := a.Notifications.MarkRead(cmd.Context(), id); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d unread\n", a.Notifications.UnreadCount())
				return nil
			})
		},
	}
}

func (c *cli) readAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				if err := a.Notifications.MarkAllRead(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "0 unread")
				return nil
			})
		},
	}
}

func (c *cli) notesCmd() *cobra.Command {
	var clearNotes bool
	cmd := &cobra.Command{
		Use:   "notes [text]",
		Short: "Show or replace your private notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), false, func(a *app.App) error {
				out := cmd.OutOrStdout()
				switch {
				case clearNotes:
					if err := a.Notes.Clear(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(out, "notes cleared")
				case len(args) > 0:
					if _, err := a.Notes.Set(cmd.Context(), strings.Join(args, " ")); err != nil {
						return err
					}
					fmt.Fprintln(out, "notes saved")
				default:
					note, err := a.Notes.Get(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintln(out, note.Text)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&clearNotes, "clear", false, "delete the saved notes")
	return cmd
}
