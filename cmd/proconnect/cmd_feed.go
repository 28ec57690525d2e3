package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/locolive/proconnect/internal/app"
	"github.com/locolive/proconnect/internal/domain"
)

func (c *cli) feedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feed",
		Short: "Show the latest posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				out := cmd.OutOrStdout()
				for _, p := range a.Posts() {
					liked := ""
					if p.UserHasLiked {
						liked = fmt.Sprintf(" (you: %s)", p.Reaction)
					}
					fmt.Fprintf(out, "[%s] %s, %s\n", p.ID, userLabel(p.Author), p.CreatedAt.Format(time.DateTime))
					fmt.Fprintf(out, "  %s\n", p.Content)
					fmt.Fprintf(out, "  %d likes%s, %d comments\n\n", p.LikeCount, liked, p.CommentCount)
				}
				return nil
			})
		},
	}
}

func (c *cli) postCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "post <text>",
		Short: "Publish a post",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), false, func(a *app.App) error {
				p, err := a.Client.CreatePost(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				a.Engagement.Track(*p)
				fmt.Fprintf(cmd.OutOrStdout(), "post %s published\n", p.ID)
				return nil
			})
		},
	}
}

func (c *cli) likeCmd() *cobra.Command {
	var reaction string
	cmd := &cobra.Command{
		Use:   "like <post-id>",
		Short: "Like a post, or take the like back if it is already given with the same reaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				st, err := a.Engagement.ToggleLike(cmd.Context(), id, domain.ReactionType(reaction))
				if err != nil {
					return err
				}
				if st.UserHasLiked {
					fmt.Fprintf(cmd.OutOrStdout(), "reacted %s to post %s, %d likes\n", st.Reaction, id, st.LikeCount)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "removed reaction from post %s, %d likes\n", id, st.LikeCount)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&reaction, "reaction", "r", string(domain.ReactionLike),
		"like, love, laugh, wow, sad, angry, celebrate or support")
	return cmd
}

func (c *cli) commentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comments <post-id>",
		Short: "List the comments on a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				comments, err := a.Engagement.LoadComments(cmd.Context(), id)
				if err != nil {
					return err
				}
				tw := table(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tAUTHOR\tCOMMENT")
				for _, cm := range comments {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", cm.ID, userLabel(cm.Author), cm.Content)
				}
				return tw.Flush()
			})
		},
	}
}

func (c *cli) commentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <post-id> <text>",
		Short: "Comment on a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				cm, err := a.Engagement.AddComment(cmd.Context(), id, strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				st, _ := a.Engagement.State(id)
				fmt.Fprintf(cmd.OutOrStdout(), "comment %s added, %d comments\n", cm.ID, st.CommentCount)
				return nil
			})
		},
	}
}

func (c *cli) editCommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit-comment <post-id> <comment-id> <text>",
		Short: "Change the text of one of your comments",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}
			commentID, err := parseID(args[1])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				if _, err := a.Engagement.LoadComments(cmd.Context(), postID); err != nil {
					return err
				}
				cm, err := a.Engagement.EditComment(cmd.Context(), postID, commentID, strings.Join(args[2:], " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "comment %s updated\n", cm.ID)
				return nil
			})
		},
	}
}

func (c *cli) deleteCommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-comment <post-id> <comment-id>",
		Short: "Delete one of your comments",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}
			commentID, err := parseID(args[1])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				if _, err := a.Engagement.LoadComments(cmd.Context(), postID); err != nil {
					return err
				}
				if err := a.Engagement.DeleteComment(cmd.Context(), postID, commentID); err != nil {
					return err
				}
				st, _ := a.Engagement.State(postID)
				fmt.Fprintf(cmd.OutOrStdout(), "comment %s deleted, %d comments\n", commentID, st.CommentCount)
				return nil
			})
		},
	}
}
