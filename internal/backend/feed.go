package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/pkg/validator"
)

// Posts lists the feed with the viewer's own reaction filled in
func (s *Service) Posts(ctx context.Context, viewer domain.UserID) ([]domain.Post, error) {
	posts, err := s.store.ListPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	for i := range posts {
		if err := s.withViewer(ctx, &posts[i], viewer); err != nil {
			return nil, fmt.Errorf("list posts: %w", err)
		}
	}
	return posts, nil
}

func (s *Service) withViewer(ctx context.Context, p *domain.Post, viewer domain.UserID) error {
	reaction, err := s.store.GetReaction(ctx, p.ID, viewer)
	switch {
	case err == nil:
		p.UserHasLiked, p.Reaction = true, reaction
	case errors.Is(err, domain.ErrNotFound):
		p.UserHasLiked, p.Reaction = false, ""
	default:
		return err
	}
	return nil
}

func (s *Service) CreatePost(ctx context.Context, viewer domain.UserID, params domain.PostParams) (*domain.Post, error) {
	if err := validate("create post", params); err != nil {
		return nil, err
	}
	author, err := s.store.GetUser(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	p := &domain.Post{Author: author, Content: strings.TrimSpace(params.Content), CreatedAt: s.now()}
	if err := s.store.CreatePost(ctx, p); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return p, nil
}

// ToggleLike reacts to a post. Repeating the current reaction removes it, a different
// reaction replaces it without changing the count.
func (s *Service) ToggleLike(ctx context.Context, viewer domain.UserID, postID domain.ID, params domain.LikeParams) (*domain.LikeResult, error) {
	if err := validate("like", params); err != nil {
		return nil, err
	}
	reaction := params.Reaction
	if reaction == "" {
		reaction = domain.ReactionLike
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("like: %w", err)
	}
	user, err := s.store.GetUser(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("like: %w", err)
	}

	current, err := s.store.GetReaction(ctx, postID, viewer)
	switch {
	case err == nil && current == reaction:
		if err := s.store.DeleteReaction(ctx, postID, viewer); err != nil {
			return nil, fmt.Errorf("like: %w", err)
		}
		post.LikeCount = max(0, post.LikeCount-1)
		if err := s.store.UpdatePostCounts(ctx, postID, post.LikeCount, post.CommentCount); err != nil {
			return nil, fmt.Errorf("like: %w", err)
		}
		return &domain.LikeResult{LikeCount: post.LikeCount}, nil

	case err == nil:
		if err := s.store.SetReaction(ctx, postID, viewer, reaction); err != nil {
			return nil, fmt.Errorf("like: %w", err)
		}
		return &domain.LikeResult{LikeCount: post.LikeCount, UserHasLiked: true, Reaction: reaction}, nil

	case errors.Is(err, domain.ErrNotFound):
		if err := s.store.SetReaction(ctx, postID, viewer, reaction); err != nil {
			return nil, fmt.Errorf("like: %w", err)
		}
		post.LikeCount++
		if err := s.store.UpdatePostCounts(ctx, postID, post.LikeCount, post.CommentCount); err != nil {
			return nil, fmt.Errorf("like: %w", err)
		}
		if post.Author.ID != viewer {
			s.notify(ctx, &domain.Notification{
				Recipient: post.Author.ID,
				Sender:    &user,
				Kind:      domain.NotificationLike,
				Title:     user.DisplayName + " reacted to your post",
				Message:   "Your post received a " + string(reaction) + " reaction",
				ActionURL: "/feed/post/" + postID.String() + "/",
			})
		}
		return &domain.LikeResult{LikeCount: post.LikeCount, UserHasLiked: true, Reaction: reaction}, nil

	default:
		return nil, fmt.Errorf("like: %w", err)
	}
}

func (s *Service) Comments(ctx context.Context, postID domain.ID) ([]domain.Comment, error) {
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return s.store.ListComments(ctx, postID)
}

func (s *Service) CreateComment(ctx context.Context, viewer domain.UserID, params domain.CommentParams) (*domain.CommentResult, error) {
	if err := validate("create comment", params); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post, err := s.store.GetPost(ctx, params.PostID)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	author, err := s.store.GetUser(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	c := &domain.Comment{PostID: post.ID, Author: author, Content: strings.TrimSpace(params.Content), CreatedAt: s.now()}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	post.CommentCount++
	if err := s.store.UpdatePostCounts(ctx, post.ID, post.LikeCount, post.CommentCount); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	if post.Author.ID != viewer {
		s.notify(ctx, &domain.Notification{
			Recipient: post.Author.ID,
			Sender:    &author,
			Kind:      domain.NotificationComment,
			Title:     author.DisplayName + " commented on your post",
			Message:   "New comment: " + validator.SanitizeString(c.Content, 100),
			ActionURL: "/feed/post/" + post.ID.String() + "/",
		})
	}
	return &domain.CommentResult{Comment: c, CommentsCount: post.CommentCount}, nil
}

// ownComment loads a comment the viewer wrote. Other people's comments look missing.
func (s *Service) ownComment(ctx context.Context, viewer domain.UserID, commentID domain.ID) (*domain.Comment, error) {
	c, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.Author.ID != viewer {
		return nil, fmt.Errorf("comment %s is not by %s: %w", commentID, viewer, domain.ErrNotFound)
	}
	return c, nil
}

func (s *Service) UpdateComment(ctx context.Context, viewer domain.UserID, commentID domain.ID, params domain.CommentParams) (*domain.CommentResult, error) {
	if err := validate("update comment", params); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.ownComment(ctx, viewer, commentID)
	if err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	post, err := s.store.GetPost(ctx, c.PostID)
	if err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}

	now := s.now()
	c.Content = strings.TrimSpace(params.Content)
	c.UpdatedAt = &now
	if err := s.store.UpdateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	return &domain.CommentResult{Comment: c, CommentsCount: post.CommentCount}, nil
}

func (s *Service) DeleteComment(ctx context.Context, viewer domain.UserID, commentID domain.ID) (*domain.CommentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.ownComment(ctx, viewer, commentID)
	if err != nil {
		return nil, fmt.Errorf("delete comment: %w", err)
	}
	post, err := s.store.GetPost(ctx, c.PostID)
	if err != nil {
		return nil, fmt.Errorf("delete comment: %w", err)
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return nil, fmt.Errorf("delete comment: %w", err)
	}
	post.CommentCount = max(0, post.CommentCount-1)
	if err := s.store.UpdatePostCounts(ctx, post.ID, post.LikeCount, post.CommentCount); err != nil {
		return nil, fmt.Errorf("delete comment: %w", err)
	}
	return &domain.CommentResult{CommentsCount: post.CommentCount}, nil
}
