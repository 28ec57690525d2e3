// Package engagement keeps per-post like and comment state and reconciles optimistic
// changes with the server's counts.
package engagement

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/optimistic"
	"github.com/locolive/proconnect/pkg/validator"
)

type postState struct {
	engagement domain.EngagementState
	// newest first
	comments []domain.Comment
}

type Reconciler struct {
	viewer domain.UserRef
	api    domain.FeedAPI
	guard  *optimistic.Guard
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	posts map[domain.ID]*postState

	provisional atomic.Int64
}

func NewReconciler(viewer domain.UserRef, api domain.FeedAPI, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		viewer: viewer,
		api:    api,
		guard:  optimistic.NewGuard(),
		logger: logger,
		now:    time.Now,
		posts:  make(map[domain.ID]*postState),
	}
}

// Track starts (or refreshes) the engagement state of a post from server data
func (r *Reconciler) Track(post domain.Post) {
	r.TrackState(post.Engagement())
}

func (r *Reconciler) TrackState(state domain.EngagementState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.posts[state.PostID]; ok {
		st.engagement = state
		return
	}
	r.posts[state.PostID] = &postState{engagement: state}
}

// Forget drops a post. Operations still in flight for it will not reconcile.
func (r *Reconciler) Forget(postID domain.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, postID)
}

// State returns the current engagement of a tracked post
func (r *Reconciler) State(postID domain.ID) (domain.EngagementState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.posts[postID]
	if !ok {
		return domain.EngagementState{}, false
	}
	return st.engagement, true
}

// Comments returns the loaded comments of a post, newest first
func (r *Reconciler) Comments(postID domain.ID) []domain.Comment {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.posts[postID]
	if !ok {
		return nil
	}
	return slices.Clone(st.comments)
}

func (r *Reconciler) lookup(postID domain.ID) (*postState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.posts[postID]
	return st, ok
}

// liveFn reports whether st is still the tracked state of the post
func (r *Reconciler) liveFn(postID domain.ID, st *postState) func() bool {
	return func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.posts[postID] == st
	}
}

func (r *Reconciler) nextProvisionalID() domain.ID {
	return domain.ID(-r.provisional.Add(1) + 1)
}

// ToggleLike flips the viewer's like with reaction (empty means like). Liking again with a
// different reaction switches the reaction and leaves the count alone.
func (r *Reconciler) ToggleLike(ctx context.Context, postID domain.ID, reaction domain.ReactionType) (domain.EngagementState, error) {
	if reaction == "" {
		reaction = domain.ReactionLike
	}
	if !reaction.Valid() {
		return domain.EngagementState{}, fmt.Errorf("toggle like: reaction %q: %w", reaction, domain.ErrValidation)
	}
	st, ok := r.lookup(postID)
	if !ok {
		return domain.EngagementState{}, fmt.Errorf("toggle like: post %s: %w", postID, domain.ErrNotFound)
	}

	var prev domain.EngagementState
	live := r.liveFn(postID, st)
	res, err := optimistic.Run(ctx, optimistic.Op[*domain.LikeResult]{
		Name:  "toggle_like",
		Key:   "like:" + postID.String(),
		Guard: r.guard,
		Apply: func() error {
			r.mu.Lock()
			defer r.mu.Unlock()
			prev = st.engagement
			e := &st.engagement
			switch {
			case !e.UserHasLiked:
				e.UserHasLiked = true
				e.LikeCount++
				e.Reaction = reaction
			case e.Reaction != reaction && e.Reaction != "":
				e.Reaction = reaction
			default:
				e.UserHasLiked = false
				e.LikeCount = max(e.LikeCount-1, 0)
				e.Reaction = ""
			}
			return nil
		},
		Call: func(ctx context.Context) (*domain.LikeResult, error) {
			return r.api.ToggleLike(ctx, postID, reaction)
		},
		Commit: func(res *domain.LikeResult) {
			r.mu.Lock()
			defer r.mu.Unlock()
			st.engagement.LikeCount = res.LikeCount
			st.engagement.UserHasLiked = res.UserHasLiked
			st.engagement.Reaction = res.Reaction
		},
		Rollback: func(err error) {
			r.mu.Lock()
			st.engagement.LikeCount = prev.LikeCount
			st.engagement.UserHasLiked = prev.UserHasLiked
			st.engagement.Reaction = prev.Reaction
			r.mu.Unlock()
			r.logger.Info("like rolled back", zap.Stringer("post_id", postID), zap.Error(err))
		},
		Live: live,
	})
	if err != nil {
		return domain.EngagementState{}, fmt.Errorf("toggle like: %w", err)
	}
	if !live() {
		// forgotten while in flight: report what the server recorded
		if res == nil {
			return domain.EngagementState{}, fmt.Errorf("toggle like: post %s: %w", postID, domain.ErrNotFound)
		}
		return domain.EngagementState{
			PostID:       postID,
			LikeCount:    res.LikeCount,
			UserHasLiked: res.UserHasLiked,
			Reaction:     res.Reaction,
			CommentCount: prev.CommentCount,
		}, nil
	}
	state, _ := r.State(postID)
	return state, nil
}

func validateComment(content string) (string, error) {
	params := domain.CommentParams{Content: content}
	if err := validator.Struct(params); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return strings.TrimSpace(content), nil
}

// LoadComments replaces the comment list of a post with every page the server has.
// The comment count follows the loaded list.
func (r *Reconciler) LoadComments(ctx context.Context, postID domain.ID) ([]domain.Comment, error) {
	st, ok := r.lookup(postID)
	if !ok {
		return nil, fmt.Errorf("load comments: post %s: %w", postID, domain.ErrNotFound)
	}
	comments, err := domain.AllPages(ctx, func(ctx context.Context, page int) (*domain.Page[domain.Comment], error) {
		return r.api.ListComments(ctx, postID, page)
	})
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	slices.SortStableFunc(comments, func(a, b domain.Comment) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.posts[postID] != st {
		return slices.Clone(comments), nil
	}
	st.comments = comments
	st.engagement.CommentCount = len(comments)
	return slices.Clone(comments), nil
}

// AddComment inserts the viewer's comment at the top of the list
func (r *Reconciler) AddComment(ctx context.Context, postID domain.ID, content string) (*domain.Comment, error) {
	content, err := validateComment(content)
	if err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	st, ok := r.lookup(postID)
	if !ok {
		return nil, fmt.Errorf("add comment: post %s: %w", postID, domain.ErrNotFound)
	}

	provisional := domain.Comment{
		ID:        r.nextProvisionalID(),
		PostID:    postID,
		Author:    r.viewer,
		Content:   content,
		CreatedAt: r.now(),
	}

	res, err := optimistic.Run(ctx, optimistic.Op[*domain.CommentResult]{
		Name:  "add_comment",
		Key:   "comments:" + postID.String(),
		Guard: r.guard,
		Apply: func() error {
			r.mu.Lock()
			defer r.mu.Unlock()
			st.comments = slices.Insert(st.comments, 0, provisional)
			st.engagement.CommentCount++
			return nil
		},
		Call: func(ctx context.Context) (*domain.CommentResult, error) {
			return r.api.CreateComment(ctx, postID, content)
		},
		Commit: func(res *domain.CommentResult) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if i := indexOf(st.comments, provisional.ID); i >= 0 && res.Comment != nil {
				st.comments[i] = *res.Comment
			}
			st.engagement.CommentCount = res.CommentsCount
		},
		Rollback: func(err error) {
			r.mu.Lock()
			if i := indexOf(st.comments, provisional.ID); i >= 0 {
				st.comments = slices.Delete(st.comments, i, i+1)
				st.engagement.CommentCount = max(st.engagement.CommentCount-1, 0)
			}
			r.mu.Unlock()
			r.logger.Info("comment rolled back", zap.Stringer("post_id", postID), zap.Error(err))
		},
		Live: r.liveFn(postID, st),
	})
	if err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	return res.Comment, nil
}

// EditComment replaces the content of one of the viewer's comments
func (r *Reconciler) EditComment(ctx context.Context, postID, commentID domain.ID, content string) (*domain.Comment, error) {
	content, err := validateComment(content)
	if err != nil {
		return nil, fmt.Errorf("edit comment: %w", err)
	}
	st, prev, err := r.ownComment(postID, commentID)
	if err != nil {
		return nil, fmt.Errorf("edit comment: %w", err)
	}

	res, err := optimistic.Run(ctx, optimistic.Op[*domain.CommentResult]{
		Name:  "edit_comment",
		Key:   "comments:" + postID.String(),
		Guard: r.guard,
		Apply: func() error {
			r.mu.Lock()
			defer r.mu.Unlock()
			i := indexOf(st.comments, commentID)
			if i < 0 {
				return fmt.Errorf("comment %s: %w", commentID, domain.ErrNotFound)
			}
			updatedAt := r.now()
			st.comments[i].Content = content
			st.comments[i].UpdatedAt = &updatedAt
			return nil
		},
		Call: func(ctx context.Context) (*domain.CommentResult, error) {
			return r.api.UpdateComment(ctx, commentID, content)
		},
		Commit: func(res *domain.CommentResult) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if i := indexOf(st.comments, commentID); i >= 0 && res.Comment != nil {
				st.comments[i] = *res.Comment
			}
			st.engagement.CommentCount = res.CommentsCount
		},
		Rollback: func(err error) {
			r.mu.Lock()
			if i := indexOf(st.comments, commentID); i >= 0 {
				st.comments[i] = prev
			}
			r.mu.Unlock()
			r.logger.Info("comment edit rolled back", zap.Stringer("comment_id", commentID), zap.Error(err))
		},
		Live: r.liveFn(postID, st),
	})
	if err != nil {
		return nil, fmt.Errorf("edit comment: %w", err)
	}
	return res.Comment, nil
}

// DeleteComment removes one of the viewer's comments
func (r *Reconciler) DeleteComment(ctx context.Context, postID, commentID domain.ID) error {
	st, prev, err := r.ownComment(postID, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	var at int
	_, err = optimistic.Run(ctx, optimistic.Op[*domain.CommentResult]{
		Name:  "delete_comment",
		Key:   "comments:" + postID.String(),
		Guard: r.guard,
		Apply: func() error {
			r.mu.Lock()
			defer r.mu.Unlock()
			at = indexOf(st.comments, commentID)
			if at < 0 {
				return fmt.Errorf("comment %s: %w", commentID, domain.ErrNotFound)
			}
			st.comments = slices.Delete(st.comments, at, at+1)
			st.engagement.CommentCount = max(st.engagement.CommentCount-1, 0)
			return nil
		},
		Call: func(ctx context.Context) (*domain.CommentResult, error) {
			return r.api.DeleteComment(ctx, commentID)
		},
		Commit: func(res *domain.CommentResult) {
			r.mu.Lock()
			defer r.mu.Unlock()
			st.engagement.CommentCount = res.CommentsCount
		},
		Rollback: func(err error) {
			r.mu.Lock()
			st.comments = slices.Insert(st.comments, min(at, len(st.comments)), prev)
			st.engagement.CommentCount++
			r.mu.Unlock()
			r.logger.Info("comment delete rolled back", zap.Stringer("comment_id", commentID), zap.Error(err))
		},
		Live: r.liveFn(postID, st),
	})
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// ownComment finds a confirmed comment of the viewer on a tracked post
func (r *Reconciler) ownComment(postID, commentID domain.ID) (*postState, domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.posts[postID]
	if !ok {
		return nil, domain.Comment{}, fmt.Errorf("post %s: %w", postID, domain.ErrNotFound)
	}
	i := indexOf(st.comments, commentID)
	if i < 0 || st.comments[i].Author.ID != r.viewer.ID {
		return nil, domain.Comment{}, fmt.Errorf("comment %s: %w", commentID, domain.ErrNotFound)
	}
	if commentID.Provisional() {
		return nil, domain.Comment{}, fmt.Errorf("comment %s: %w", commentID, domain.ErrInFlight)
	}
	return st, st.comments[i], nil
}

func indexOf(comments []domain.Comment, id domain.ID) int {
	return slices.IndexFunc(comments, func(c domain.Comment) bool { return c.ID == id })
}
