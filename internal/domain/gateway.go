package domain

import (
	"context"
)

// ConnectionsAPI is the part of the remote API the relationship state machine consumes
type ConnectionsAPI interface {
	SendRequest(ctx context.Context, params SendRequestParams) (*ConnectionRequest, error)
	RespondRequest(ctx context.Context, requestID ID, action RespondAction) (*ConnectionRequest, error)
	WithdrawRequest(ctx context.Context, requestID ID) error
	RemoveConnection(ctx context.Context, connectionID ID) error
	Follow(ctx context.Context, userID UserID) (*Follow, error)
	Unfollow(ctx context.Context, userID UserID) error

	ListRequests(ctx context.Context, page int) (*Page[ConnectionRequest], error)
	ListConnections(ctx context.Context, page int) (*Page[Connection], error)
	ListFollowing(ctx context.Context, page int) (*Page[Follow], error)
	ListFollowers(ctx context.Context, page int) (*Page[Follow], error)
}

// FeedAPI is the part of the remote API the engagement reconciler consumes
type FeedAPI interface {
	ToggleLike(ctx context.Context, postID ID, reaction ReactionType) (*LikeResult, error)
	CreateComment(ctx context.Context, postID ID, content string) (*CommentResult, error)
	UpdateComment(ctx context.Context, commentID ID, content string) (*CommentResult, error)
	DeleteComment(ctx context.Context, commentID ID) (*CommentResult, error)
	ListComments(ctx context.Context, postID ID, page int) (*Page[Comment], error)
	ListPosts(ctx context.Context, page int) (*Page[Post], error)
}

// NotificationsAPI is the part of the remote API the read-state tracker consumes
type NotificationsAPI interface {
	MarkNotificationRead(ctx context.Context, id ID) error
	MarkAllNotificationsRead(ctx context.Context) error
	ListNotifications(ctx context.Context, page int) (*Page[Notification], error)
}

// DirectoryAPI lists the users the discovery filter chooses from
type DirectoryAPI interface {
	ListUsers(ctx context.Context, page int) (*Page[UserRef], error)
}
