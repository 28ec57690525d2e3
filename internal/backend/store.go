// Package backend implements the server side of the REST contract for development and
// integration tests: the relationship rules, likes, comments and notification fan-out.
package backend

import (
	"context"
	"time"

	"github.com/locolive/proconnect/internal/domain"
)

// Store persists backend records. Lookups that find nothing return domain.ErrNotFound.
// Lists are newest first unless noted.
type Store interface {
	CreateUser(ctx context.Context, displayName, headline string) (domain.UserRef, error)
	GetUser(ctx context.Context, id domain.UserID) (domain.UserRef, error)
	// ListUsers is ordered by id; search matches display name or headline, case-insensitively
	ListUsers(ctx context.Context, search string) ([]domain.UserRef, error)

	CreateRequest(ctx context.Context, req *domain.ConnectionRequest) error
	UpdateRequest(ctx context.Context, req *domain.ConnectionRequest) error
	GetRequest(ctx context.Context, id domain.ID) (*domain.ConnectionRequest, error)
	// FindRequest looks a request up by direction
	FindRequest(ctx context.Context, sender, receiver domain.UserID) (*domain.ConnectionRequest, error)
	ListRequests(ctx context.Context, user domain.UserID) ([]domain.ConnectionRequest, error)

	CreateConnection(ctx context.Context, conn *domain.Connection) error
	GetConnection(ctx context.Context, id domain.ID) (*domain.Connection, error)
	FindConnection(ctx context.Context, a, b domain.UserID) (*domain.Connection, error)
	DeleteConnection(ctx context.Context, id domain.ID) error
	ListConnections(ctx context.Context, user domain.UserID) ([]domain.Connection, error)

	CreateFollow(ctx context.Context, f *domain.Follow) error
	FindFollow(ctx context.Context, follower, following domain.UserID) (*domain.Follow, error)
	DeleteFollow(ctx context.Context, follower, following domain.UserID) error
	ListFollowing(ctx context.Context, follower domain.UserID) ([]domain.Follow, error)
	ListFollowers(ctx context.Context, following domain.UserID) ([]domain.Follow, error)

	// Posts are stored without viewer-specific fields
	CreatePost(ctx context.Context, p *domain.Post) error
	GetPost(ctx context.Context, id domain.ID) (*domain.Post, error)
	UpdatePostCounts(ctx context.Context, id domain.ID, likeCount, commentCount int) error
	ListPosts(ctx context.Context) ([]domain.Post, error)

	GetReaction(ctx context.Context, postID domain.ID, user domain.UserID) (domain.ReactionType, error)
	SetReaction(ctx context.Context, postID domain.ID, user domain.UserID, reaction domain.ReactionType) error
	DeleteReaction(ctx context.Context, postID domain.ID, user domain.UserID) error

	CreateComment(ctx context.Context, c *domain.Comment) error
	GetComment(ctx context.Context, id domain.ID) (*domain.Comment, error)
	UpdateComment(ctx context.Context, c *domain.Comment) error
	DeleteComment(ctx context.Context, id domain.ID) error
	ListComments(ctx context.Context, postID domain.ID) ([]domain.Comment, error)

	CreateNotification(ctx context.Context, n *domain.Notification) error
	// RecentNotification reports whether an equivalent notification was created at or after since
	RecentNotification(ctx context.Context, n *domain.Notification, since time.Time) (bool, error)
	ListNotifications(ctx context.Context, recipient domain.UserID) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, recipient domain.UserID, id domain.ID, at time.Time) error
	MarkAllNotificationsRead(ctx context.Context, recipient domain.UserID, at time.Time) (int, error)
	DeleteReadNotifications(ctx context.Context, before time.Time) (int, error)
}
