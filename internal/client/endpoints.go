package client

import (
	"context"
	"net/http"

	"github.com/locolive/proconnect/internal/domain"
)

var (
	_ domain.ConnectionsAPI   = (*Client)(nil)
	_ domain.FeedAPI          = (*Client)(nil)
	_ domain.NotificationsAPI = (*Client)(nil)
	_ domain.DirectoryAPI     = (*Client)(nil)
)

// Connections

func (c *Client) SendRequest(ctx context.Context, params domain.SendRequestParams) (*domain.ConnectionRequest, error) {
	var out domain.ConnectionRequest
	if err := c.do(ctx, http.MethodPost, "/connections/requests", "/connections/requests", nil, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RespondRequest(ctx context.Context, requestID domain.ID, action domain.RespondAction) (*domain.ConnectionRequest, error) {
	var out domain.ConnectionRequest
	path := "/connections/requests/" + requestID.String() + "/respond"
	if err := c.do(ctx, http.MethodPost, "/connections/requests/{id}/respond", path, nil, domain.RespondParams{Action: action}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) WithdrawRequest(ctx context.Context, requestID domain.ID) error {
	return c.do(ctx, http.MethodDelete, "/connections/requests/{id}", "/connections/requests/"+requestID.String(), nil, nil, nil)
}

func (c *Client) RemoveConnection(ctx context.Context, connectionID domain.ID) error {
	return c.do(ctx, http.MethodDelete, "/connections/connections/{id}", "/connections/connections/"+connectionID.String(), nil, nil, nil)
}

func (c *Client) Follow(ctx context.Context, userID domain.UserID) (*domain.Follow, error) {
	var out domain.Follow
	if err := c.do(ctx, http.MethodPost, "/connections/follows", "/connections/follows", nil, domain.FollowParams{UserID: userID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Unfollow(ctx context.Context, userID domain.UserID) error {
	return c.do(ctx, http.MethodDelete, "/connections/follows/{user_id}", "/connections/follows/"+userID.String(), nil, nil, nil)
}

func (c *Client) ListRequests(ctx context.Context, page int) (*domain.Page[domain.ConnectionRequest], error) {
	var out domain.Page[domain.ConnectionRequest]
	if err := c.do(ctx, http.MethodGet, "/connections/requests", "/connections/requests", pageQuery(page), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListConnections(ctx context.Context, page int) (*domain.Page[domain.Connection], error) {
	var out domain.Page[domain.Connection]
	if err := c.do(ctx, http.MethodGet, "/connections/connections", "/connections/connections", pageQuery(page), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListFollowing(ctx context.Context, page int) (*domain.Page[domain.Follow], error) {
	var out domain.Page[domain.Follow]
	if err := c.do(ctx, http.MethodGet, "/connections/follows", "/connections/follows", pageQuery(page), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListFollowers(ctx context.Context, page int) (*domain.Page[domain.Follow], error) {
	var out domain.Page[domain.Follow]
	if err := c.do(ctx, http.MethodGet, "/connections/follows/followers", "/connections/follows/followers", pageQuery(page), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Feed

func (c *Client) ListPosts(ctx context.Context, page int) (*domain.Page[domain.Post], error) {
	var out domain.Page[domain.Post]
	if err := c.do(ctx, http.MethodGet, "/posts", "/posts", pageQuery(page), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePost(ctx context.Context, content string) (*domain.Post, error) {
	var out domain.Post
	if err := c.do(ctx, http.MethodPost, "/posts", "/posts", nil, domain.PostParams{Content: content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ToggleLike(ctx context.Context, postID domain.ID, reaction domain.ReactionType) (*domain.LikeResult, error) {
	var out domain.LikeResult
	path := "/posts/" + postID.String() + "/like"
	if err := c.do(ctx, http.MethodPost, "/posts/{id}/like", path, nil, domain.LikeParams{Reaction: reaction}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListComments(ctx context.Context, postID domain.ID, page int) (*domain.Page[domain.Comment], error) {
	var out domain.Page[domain.Comment]
	query := pageQuery(page)
	query.Set("post", postID.String())
	if err := c.do(ctx, http.MethodGet, "/comments", "/comments", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateComment(ctx context.Context, postID domain.ID, content string) (*domain.CommentResult, error) {
	var out domain.CommentResult
	body := domain.CommentParams{PostID: postID, Content: content}
	if err := c.do(ctx, http.MethodPost, "/comments", "/comments", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateComment(ctx context.Context, commentID domain.ID, content string) (*domain.CommentResult, error) {
	var out domain.CommentResult
	body := domain.CommentParams{Content: content}
	if err := c.do(ctx, http.MethodPatch, "/comments/{id}", "/comments/"+commentID.String(), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteComment(ctx context.Context, commentID domain.ID) (*domain.CommentResult, error) {
	var out domain.CommentResult
	if err := c.do(ctx, http.MethodDelete, "/comments/{id}", "/comments/"+commentID.String(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Notifications

func (c *Client) ListNotifications(ctx context.Context, page int) (*domain.Page[domain.Notification], error) {
	var out domain.Page[domain.Notification]
	if err := c.do(ctx, http.MethodGet, "/notifications", "/notifications", pageQuery(page), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out domain.UnreadCount
	if err := c.do(ctx, http.MethodGet, "/notifications/unread_count", "/notifications/unread_count", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id domain.ID) error {
	path := "/notifications/" + id.String() + "/mark_read"
	return c.do(ctx, http.MethodPatch, "/notifications/{id}/mark_read", path, nil, nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/notifications/mark_all_read", "/notifications/mark_all_read", nil, nil, nil)
}

// SearchUsers lists users whose display name contains search
func (c *Client) SearchUsers(ctx context.Context, search string, page int) (*domain.Page[domain.UserRef], error) {
	var out domain.Page[domain.UserRef]
	query := pageQuery(page)
	if search != "" {
		query.Set("search", search)
	}
	if err := c.do(ctx, http.MethodGet, "/users", "/users", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
