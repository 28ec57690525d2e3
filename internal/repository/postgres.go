package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/locolive/proconnect/internal/backend"
	"github.com/locolive/proconnect/internal/domain"
)

//go:embed schema.sql
var schema string

var _ backend.Store = (*PostgresRepository)(nil)

// PostgresRepository implements backend.Store using PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the tables if they do not exist yet
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return err
}

// exec runs a statement that must touch at least one row
func (r *PostgresRepository) exec(ctx context.Context, what, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
		v, err := scan(row)
		if err != nil {
			var zero T
			return zero, err
		}
		return *v, nil
	})
}

// Users

func (r *PostgresRepository) CreateUser(ctx context.Context, displayName, headline string) (domain.UserRef, error) {
	query := `INSERT INTO users (display_name, headline) VALUES ($1, $2) RETURNING id, display_name, headline`
	u, err := scanUser(r.db.QueryRow(ctx, query, displayName, headline))
	if err != nil {
		return domain.UserRef{}, err
	}
	return *u, nil
}

func (r *PostgresRepository) GetUser(ctx context.Context, id domain.UserID) (domain.UserRef, error) {
	query := `SELECT id, display_name, headline FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.UserRef{}, notFound(err, "user "+id.String())
	}
	return *u, nil
}

func (r *PostgresRepository) ListUsers(ctx context.Context, search string) ([]domain.UserRef, error) {
	query := `
		SELECT id, display_name, headline FROM users
		WHERE $1 = '' OR display_name ILIKE '%' || $1 || '%' OR headline ILIKE '%' || $1 || '%'
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query, search)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanUser)
}

// Connection requests

const selectRequest = `
	SELECT r.id, s.id, s.display_name, s.headline, v.id, v.display_name, v.headline,
	       r.message, r.status, r.created_at, r.responded_at
	FROM connection_requests r
	JOIN users s ON s.id = r.sender_id
	JOIN users v ON v.id = r.receiver_id
`

func (r *PostgresRepository) CreateRequest(ctx context.Context, req *domain.ConnectionRequest) error {
	query := `
		INSERT INTO connection_requests (sender_id, receiver_id, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return r.db.QueryRow(ctx, query, req.Sender.ID, req.Receiver.ID, req.Message, req.Status, req.CreatedAt).Scan(&req.ID)
}

func (r *PostgresRepository) UpdateRequest(ctx context.Context, req *domain.ConnectionRequest) error {
	query := `
		UPDATE connection_requests
		SET message = $2, status = $3, created_at = $4, responded_at = $5
		WHERE id = $1
	`
	return r.exec(ctx, "connection request "+req.ID.String(), query, req.ID, req.Message, req.Status, req.CreatedAt, req.RespondedAt)
}

func (r *PostgresRepository) GetRequest(ctx context.Context, id domain.ID) (*domain.ConnectionRequest, error) {
	req, err := scanRequest(r.db.QueryRow(ctx, selectRequest+`WHERE r.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "connection request "+id.String())
	}
	return req, nil
}

func (r *PostgresRepository) FindRequest(ctx context.Context, sender, receiver domain.UserID) (*domain.ConnectionRequest, error) {
	req, err := scanRequest(r.db.QueryRow(ctx, selectRequest+`WHERE r.sender_id = $1 AND r.receiver_id = $2`, sender, receiver))
	if err != nil {
		return nil, notFound(err, "connection request "+sender.String()+"->"+receiver.String())
	}
	return req, nil
}

func (r *PostgresRepository) ListRequests(ctx context.Context, user domain.UserID) ([]domain.ConnectionRequest, error) {
	rows, err := r.db.Query(ctx, selectRequest+`WHERE r.sender_id = $1 OR r.receiver_id = $1 ORDER BY r.created_at DESC, r.id DESC`, user)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRequest)
}

// Connections

const selectConnection = `
	SELECT c.id, a.id, a.display_name, a.headline, b.id, b.display_name, b.headline,
	       c.request_id, c.connected_at, c.interaction_count, c.last_interaction
	FROM connections c
	JOIN users a ON a.id = c.user_a_id
	JOIN users b ON b.id = c.user_b_id
`

func (r *PostgresRepository) CreateConnection(ctx context.Context, conn *domain.Connection) error {
	var requestID *domain.ID
	if conn.RequestID > 0 {
		requestID = &conn.RequestID
	}
	query := `
		INSERT INTO connections (user_a_id, user_b_id, request_id, connected_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	return r.db.QueryRow(ctx, query, conn.UserA.ID, conn.UserB.ID, requestID, conn.ConnectedAt).Scan(&conn.ID)
}

func (r *PostgresRepository) GetConnection(ctx context.Context, id domain.ID) (*domain.Connection, error) {
	conn, err := scanConnection(r.db.QueryRow(ctx, selectConnection+`WHERE c.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "connection "+id.String())
	}
	return conn, nil
}

func (r *PostgresRepository) FindConnection(ctx context.Context, a, b domain.UserID) (*domain.Connection, error) {
	query := selectConnection + `WHERE (c.user_a_id = $1 AND c.user_b_id = $2) OR (c.user_a_id = $2 AND c.user_b_id = $1)`
	conn, err := scanConnection(r.db.QueryRow(ctx, query, a, b))
	if err != nil {
		return nil, notFound(err, "connection "+a.String()+"-"+b.String())
	}
	return conn, nil
}

func (r *PostgresRepository) DeleteConnection(ctx context.Context, id domain.ID) error {
	return r.exec(ctx, "connection "+id.String(), `DELETE FROM connections WHERE id = $1`, id)
}

func (r *PostgresRepository) ListConnections(ctx context.Context, user domain.UserID) ([]domain.Connection, error) {
	rows, err := r.db.Query(ctx, selectConnection+`WHERE c.user_a_id = $1 OR c.user_b_id = $1 ORDER BY c.connected_at DESC, c.id DESC`, user)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanConnection)
}

// Follows

const selectFollow = `
	SELECT f.id, a.id, a.display_name, a.headline, b.id, b.display_name, b.headline, f.created_at
	FROM follows f
	JOIN users a ON a.id = f.follower_id
	JOIN users b ON b.id = f.following_id
`

func (r *PostgresRepository) CreateFollow(ctx context.Context, f *domain.Follow) error {
	query := `INSERT INTO follows (follower_id, following_id, created_at) VALUES ($1, $2, $3) RETURNING id`
	return r.db.QueryRow(ctx, query, f.Follower.ID, f.Following.ID, f.CreatedAt).Scan(&f.ID)
}

func (r *PostgresRepository) FindFollow(ctx context.Context, follower, following domain.UserID) (*domain.Follow, error) {
	f, err := scanFollow(r.db.QueryRow(ctx, selectFollow+`WHERE f.follower_id = $1 AND f.following_id = $2`, follower, following))
	if err != nil {
		return nil, notFound(err, "follow "+follower.String()+"->"+following.String())
	}
	return f, nil
}

func (r *PostgresRepository) DeleteFollow(ctx context.Context, follower, following domain.UserID) error {
	return r.exec(ctx, "follow "+follower.String()+"->"+following.String(),
		`DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`, follower, following)
}

func (r *PostgresRepository) ListFollowing(ctx context.Context, follower domain.UserID) ([]domain.Follow, error) {
	rows, err := r.db.Query(ctx, selectFollow+`WHERE f.follower_id = $1 ORDER BY f.created_at DESC, f.id DESC`, follower)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanFollow)
}

func (r *PostgresRepository) ListFollowers(ctx context.Context, following domain.UserID) ([]domain.Follow, error) {
	rows, err := r.db.Query(ctx, selectFollow+`WHERE f.following_id = $1 ORDER BY f.created_at DESC, f.id DESC`, following)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanFollow)
}

// Posts and reactions

const selectPost = `
	SELECT p.id, u.id, u.display_name, u.headline, p.content, p.like_count, p.comments_count, p.created_at
	FROM posts p
	JOIN users u ON u.id = p.author_id
`

func (r *PostgresRepository) CreatePost(ctx context.Context, p *domain.Post) error {
	query := `INSERT INTO posts (author_id, content, created_at) VALUES ($1, $2, $3) RETURNING id`
	return r.db.QueryRow(ctx, query, p.Author.ID, p.Content, p.CreatedAt).Scan(&p.ID)
}

func (r *PostgresRepository) GetPost(ctx context.Context, id domain.ID) (*domain.Post, error) {
	p, err := scanPost(r.db.QueryRow(ctx, selectPost+`WHERE p.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "post "+id.String())
	}
	return p, nil
}

func (r *PostgresRepository) UpdatePostCounts(ctx context.Context, id domain.ID, likeCount, commentCount int) error {
	return r.exec(ctx, "post "+id.String(),
		`UPDATE posts SET like_count = $2, comments_count = $3 WHERE id = $1`, id, likeCount, commentCount)
}

func (r *PostgresRepository) ListPosts(ctx context.Context) ([]domain.Post, error) {
	rows, err := r.db.Query(ctx, selectPost+`ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPost)
}

func (r *PostgresRepository) GetReaction(ctx context.Context, postID domain.ID, user domain.UserID) (domain.ReactionType, error) {
	var reaction domain.ReactionType
	err := r.db.QueryRow(ctx, `SELECT reaction FROM post_reactions WHERE post_id = $1 AND user_id = $2`, postID, user).Scan(&reaction)
	if err != nil {
		return "", notFound(err, "reaction on post "+postID.String())
	}
	return reaction, nil
}

func (r *PostgresRepository) SetReaction(ctx context.Context, postID domain.ID, user domain.UserID, reaction domain.ReactionType) error {
	query := `
		INSERT INTO post_reactions (post_id, user_id, reaction) VALUES ($1, $2, $3)
		ON CONFLICT (post_id, user_id) DO UPDATE SET reaction = EXCLUDED.reaction
	`
	_, err := r.db.Exec(ctx, query, postID, user, reaction)
	return err
}

func (r *PostgresRepository) DeleteReaction(ctx context.Context, postID domain.ID, user domain.UserID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM post_reactions WHERE post_id = $1 AND user_id = $2`, postID, user)
	return err
}

// Comments

const selectComment = `
	SELECT c.id, c.post_id, u.id, u.display_name, u.headline, c.content, c.created_at, c.updated_at
	FROM comments c
	JOIN users u ON u.id = c.author_id
`

func (r *PostgresRepository) CreateComment(ctx context.Context, c *domain.Comment) error {
	query := `INSERT INTO comments (post_id, author_id, content, created_at) VALUES ($1, $2, $3, $4) RETURNING id`
	return r.db.QueryRow(ctx, query, c.PostID, c.Author.ID, c.Content, c.CreatedAt).Scan(&c.ID)
}

func (r *PostgresRepository) GetComment(ctx context.Context, id domain.ID) (*domain.Comment, error) {
	c, err := scanComment(r.db.QueryRow(ctx, selectComment+`WHERE c.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "comment "+id.String())
	}
	return c, nil
}

func (r *PostgresRepository) UpdateComment(ctx context.Context, c *domain.Comment) error {
	return r.exec(ctx, "comment "+c.ID.String(),
		`UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1`, c.ID, c.Content, c.UpdatedAt)
}

func (r *PostgresRepository) DeleteComment(ctx context.Context, id domain.ID) error {
	return r.exec(ctx, "comment "+id.String(), `DELETE FROM comments WHERE id = $1`, id)
}

func (r *PostgresRepository) ListComments(ctx context.Context, postID domain.ID) ([]domain.Comment, error) {
	rows, err := r.db.Query(ctx, selectComment+`WHERE c.post_id = $1 ORDER BY c.created_at DESC, c.id DESC`, postID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanComment)
}

// Notifications

const selectNotification = `
	SELECT n.id, n.recipient_id, s.id, s.display_name, s.headline, n.kind, n.title, n.message,
	       n.action_url, n.is_read, n.created_at, n.read_at
	FROM notifications n
	LEFT JOIN users s ON s.id = n.sender_id
`

func senderID(n *domain.Notification) *domain.UserID {
	if n.Sender == nil {
		return nil
	}
	return &n.Sender.ID
}

func (r *PostgresRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (recipient_id, sender_id, kind, title, message, action_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	return r.db.QueryRow(ctx, query, n.Recipient, senderID(n), n.Kind, n.Title, n.Message, n.ActionURL, n.CreatedAt).Scan(&n.ID)
}

func (r *PostgresRepository) RecentNotification(ctx context.Context, n *domain.Notification, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE recipient_id = $1 AND sender_id IS NOT DISTINCT FROM $2
			  AND kind = $3 AND action_url = $4 AND created_at >= $5
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, n.Recipient, senderID(n), n.Kind, n.ActionURL, since).Scan(&exists)
	return exists, err
}

func (r *PostgresRepository) ListNotifications(ctx context.Context, recipient domain.UserID) ([]domain.Notification, error) {
	rows, err := r.db.Query(ctx, selectNotification+`WHERE n.recipient_id = $1 ORDER BY n.created_at DESC, n.id DESC`, recipient)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanNotification)
}

func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, recipient domain.UserID, id domain.ID, at time.Time) error {
	query := `
		UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND recipient_id = $2
	`
	return r.exec(ctx, "notification "+id.String(), query, id, recipient, at)
}

func (r *PostgresRepository) MarkAllNotificationsRead(ctx context.Context, recipient domain.UserID, at time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE, read_at = $2 WHERE recipient_id = $1 AND NOT is_read`, recipient, at)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRepository) DeleteReadNotifications(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE is_read AND created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Helper functions for scanning rows

func scanUser(row pgx.Row) (*domain.UserRef, error) {
	var u domain.UserRef
	if err := row.Scan(&u.ID, &u.DisplayName, &u.Headline); err != nil {
		return nil, err
	}
	return &u, nil
}

func scanRequest(row pgx.Row) (*domain.ConnectionRequest, error) {
	var req domain.ConnectionRequest
	err := row.Scan(
		&req.ID,
		&req.Sender.ID, &req.Sender.DisplayName, &req.Sender.Headline,
		&req.Receiver.ID, &req.Receiver.DisplayName, &req.Receiver.Headline,
		&req.Message,
		&req.Status,
		&req.CreatedAt,
		&req.RespondedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func scanConnection(row pgx.Row) (*domain.Connection, error) {
	var (
		conn      domain.Connection
		requestID *domain.ID
	)
	err := row.Scan(
		&conn.ID,
		&conn.UserA.ID, &conn.UserA.DisplayName, &conn.UserA.Headline,
		&conn.UserB.ID, &conn.UserB.DisplayName, &conn.UserB.Headline,
		&requestID,
		&conn.ConnectedAt,
		&conn.InteractionCount,
		&conn.LastInteraction,
	)
	if err != nil {
		return nil, err
	}
	if requestID != nil {
		conn.RequestID = *requestID
	}
	return &conn, nil
}

func scanFollow(row pgx.Row) (*domain.Follow, error) {
	var f domain.Follow
	err := row.Scan(
		&f.ID,
		&f.Follower.ID, &f.Follower.DisplayName, &f.Follower.Headline,
		&f.Following.ID, &f.Following.DisplayName, &f.Following.Headline,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var p domain.Post
	err := row.Scan(
		&p.ID,
		&p.Author.ID, &p.Author.DisplayName, &p.Author.Headline,
		&p.Content,
		&p.LikeCount,
		&p.CommentCount,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var c domain.Comment
	err := row.Scan(
		&c.ID,
		&c.PostID,
		&c.Author.ID, &c.Author.DisplayName, &c.Author.Headline,
		&c.Content,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var (
		n              domain.Notification
		sid            *domain.UserID
		senderName     *string
		senderHeadline *string
	)
	err := row.Scan(
		&n.ID,
		&n.Recipient,
		&sid, &senderName, &senderHeadline,
		&n.Kind,
		&n.Title,
		&n.Message,
		&n.ActionURL,
		&n.IsRead,
		&n.CreatedAt,
		&n.ReadAt,
	)
	if err != nil {
		return nil, err
	}
	if sid != nil {
		n.Sender = &domain.UserRef{ID: *sid}
		if senderName != nil {
			n.Sender.DisplayName = *senderName
		}
		if senderHeadline != nil {
			n.Sender.Headline = *senderHeadline
		}
	}
	return &n, nil
}
