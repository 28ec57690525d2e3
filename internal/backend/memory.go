package backend

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/locolive/proconnect/internal/domain"
)

type reactionKey struct {
	post domain.ID
	user domain.UserID
}

type followKey struct {
	follower  domain.UserID
	following domain.UserID
}

// MemoryStore implements Store in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64

	users         map[domain.UserID]domain.UserRef
	requests      map[domain.ID]domain.ConnectionRequest
	connections   map[domain.ID]domain.Connection
	follows       map[followKey]domain.Follow
	posts         map[domain.ID]domain.Post
	reactions     map[reactionKey]domain.ReactionType
	comments      map[domain.ID]domain.Comment
	notifications map[domain.ID]domain.Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[domain.UserID]domain.UserRef),
		requests:      make(map[domain.ID]domain.ConnectionRequest),
		connections:   make(map[domain.ID]domain.Connection),
		follows:       make(map[followKey]domain.Follow),
		posts:         make(map[domain.ID]domain.Post),
		reactions:     make(map[reactionKey]domain.ReactionType),
		comments:      make(map[domain.ID]domain.Comment),
		notifications: make(map[domain.ID]domain.Notification),
	}
}

// id hands out one sequence shared by every record kind. Callers hold mu.
func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func notFound(kind string, id fmt.Stringer) error {
	return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
}

// newestFirst orders by created time, then id, both descending
func newestFirst[T any](items []T, created func(T) time.Time, id func(T) domain.ID) {
	slices.SortFunc(items, func(a, b T) int {
		if c := created(b).Compare(created(a)); c != 0 {
			return c
		}
		return cmp.Compare(id(b), id(a))
	})
}

func (s *MemoryStore) CreateUser(_ context.Context, displayName, headline string) (domain.UserRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := domain.UserRef{ID: domain.UserID(s.id()), DisplayName: displayName, Headline: headline}
	s.users[u.ID] = u
	return u, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id domain.UserID) (domain.UserRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.UserRef{}, notFound("user", id)
	}
	return u, nil
}

func (s *MemoryStore) ListUsers(_ context.Context, search string) ([]domain.UserRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.UserRef, 0, len(s.users))
	for _, u := range s.users {
		if search != "" &&
			!strings.Contains(strings.ToLower(u.DisplayName), search) &&
			!strings.Contains(strings.ToLower(u.Headline), search) {
			continue
		}
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b domain.UserRef) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) CreateRequest(_ context.Context, req *domain.ConnectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.ID = domain.ID(s.id())
	s.requests[req.ID] = *req
	return nil
}

func (s *MemoryStore) UpdateRequest(_ context.Context, req *domain.ConnectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; !ok {
		return notFound("connection request", req.ID)
	}
	stored := *req
	stored.Connection = nil
	s.requests[req.ID] = stored
	return nil
}

func (s *MemoryStore) GetRequest(_ context.Context, id domain.ID) (*domain.ConnectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, notFound("connection request", id)
	}
	return &req, nil
}

func (s *MemoryStore) FindRequest(_ context.Context, sender, receiver domain.UserID) (*domain.ConnectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.Sender.ID == sender && req.Receiver.ID == receiver {
			return &req, nil
		}
	}
	return nil, fmt.Errorf("connection request %s->%s: %w", sender, receiver, domain.ErrNotFound)
}

func (s *MemoryStore) ListRequests(_ context.Context, user domain.UserID) ([]domain.ConnectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ConnectionRequest
	for _, req := range s.requests {
		if req.Involves(user) {
			out = append(out, req)
		}
	}
	newestFirst(out, func(r domain.ConnectionRequest) time.Time { return r.CreatedAt }, func(r domain.ConnectionRequest) domain.ID { return r.ID })
	return out, nil
}

func (s *MemoryStore) CreateConnection(_ context.Context, conn *domain.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn.ID = domain.ID(s.id())
	s.connections[conn.ID] = *conn
	return nil
}

func (s *MemoryStore) GetConnection(_ context.Context, id domain.ID) (*domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.connections[id]
	if !ok {
		return nil, notFound("connection", id)
	}
	return &conn, nil
}

func (s *MemoryStore) FindConnection(_ context.Context, a, b domain.UserID) (*domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, conn := range s.connections {
		if conn.Involves(a) && conn.Involves(b) {
			return &conn, nil
		}
	}
	return nil, fmt.Errorf("connection %s-%s: %w", a, b, domain.ErrNotFound)
}

func (s *MemoryStore) DeleteConnection(_ context.Context, id domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connections[id]; !ok {
		return notFound("connection", id)
	}
	delete(s.connections, id)
	return nil
}

func (s *MemoryStore) ListConnections(_ context.Context, user domain.UserID) ([]domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Connection
	for _, conn := range s.connections {
		if conn.Involves(user) {
			out = append(out, conn)
		}
	}
	newestFirst(out, func(c domain.Connection) time.Time { return c.ConnectedAt }, func(c domain.Connection) domain.ID { return c.ID })
	return out, nil
}

func (s *MemoryStore) CreateFollow(_ context.Context, f *domain.Follow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := followKey{f.Follower.ID, f.Following.ID}
	if _, ok := s.follows[key]; ok {
		return fmt.Errorf("follow %s->%s: %w", f.Follower.ID, f.Following.ID, domain.ErrAlreadyRelated)
	}
	f.ID = domain.ID(s.id())
	s.follows[key] = *f
	return nil
}

func (s *MemoryStore) FindFollow(_ context.Context, follower, following domain.UserID) (*domain.Follow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.follows[followKey{follower, following}]
	if !ok {
		return nil, fmt.Errorf("follow %s->%s: %w", follower, following, domain.ErrNotFound)
	}
	return &f, nil
}

func (s *MemoryStore) DeleteFollow(_ context.Context, follower, following domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := followKey{follower, following}
	if _, ok := s.follows[key]; !ok {
		return fmt.Errorf("follow %s->%s: %w", follower, following, domain.ErrNotFound)
	}
	delete(s.follows, key)
	return nil
}

func (s *MemoryStore) ListFollowing(_ context.Context, follower domain.UserID) ([]domain.Follow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Follow
	for key, f := range s.follows {
		if key.follower == follower {
			out = append(out, f)
		}
	}
	newestFirst(out, func(f domain.Follow) time.Time { return f.CreatedAt }, func(f domain.Follow) domain.ID { return f.ID })
	return out, nil
}

func (s *MemoryStore) ListFollowers(_ context.Context, following domain.UserID) ([]domain.Follow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Follow
	for key, f := range s.follows {
		if key.following == following {
			out = append(out, f)
		}
	}
	newestFirst(out, func(f domain.Follow) time.Time { return f.CreatedAt }, func(f domain.Follow) domain.ID { return f.ID })
	return out, nil
}

func (s *MemoryStore) CreatePost(_ context.Context, p *domain.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = domain.ID(s.id())
	stored := *p
	stored.UserHasLiked, stored.Reaction = false, ""
	s.posts[p.ID] = stored
	return nil
}

func (s *MemoryStore) GetPost(_ context.Context, id domain.ID) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, notFound("post", id)
	}
	return &p, nil
}

func (s *MemoryStore) UpdatePostCounts(_ context.Context, id domain.ID, likeCount, commentCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return notFound("post", id)
	}
	p.LikeCount, p.CommentCount = likeCount, commentCount
	s.posts[id] = p
	return nil
}

func (s *MemoryStore) ListPosts(_ context.Context) ([]domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p)
	}
	newestFirst(out, func(p domain.Post) time.Time { return p.CreatedAt }, func(p domain.Post) domain.ID { return p.ID })
	return out, nil
}

func (s *MemoryStore) GetReaction(_ context.Context, postID domain.ID, user domain.UserID) (domain.ReactionType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reactions[reactionKey{postID, user}]
	if !ok {
		return "", fmt.Errorf("reaction of %s on post %s: %w", user, postID, domain.ErrNotFound)
	}
	return r, nil
}

func (s *MemoryStore) SetReaction(_ context.Context, postID domain.ID, user domain.UserID, reaction domain.ReactionType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reactions[reactionKey{postID, user}] = reaction
	return nil
}

func (s *MemoryStore) DeleteReaction(_ context.Context, postID domain.ID, user domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reactions, reactionKey{postID, user})
	return nil
}

func (s *MemoryStore) CreateComment(_ context.Context, c *domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = domain.ID(s.id())
	s.comments[c.ID] = *c
	return nil
}

func (s *MemoryStore) GetComment(_ context.Context, id domain.ID) (*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, notFound("comment", id)
	}
	return &c, nil
}

func (s *MemoryStore) UpdateComment(_ context.Context, c *domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[c.ID]; !ok {
		return notFound("comment", c.ID)
	}
	s.comments[c.ID] = *c
	return nil
}

func (s *MemoryStore) DeleteComment(_ context.Context, id domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return notFound("comment", id)
	}
	delete(s.comments, id)
	return nil
}

func (s *MemoryStore) ListComments(_ context.Context, postID domain.ID) ([]domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Comment
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	newestFirst(out, func(c domain.Comment) time.Time { return c.CreatedAt }, func(c domain.Comment) domain.ID { return c.ID })
	return out, nil
}

func (s *MemoryStore) CreateNotification(_ context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = domain.ID(s.id())
	s.notifications[n.ID] = *n
	return nil
}

func senderID(n *domain.Notification) domain.UserID {
	if n.Sender == nil {
		return 0
	}
	return n.Sender.ID
}

func (s *MemoryStore) RecentNotification(_ context.Context, n *domain.Notification, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, existing := range s.notifications {
		if existing.Recipient == n.Recipient &&
			senderID(&existing) == senderID(n) &&
			existing.Kind == n.Kind &&
			existing.ActionURL == n.ActionURL &&
			!existing.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, recipient domain.UserID) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Notification
	for _, n := range s.notifications {
		if n.Recipient == recipient {
			out = append(out, n)
		}
	}
	newestFirst(out, func(n domain.Notification) time.Time { return n.CreatedAt }, func(n domain.Notification) domain.ID { return n.ID })
	return out, nil
}

func (s *MemoryStore) MarkNotificationRead(_ context.Context, recipient domain.UserID, id domain.ID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.Recipient != recipient {
		return notFound("notification", id)
	}
	if !n.IsRead {
		n.IsRead, n.ReadAt = true, &at
		s.notifications[id] = n
	}
	return nil
}

func (s *MemoryStore) MarkAllNotificationsRead(_ context.Context, recipient domain.UserID, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, n := range s.notifications {
		if n.Recipient == recipient && !n.IsRead {
			n.IsRead, n.ReadAt = true, &at
			s.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) DeleteReadNotifications(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, n := range s.notifications {
		if n.IsRead && n.CreatedAt.Before(before) {
			delete(s.notifications, id)
			count++
		}
	}
	return count, nil
}
