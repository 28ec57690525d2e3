// Package graph holds the client-side snapshot of the current user's social graph:
// connection requests, connections and follows, indexed by user pair so that the
// relationship status of any two users is derived in constant time.
//
// The repository never talks to the network. It is mutated by the connections state
// machine (optimistically, then with server truth) and read by everything else.
package graph

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/locolive/proconnect/internal/domain"
)

// PairKey is the unordered key of two users
type PairKey struct {
	Low  domain.UserID
	High domain.UserID
}

// Pair builds the key for a and b regardless of argument order
func Pair(a, b domain.UserID) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

func (k PairKey) String() string {
	return fmt.Sprintf("%d:%d", k.Low, k.High)
}

type followKey struct {
	follower  domain.UserID
	following domain.UserID
}

// index holds the records and their pair lookups. It is not synchronized; the
// Repository guards it, and Restore builds a fresh one before swapping it in.
type index struct {
	requests    map[domain.ID]domain.ConnectionRequest
	pending     map[PairKey]domain.ID
	connections map[domain.ID]domain.Connection
	connected   map[PairKey]domain.ID
	follows     map[domain.ID]domain.Follow
	followIdx   map[followKey]domain.ID
}

func newIndex() *index {
	return &index{
		requests:    make(map[domain.ID]domain.ConnectionRequest),
		pending:     make(map[PairKey]domain.ID),
		connections: make(map[domain.ID]domain.Connection),
		connected:   make(map[PairKey]domain.ID),
		follows:     make(map[domain.ID]domain.Follow),
		followIdx:   make(map[followKey]domain.ID),
	}
}

func (x *index) putRequest(req domain.ConnectionRequest) error {
	if req.Sender.ID == req.Receiver.ID {
		return domain.ErrSelfRequest
	}
	req.Connection = nil
	key := Pair(req.Sender.ID, req.Receiver.ID)

	if req.Status == domain.RequestStatusPending {
		if _, ok := x.connected[key]; ok {
			return fmt.Errorf("pending request %s for connected pair %s: %w", req.ID, key, domain.ErrAlreadyRelated)
		}
		if id, ok := x.pending[key]; ok && id != req.ID {
			return fmt.Errorf("pair %s already has pending request %s: %w", key, id, domain.ErrAlreadyRelated)
		}
	}

	if old, ok := x.requests[req.ID]; ok && old.Status == domain.RequestStatusPending {
		oldKey := Pair(old.Sender.ID, old.Receiver.ID)
		if x.pending[oldKey] == old.ID {
			delete(x.pending, oldKey)
		}
	}

	x.requests[req.ID] = req
	if req.Status == domain.RequestStatusPending {
		x.pending[key] = req.ID
	}
	return nil
}

// putConnection keeps at most one connection per pair: a different id for an already
// connected pair replaces the old record.
func (x *index) putConnection(conn domain.Connection) error {
	if conn.UserA.ID == conn.UserB.ID {
		return domain.ErrSelfRequest
	}
	key := Pair(conn.UserA.ID, conn.UserB.ID)

	if id, ok := x.pending[key]; ok {
		return fmt.Errorf("connection %s while request %s is pending: %w", conn.ID, id, domain.ErrAlreadyRelated)
	}
	if old, ok := x.connections[conn.ID]; ok {
		delete(x.connected, Pair(old.UserA.ID, old.UserB.ID))
	}
	if id, ok := x.connected[key]; ok && id != conn.ID {
		delete(x.connections, id)
	}

	x.connections[conn.ID] = conn
	x.connected[key] = conn.ID
	return nil
}

func (x *index) putFollow(f domain.Follow) error {
	if f.Follower.ID == f.Following.ID {
		return domain.ErrSelfRequest
	}
	key := followKey{follower: f.Follower.ID, following: f.Following.ID}

	if old, ok := x.follows[f.ID]; ok {
		delete(x.followIdx, followKey{follower: old.Follower.ID, following: old.Following.ID})
	}
	if id, ok := x.followIdx[key]; ok && id != f.ID {
		delete(x.follows, id)
	}
	x.follows[f.ID] = f
	x.followIdx[key] = f.ID
	return nil
}

// Repository is safe for concurrent use
type Repository struct {
	mu  sync.RWMutex
	idx *index

	version     atomic.Uint64
	provisional atomic.Int64
}

func NewRepository() *Repository {
	return &Repository{idx: newIndex()}
}

// Version increases on every mutation. Readers that cache derived data compare it to detect staleness.
func (r *Repository) Version() uint64 {
	return r.version.Load()
}

// NextProvisionalID returns a fresh id for an optimistic insert (0, -1, -2, ...)
func (r *Repository) NextProvisionalID() domain.ID {
	return domain.ID(-r.provisional.Add(1) + 1)
}

func (r *Repository) touch() {
	r.version.Add(1)
}

// UpsertRequest inserts or replaces a request by id
func (r *Repository) UpsertRequest(req domain.ConnectionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.idx.putRequest(req); err != nil {
		return err
	}
	r.touch()
	return nil
}

// RemoveRequest deletes a request; removing an unknown id is a no-op
func (r *Repository) RemoveRequest(id domain.ID) (domain.ConnectionRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.idx.requests[id]
	if !ok {
		return domain.ConnectionRequest{}, false
	}
	delete(r.idx.requests, id)
	key := Pair(req.Sender.ID, req.Receiver.ID)
	if r.idx.pending[key] == id {
		delete(r.idx.pending, key)
	}
	r.touch()
	return req, true
}

// UpsertConnection inserts or replaces a connection
func (r *Repository) UpsertConnection(conn domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.idx.putConnection(conn); err != nil {
		return err
	}
	r.touch()
	return nil
}

// RemoveConnection deletes the connection only; request history is untouched
func (r *Repository) RemoveConnection(id domain.ID) (domain.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.idx.connections[id]
	if !ok {
		return domain.Connection{}, false
	}
	delete(r.idx.connections, id)
	key := Pair(conn.UserA.ID, conn.UserB.ID)
	if r.idx.connected[key] == id {
		delete(r.idx.connected, key)
	}
	r.touch()
	return conn, true
}

// UpsertFollow inserts or replaces a follow; following someone twice keeps one record
func (r *Repository) UpsertFollow(f domain.Follow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.idx.putFollow(f); err != nil {
		return err
	}
	r.touch()
	return nil
}

// RemoveFollow deletes the follower → following edge if present
func (r *Repository) RemoveFollow(follower, following domain.UserID) (domain.Follow, bool) {
	key := followKey{follower: follower, following: following}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.idx.followIdx[key]
	if !ok {
		return domain.Follow{}, false
	}
	f := r.idx.follows[id]
	delete(r.idx.follows, id)
	delete(r.idx.followIdx, key)
	r.touch()
	return f, true
}

// RelationshipStatus derives the relation of other as seen by viewer.
// Connected wins over anything else; a pending request is reported from the viewer's side.
func (r *Repository) RelationshipStatus(viewer, other domain.UserID) domain.RelationshipStatus {
	if viewer == other {
		return domain.StatusNone
	}
	key := Pair(viewer, other)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.idx.connected[key]; ok {
		return domain.StatusConnected
	}
	if id, ok := r.idx.pending[key]; ok {
		if r.idx.requests[id].Sender.ID == viewer {
			return domain.StatusPendingSent
		}
		return domain.StatusPendingReceived
	}
	return domain.StatusNone
}

// IsFollowing reports whether follower follows following
func (r *Repository) IsFollowing(follower, following domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.idx.followIdx[followKey{follower: follower, following: following}]
	return ok
}

func (r *Repository) Request(id domain.ID) (domain.ConnectionRequest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.idx.requests[id]
	return req, ok
}

func (r *Repository) Connection(id domain.ID) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.idx.connections[id]
	return conn, ok
}

// PendingBetween returns the pending request for the pair, in either direction
func (r *Repository) PendingBetween(a, b domain.UserID) (domain.ConnectionRequest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idx.pending[Pair(a, b)]
	if !ok {
		return domain.ConnectionRequest{}, false
	}
	return r.idx.requests[id], true
}

// ConnectionBetween returns the connection of the pair if it exists
func (r *Repository) ConnectionBetween(a, b domain.UserID) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idx.connected[Pair(a, b)]
	if !ok {
		return domain.Connection{}, false
	}
	return r.idx.connections[id], true
}

// PendingIncoming lists pending requests addressed to viewer, newest first
func (r *Repository) PendingIncoming(viewer domain.UserID) []domain.ConnectionRequest {
	return r.pendingWhere(func(req domain.ConnectionRequest) bool { return req.Receiver.ID == viewer })
}

// PendingOutgoing lists pending requests sent by viewer, newest first
func (r *Repository) PendingOutgoing(viewer domain.UserID) []domain.ConnectionRequest {
	return r.pendingWhere(func(req domain.ConnectionRequest) bool { return req.Sender.ID == viewer })
}

func (r *Repository) pendingWhere(match func(domain.ConnectionRequest) bool) []domain.ConnectionRequest {
	r.mu.RLock()
	out := make([]domain.ConnectionRequest, 0, len(r.idx.pending))
	for _, id := range r.idx.pending {
		if req := r.idx.requests[id]; match(req) {
			out = append(out, req)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.ConnectionRequest) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// Requests lists every request involving viewer, including terminal ones kept for history
func (r *Repository) Requests(viewer domain.UserID) []domain.ConnectionRequest {
	r.mu.RLock()
	out := make([]domain.ConnectionRequest, 0, len(r.idx.requests))
	for _, req := range r.idx.requests {
		if req.Involves(viewer) {
			out = append(out, req)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.ConnectionRequest) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// Connections lists viewer's connections, most recent first
func (r *Repository) Connections(viewer domain.UserID) []domain.Connection {
	r.mu.RLock()
	out := make([]domain.Connection, 0, len(r.idx.connections))
	for _, conn := range r.idx.connections {
		if conn.Involves(viewer) {
			out = append(out, conn)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Connection) int {
		return b.ConnectedAt.Compare(a.ConnectedAt)
	})
	return out
}

// Following lists the users viewer follows
func (r *Repository) Following(viewer domain.UserID) []domain.UserRef {
	return r.followEdges(func(f domain.Follow) (domain.UserRef, bool) {
		return f.Following, f.Follower.ID == viewer
	})
}

// Followers lists the users following viewer
func (r *Repository) Followers(viewer domain.UserID) []domain.UserRef {
	return r.followEdges(func(f domain.Follow) (domain.UserRef, bool) {
		return f.Follower, f.Following.ID == viewer
	})
}

func (r *Repository) followEdges(pick func(domain.Follow) (domain.UserRef, bool)) []domain.UserRef {
	r.mu.RLock()
	follows := make([]domain.Follow, 0, len(r.idx.follows))
	for _, f := range r.idx.follows {
		follows = append(follows, f)
	}
	r.mu.RUnlock()

	slices.SortFunc(follows, func(a, b domain.Follow) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	var out []domain.UserRef
	for _, f := range follows {
		if u, ok := pick(f); ok {
			out = append(out, u)
		}
	}
	return out
}

// Snapshot is the persisted form of the repository. Provisional records are never included.
type Snapshot struct {
	Requests    []domain.ConnectionRequest `json:"requests"`
	Connections []domain.Connection        `json:"connections"`
	Follows     []domain.Follow            `json:"follows"`
}

func (r *Repository) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s Snapshot
	for _, req := range r.idx.requests {
		if !req.ID.Provisional() {
			s.Requests = append(s.Requests, req)
		}
	}
	for _, conn := range r.idx.connections {
		if !conn.ID.Provisional() {
			s.Connections = append(s.Connections, conn)
		}
	}
	for _, f := range r.idx.follows {
		if !f.ID.Provisional() {
			s.Follows = append(s.Follows, f)
		}
	}
	slices.SortFunc(s.Requests, func(a, b domain.ConnectionRequest) int { return int(a.ID - b.ID) })
	slices.SortFunc(s.Connections, func(a, b domain.Connection) int { return int(a.ID - b.ID) })
	slices.SortFunc(s.Follows, func(a, b domain.Follow) int { return int(a.ID - b.ID) })
	return s
}

// Restore replaces the whole repository with s in one step, so concurrent readers see
// either the old graph or the new one. Records violating the graph invariants are
// skipped and reported together; everything else is loaded.
func (r *Repository) Restore(s Snapshot) error {
	next := newIndex()
	var errs []error
	// Terminal requests first, then connections, then pending requests, so that a
	// connection/pending conflict is attributed to the pending request.
	for _, req := range s.Requests {
		if req.Status != domain.RequestStatusPending {
			if err := next.putRequest(req); err != nil {
				errs = append(errs, fmt.Errorf("request %s: %w", req.ID, err))
			}
		}
	}
	for _, conn := range s.Connections {
		if err := next.putConnection(conn); err != nil {
			errs = append(errs, fmt.Errorf("connection %s: %w", conn.ID, err))
		}
	}
	for _, req := range s.Requests {
		if req.Status == domain.RequestStatusPending {
			if err := next.putRequest(req); err != nil {
				errs = append(errs, fmt.Errorf("request %s: %w", req.ID, err))
			}
		}
	}
	for _, f := range s.Follows {
		if err := next.putFollow(f); err != nil {
			errs = append(errs, fmt.Errorf("follow %s: %w", f.ID, err))
		}
	}

	r.mu.Lock()
	r.idx = next
	r.touch()
	r.mu.Unlock()
	return errors.Join(errs...)
}
