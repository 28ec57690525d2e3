package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/pkg/validator"
)

// Service enforces the relationship and engagement rules on top of a Store.
// Mutations are serialized so that compound checks stay consistent.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time

	mu sync.Mutex
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func validate(op string, params any) error {
	if err := validator.Struct(params); err != nil {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrValidation, err)
	}
	return nil
}

// User returns a user or ErrNotFound
func (s *Service) User(ctx context.Context, id domain.UserID) (domain.UserRef, error) {
	return s.store.GetUser(ctx, id)
}

func (s *Service) Users(ctx context.Context, search string) ([]domain.UserRef, error) {
	return s.store.ListUsers(ctx, search)
}

// SendRequest creates a pending request from viewer, or re-opens an earlier declined or
// withdrawn one between the same two users in the same direction.
func (s *Service) SendRequest(ctx context.Context, viewer domain.UserID, params domain.SendRequestParams) (*domain.ConnectionRequest, error) {
	if err := validate("send request", params); err != nil {
		return nil, err
	}
	if params.ReceiverID == viewer {
		return nil, fmt.Errorf("send request: %w", domain.ErrSelfRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sender, err := s.store.GetUser(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	receiver, err := s.store.GetUser(ctx, params.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if _, err := s.store.FindConnection(ctx, viewer, receiver.ID); err == nil {
		return nil, fmt.Errorf("send request: already connected: %w", domain.ErrAlreadyRelated)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if reverse, err := s.store.FindRequest(ctx, receiver.ID, viewer); err == nil && reverse.Status == domain.RequestStatusPending {
		return nil, fmt.Errorf("send request: %s already asked to connect: %w", receiver.ID, domain.ErrAlreadyRelated)
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("send request: %w", err)
	}

	now := s.now()
	existing, err := s.store.FindRequest(ctx, viewer, receiver.ID)
	switch {
	case err == nil && existing.Status == domain.RequestStatusPending:
		return nil, fmt.Errorf("send request: already sent: %w", domain.ErrAlreadyRelated)
	case err == nil:
		existing.Status = domain.RequestStatusPending
		existing.Message = params.Message
		existing.Sender, existing.Receiver = sender, receiver
		existing.CreatedAt = now
		existing.RespondedAt = nil
		if err := s.store.UpdateRequest(ctx, existing); err != nil {
			return nil, fmt.Errorf("send request: %w", err)
		}
	case errors.Is(err, domain.ErrNotFound):
		existing = &domain.ConnectionRequest{
			Sender:    sender,
			Receiver:  receiver,
			Message:   params.Message,
			Status:    domain.RequestStatusPending,
			CreatedAt: now,
		}
		if err := s.store.CreateRequest(ctx, existing); err != nil {
			return nil, fmt.Errorf("send request: %w", err)
		}
	default:
		return nil, fmt.Errorf("send request: %w", err)
	}

	s.notify(ctx, &domain.Notification{
		Recipient: receiver.ID,
		Sender:    &sender,
		Kind:      domain.NotificationConnectionRequest,
		Title:     sender.DisplayName + " sent you a connection request",
		Message:   "You have a new connection request from " + sender.DisplayName,
		ActionURL: "/connections/requests/",
	})
	return existing, nil
}

// Respond lets the receiver accept or decline a pending request. Accepting creates the
// connection and returns it embedded in the request.
func (s *Service) Respond(ctx context.Context, viewer domain.UserID, requestID domain.ID, params domain.RespondParams) (*domain.ConnectionRequest, error) {
	if err := validate("respond", params); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("respond: %w", err)
	}
	if req.Receiver.ID != viewer {
		return nil, fmt.Errorf("respond: request %s is not addressed to %s: %w", requestID, viewer, domain.ErrNotFound)
	}
	if req.Status != domain.RequestStatusPending {
		return nil, fmt.Errorf("respond: request %s is %s: %w", requestID, req.Status, domain.ErrNotFound)
	}

	now := s.now()
	req.RespondedAt = &now
	if params.Action == domain.ActionDecline {
		req.Status = domain.RequestStatusDeclined
		if err := s.store.UpdateRequest(ctx, req); err != nil {
			return nil, fmt.Errorf("respond: %w", err)
		}
		return req, nil
	}

	req.Status = domain.RequestStatusAccepted
	if err := s.store.UpdateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("respond: %w", err)
	}
	conn := &domain.Connection{
		UserA:       req.Sender,
		UserB:       req.Receiver,
		RequestID:   req.ID,
		ConnectedAt: now,
	}
	if err := s.store.CreateConnection(ctx, conn); err != nil {
		return nil, fmt.Errorf("respond: %w", err)
	}
	req.Connection = conn

	s.notify(ctx, &domain.Notification{
		Recipient: req.Sender.ID,
		Sender:    &req.Receiver,
		Kind:      domain.NotificationConnectionRequest,
		Title:     req.Receiver.DisplayName + " accepted your connection request",
		Message:   "You are now connected with " + req.Receiver.DisplayName,
		ActionURL: "/profile/" + req.Receiver.ID.String() + "/",
	})
	return req, nil
}

// Withdraw lets the sender take back a pending request
func (s *Service) Withdraw(ctx context.Context, viewer domain.UserID, requestID domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	if req.Sender.ID != viewer {
		return fmt.Errorf("withdraw: request %s was not sent by %s: %w", requestID, viewer, domain.ErrNotFound)
	}
	if req.Status != domain.RequestStatusPending {
		return fmt.Errorf("withdraw: request %s is %s: %w", requestID, req.Status, domain.ErrNotFound)
	}

	req.Status = domain.RequestStatusWithdrawn
	if err := s.store.UpdateRequest(ctx, req); err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	return nil
}

// RemoveConnection lets either party delete a connection
func (s *Service) RemoveConnection(ctx context.Context, viewer domain.UserID, connectionID domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.store.GetConnection(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("remove connection: %w", err)
	}
	if !conn.Involves(viewer) {
		return fmt.Errorf("remove connection: %s is not a party to %s: %w", viewer, connectionID, domain.ErrNotFound)
	}
	if err := s.store.DeleteConnection(ctx, connectionID); err != nil {
		return fmt.Errorf("remove connection: %w", err)
	}
	return nil
}

func (s *Service) Requests(ctx context.Context, viewer domain.UserID) ([]domain.ConnectionRequest, error) {
	return s.store.ListRequests(ctx, viewer)
}

func (s *Service) Connections(ctx context.Context, viewer domain.UserID) ([]domain.Connection, error) {
	return s.store.ListConnections(ctx, viewer)
}

func (s *Service) Following(ctx context.Context, viewer domain.UserID) ([]domain.Follow, error) {
	return s.store.ListFollowing(ctx, viewer)
}

func (s *Service) Followers(ctx context.Context, viewer domain.UserID) ([]domain.Follow, error) {
	return s.store.ListFollowers(ctx, viewer)
}

func (s *Service) Follow(ctx context.Context, viewer domain.UserID, params domain.FollowParams) (*domain.Follow, error) {
	if err := validate("follow", params); err != nil {
		return nil, err
	}
	if params.UserID == viewer {
		return nil, fmt.Errorf("follow: %w", domain.ErrSelfRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	follower, err := s.store.GetUser(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("follow: %w", err)
	}
	following, err := s.store.GetUser(ctx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("follow: %w", err)
	}

	if _, err := s.store.FindFollow(ctx, viewer, following.ID); err == nil {
		return nil, fmt.Errorf("follow: already following %s: %w", following.ID, domain.ErrAlreadyRelated)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("follow: %w", err)
	}

	f := &domain.Follow{Follower: follower, Following: following, CreatedAt: s.now()}
	if err := s.store.CreateFollow(ctx, f); err != nil {
		return nil, fmt.Errorf("follow: %w", err)
	}

	s.notify(ctx, &domain.Notification{
		Recipient: following.ID,
		Sender:    &follower,
		Kind:      domain.NotificationFollow,
		Title:     follower.DisplayName + " started following you",
		Message:   follower.DisplayName + " is now following your updates",
		ActionURL: "/profile/" + follower.ID.String() + "/",
	})
	return f, nil
}

func (s *Service) Unfollow(ctx context.Context, viewer, target domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteFollow(ctx, viewer, target); err != nil {
		return fmt.Errorf("unfollow: %w", err)
	}
	return nil
}
