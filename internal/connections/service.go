// Package connections drives connection requests, connections and follows through their
// lifecycle. Every mutation lands in the graph repository before the network call and is
// reverted if the call fails.
package connections

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/graph"
	"github.com/locolive/proconnect/internal/optimistic"
)

type Service struct {
	viewer domain.UserRef
	api    domain.ConnectionsAPI
	repo   *graph.Repository
	guard  *optimistic.Guard
	logger *zap.Logger
	closed atomic.Bool
	now    func() time.Time
}

func NewService(viewer domain.UserRef, api domain.ConnectionsAPI, repo *graph.Repository, logger *zap.Logger) *Service {
	return &Service{
		viewer: viewer,
		api:    api,
		repo:   repo,
		guard:  optimistic.NewGuard(),
		logger: logger.With(zap.Stringer("viewer", viewer.ID)),
		now:    time.Now,
	}
}

// Close stops reconciliation of operations still in flight
func (s *Service) Close() {
	s.closed.Store(true)
}

func (s *Service) live() bool {
	return !s.closed.Load()
}

func pairKey(a, b domain.UserID) string {
	return "pair:" + graph.Pair(a, b).String()
}

// Status returns the viewer's relationship with other
func (s *Service) Status(other domain.UserID) domain.RelationshipStatus {
	return s.repo.RelationshipStatus(s.viewer.ID, other)
}

// SendRequest proposes a connection from the viewer to receiver
func (s *Service) SendRequest(ctx context.Context, receiver domain.UserRef, message string) (*domain.ConnectionRequest, error) {
	if receiver.ID == s.viewer.ID {
		return nil, fmt.Errorf("send request: %w", domain.ErrSelfRequest)
	}

	provisional := domain.ConnectionRequest{
		ID:        s.repo.NextProvisionalID(),
		Sender:    s.viewer,
		Receiver:  receiver,
		Message:   message,
		Status:    domain.RequestStatusPending,
		CreatedAt: s.now(),
	}

	req, err := optimistic.Run(ctx, optimistic.Op[*domain.ConnectionRequest]{
		Name:  "send_request",
		Key:   pairKey(s.viewer.ID, receiver.ID),
		Guard: s.guard,
		Apply: func() error {
			if status := s.Status(receiver.ID); status != domain.StatusNone {
				return fmt.Errorf("status with %s is %s: %w", receiver.ID, status, domain.ErrAlreadyRelated)
			}
			return s.repo.UpsertRequest(provisional)
		},
		Call: func(ctx context.Context) (*domain.ConnectionRequest, error) {
			return s.api.SendRequest(ctx, domain.SendRequestParams{ReceiverID: receiver.ID, Message: message})
		},
		Commit: func(req *domain.ConnectionRequest) {
			s.repo.RemoveRequest(provisional.ID)
			if err := s.repo.UpsertRequest(*req); err != nil {
				s.logger.Warn("server request conflicts with local graph", zap.Stringer("request_id", req.ID), zap.Error(err))
			}
		},
		Rollback: func(err error) {
			s.repo.RemoveRequest(provisional.ID)
			s.logger.Info("send request rolled back", zap.Stringer("receiver", receiver.ID), zap.Error(err))
		},
		Live: s.live,
	})
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return req, nil
}

// Respond accepts or declines a pending request addressed to the viewer.
// Accepting materializes the connection in the same step that marks the request accepted.
func (s *Service) Respond(ctx context.Context, requestID domain.ID, action domain.RespondAction) (*domain.ConnectionRequest, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("respond: action %q: %w", action, domain.ErrValidation)
	}
	prev, ok := s.repo.Request(requestID)
	if !ok || prev.Status != domain.RequestStatusPending || prev.Receiver.ID != s.viewer.ID {
		return nil, fmt.Errorf("respond: request %s: %w", requestID, domain.ErrNotFound)
	}

	respondedAt := s.now()
	updated := prev
	updated.RespondedAt = &respondedAt
	updated.Status = domain.RequestStatusDeclined
	var provisional *domain.Connection
	if action == domain.ActionAccept {
		updated.Status = domain.RequestStatusAccepted
		provisional = &domain.Connection{
			ID:          s.repo.NextProvisionalID(),
			UserA:       prev.Sender,
			UserB:       prev.Receiver,
			RequestID:   prev.ID,
			ConnectedAt: respondedAt,
		}
	}

	req, err := optimistic.Run(ctx, optimistic.Op[*domain.ConnectionRequest]{
		Name:  "respond_request",
		Key:   pairKey(prev.Sender.ID, prev.Receiver.ID),
		Guard: s.guard,
		Apply: func() error {
			if cur, ok := s.repo.Request(requestID); !ok || cur.Status != domain.RequestStatusPending {
				return fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
			}
			if err := s.repo.UpsertRequest(updated); err != nil {
				return err
			}
			if provisional != nil {
				if err := s.repo.UpsertConnection(*provisional); err != nil {
					if rerr := s.repo.UpsertRequest(prev); rerr != nil {
						s.logger.Error("failed to restore request", zap.Stringer("request_id", prev.ID), zap.Error(rerr))
					}
					return err
				}
			}
			return nil
		},
		Call: func(ctx context.Context) (*domain.ConnectionRequest, error) {
			return s.api.RespondRequest(ctx, requestID, action)
		},
		Commit: func(req *domain.ConnectionRequest) {
			if provisional != nil && (req.Connection != nil || req.Status != domain.RequestStatusAccepted) {
				s.repo.RemoveConnection(provisional.ID)
			}
			if err := s.repo.UpsertRequest(*req); err != nil {
				s.logger.Warn("server request conflicts with local graph", zap.Stringer("request_id", req.ID), zap.Error(err))
			}
			if req.Connection != nil {
				if err := s.repo.UpsertConnection(*req.Connection); err != nil {
					s.logger.Warn("server connection conflicts with local graph", zap.Stringer("connection_id", req.Connection.ID), zap.Error(err))
				}
			}
		},
		Rollback: func(err error) {
			if provisional != nil {
				s.repo.RemoveConnection(provisional.ID)
			}
			if rerr := s.repo.UpsertRequest(prev); rerr != nil {
				s.logger.Error("failed to restore request", zap.Stringer("request_id", prev.ID), zap.Error(rerr))
			}
			s.logger.Info("respond rolled back", zap.Stringer("request_id", requestID), zap.Error(err))
		},
		Live: s.live,
	})
	if err != nil {
		return nil, fmt.Errorf("respond: %w", staleRequest(err))
	}
	return req, nil
}

// Withdraw cancels a pending request the viewer sent
func (s *Service) Withdraw(ctx context.Context, requestID domain.ID) error {
	prev, ok := s.repo.Request(requestID)
	if !ok || prev.Status != domain.RequestStatusPending || prev.Sender.ID != s.viewer.ID {
		return fmt.Errorf("withdraw: request %s: %w", requestID, domain.ErrNotFound)
	}
	if requestID.Provisional() {
		// the send has not been confirmed, there is nothing to withdraw on the server yet
		return fmt.Errorf("withdraw: request %s: %w", requestID, domain.ErrInFlight)
	}

	updated := prev
	updated.Status = domain.RequestStatusWithdrawn
	respondedAt := s.now()
	updated.RespondedAt = &respondedAt

	_, err := optimistic.Run(ctx, optimistic.Op[struct{}]{
		Name:  "withdraw_request",
		Key:   pairKey(prev.Sender.ID, prev.Receiver.ID),
		Guard: s.guard,
		Apply: func() error {
			if cur, ok := s.repo.Request(requestID); !ok || cur.Status != domain.RequestStatusPending {
				return fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
			}
			return s.repo.UpsertRequest(updated)
		},
		Call: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.api.WithdrawRequest(ctx, requestID)
		},
		Rollback: func(err error) {
			if rerr := s.repo.UpsertRequest(prev); rerr != nil {
				s.logger.Error("failed to restore request", zap.Stringer("request_id", prev.ID), zap.Error(rerr))
			}
			s.logger.Info("withdraw rolled back", zap.Stringer("request_id", requestID), zap.Error(err))
		},
		Live: s.live,
	})
	if err != nil {
		return fmt.Errorf("withdraw: %w", staleRequest(err))
	}
	return nil
}

// staleRequest reports a conflict on an existing request as ErrNotFound: the server
// already moved it out of pending, so the local copy was stale.
func staleRequest(err error) error {
	if errors.Is(err, domain.ErrAlreadyRelated) && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	return err
}

// RemoveConnection deletes a connection the viewer is part of. Request history is kept.
func (s *Service) RemoveConnection(ctx context.Context, connectionID domain.ID) error {
	prev, ok := s.repo.Connection(connectionID)
	if !ok || connectionID.Provisional() || !prev.Involves(s.viewer.ID) {
		return fmt.Errorf("remove connection %s: %w", connectionID, domain.ErrNotFound)
	}

	_, err := optimistic.Run(ctx, optimistic.Op[struct{}]{
		Name:  "remove_connection",
		Key:   pairKey(prev.UserA.ID, prev.UserB.ID),
		Guard: s.guard,
		Apply: func() error {
			if _, ok := s.repo.RemoveConnection(connectionID); !ok {
				return fmt.Errorf("connection %s: %w", connectionID, domain.ErrNotFound)
			}
			return nil
		},
		Call: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.api.RemoveConnection(ctx, connectionID)
		},
		Rollback: func(err error) {
			if rerr := s.repo.UpsertConnection(prev); rerr != nil {
				s.logger.Error("failed to restore connection", zap.Stringer("connection_id", prev.ID), zap.Error(rerr))
			}
			s.logger.Info("remove connection rolled back", zap.Stringer("connection_id", connectionID), zap.Error(err))
		},
		Live: s.live,
	})
	if err != nil {
		return fmt.Errorf("remove connection: %w", err)
	}
	return nil
}

// Follow subscribes the viewer to target. Following is independent of connection status.
func (s *Service) Follow(ctx context.Context, target domain.UserRef) (*domain.Follow, error) {
	if target.ID == s.viewer.ID {
		return nil, fmt.Errorf("follow: %w", domain.ErrSelfRequest)
	}

	provisional := domain.Follow{
		ID:        s.repo.NextProvisionalID(),
		Follower:  s.viewer,
		Following: target,
		CreatedAt: s.now(),
	}

	f, err := optimistic.Run(ctx, optimistic.Op[*domain.Follow]{
		Name:  "follow",
		Key:   "follow:" + target.ID.String(),
		Guard: s.guard,
		Apply: func() error {
			if s.repo.IsFollowing(s.viewer.ID, target.ID) {
				return fmt.Errorf("already following %s: %w", target.ID, domain.ErrAlreadyRelated)
			}
			return s.repo.UpsertFollow(provisional)
		},
		Call: func(ctx context.Context) (*domain.Follow, error) {
			return s.api.Follow(ctx, target.ID)
		},
		Commit: func(f *domain.Follow) {
			if err := s.repo.UpsertFollow(*f); err != nil {
				s.logger.Warn("server follow rejected by local graph", zap.Stringer("follow_id", f.ID), zap.Error(err))
			}
		},
		Rollback: func(err error) {
			s.repo.RemoveFollow(s.viewer.ID, target.ID)
			s.logger.Info("follow rolled back", zap.Stringer("target", target.ID), zap.Error(err))
		},
		Live: s.live,
	})
	if err != nil {
		return nil, fmt.Errorf("follow: %w", err)
	}
	return f, nil
}

// Unfollow removes the viewer's follow of target
func (s *Service) Unfollow(ctx context.Context, target domain.UserID) error {
	var prev domain.Follow

	_, err := optimistic.Run(ctx, optimistic.Op[struct{}]{
		Name:  "unfollow",
		Key:   "follow:" + target.String(),
		Guard: s.guard,
		Apply: func() error {
			f, ok := s.repo.RemoveFollow(s.viewer.ID, target)
			if !ok {
				return fmt.Errorf("not following %s: %w", target, domain.ErrNotFound)
			}
			prev = f
			return nil
		},
		Call: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.api.Unfollow(ctx, target)
		},
		Rollback: func(err error) {
			if rerr := s.repo.UpsertFollow(prev); rerr != nil {
				s.logger.Error("failed to restore follow", zap.Stringer("follow_id", prev.ID), zap.Error(rerr))
			}
			s.logger.Info("unfollow rolled back", zap.Stringer("target", target), zap.Error(err))
		},
		Live: s.live,
	})
	if err != nil {
		return fmt.Errorf("unfollow: %w", err)
	}
	return nil
}

// Hydrate replaces the repository with the server's view of the viewer's graph.
// Records the server sends that break the graph invariants are skipped and logged.
func (s *Service) Hydrate(ctx context.Context) error {
	var snap graph.Snapshot

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reqs, err := domain.AllPages(ctx, s.api.ListRequests)
		if err != nil {
			return fmt.Errorf("list requests: %w", err)
		}
		snap.Requests = reqs
		return nil
	})
	g.Go(func() error {
		conns, err := domain.AllPages(ctx, s.api.ListConnections)
		if err != nil {
			return fmt.Errorf("list connections: %w", err)
		}
		snap.Connections = conns
		return nil
	})
	var following, followers []domain.Follow
	g.Go(func() error {
		var err error
		if following, err = domain.AllPages(ctx, s.api.ListFollowing); err != nil {
			return fmt.Errorf("list follows: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if followers, err = domain.AllPages(ctx, s.api.ListFollowers); err != nil {
			return fmt.Errorf("list followers: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}
	snap.Follows = append(following, followers...)

	if err := s.repo.Restore(snap); err != nil {
		s.logger.Warn("skipped inconsistent records while hydrating", zap.Error(err))
	}
	s.logger.Debug("graph hydrated",
		zap.Int("requests", len(snap.Requests)),
		zap.Int("connections", len(snap.Connections)),
		zap.Int("follows", len(snap.Follows)),
	)
	return nil
}
