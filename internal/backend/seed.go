package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/domain"
)

// Seed fills the store with n fake members, a post each for roughly half of them and a
// scattering of pending connection requests. The same seed yields the same data.
func (s *Service) Seed(ctx context.Context, n int, seed int64) ([]domain.UserRef, error) {
	faker := gofakeit.New(seed)

	users := make([]domain.UserRef, 0, n)
	for range n {
		headline := fmt.Sprintf("%s at %s", faker.JobTitle(), faker.Company())
		u, err := s.store.CreateUser(ctx, faker.Name(), headline)
		if err != nil {
			return nil, fmt.Errorf("seed users: %w", err)
		}
		users = append(users, u)
	}

	for _, u := range users {
		if !faker.Bool() {
			continue
		}
		if _, err := s.CreatePost(ctx, u.ID, domain.PostParams{Content: faker.Sentence(faker.Number(8, 24))}); err != nil {
			return nil, fmt.Errorf("seed posts: %w", err)
		}
	}

	requests := 0
	for i := 0; i < n && len(users) > 1; i++ {
		sender := users[faker.Number(0, len(users)-1)]
		receiver := users[faker.Number(0, len(users)-1)]
		_, err := s.SendRequest(ctx, sender.ID, domain.SendRequestParams{ReceiverID: receiver.ID, Message: faker.Sentence(6)})
		switch {
		case err == nil:
			requests++
		case errors.Is(err, domain.ErrSelfRequest), errors.Is(err, domain.ErrAlreadyRelated):
			// random pairs collide, skip them
		default:
			return nil, fmt.Errorf("seed requests: %w", err)
		}
	}

	s.logger.Info("seeded development data", zap.Int("users", len(users)), zap.Int("requests", requests))
	return users, nil
}
