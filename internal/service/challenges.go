package service

import (
	"context"
	"fmt"
	"time"

	"casal/internal/core"
	"casal/internal/feed"
	"casal/internal/storage"
)

type ChallengeService struct {
	storage   *storage.Repository
	publisher Publisher
}

func NewChallengeService(storage *storage.Repository, publisher Publisher) *ChallengeService {
	return &ChallengeService{storage: storage, publisher: publisher}
}

func (s *ChallengeService) List(ctx context.Context, coupleID string) ([]core.Challenge, error) {
	return s.storage.ListChallenges(ctx, coupleID)
}

// Add creates a challenge. The start date, progress and status are forced:
// every new challenge begins today, at zero, active. The start date is
// truncated to UTC midnight so a challenge ending today is still valid.
func (s *ChallengeService) Add(ctx context.Context, c core.Challenge) (core.Challenge, error) {
	now := time.Now().UTC()
	c.StartDate = core.NewDate(now.Year(), int(now.Month()), now.Day())
	c.CurrentAmount = core.Money{}
	c.Status = core.ChallengeActive

	saved, err := s.storage.InsertChallenge(ctx, c)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("save challenge: %w", err)
	}
	publish(ctx, s.publisher, TableChallenges, feed.Insert, saved.CoupleID, saved)
	return saved, nil
}

func (s *ChallengeService) Update(ctx context.Context, id string, patch storage.ChallengePatch) (core.Challenge, error) {
	saved, err := s.storage.UpdateChallenge(ctx, id, patch)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("update challenge: %w", err)
	}
	publish(ctx, s.publisher, TableChallenges, feed.Update, saved.CoupleID, saved)
	return saved, nil
}

func (s *ChallengeService) Delete(ctx context.Context, id string) error {
	existing, err := s.storage.GetChallenge(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if err := s.storage.DeleteChallenge(ctx, id); err != nil {
		return err
	}
	publish(ctx, s.publisher, TableChallenges, feed.Delete, existing.CoupleID, deletedRow{ID: id})
	return nil
}
