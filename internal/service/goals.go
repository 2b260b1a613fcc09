package service

import (
	"context"
	"fmt"

	"casal/internal/core"
	"casal/internal/feed"
	"casal/internal/storage"
)

type GoalService struct {
	storage   *storage.Repository
	publisher Publisher
}

func NewGoalService(storage *storage.Repository, publisher Publisher) *GoalService {
	return &GoalService{storage: storage, publisher: publisher}
}

func (s *GoalService) List(ctx context.Context, scope storage.Scope) ([]core.Goal, error) {
	return s.storage.ListGoals(ctx, scope)
}

func (s *GoalService) Add(ctx context.Context, g core.Goal) (core.Goal, error) {
	saved, err := s.storage.InsertGoal(ctx, g)
	if err != nil {
		return core.Goal{}, fmt.Errorf("save goal: %w", err)
	}
	publish(ctx, s.publisher, TableGoals, feed.Insert, saved.CoupleID, saved)
	return saved, nil
}

func (s *GoalService) Update(ctx context.Context, id string, patch storage.GoalPatch) (core.Goal, error) {
	saved, err := s.storage.UpdateGoal(ctx, id, patch)
	if err != nil {
		return core.Goal{}, fmt.Errorf("update goal: %w", err)
	}
	publish(ctx, s.publisher, TableGoals, feed.Update, saved.CoupleID, saved)
	return saved, nil
}

// Contribute adds cents to the goal's saved amount.
func (s *GoalService) Contribute(ctx context.Context, id string, amount core.Money) (core.Goal, error) {
	if err := amount.Validate(); err != nil {
		return core.Goal{}, err
	}
	existing, err := s.storage.GetGoal(ctx, id)
	if err != nil {
		return core.Goal{}, err
	}
	if existing == nil {
		return core.Goal{}, fmt.Errorf("contribute: no goal with id %s", id)
	}
	next := core.Money{Cents: existing.CurrentAmount.Cents + amount.Cents}
	return s.Update(ctx, id, storage.GoalPatch{CurrentAmount: &next})
}

func (s *GoalService) Delete(ctx context.Context, id string) error {
	existing, err := s.storage.GetGoal(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if err := s.storage.DeleteGoal(ctx, id); err != nil {
		return err
	}
	publish(ctx, s.publisher, TableGoals, feed.Delete, existing.CoupleID, deletedRow{ID: id})
	return nil
}
