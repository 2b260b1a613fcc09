package service

import (
	"context"
	"fmt"

	"casal/internal/core"
	"casal/internal/feed"
	"casal/internal/storage"
)

type BudgetService struct {
	storage   *storage.Repository
	publisher Publisher
}

func NewBudgetService(storage *storage.Repository, publisher Publisher) *BudgetService {
	return &BudgetService{storage: storage, publisher: publisher}
}

func (s *BudgetService) List(ctx context.Context, coupleID string) ([]core.Budget, error) {
	return s.storage.ListBudgets(ctx, coupleID)
}

// Set saves the limit for a category and month, replacing any existing one.
func (s *BudgetService) Set(ctx context.Context, b core.Budget) (core.Budget, error) {
	saved, err := s.storage.UpsertBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	publish(ctx, s.publisher, TableBudgets, feed.Update, saved.CoupleID, saved)
	return saved, nil
}

func (s *BudgetService) Delete(ctx context.Context, id string) error {
	existing, err := s.storage.GetBudget(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if err := s.storage.DeleteBudget(ctx, id); err != nil {
		return err
	}
	publish(ctx, s.publisher, TableBudgets, feed.Delete, existing.CoupleID, deletedRow{ID: id})
	return nil
}
