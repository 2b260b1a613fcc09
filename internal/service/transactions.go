package service

import (
	"context"
	"fmt"

	"casal/internal/core"
	"casal/internal/feed"
	"casal/internal/storage"
)

// TransactionService orchestrates transaction writes across SQLite and the
// change feed.
type TransactionService struct {
	storage   *storage.Repository
	publisher Publisher
}

func NewTransactionService(storage *storage.Repository, publisher Publisher) *TransactionService {
	return &TransactionService{storage: storage, publisher: publisher}
}

func (s *TransactionService) List(ctx context.Context, scope storage.Scope) ([]core.Transaction, error) {
	return s.storage.ListTransactions(ctx, scope)
}

func (s *TransactionService) Add(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	saved, err := s.storage.InsertTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	publish(ctx, s.publisher, TableTransactions, feed.Insert, saved.CoupleID, saved)
	return saved, nil
}

func (s *TransactionService) Update(ctx context.Context, id string, patch storage.TransactionPatch) (core.Transaction, error) {
	saved, err := s.storage.UpdateTransaction(ctx, id, patch)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	publish(ctx, s.publisher, TableTransactions, feed.Update, saved.CoupleID, saved)
	return saved, nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	existing, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if err := s.storage.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	publish(ctx, s.publisher, TableTransactions, feed.Delete, existing.CoupleID, deletedRow{ID: id})
	return nil
}
