package service

import (
	"context"
	"fmt"

	"casal/internal/core"
	"casal/internal/feed"
	"casal/internal/storage"
)

type ShoppingService struct {
	storage   *storage.Repository
	publisher Publisher
}

func NewShoppingService(storage *storage.Repository, publisher Publisher) *ShoppingService {
	return &ShoppingService{storage: storage, publisher: publisher}
}

func (s *ShoppingService) List(ctx context.Context, scope storage.Scope) ([]core.ShoppingItem, error) {
	return s.storage.ListShoppingItems(ctx, scope)
}

func (s *ShoppingService) Add(ctx context.Context, i core.ShoppingItem) (core.ShoppingItem, error) {
	saved, err := s.storage.InsertShoppingItem(ctx, i)
	if err != nil {
		return core.ShoppingItem{}, fmt.Errorf("save shopping item: %w", err)
	}
	publish(ctx, s.publisher, TableShopping, feed.Insert, saved.CoupleID, saved)
	return saved, nil
}

func (s *ShoppingService) Update(ctx context.Context, id string, patch storage.ShoppingItemPatch) (core.ShoppingItem, error) {
	saved, err := s.storage.UpdateShoppingItem(ctx, id, patch)
	if err != nil {
		return core.ShoppingItem{}, fmt.Errorf("update shopping item: %w", err)
	}
	publish(ctx, s.publisher, TableShopping, feed.Update, saved.CoupleID, saved)
	return saved, nil
}

// Toggle flips the checked state of an item.
func (s *ShoppingService) Toggle(ctx context.Context, id string) (core.ShoppingItem, error) {
	existing, err := s.storage.GetShoppingItem(ctx, id)
	if err != nil {
		return core.ShoppingItem{}, err
	}
	if existing == nil {
		return core.ShoppingItem{}, fmt.Errorf("toggle: no item with id %s", id)
	}
	checked := !existing.IsChecked
	return s.Update(ctx, id, storage.ShoppingItemPatch{IsChecked: &checked})
}

func (s *ShoppingService) Delete(ctx context.Context, id string) error {
	existing, err := s.storage.GetShoppingItem(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if err := s.storage.DeleteShoppingItem(ctx, id); err != nil {
		return err
	}
	publish(ctx, s.publisher, TableShopping, feed.Delete, existing.CoupleID, deletedRow{ID: id})
	return nil
}
