package settings

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// item is anything stored in an id-keyed list with an active pointer.
type item interface {
	ProviderConfig | PromptTemplate
}

// collection binds a list key to its active-pointer key.
type collection[T item] struct {
	listKey   string
	activeKey string
	id        func(*T) *string
}

var (
	models = collection[ProviderConfig]{
		listKey:   KeyModels,
		activeKey: KeyActiveModel,
		id:        func(p *ProviderConfig) *string { return &p.ID },
	}
	prompts = collection[PromptTemplate]{
		listKey:   KeyPrompts,
		activeKey: KeyActivePrompt,
		id:        func(p *PromptTemplate) *string { return &p.ID },
	}
)

func (c collection[T]) list(ctx context.Context, q querier) ([]T, error) {
	var items []T
	if _, err := getJSON(ctx, q, c.listKey, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c collection[T]) active(ctx context.Context, q querier) (*T, error) {
	var v T
	ok, err := getJSON(ctx, q, c.activeKey, &v)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

func (c collection[T]) find(items []T, id string) int {
	for i := range items {
		if *c.id(&items[i]) == id {
			return i
		}
	}
	return -1
}

// save inserts v, or replaces the entry with the same id. A new id is
// generated when v has none. The first item saved becomes active, and an
// edited active item refreshes the active copy.
func (c collection[T]) save(ctx context.Context, s *Store, v T) (T, error) {
	id := c.id(&v)
	if *id == "" {
		*id = uuid.NewString()
	}

	err := s.update(ctx, func(q querier) error {
		items, err := c.list(ctx, q)
		if err != nil {
			return err
		}
		if i := c.find(items, *id); i >= 0 {
			items[i] = v
		} else {
			items = append(items, v)
		}
		if err := putJSON(ctx, q, c.listKey, items); err != nil {
			return err
		}

		active, err := c.active(ctx, q)
		if err != nil {
			return err
		}
		if active == nil || *c.id(active) == *id {
			return putJSON(ctx, q, c.activeKey, v)
		}
		return nil
	})
	return v, err
}

// remove deletes the entry with id, clearing the active pointer if it
// pointed at it.
func (c collection[T]) remove(ctx context.Context, s *Store, id string) error {
	return s.update(ctx, func(q querier) error {
		items, err := c.list(ctx, q)
		if err != nil {
			return err
		}
		i := c.find(items, id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		items = append(items[:i], items[i+1:]...)
		if err := putJSON(ctx, q, c.listKey, items); err != nil {
			return err
		}

		active, err := c.active(ctx, q)
		if err != nil {
			return err
		}
		if active != nil && *c.id(active) == id {
			return putJSON(ctx, q, c.activeKey, nil)
		}
		return nil
	})
}

// use makes the entry with id active.
func (c collection[T]) use(ctx context.Context, s *Store, id string) (T, error) {
	var picked T
	err := s.update(ctx, func(q querier) error {
		items, err := c.list(ctx, q)
		if err != nil {
			return err
		}
		i := c.find(items, id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		picked = items[i]
		return putJSON(ctx, q, c.activeKey, picked)
	})
	return picked, err
}

// get returns the entry with id.
func (c collection[T]) get(ctx context.Context, s *Store, id string) (T, error) {
	var zero T
	items, err := c.list(ctx, s.db)
	if err != nil {
		return zero, err
	}
	i := c.find(items, id)
	if i < 0 {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return items[i], nil
}
