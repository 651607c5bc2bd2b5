package layout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"finboard/internal/storage"
)

// Backing persists raw layouts.
type Backing interface {
	Layout(ctx context.Context, userID, scope string) (storage.StoredLayout, error)
	SaveLayout(ctx context.Context, userID, scope string, l storage.StoredLayout) error
}

// Store loads and saves layouts, applying versioned defaults on the way out.
type Store struct {
	backing Backing
}

func NewStore(b Backing) *Store {
	return &Store{backing: b}
}

// Get returns the current layout for a page. Nothing stored yields the
// defaults; an unreadable payload is treated as outdated.
func (s *Store) Get(ctx context.Context, userID, scope string) (State, error) {
	raw, err := s.backing.Layout(ctx, userID, scope)
	if errors.Is(err, storage.ErrNotFound) {
		return Default(), nil
	}
	if err != nil {
		return State{}, err
	}
	var st State
	if err := json.Unmarshal(raw.Payload, &st); err != nil {
		return Default(), nil
	}
	st.SizesVersion = raw.SizesVersion
	return Apply(st), nil
}

// Save validates and stores a layout at the current sizes version.
func (s *Store) Save(ctx context.Context, userID, scope string, st State) (State, error) {
	if err := Validate(st); err != nil {
		return State{}, err
	}
	st.SizesVersion = CurrentSizesVersion
	st = Apply(st)
	payload, err := json.Marshal(st)
	if err != nil {
		return State{}, fmt.Errorf("encode layout: %w", err)
	}
	if err := s.backing.SaveLayout(ctx, userID, scope, storage.StoredLayout{SizesVersion: st.SizesVersion, Payload: payload}); err != nil {
		return State{}, err
	}
	return st, nil
}
