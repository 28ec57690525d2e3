// Package notes keeps the viewer's private bio notes in the configured store
// instead of ambient global state.
package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/storage"
	"github.com/locolive/proconnect/pkg/validator"
)

type Note struct {
	Text      string    `json:"text" validate:"max=2000"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Notes struct {
	store  storage.Store
	viewer domain.UserID
	now    func() time.Time
}

func New(store storage.Store, viewer domain.UserID) *Notes {
	return &Notes{store: store, viewer: viewer, now: time.Now}
}

func (n *Notes) key() string {
	return "notes/" + n.viewer.String() + ".json"
}

// Get returns the saved note, or an empty one if nothing was saved yet
func (n *Notes) Get(ctx context.Context) (Note, error) {
	note, err := storage.LoadJSON[Note](ctx, n.store, n.key())
	if errors.Is(err, storage.ErrNotFound) {
		return Note{}, nil
	}
	if err != nil {
		return Note{}, fmt.Errorf("load notes: %w", err)
	}
	return note, nil
}

// Set replaces the note. Blank text clears it.
func (n *Notes) Set(ctx context.Context, text string) (Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Note{}, n.Clear(ctx)
	}

	note := Note{Text: text, UpdatedAt: n.now().UTC()}
	if err := validator.Struct(note); err != nil {
		return Note{}, fmt.Errorf("save notes: %w: %w", domain.ErrValidation, err)
	}
	if err := storage.SaveJSON(ctx, n.store, n.key(), note); err != nil {
		return Note{}, fmt.Errorf("save notes: %w", err)
	}
	return note, nil
}

func (n *Notes) Clear(ctx context.Context) error {
	if err := n.store.Delete(ctx, n.key()); err != nil {
		return fmt.Errorf("clear notes: %w", err)
	}
	return nil
}
