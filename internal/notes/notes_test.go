package notes_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/notes"
	"github.com/locolive/proconnect/internal/storage"
)

func TestNotesLifecycle(t *testing.T) {
	store, err := storage.NewBadgerStore(storage.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	n := notes.New(store, 3)
	empty, err := n.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.Text)

	saved, err := n.Set(ctx, "  Platform engineer, open to mentoring  ")
	require.NoError(t, err)
	assert.Equal(t, "Platform engineer, open to mentoring", saved.Text)

	got, err := n.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.Text, got.Text)

	other, err := notes.New(store, 4).Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, other.Text, "notes are per viewer")

	_, err = n.Set(ctx, strings.Repeat("x", 2001))
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = n.Set(ctx, "   ")
	require.NoError(t, err)
	got, err = n.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Text)
}
