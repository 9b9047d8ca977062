package policy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/phish-simulator/internal/kvstore"
)

type brokenStore struct{ kvstore.Store }

func (brokenStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("timeout")
}

func TestStoreSource_Fetch(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(0)
	src := NewStoreSource(store)

	require.NoError(t, src.Put(ctx, "Acme", "  Never share passwords by email.  "))

	text, err := src.Fetch(ctx, "ACME ")
	require.NoError(t, err)
	assert.Equal(t, "Never share passwords by email.", text)

	text, err = src.Fetch(ctx, "unknown-org")
	require.NoError(t, err)
	assert.Empty(t, text)

	text, err = src.Fetch(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestStoreSource_Truncates(t *testing.T) {
	ctx := context.Background()
	src := NewStoreSource(kvstore.NewMemoryStore(0))
	src.maxRunes = 5

	require.NoError(t, src.Put(ctx, "acme", strings.Repeat("é", 10)))
	text, err := src.Fetch(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 5), text)
}

func TestStoreSource_StoreError(t *testing.T) {
	src := NewStoreSource(brokenStore{})

	_, err := src.Fetch(context.Background(), "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acme")
}

func TestStoreSource_PutRequiresOrganization(t *testing.T) {
	src := NewStoreSource(kvstore.NewMemoryStore(0))
	assert.Error(t, src.Put(context.Background(), " ", "text"))
}

func TestStatic(t *testing.T) {
	text, err := Static("fixed").Fetch(context.Background(), "any")
	require.NoError(t, err)
	assert.Equal(t, "fixed", text)
}
