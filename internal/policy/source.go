// Package policy supplies organization policy text used to ground generated scenarios.
package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/phish-simulator/internal/kvstore"
)

// KeyPrefix namespaces policy documents in the store
const KeyPrefix = "policy"

// DefaultMaxRunes caps the policy text injected into prompts
const DefaultMaxRunes = 4000

// Source fetches policy text for an organization. An unknown organization yields
// an empty string and no error.
type Source interface {
	Fetch(ctx context.Context, organization string) (string, error)
}

// StoreSource reads policy documents stored under policy:<organization>
type StoreSource struct {
	store    kvstore.Store
	maxRunes int
}

// NewStoreSource creates a source over store
func NewStoreSource(store kvstore.Store) *StoreSource {
	return &StoreSource{store: store, maxRunes: DefaultMaxRunes}
}

// Key returns the store key for an organization's policy
func Key(organization string) string {
	return fmt.Sprintf("%s:%s", KeyPrefix, strings.ToLower(strings.TrimSpace(organization)))
}

// Fetch returns the organization's policy text truncated to the rune limit
func (s *StoreSource) Fetch(ctx context.Context, organization string) (string, error) {
	if strings.TrimSpace(organization) == "" {
		return "", nil
	}

	data, err := s.store.Get(ctx, Key(organization))
	if errors.Is(err, kvstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch policy for %q: %w", organization, err)
	}
	return truncateRunes(strings.TrimSpace(string(data)), s.maxRunes), nil
}

// Put stores policy text for an organization
func (s *StoreSource) Put(ctx context.Context, organization, text string) error {
	if strings.TrimSpace(organization) == "" {
		return errors.New("organization is required")
	}
	return s.store.Put(ctx, Key(organization), []byte(text))
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// Static is a Source that returns the same text for every organization
type Static string

// Fetch returns the static text
func (s Static) Fetch(context.Context, string) (string, error) {
	return string(s), nil
}
