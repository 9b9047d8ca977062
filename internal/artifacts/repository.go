// Package artifacts persists generated artifacts as separate keys in the
// key-value store, with the base metadata record acting as the commit marker.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jonathan/phish-simulator/internal/kvstore"
	"github.com/jonathan/phish-simulator/internal/types"
)

// PartLanding is the store suffix of the landing page part
const PartLanding = "landing"

// PartBase is the store suffix of the metadata record
const PartBase = "base"

// Key builds the store key for one part of an artifact
func Key(kind types.ContentKind, id, part string) string {
	return fmt.Sprintf("%s:%s:%s", kind.KeyPrefix(), id, part)
}

// Repository reads and writes artifacts
type Repository struct {
	store  kvstore.Store
	logger zerolog.Logger
}

// NewRepository creates a repository over store
func NewRepository(store kvstore.Store, logger zerolog.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger.With().Str("component", "artifact_repository").Logger(),
	}
}

type pendingWrite struct {
	key   string
	value any
}

// Save writes the message and landing page parts, then the base record last.
// Any failure deletes the keys already written and returns *PersistenceError.
// On success it returns every key written, base last.
func (r *Repository) Save(ctx context.Context, a *types.Artifact) ([]string, error) {
	if a == nil || a.Base.ID == "" {
		return nil, &PersistenceError{Key: "artifact", Cause: errors.New("artifact id is required")}
	}
	kind := a.Base.Kind

	var writes []pendingWrite
	base := a.Base
	base.Parts = nil
	if a.Message != nil {
		part := kind.MessagePartName()
		writes = append(writes, pendingWrite{key: Key(kind, base.ID, part), value: a.Message})
		base.Parts = append(base.Parts, part)
	}
	if a.LandingPage != nil {
		writes = append(writes, pendingWrite{key: Key(kind, base.ID, PartLanding), value: a.LandingPage})
		base.Parts = append(base.Parts, PartLanding)
	}
	writes = append(writes, pendingWrite{key: Key(kind, base.ID, PartBase), value: base})

	return r.writeAll(ctx, writes)
}

// SaveRecord stores a single-part record (the base key only) for kinds without parts.
func (r *Repository) SaveRecord(ctx context.Context, prefix, id string, record any) ([]string, error) {
	key := fmt.Sprintf("%s:%s:%s", prefix, id, PartBase)
	return r.writeAll(ctx, []pendingWrite{{key: key, value: record}})
}

func (r *Repository) writeAll(ctx context.Context, writes []pendingWrite) ([]string, error) {
	written := make([]string, 0, len(writes))
	for _, w := range writes {
		data, err := json.Marshal(w.value)
		if err == nil {
			err = r.store.Put(ctx, w.key, data)
		}
		if err != nil {
			perr := &PersistenceError{Key: w.key, Cause: err}
			perr.RollbackErr = r.rollback(ctx, written)
			r.logger.Error().
				Err(err).
				Str("key", w.key).
				Int("rolled_back", len(written)).
				Msg("artifact write failed")
			return nil, perr
		}
		written = append(written, w.key)
	}
	return written, nil
}

// rollback deletes keys even if ctx has been cancelled.
func (r *Repository) rollback(ctx context.Context, keys []string) error {
	cleanupCtx := context.WithoutCancel(ctx)
	var errs []error
	for i := len(keys) - 1; i >= 0; i-- {
		if err := r.store.Delete(cleanupCtx, keys[i]); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", keys[i], err))
		}
	}
	return errors.Join(errs...)
}

// Load reads an artifact. The base record must be visible; parts it lists are
// then required too. Returns kvstore.ErrNotFound when the base is absent.
func (r *Repository) Load(ctx context.Context, kind types.ContentKind, id string) (*types.Artifact, error) {
	var out types.Artifact
	if err := r.getJSON(ctx, Key(kind, id, PartBase), &out.Base); err != nil {
		return nil, err
	}

	for _, part := range out.Base.Parts {
		switch part {
		case PartLanding:
			out.LandingPage = &types.LandingPage{}
			if err := r.getJSON(ctx, Key(kind, id, part), out.LandingPage); err != nil {
				return nil, err
			}
		default:
			out.Message = &types.MessagePart{}
			if err := r.getJSON(ctx, Key(kind, id, part), out.Message); err != nil {
				return nil, err
			}
		}
	}
	return &out, nil
}

// LoadRecord reads a single-part record written by SaveRecord
func (r *Repository) LoadRecord(ctx context.Context, prefix, id string, into any) error {
	return r.getJSON(ctx, fmt.Sprintf("%s:%s:%s", prefix, id, PartBase), into)
}

func (r *Repository) getJSON(ctx context.Context, key string, into any) error {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
