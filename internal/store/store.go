// Package store provides the durable media identifier cache: a mapping from
// zodiac sign key to the Telegram file_id of a previously uploaded image, so
// a publish can reference the image without re-uploading its bytes.
//
// The whole mapping is one JSON object ("snapshot"). It is loaded once at
// startup and rewritten in full after every upload batch. There is no
// per-key update: ReplaceAll writes the snapshot first and swaps the
// in-memory map only when the write succeeded, so the two views never
// diverge. The snapshot lives behind a Backend (local file or S3 object).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fpang/astro-channel-bot/internal/apperr"
)

// Backend reads and writes the serialized snapshot.
// Read returns an error wrapping fs.ErrNotExist when no snapshot exists yet.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	// Location describes where the snapshot lives, for logs.
	Location() string
}

// FileIDStore holds at most one identifier per sign key. Safe for concurrent use.
type FileIDStore struct {
	mu      sync.RWMutex
	ids     map[string]string
	backend Backend
}

// Load reads the snapshot from backend. It never fails: a missing snapshot
// yields an empty store, and an unreadable or malformed one is logged as a
// warning and also yields an empty store.
func Load(ctx context.Context, backend Backend) *FileIDStore {
	s := &FileIDStore{ids: make(map[string]string), backend: backend}

	data, err := backend.Read(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info().Str("location", backend.Location()).Msg("No file_id snapshot found, starting with an empty store")
			return s
		}
		log.Warn().Err(apperr.Wrap(apperr.StoreCorrupt, "store.load", err)).
			Str("location", backend.Location()).
			Msg("Failed to read file_id snapshot, starting with an empty store")
		return s
	}

	ids, err := decodeSnapshot(data)
	if err != nil {
		log.Warn().Err(apperr.Wrap(apperr.StoreCorrupt, "store.load", err)).
			Str("location", backend.Location()).
			Int("bytes", len(data)).
			Msg("Malformed file_id snapshot, starting with an empty store")
		return s
	}

	s.ids = ids
	log.Info().Str("location", backend.Location()).Int("count", len(ids)).Msg("file_id snapshot loaded")
	return s
}

// Get returns the identifier stored for key.
func (s *FileIDStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ids[key]
	return id, ok
}

// Len returns the number of stored identifiers.
func (s *FileIDStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Snapshot returns a copy of the current mapping.
func (s *FileIDStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.ids)
}

// ReplaceAll persists mapping as the new snapshot and then makes it the
// in-memory state. On a write failure the previous state is kept and the
// error is returned. Empty identifiers are rejected.
func (s *FileIDStore) ReplaceAll(ctx context.Context, mapping map[string]string) error {
	next := copyMap(mapping)
	if err := validateIDs(next); err != nil {
		return err
	}
	data, err := encodeSnapshot(next)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("write snapshot to %s: %w", s.backend.Location(), err)
	}
	s.ids = next

	log.Info().Str("location", s.backend.Location()).Int("count", len(next)).Msg("file_id snapshot written")
	return nil
}

func decodeSnapshot(data []byte) (map[string]string, error) {
	var ids map[string]string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if ids == nil {
		ids = make(map[string]string)
	}
	if err := validateIDs(ids); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return ids, nil
}

// validateIDs rejects null and blank identifiers, which would otherwise
// read back as a stored photo.
func validateIDs(ids map[string]string) error {
	for key, id := range ids {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("empty identifier for %q", key)
		}
	}
	return nil
}

// encodeSnapshot writes indented JSON; encoding/json sorts map keys, so the
// file is stable across writes.
func encodeSnapshot(ids map[string]string) ([]byte, error) {
	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
