package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pranaflow/pranaflow/internal/observe"
)

// Document keys inside the store file. These match the browser app's
// localStorage keys so an exported snapshot can be imported directly.
const (
	keyPractice   = "practice-history"
	keyMeditation = "meditationSessions"
	keyProfile    = "user-profile"
	keyMeals      = "meal-entries"
	keyNotes      = "progress-notes"
)

// FileStore persists all documents in one JSON file: a key to document map,
// written whole on every change (read-merge-write under the mutex, so
// concurrent writers to different keys never clobber each other). A corrupt
// or missing file reads as empty rather than failing the caller.
type FileStore struct {
	path    string
	metrics *observe.Metrics

	mu sync.Mutex
}

// NewFileStore creates a store backed by the file at path. The parent
// directory is created if needed.
func NewFileStore(path string, metrics *observe.Metrics) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("history: store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &FileStore{path: path, metrics: metrics}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Ping verifies the backing file is writable. Used by the readiness check.
func (s *FileStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("store not writable: %w", err)
	}
	return f.Close()
}

// AppendPractice prepends rec to the practice history.
func (s *FileStore) AppendPractice(ctx context.Context, rec PracticeRecord) error {
	return prepend(s, ctx, keyPractice, rec)
}

// Practices returns all practice records, newest first.
func (s *FileStore) Practices(ctx context.Context) ([]PracticeRecord, error) {
	return load[[]PracticeRecord](s, ctx, keyPractice)
}

// ClearPractices deletes the entire practice history. Other documents are
// untouched.
func (s *FileStore) ClearPractices(ctx context.Context) error {
	return s.update(ctx, func(docs map[string]json.RawMessage) error {
		delete(docs, keyPractice)
		return nil
	})
}

// AppendMeditation prepends rec to the meditation history.
func (s *FileStore) AppendMeditation(ctx context.Context, rec MeditationRecord) error {
	return prepend(s, ctx, keyMeditation, rec)
}

// Meditations returns all meditation records, newest first.
func (s *FileStore) Meditations(ctx context.Context) ([]MeditationRecord, error) {
	return load[[]MeditationRecord](s, ctx, keyMeditation)
}

// Profile returns the stored user profile, zero valued when absent.
func (s *FileStore) Profile(ctx context.Context) (Profile, error) {
	return load[Profile](s, ctx, keyProfile)
}

// SaveProfile replaces the stored user profile.
func (s *FileStore) SaveProfile(ctx context.Context, p Profile) error {
	return s.update(ctx, func(docs map[string]json.RawMessage) error {
		return setDoc(docs, keyProfile, p)
	})
}

// Notes returns all progress notes, newest first.
func (s *FileStore) Notes(ctx context.Context) ([]Note, error) {
	return load[[]Note](s, ctx, keyNotes)
}

// AddNote prepends a progress note.
func (s *FileStore) AddNote(ctx context.Context, n Note) error {
	return prepend(s, ctx, keyNotes, n)
}

// DeleteNote removes the note with the given id. Missing ids are a no-op.
func (s *FileStore) DeleteNote(ctx context.Context, id string) error {
	return removeByID[Note](s, ctx, keyNotes, id, func(n Note) string { return n.ID })
}

// Meals returns all meal entries, newest first.
func (s *FileStore) Meals(ctx context.Context) ([]MealEntry, error) {
	return load[[]MealEntry](s, ctx, keyMeals)
}

// AddMeal prepends a meal entry.
func (s *FileStore) AddMeal(ctx context.Context, m MealEntry) error {
	return prepend(s, ctx, keyMeals, m)
}

// DeleteMeal removes the meal entry with the given id. Missing ids are a
// no-op.
func (s *FileStore) DeleteMeal(ctx context.Context, id string) error {
	return removeByID[MealEntry](s, ctx, keyMeals, id, func(m MealEntry) string { return m.ID })
}

// load reads one document. An absent key or unreadable file yields the zero
// value of T, never an error the caller has to special-case.
func load[T any](s *FileStore, ctx context.Context, key string) (T, error) {
	var out T

	s.mu.Lock()
	docs := s.readLocked(ctx)
	raw, ok := docs[key]
	s.mu.Unlock()

	if !ok {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		slog.Warn("discarding corrupt store document", "key", key, "err", err)
		var zero T
		return zero, nil
	}
	return out, nil
}

// prepend adds rec to the front of the list document under key.
func prepend[T any](s *FileStore, ctx context.Context, key string, rec T) error {
	return s.update(ctx, func(docs map[string]json.RawMessage) error {
		var list []T
		if raw, ok := docs[key]; ok {
			if err := json.Unmarshal(raw, &list); err != nil {
				slog.Warn("discarding corrupt store document", "key", key, "err", err)
				list = nil
			}
		}
		list = append([]T{rec}, list...)
		return setDoc(docs, key, list)
	})
}

// removeByID deletes the list element whose id matches.
func removeByID[T any](s *FileStore, ctx context.Context, key, id string, idOf func(T) string) error {
	return s.update(ctx, func(docs map[string]json.RawMessage) error {
		var list []T
		if raw, ok := docs[key]; ok {
			if err := json.Unmarshal(raw, &list); err != nil {
				slog.Warn("discarding corrupt store document", "key", key, "err", err)
				list = nil
			}
		}
		kept := list[:0]
		for _, item := range list {
			if idOf(item) != id {
				kept = append(kept, item)
			}
		}
		return setDoc(docs, key, kept)
	})
}

func setDoc(docs map[string]json.RawMessage, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	docs[key] = raw
	return nil
}

// update runs fn against the current document map and writes the result
// back atomically.
func (s *FileStore) update(ctx context.Context, fn func(map[string]json.RawMessage) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.readLocked(ctx)
	if err := fn(docs); err != nil {
		return err
	}
	if err := s.writeLocked(docs); err != nil {
		s.metrics.RecordStoreError(ctx, "file")
		return err
	}
	s.metrics.RecordPersist(ctx, "file", "ok")
	return nil
}

// readLocked loads the document map from disk. Any failure logs and yields
// an empty map: the store degrades to fresh state rather than wedging every
// save. Caller holds s.mu.
func (s *FileStore) readLocked(ctx context.Context) map[string]json.RawMessage {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("reading history store failed", "path", s.path, "err", err)
			s.metrics.RecordStoreError(ctx, "file")
		}
		return map[string]json.RawMessage{}
	}
	if len(data) == 0 {
		return map[string]json.RawMessage{}
	}

	docs := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &docs); err != nil {
		slog.Warn("history store is corrupt, starting empty", "path", s.path, "err", err)
		s.metrics.RecordStoreError(ctx, "file")
		return map[string]json.RawMessage{}
	}
	return docs
}

// writeLocked writes the document map via a temp file and rename so a crash
// mid-write never leaves a truncated store. Caller holds s.mu.
func (s *FileStore) writeLocked(docs map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
