package history

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/pranaflow/pranaflow/internal/notify"
)

// RemoteSource supplies practice records kept by a remote service.
type RemoteSource interface {
	Practices(ctx context.Context) ([]PracticeRecord, error)
}

// SyncedStore decorates a Store with read-through sync: listing practices
// also fetches the remote history, appends any record the local store does
// not have yet (matched by ID) and persists it, so the merge survives the
// next offline read. Writes pass through to the local store untouched; the
// remote side receives new sessions over its own save path.
//
// A failing remote downgrades to the local list with a warning notice,
// never to an error.
type SyncedStore struct {
	Store
	remote   RemoteSource
	notifier notify.Notifier
}

// NewSyncedStore wraps local with read-through sync from remote. The
// notifier may be nil.
func NewSyncedStore(local Store, remote RemoteSource, notifier notify.Notifier) *SyncedStore {
	return &SyncedStore{Store: local, remote: remote, notifier: notifier}
}

// Practices returns the local records merged with any remote records not
// yet stored locally, ordered newest first.
func (s *SyncedStore) Practices(ctx context.Context) ([]PracticeRecord, error) {
	local, err := s.Store.Practices(ctx)
	if err != nil {
		return nil, err
	}

	synced, err := s.remote.Practices(ctx)
	if err != nil {
		slog.Warn("history: remote sync failed; serving local records", "err", err)
		s.notify(notify.LevelWarn, "Sync Error", "Couldn't reach the server. Showing locally saved sessions.")
		return local, nil
	}

	seen := make(map[string]struct{}, len(local))
	for _, rec := range local {
		seen[rec.ID] = struct{}{}
	}

	var added int
	for _, rec := range synced {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		if err := s.Store.AppendPractice(ctx, rec); err != nil {
			slog.Warn("history: persist synced record", "id", rec.ID, "err", err)
			continue
		}
		local = append(local, rec)
		added++
	}

	if added > 0 {
		// Restore the newest-first ordering the local store guarantees;
		// merged records land at arbitrary positions in time.
		slices.SortStableFunc(local, func(a, b PracticeRecord) int {
			return b.Date.Compare(a.Date)
		})

		msg := fmt.Sprintf("%d new sessions synced from the server.", added)
		if added == 1 {
			msg = "1 new session synced from the server."
		}
		s.notify(notify.LevelInfo, "Sessions Synced", msg)
	}
	return local, nil
}

func (s *SyncedStore) notify(level notify.Level, title, message string) {
	if s.notifier != nil {
		s.notifier.Notify(level, title, message)
	}
}
