// ABOUTME: Shared test fixtures for the chat core
// ABOUTME: Real SQLite store in a temp dir plus an event-capturing publisher

package chat

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Alexxxx0910/work-flow-connect-62/internal/store"
)

func createTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *store.SQLiteStore, id, name string) {
	t.Helper()
	err := s.UpsertUser(context.Background(), &store.User{
		ID:          id,
		DisplayName: name,
		LastSeenAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *capturePublisher) Publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturePublisher) all() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func (p *capturePublisher) byType(t EventType) []Event {
	var out []Event
	for _, ev := range p.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
