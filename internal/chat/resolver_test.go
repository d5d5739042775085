// ABOUTME: Tests for conversation identity resolution
// ABOUTME: Covers private-pair dedup, exact-pair matching, and the concurrent-creation race

package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alexxxx0910/work-flow-connect-62/internal/store"
)

func TestResolver_PrivateDedup_EitherOrder(t *testing.T) {
	st := createTestStore(t)
	seedUser(t, st, "u1", "Alice")
	seedUser(t, st, "u2", "Bob")
	r := NewResolver(st, nil)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "u1", []string{"u2"}, false, "")
	require.NoError(t, err)

	// Repeated creation returns the same conversation, whichever side asks
	again, err := r.Resolve(ctx, "u1", []string{"u2"}, false, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	reversed, err := r.Resolve(ctx, "u2", []string{"u1"}, false, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, reversed.ID)
}

func TestResolver_RequesterAlwaysIncluded(t *testing.T) {
	st := createTestStore(t)
	seedUser(t, st, "u1", "Alice")
	seedUser(t, st, "u2", "Bob")
	r := NewResolver(st, nil)

	conv, err := r.Resolve(context.Background(), "u1", []string{"u2"}, false, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, conv.ParticipantIDs())

	// Naming the requester twice changes nothing
	conv2, err := r.Resolve(context.Background(), "u1", []string{"u2", "u1"}, false, "")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, conv2.ID)
}

func TestResolver_GroupAlwaysCreates(t *testing.T) {
	st := createTestStore(t)
	seedUser(t, st, "u1", "Alice")
	seedUser(t, st, "u2", "Bob")
	r := NewResolver(st, nil)
	ctx := context.Background()

	g1, err := r.Resolve(ctx, "u1", []string{"u2"}, true, "project")
	require.NoError(t, err)
	assert.True(t, g1.IsGroup)
	assert.Equal(t, "project", g1.DisplayName)

	g2, err := r.Resolve(ctx, "u1", []string{"u2"}, true, "project")
	require.NoError(t, err)
	assert.NotEqual(t, g1.ID, g2.ID, "group creation is never deduplicated")
}

func TestResolver_ExactPairMatch(t *testing.T) {
	st := createTestStore(t)
	seedUser(t, st, "u1", "Alice")
	seedUser(t, st, "u2", "Bob")
	seedUser(t, st, "u3", "Carol")
	r := NewResolver(st, nil)
	ctx := context.Background()

	// A group containing {u1,u2,u3} and a two-member group {u1,u2}
	big, err := r.Resolve(ctx, "u1", []string{"u2", "u3"}, true, "trio")
	require.NoError(t, err)
	pairGroup, err := r.Resolve(ctx, "u1", []string{"u2"}, true, "duo")
	require.NoError(t, err)

	// Neither may satisfy a private request between u1 and u2
	private, err := r.Resolve(ctx, "u1", []string{"u2"}, false, "")
	require.NoError(t, err)
	assert.NotEqual(t, big.ID, private.ID)
	assert.NotEqual(t, pairGroup.ID, private.ID)
	assert.False(t, private.IsGroup)
	assert.ElementsMatch(t, []string{"u1", "u2"}, private.ParticipantIDs())
}

func TestResolver_EmptyParticipants(t *testing.T) {
	st := createTestStore(t)
	seedUser(t, st, "u1", "Alice")
	r := NewResolver(st, nil)

	_, err := r.Resolve(context.Background(), "u1", nil, false, "")
	require.Error(t, err)
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestResolver_CounterpartNotFound(t *testing.T) {
	st := createTestStore(t)
	seedUser(t, st, "u1", "Alice")
	r := NewResolver(st, nil)

	_, err := r.Resolve(context.Background(), "u1", []string{"ghost"}, false, "")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestResolver_SkipsUnknownParticipants(t *testing.T) {
	st := createTestStore(t)
	seedUser(t, st, "u1", "Alice")
	seedUser(t, st, "u2", "Bob")
	r := NewResolver(st, nil)

	// One of the named participants doesn't resolve; creation proceeds
	conv, err := r.Resolve(context.Background(), "u1", []string{"u2", "ghost"}, true, "team")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, conv.ParticipantIDs())
}

// racingStore makes the resolver's pair-key pre-check miss once, forcing the
// create path to collide with an existing conversation the way a concurrent
// creator would.
type racingStore struct {
	*store.SQLiteStore
	missed bool
}

func (s *racingStore) GetConversationByPairKey(ctx context.Context, pairKey string) (*store.Conversation, error) {
	if !s.missed {
		s.missed = true
		return nil, store.ErrNotFound
	}
	return s.SQLiteStore.GetConversationByPairKey(ctx, pairKey)
}

func TestResolver_DuplicateCreationRace(t *testing.T) {
	st := createTestStore(t)
	seedUser(t, st, "u1", "Alice")
	seedUser(t, st, "u2", "Bob")
	ctx := context.Background()

	// The "other" request already created the pair's conversation
	existing, err := NewResolver(st, nil).Resolve(ctx, "u2", []string{"u1"}, false, "")
	require.NoError(t, err)

	r := NewResolver(&racingStore{SQLiteStore: st}, nil)
	conv, err := r.Resolve(ctx, "u1", []string{"u2"}, false, "")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, conv.ID, "loser of the race converges on the winner")
}
