package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveToken(t *testing.T, s *MemoryStore, principalID string, ttl time.Duration) *Token {
	t.Helper()

	value, err := Generate()
	require.NoError(t, err)

	tok := &Token{
		Token:       value,
		PrincipalID: principalID,
		ExpiresAt:   time.Now().Add(ttl),
		CreatedAt:   time.Now(),
	}
	require.NoError(t, s.Save(context.Background(), tok))
	return tok
}

func TestGenerateIsUnique(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.Len(t, a, 64) // 32 bytes hex-encoded
	assert.NotEqual(t, a, b)
}

func TestMemoryStoreSaveGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	tok := saveToken(t, s, "p1", time.Hour)

	got, err := s.Get(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.PrincipalID)
	assert.Equal(t, tok.Token, got.Token)
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreGetExpired(t *testing.T) {
	s := NewMemoryStore()
	tok := saveToken(t, s, "p1", -time.Minute)

	_, err := s.Get(context.Background(), tok.Token)
	assert.ErrorIs(t, err, ErrNotFound, "expired tokens read as absent")
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	tok := saveToken(t, s, "p1", time.Hour)

	require.NoError(t, s.Delete(ctx, tok.Token))
	_, err := s.Get(ctx, tok.Token)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, s.Delete(ctx, tok.Token))
}

func TestMemoryStoreConsume(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	tok := saveToken(t, s, "p1", time.Hour)

	got, err := s.Consume(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.PrincipalID)

	// The token is gone after the first consume.
	_, err = s.Consume(ctx, tok.Token)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, tok.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreConsumeExpired(t *testing.T) {
	s := NewMemoryStore()
	tok := saveToken(t, s, "p1", -time.Minute)

	_, err := s.Consume(context.Background(), tok.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreConsumeSingleWinner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	tok := saveToken(t, s, "p1", time.Hour)

	const racers = 8
	wins := make(chan struct{}, racers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := s.Consume(ctx, tok.Token); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	close(start)
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1, "exactly one concurrent consumer wins")
}

func TestMemoryStoreDeleteForPrincipal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	t1 := saveToken(t, s, "p1", time.Hour)
	t2 := saveToken(t, s, "p1", time.Hour)
	other := saveToken(t, s, "p2", time.Hour)

	require.NoError(t, s.DeleteForPrincipal(ctx, "p1"))

	_, err := s.Get(ctx, t1.Token)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, t2.Token)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(ctx, other.Token)
	assert.NoError(t, err, "other principals keep their tokens")
}

func TestMemoryStoreCleanup(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	live := saveToken(t, s, "p1", time.Hour)
	dead := saveToken(t, s, "p1", -time.Minute)

	require.NoError(t, s.Cleanup(ctx))

	s.mu.RLock()
	_, liveKept := s.tokens[live.Token]
	_, deadKept := s.tokens[dead.Token]
	s.mu.RUnlock()

	assert.True(t, liveKept)
	assert.False(t, deadKept)
}

func TestMemoryStoreCleanupRoutineStops(t *testing.T) {
	s := NewMemoryStore()
	s.StartCleanupRoutine(10 * time.Millisecond)

	saveToken(t, s, "p1", -time.Minute)
	require.NoError(t, s.Close())

	select {
	case <-s.done:
	default:
		t.Fatal("cleanup goroutine still running after Close")
	}
}

func TestMemoryStoreCloseWithoutRoutine(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Close())
}
