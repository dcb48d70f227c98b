package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chess-matchmaking/logger"
	"chess-matchmaking/models"
	"chess-matchmaking/store"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    bool
}

func (b *memoryBucket) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("bucket unavailable")
	}
	if b.objects == nil {
		b.objects = make(map[string][]byte)
	}
	b.objects[key] = body
	return nil
}

func finishedGame(t *testing.T, s store.Store, id string, winner *string, ended time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateGame(ctx, &models.Game{
		ID:            id,
		WhitePlayerID: "u-1",
		BlackPlayerID: "u-2",
		Mode:          models.ModeP2PRandom,
		Status:        models.GameStatusWaiting,
	}))
	ok, err := s.FinalizeGame(ctx, id, winner, ended)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestArchiveKey(t *testing.T) {
	ended := time.Date(2024, 2, 9, 23, 0, 0, 0, time.UTC)
	g := &models.Game{ID: "g-1", EndedAt: &ended}
	assert.Equal(t, "games/2024/02/09/magnus-c-vs-hikaru-n-g-1.json", ArchiveKey(g, "Magnus C", "Hikaru N"))
}

func TestArchiveRunOnce(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	_, err := s.UpsertUsers(ctx, []models.User{{ID: "u-1", Username: "alice"}})
	require.NoError(t, err)

	ended := time.Date(2024, 2, 9, 12, 0, 0, 0, time.UTC)
	winner := "u-2"
	finishedGame(t, s, "g-1", &winner, ended)
	require.NoError(t, s.CreateGame(ctx, &models.Game{ID: "g-open", WhitePlayerID: "u-1", BlackPlayerID: "u-2", Status: models.GameStatusWaiting}))

	bucket := &memoryBucket{}
	w := NewArchiveWorker(s, bucket, logger.Nop(), time.Minute, 10)

	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	key := "games/2024/02/09/alice-vs-u-2-g-1.json"
	require.Contains(t, bucket.objects, key)

	var record ArchiveRecord
	require.NoError(t, json.Unmarshal(bucket.objects[key], &record))
	assert.Equal(t, "g-1", record.Game.ID)
	assert.Equal(t, "black_wins", record.Result)
	assert.Equal(t, "alice", record.Players[0].Username)

	g, err := s.GetGame(ctx, "g-1")
	require.NoError(t, err)
	require.NotNil(t, g.ArchivedAt)
	assert.Equal(t, key, g.ArchiveKey)

	n, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "archived games are not uploaded twice")
}

func TestArchiveUploadFailureLeavesGamePending(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	finishedGame(t, s, "g-1", nil, time.Now())

	w := NewArchiveWorker(s, &memoryBucket{fail: true}, logger.Nop(), time.Minute, 10)
	w.retry.InitialInterval = time.Millisecond

	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err := s.ListUnarchivedFinished(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
