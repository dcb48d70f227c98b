package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"chess-matchmaking/logger"
	"chess-matchmaking/models"
	"chess-matchmaking/store"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fixture struct {
	store         store.Store
	queue         *Queue
	mailbox       *MemoryMailbox
	ratings       *RatingService
	notifications *NotificationService
	games         *GameService
	mm            *MatchmakingService
}

func newFixture(t *testing.T, s store.Store, players ...string) *fixture {
	t.Helper()
	if s == nil {
		s = store.NewMemory()
	}

	users := make([]models.User, len(players))
	for i, id := range players {
		users[i] = models.User{ID: id, Username: id, DisplayName: "Player " + id}
	}
	if len(users) > 0 {
		_, err := s.UpsertUsers(context.Background(), users)
		require.NoError(t, err)
	}

	log := logger.Nop()
	f := &fixture{
		store:   s,
		queue:   NewQueue(),
		mailbox: NewMemoryMailbox(),
		ratings: NewRatingService(s, DefaultRatingRules),
	}
	f.notifications = NewNotificationService(s, log)
	f.games = NewGameService(s, f.ratings, f.notifications, log)
	f.games.retry.InitialInterval = time.Millisecond
	f.mm = NewMatchmakingService(NewUserService(s), f.games, f.ratings, f.queue, f.mailbox, log, MatchmakingOptions{})
	return f
}

// newSQLiteStore is a GormStore on an in-memory sqlite database. Concurrent
// transactions queue on its single connection.
func newSQLiteStore(t *testing.T) *store.GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	s := store.NewGormStore(db)
	require.NoError(t, s.Migrate())
	return s
}

// whiteFirst makes the longer-waiting player white.
func (f *fixture) whiteFirst() { f.mm.coin = func() bool { return true } }

func (f *fixture) join(t *testing.T, id string) *MatchStatus {
	t.Helper()
	st, err := f.mm.Join(context.Background(), JoinRequest{PlayerID: id, IP: "10.0.0.1", Port: 5000})
	require.NoError(t, err)
	return st
}

// newMatch pairs white and black and returns the game id.
func (f *fixture) newMatch(t *testing.T, white, black string) string {
	t.Helper()
	f.whiteFirst()
	f.join(t, white)
	st := f.join(t, black)
	require.Equal(t, StateMatchFound, st.State)
	return st.Match.GameID
}

// failingCreate rejects every CreateGame.
type failingCreate struct {
	store.Store
}

func (failingCreate) CreateGame(ctx context.Context, game *models.Game) error {
	return errors.New("connection refused")
}

// flakyFinalize fails the first n FinalizeGame calls with a transient error,
// including calls made inside a transaction.
type flakyFinalize struct {
	store.Store
	remaining *atomic.Int32
}

func (f flakyFinalize) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return f.Store.WithTx(ctx, func(tx store.Store) error {
		return fn(flakyFinalize{Store: tx, remaining: f.remaining})
	})
}

func (f flakyFinalize) FinalizeGame(ctx context.Context, id string, winnerID *string, endedAt time.Time) (bool, error) {
	if f.remaining.Add(-1) >= 0 {
		return false, errors.New("connection reset by peer")
	}
	return f.Store.FinalizeGame(ctx, id, winnerID, endedAt)
}
