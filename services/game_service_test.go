package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"chess-matchmaking/models"
	"chess-matchmaking/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(t *testing.T, f *fixture, playerID string) int {
	t.Helper()
	r, err := f.ratings.GetRating(context.Background(), playerID)
	require.NoError(t, err)
	return r.Score
}

func TestFinalizeWinnerUpdatesBothRatings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "alice", "bob")
	gameID := f.newMatch(t, "alice", "bob")

	res, err := f.games.Finalize(ctx, gameID, "bob", models.WinOutcome(models.ColorWhite))
	require.NoError(t, err)
	assert.Equal(t, gameID, res.GameID)
	assert.Equal(t, "white_wins", res.Result)
	require.NotNil(t, res.WinnerID)
	assert.Equal(t, "alice", *res.WinnerID)

	assert.Equal(t, 1210, score(t, f, "alice"))
	assert.Equal(t, 1190, score(t, f, "bob"))

	g, err := f.store.GetGame(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusFinished, g.Status)
	assert.NotNil(t, g.EndedAt)

	history, err := f.ratings.History(ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ResultLoss, history[0].Result)
	assert.Equal(t, -10, history[0].Delta)

	notes, err := f.notifications.List(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Content, "win")
}

func TestFinalizeDraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "alice", "bob")
	gameID := f.newMatch(t, "alice", "bob")

	res, err := f.games.Finalize(ctx, gameID, "alice", models.DrawOutcome())
	require.NoError(t, err)
	assert.Nil(t, res.WinnerID)
	assert.Equal(t, "draw", res.Result)

	for _, id := range []string{"alice", "bob"} {
		r, err := f.ratings.GetRating(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1200, r.Score)
		assert.Equal(t, 1, r.Draws)
	}
}

func TestFinalizeRaceAppliesRatingsOnce(t *testing.T) {
	f := newFixture(t, nil, "alice", "bob")
	raceFinalize(t, f, f.newMatch(t, "alice", "bob"))
}

func TestFinalizeRaceAppliesRatingsOnceOnGorm(t *testing.T) {
	f := newFixture(t, newSQLiteStore(t), "alice", "bob")
	raceFinalize(t, f, f.newMatch(t, "alice", "bob"))

	for _, id := range []string{"alice", "bob"} {
		notes, err := f.notifications.List(context.Background(), id, 10)
		require.NoError(t, err)
		assert.Len(t, notes, 1, id)
	}
}

// raceFinalize fires 20 conflicting end reports at gameID and checks that
// exactly one wins and ratings move once.
func raceFinalize(t *testing.T, f *fixture, gameID string) {
	t.Helper()
	ctx := context.Background()

	type report struct {
		caller  string
		outcome models.Outcome
	}
	reports := []report{
		{"alice", models.WinOutcome(models.ColorWhite)},
		{"bob", models.WinOutcome(models.ColorBlack)},
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []*FinalizeResult
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < 10; i++ {
		for _, r := range reports {
			wg.Add(1)
			go func(r report) {
				defer wg.Done()
				<-start
				res, err := f.games.Finalize(ctx, gameID, r.caller, r.outcome)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners = append(winners, res)
				case errors.Is(err, ErrAlreadyFinished):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(r)
		}
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, 19, conflicts)

	// ratings follow whichever report won
	if winners[0].Result == "white_wins" {
		assert.Equal(t, 1210, score(t, f, "alice"))
		assert.Equal(t, 1190, score(t, f, "bob"))
	} else {
		assert.Equal(t, 1190, score(t, f, "alice"))
		assert.Equal(t, 1210, score(t, f, "bob"))
	}

	for _, id := range []string{"alice", "bob"} {
		history, err := f.ratings.History(ctx, id, 10)
		require.NoError(t, err)
		assert.Len(t, history, 1, id)

		r, err := f.ratings.GetRating(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, r.GamesPlayed(), id)
	}

	g, err := f.store.GetGame(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusFinished, g.Status)
}

func TestFinalizeRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "alice", "bob", "carol")
	gameID := f.newMatch(t, "alice", "bob")

	_, err := f.games.Finalize(ctx, gameID, "carol", models.WinOutcome(models.ColorWhite))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.games.Finalize(ctx, "no-such-game", "alice", models.DrawOutcome())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.games.Finalize(ctx, gameID, "alice", models.Outcome{Draw: true, Winner: models.ColorWhite})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = f.games.Finalize(ctx, gameID, "", models.DrawOutcome())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	g, err := f.store.GetGame(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusWaiting, g.Status)
	assert.Equal(t, 1200, score(t, f, "alice"))

	_, err = f.games.Finalize(ctx, gameID, "alice", models.DrawOutcome())
	require.NoError(t, err)
	_, err = f.games.Finalize(ctx, gameID, "bob", models.DrawOutcome())
	assert.ErrorIs(t, err, ErrConflict)
}

func TestFinalizeRetriesTransientStoreErrors(t *testing.T) {
	ctx := context.Background()
	var remaining atomic.Int32
	remaining.Store(2)
	f := newFixture(t, flakyFinalize{Store: store.NewMemory(), remaining: &remaining}, "alice", "bob")
	gameID := f.newMatch(t, "alice", "bob")

	_, err := f.games.Finalize(ctx, gameID, "alice", models.WinOutcome(models.ColorBlack))
	require.NoError(t, err)
	assert.Equal(t, 1210, score(t, f, "bob"))
}

func TestFinalizeGivesUpWithoutPartialRatings(t *testing.T) {
	ctx := context.Background()
	var remaining atomic.Int32
	remaining.Store(100)
	f := newFixture(t, flakyFinalize{Store: store.NewMemory(), remaining: &remaining}, "alice", "bob")
	gameID := f.newMatch(t, "alice", "bob")

	_, err := f.games.Finalize(ctx, gameID, "alice", models.WinOutcome(models.ColorWhite))
	assert.ErrorIs(t, err, ErrSystem)

	assert.Equal(t, 1200, score(t, f, "alice"))
	assert.Equal(t, 1200, score(t, f, "bob"))
	g, err := f.store.GetGame(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusWaiting, g.Status)
}

func TestMarkPlaying(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "alice", "bob", "carol")
	gameID := f.newMatch(t, "alice", "bob")

	_, err := f.games.MarkPlaying(ctx, gameID, "carol")
	assert.ErrorIs(t, err, ErrForbidden)

	g, err := f.games.MarkPlaying(ctx, gameID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusPlaying, g.Status)

	_, err = f.games.MarkPlaying(ctx, gameID, "bob")
	assert.ErrorIs(t, err, ErrConflict)

	ongoing, err := f.games.OngoingGames(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ongoing, 1)

	_, err = f.games.PendingGameFor(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.games.Finalize(ctx, gameID, "bob", models.DrawOutcome())
	require.NoError(t, err)
}

func TestGetGameParticipantsOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "alice", "bob", "carol")
	gameID := f.newMatch(t, "alice", "bob")

	g, err := f.games.GetGame(ctx, gameID, "bob")
	require.NoError(t, err)
	assert.Equal(t, gameID, g.ID)

	_, err = f.games.GetGame(ctx, gameID, "carol")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.games.GetGame(ctx, "missing", "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}
