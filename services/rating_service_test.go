package services

import (
	"context"
	"testing"
	"time"

	"chess-matchmaking/models"
	"chess-matchmaking/store"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatingDeltaProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a decisive game moves the two players by win and loss delta", prop.ForAll(
		func(win, loss int, whiteWins bool) bool {
			rules := RatingRules{Default: 1200, WinDelta: win, LossDelta: -loss}
			outcome := models.WinOutcome(models.ColorBlack)
			if whiteWins {
				outcome = models.WinOutcome(models.ColorWhite)
			}
			total := rules.Delta(outcome.ResultFor(models.ColorWhite)) + rules.Delta(outcome.ResultFor(models.ColorBlack))
			return total == win-loss
		},
		gen.IntRange(0, 50),
		gen.IntRange(0, 50),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRatingServiceApplyResult(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	svc := NewRatingService(s, RatingRules{Default: 1500, WinDelta: 16, LossDelta: -16, DrawDelta: 1})

	r, err := svc.GetRating(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1500, r.Score, "unrated players read as default")

	change, err := svc.ApplyResult(ctx, s, "g1", "alice", models.ResultDraw)
	require.NoError(t, err)
	assert.Equal(t, 1, change.Delta)
	assert.Equal(t, 1501, change.ScoreAfter)

	err = s.WithTx(ctx, func(tx store.Store) error {
		_, err := svc.ApplyResult(ctx, tx, "g1", "alice", models.ResultDraw)
		return err
	})
	assert.ErrorIs(t, err, store.ErrDuplicate, "a game is applied once per player")

	r, err = svc.EnsureExists(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1501, r.Score, "the rejected change rolled back its delta")
}

func TestExpirySchedulerSweeps(t *testing.T) {
	f := newFixture(t, nil, "alice")
	f.mm.opts.QueueTTL = time.Minute
	f.mm.now = func() time.Time { return time.Now().Add(-time.Hour) }
	f.join(t, "alice")
	f.mm.now = time.Now

	sched, err := f.mm.StartExpiryScheduler(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	defer sched.Shutdown()

	assert.Eventually(t, func() bool { return f.mm.QueueSize() == 0 }, 2*time.Second, 10*time.Millisecond)
}
