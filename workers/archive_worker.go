package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chess-matchmaking/logger"
	"chess-matchmaking/metrics"
	"chess-matchmaking/models"
	"chess-matchmaking/store"
	"chess-matchmaking/utils"

	"github.com/goccy/go-json"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// ObjectPutter is the slice of the R2 client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

type ArchivedPlayer struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

// ArchiveRecord is the JSON document written per finished game.
type ArchiveRecord struct {
	Game       models.Game      `json:"game"`
	Players    []ArchivedPlayer `json:"players"`
	Result     string           `json:"result"`
	ArchivedAt time.Time        `json:"archived_at"`
}

// ArchiveWorker copies finished games to object storage and marks them
// archived. A game that fails to upload is picked up again next tick.
type ArchiveWorker struct {
	store     store.Store
	objects   ObjectPutter
	log       *logger.Logger
	interval  time.Duration
	batchSize int
	retry     utils.RetryOptions
	now       func() time.Time
}

func NewArchiveWorker(s store.Store, objects ObjectPutter, log *logger.Logger, interval time.Duration, batchSize int) *ArchiveWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ArchiveWorker{
		store:     s,
		objects:   objects,
		log:       log.With(zap.String("worker", "archive")),
		interval:  interval,
		batchSize: batchSize,
		retry:     utils.DefaultRetryOptions(),
		now:       time.Now,
	}
}

func (w *ArchiveWorker) Start(ctx context.Context) {
	w.log.Info("📦 starting archive worker", zap.Duration("interval", w.interval))
	go w.run(ctx)
}

func (w *ArchiveWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("⏹️ archive worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.Error("archive pass failed", err)
			}
		}
	}
}

// RunOnce archives up to one batch and returns how many games were stored.
func (w *ArchiveWorker) RunOnce(ctx context.Context) (int, error) {
	games, err := w.store.ListUnarchivedFinished(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	archived := 0
	for i := range games {
		g := &games[i]
		key, err := w.archive(ctx, g)
		if err != nil {
			metrics.ArchiveErrorsTotal.Inc()
			w.log.Error("failed to archive game", err, zap.String("game_id", g.ID))
			continue
		}
		metrics.ArchiveUploadsTotal.Inc()
		archived++
		w.log.Debug("archived game", zap.String("game_id", g.ID), zap.String("key", key))
	}
	if archived > 0 {
		w.log.Info("✅ archived finished games", zap.Int("count", archived))
	}
	return archived, nil
}

func (w *ArchiveWorker) archive(ctx context.Context, g *models.Game) (string, error) {
	white := w.player(ctx, g.WhitePlayerID, models.ColorWhite)
	black := w.player(ctx, g.BlackPlayerID, models.ColorBlack)

	now := w.now().UTC()
	record := ArchiveRecord{
		Game:       *g,
		Players:    []ArchivedPlayer{white, black},
		Result:     resultLabel(g),
		ArchivedAt: now,
	}
	body, err := json.Marshal(record)
	if err != nil {
		return "", err
	}

	key := ArchiveKey(g, white.Username, black.Username)
	err = utils.Retry(ctx, w.retry, func() error {
		return w.objects.PutObject(ctx, key, body, "application/json")
	})
	if err != nil {
		return "", err
	}
	return key, w.store.MarkArchived(ctx, g.ID, key, now)
}

func (w *ArchiveWorker) player(ctx context.Context, id string, color models.Color) ArchivedPlayer {
	p := ArchivedPlayer{ID: id, Username: id, Color: string(color)}
	u, err := w.store.GetUser(ctx, id)
	switch {
	case err == nil:
		p.Username = u.Username
	case !errors.Is(err, store.ErrNotFound):
		w.log.Warn("user lookup failed, archiving with id", zap.String("player_id", id), zap.Error(err))
	}
	return p
}

func resultLabel(g *models.Game) string {
	if g.WinnerID == nil {
		return models.DrawOutcome().Label()
	}
	return models.WinOutcome(g.PlayerColor(*g.WinnerID)).Label()
}

// ArchiveKey builds games/YYYY/MM/DD/<white>-vs-<black>-<id>.json from the
// day the game ended.
func ArchiveKey(g *models.Game, whiteName, blackName string) string {
	day := g.CreatedAt
	if g.EndedAt != nil {
		day = *g.EndedAt
	}
	day = day.UTC()
	return fmt.Sprintf("games/%04d/%02d/%02d/%s-vs-%s-%s.json",
		day.Year(), day.Month(), day.Day(),
		slug.Make(whiteName), slug.Make(blackName), g.ID)
}
