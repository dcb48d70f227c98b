package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"chess-matchmaking/logger"
	"chess-matchmaking/metrics"
	"chess-matchmaking/models"

	"go.uber.org/zap"
)

type MatchState string

const (
	StateSearching  MatchState = "searching"
	StateMatchFound MatchState = "match_found"
)

// MatchStatus is the answer to Join and Status. Match is set only when
// State is StateMatchFound.
type MatchStatus struct {
	State MatchState
	Match *models.MatchResult
}

func searching() *MatchStatus { return &MatchStatus{State: StateSearching} }

func matchFound(r *models.MatchResult) *MatchStatus {
	return &MatchStatus{State: StateMatchFound, Match: r}
}

// JoinRequest carries the caller identity and the optional address the
// opponent should connect to.
type JoinRequest struct {
	PlayerID string
	IP       string
	Port     int
}

func (r JoinRequest) validate() error {
	if r.Port < 0 || r.Port > 65535 {
		return fmt.Errorf("%w: socket port %d out of range", ErrBadRequest, r.Port)
	}
	if r.IP != "" && net.ParseIP(r.IP) == nil {
		return fmt.Errorf("%w: invalid rendezvous address %q", ErrBadRequest, r.IP)
	}
	return nil
}

type MatchmakingOptions struct {
	Mode       string
	QueueTTL   time.Duration // 0 keeps waiters forever
	MailboxTTL time.Duration // 0 keeps undelivered results forever
}

// MatchmakingService pairs waiting players FIFO and hands each side its
// MatchResult. It owns the queue and the mailbox.
type MatchmakingService struct {
	users   *UserService
	games   *GameService
	ratings *RatingService
	queue   *Queue
	mailbox Mailbox
	log     *logger.Logger
	opts    MatchmakingOptions

	coin func() bool // true keeps the older player on white
	now  func() time.Time
}

func NewMatchmakingService(
	users *UserService,
	games *GameService,
	ratings *RatingService,
	queue *Queue,
	mailbox Mailbox,
	log *logger.Logger,
	opts MatchmakingOptions,
) *MatchmakingService {
	if opts.Mode == "" {
		opts.Mode = models.ModeP2PRandom
	}
	return &MatchmakingService{
		users:   users,
		games:   games,
		ratings: ratings,
		queue:   queue,
		mailbox: mailbox,
		log:     log,
		opts:    opts,
		coin:    func() bool { return rand.Intn(2) == 0 },
		now:     time.Now,
	}
}

// Join queues the caller and tries to pair. An already queued caller just
// gets StateSearching again.
func (s *MatchmakingService) Join(ctx context.Context, req JoinRequest) (*MatchStatus, error) {
	status, err := s.join(ctx, req)
	switch {
	case err != nil:
		metrics.JoinsTotal.WithLabelValues("error").Inc()
	case status.State == StateMatchFound:
		metrics.JoinsTotal.WithLabelValues("match_found").Inc()
	default:
		metrics.JoinsTotal.WithLabelValues("searching").Inc()
	}
	return status, err
}

func (s *MatchmakingService) join(ctx context.Context, req JoinRequest) (*MatchStatus, error) {
	if req.PlayerID == "" {
		return nil, ErrUnauthenticated
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	user, err := s.users.Get(ctx, req.PlayerID)
	if err != nil {
		return nil, err
	}
	if user.IsBanned {
		return nil, ErrBanned
	}

	if s.queue.Contains(user.ID) {
		return searching(), nil
	}
	// A result left over from an earlier match must not answer Status for
	// this new search. Cleared while the player is still unqueued so a
	// pairing that happens after Enqueue cannot lose its fresh result.
	if stale, err := s.mailbox.Take(ctx, user.ID); err != nil {
		metrics.MailboxErrorsTotal.Inc()
		s.log.Error("failed to clear stale match result", err, zap.String("player_id", user.ID))
		return nil, fmt.Errorf("%w: could not join queue", ErrSystem)
	} else if stale != nil {
		s.log.Debug("discarded stale match result",
			zap.String("player_id", user.ID), zap.String("game_id", stale.GameID))
	}

	p := models.QueuedPlayer{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		IP:          req.IP,
		Port:        req.Port,
		JoinedAt:    s.now(),
	}
	if err := s.queue.Enqueue(p); err != nil {
		if errors.Is(err, ErrAlreadyQueued) {
			return searching(), nil
		}
		return nil, err
	}
	s.log.Info("player joined queue", zap.String("player_id", p.ID), zap.Int("queue_size", s.queue.Size()))

	result, err := s.pair(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return searching(), nil
	}
	return matchFound(result), nil
}

// pair takes the two oldest waiters and turns them into a game. It returns
// callerID's result, or nil if the caller was not one of the pair or there
// was nobody to pair with.
func (s *MatchmakingService) pair(ctx context.Context, callerID string) (*models.MatchResult, error) {
	var popped []models.QueuedPlayer
	for {
		if s.queue.Size() < 2 {
			return nil, nil
		}
		popped = s.queue.PopOldest(2)
		if len(popped) == 2 {
			break
		}
		// Lost a race to another pairing. Put back what we took and look
		// again, since a joiner may have skipped pairing while it was out.
		s.queue.PushFront(popped...)
	}

	results, err := s.createMatch(ctx, popped[0], popped[1])
	if err != nil {
		restored := s.queue.PushFront(popped...)
		metrics.PairingRollbacksTotal.Inc()
		s.log.Error("pairing failed, players returned to queue", err,
			zap.String("first", popped[0].ID),
			zap.String("second", popped[1].ID),
			zap.Int("restored", restored),
		)
		return nil, fmt.Errorf("%w: could not create match", ErrSystem)
	}
	metrics.MatchesCreatedTotal.Inc()

	for playerID, r := range results {
		if err := s.mailbox.Put(ctx, playerID, r); err != nil {
			// The game row exists; the player can still find it as a pending game.
			metrics.MailboxErrorsTotal.Inc()
			s.log.Error("failed to store match result", err,
				zap.String("player_id", playerID), zap.String("game_id", r.GameID))
		}
	}

	if r, ok := results[callerID]; ok {
		return &r, nil
	}
	return nil, nil
}

func (s *MatchmakingService) createMatch(ctx context.Context, a, b models.QueuedPlayer) (map[string]models.MatchResult, error) {
	white, black := a, b
	if !s.coin() {
		white, black = b, a
	}

	whiteRating, err := s.ratings.EnsureExists(ctx, white.ID)
	if err != nil {
		return nil, err
	}
	blackRating, err := s.ratings.EnsureExists(ctx, black.ID)
	if err != nil {
		return nil, err
	}

	game, err := s.games.CreateGame(ctx, white.ID, black.ID, s.opts.Mode)
	if err != nil {
		return nil, err
	}

	now := s.now()
	s.log.Info("✅ match created",
		zap.String("game_id", game.ID),
		zap.String("white", white.ID),
		zap.String("black", black.ID),
	)
	return map[string]models.MatchResult{
		white.ID: {
			GameID:    game.ID,
			Color:     models.ColorWhite,
			Opponent:  opponent(black, blackRating.Score),
			Rating:    whiteRating.Score,
			MatchedAt: now,
		},
		black.ID: {
			GameID:    game.ID,
			Color:     models.ColorBlack,
			Opponent:  opponent(white, whiteRating.Score),
			Rating:    blackRating.Score,
			MatchedAt: now,
		},
	}, nil
}

func opponent(p models.QueuedPlayer, rating int) models.Opponent {
	return models.Opponent{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		IP:          p.IP,
		Port:        p.Port,
		Rating:      rating,
	}
}

// Status delivers a waiting MatchResult once. After that the player is
// either back in the queue (searching) or unknown (ErrNotFound).
func (s *MatchmakingService) Status(ctx context.Context, playerID string) (*MatchStatus, error) {
	if playerID == "" {
		return nil, ErrUnauthenticated
	}

	r, err := s.mailbox.Take(ctx, playerID)
	if err != nil {
		metrics.StatusPollsTotal.WithLabelValues("error").Inc()
		s.log.Error("failed to read mailbox", err, zap.String("player_id", playerID))
		return nil, fmt.Errorf("%w: status unavailable", ErrSystem)
	}
	if r != nil {
		metrics.StatusPollsTotal.WithLabelValues("match_found").Inc()
		return matchFound(r), nil
	}
	if s.queue.Contains(playerID) {
		metrics.StatusPollsTotal.WithLabelValues("searching").Inc()
		return searching(), nil
	}
	metrics.StatusPollsTotal.WithLabelValues("not_found").Inc()
	return nil, ErrNotQueued
}

// Leave takes the player out of the queue. A result already produced for
// the player stays in the mailbox.
func (s *MatchmakingService) Leave(ctx context.Context, playerID string) error {
	if playerID == "" {
		return ErrUnauthenticated
	}
	if _, err := s.queue.Dequeue(playerID); err != nil {
		return err
	}
	s.log.Info("player left queue", zap.String("player_id", playerID), zap.Int("queue_size", s.queue.Size()))
	return nil
}

// QueueSize is the number of players waiting right now.
func (s *MatchmakingService) QueueSize() int {
	return s.queue.Size()
}

// Sweep evicts queue entries and undelivered results older than their TTL.
func (s *MatchmakingService) Sweep(ctx context.Context) {
	now := s.now()

	if s.opts.QueueTTL > 0 {
		expired := s.queue.Expire(now.Add(-s.opts.QueueTTL))
		if len(expired) > 0 {
			metrics.ExpiredTotal.WithLabelValues("queue").Add(float64(len(expired)))
			s.log.Info("expired idle waiters", zap.Int("count", len(expired)))
		}
	}

	if s.opts.MailboxTTL > 0 {
		n, err := s.mailbox.Sweep(ctx, now.Add(-s.opts.MailboxTTL))
		if err != nil {
			s.log.Error("mailbox sweep failed", err)
			return
		}
		if n > 0 {
			metrics.ExpiredTotal.WithLabelValues("mailbox").Add(float64(n))
			s.log.Info("expired undelivered match results", zap.Int("count", n))
		}
	}
}
