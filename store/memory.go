package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"chess-matchmaking/models"
)

type memState struct {
	users         map[string]models.User
	games         map[string]models.Game
	ratings       map[string]models.Rating
	changes       []models.RatingChange
	notifications []models.Notification
}

func (st *memState) clone() *memState {
	c := &memState{
		users:         make(map[string]models.User, len(st.users)),
		games:         make(map[string]models.Game, len(st.games)),
		ratings:       make(map[string]models.Rating, len(st.ratings)),
		changes:       append([]models.RatingChange(nil), st.changes...),
		notifications: append([]models.Notification(nil), st.notifications...),
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.games {
		c.games[k] = v
	}
	for k, v := range st.ratings {
		c.ratings[k] = v
	}
	return c
}

// Memory is a process-local Store used for development and tests. All
// access, including transactions, is serialized by one mutex.
type Memory struct {
	mu   *sync.Mutex
	st   *memState
	inTx bool
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		mu: &sync.Mutex{},
		st: &memState{
			users:   make(map[string]models.User),
			games:   make(map[string]models.Game),
			ratings: make(map[string]models.Rating),
		},
		now: time.Now,
	}
}

func (m *Memory) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	tx := &Memory{mu: m.mu, st: m.st, inTx: true, now: m.now}
	if err := fn(tx); err != nil {
		*m.st = *snapshot
		return err
	}
	return nil
}

func (m *Memory) GetUser(ctx context.Context, id string) (*models.User, error) {
	defer m.lock()()
	u, ok := m.st.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) UpsertUsers(ctx context.Context, users []models.User) (int, error) {
	defer m.lock()()
	for _, u := range users {
		if existing, ok := m.st.users[u.ID]; ok && u.CreatedAt.IsZero() {
			u.CreatedAt = existing.CreatedAt
		}
		if u.UpdatedAt.IsZero() {
			u.UpdatedAt = m.now()
		}
		m.st.users[u.ID] = u
	}
	return len(users), nil
}

func (m *Memory) LatestUserUpdate(ctx context.Context) (time.Time, error) {
	defer m.lock()()
	var latest time.Time
	for _, u := range m.st.users {
		if u.UpdatedAt.After(latest) {
			latest = u.UpdatedAt
		}
	}
	return latest, nil
}

func (m *Memory) CreateGame(ctx context.Context, game *models.Game) error {
	defer m.lock()()
	if _, ok := m.st.games[game.ID]; ok {
		return ErrDuplicate
	}
	now := m.now()
	game.CreatedAt, game.UpdatedAt = now, now
	m.st.games[game.ID] = *game
	return nil
}

func (m *Memory) GetGame(ctx context.Context, id string) (*models.Game, error) {
	defer m.lock()()
	g, ok := m.st.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (m *Memory) FinalizeGame(ctx context.Context, id string, winnerID *string, endedAt time.Time) (bool, error) {
	defer m.lock()()
	g, ok := m.st.games[id]
	if !ok || g.Status == models.GameStatusFinished {
		return false, nil
	}
	g.Status = models.GameStatusFinished
	if winnerID != nil {
		w := *winnerID
		g.WinnerID = &w
	}
	g.EndedAt = &endedAt
	g.UpdatedAt = m.now()
	m.st.games[id] = g
	return true, nil
}

func (m *Memory) MarkPlaying(ctx context.Context, id string) (bool, error) {
	defer m.lock()()
	g, ok := m.st.games[id]
	if !ok || g.Status != models.GameStatusWaiting {
		return false, nil
	}
	g.Status = models.GameStatusPlaying
	g.UpdatedAt = m.now()
	m.st.games[id] = g
	return true, nil
}

func (m *Memory) FindPendingGameForUser(ctx context.Context, playerID string) (*models.Game, error) {
	defer m.lock()()
	var found *models.Game
	for _, g := range m.st.games {
		if g.Status != models.GameStatusWaiting || !g.HasParticipant(playerID) {
			continue
		}
		if found == nil || g.CreatedAt.After(found.CreatedAt) {
			g := g
			found = &g
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (m *Memory) ListGamesByStatus(ctx context.Context, status models.GameStatus, limit int) ([]models.Game, error) {
	defer m.lock()()
	var out []models.Game
	for _, g := range m.st.games {
		if g.Status == status {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (m *Memory) ListUnarchivedFinished(ctx context.Context, limit int) ([]models.Game, error) {
	defer m.lock()()
	var out []models.Game
	for _, g := range m.st.games {
		if g.Status == models.GameStatusFinished && g.ArchivedAt == nil {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.Before(*out[j].EndedAt) })
	return truncate(out, limit), nil
}

func (m *Memory) MarkArchived(ctx context.Context, id, key string, at time.Time) error {
	defer m.lock()()
	g, ok := m.st.games[id]
	if !ok {
		return ErrNotFound
	}
	g.ArchivedAt = &at
	g.ArchiveKey = key
	m.st.games[id] = g
	return nil
}

func (m *Memory) GetRating(ctx context.Context, playerID string) (*models.Rating, error) {
	defer m.lock()()
	r, ok := m.st.ratings[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) EnsureRating(ctx context.Context, playerID string, defaultScore int) (*models.Rating, error) {
	defer m.lock()()
	r, ok := m.st.ratings[playerID]
	if !ok {
		now := m.now()
		r = models.Rating{PlayerID: playerID, Score: defaultScore, CreatedAt: now, UpdatedAt: now}
		m.st.ratings[playerID] = r
	}
	return &r, nil
}

func (m *Memory) ApplyRatingDelta(ctx context.Context, playerID string, delta int, result models.Result) (*models.Rating, error) {
	defer m.lock()()
	r, ok := m.st.ratings[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	r.Score += delta
	switch result {
	case models.ResultWin:
		r.Wins++
	case models.ResultLoss:
		r.Losses++
	default:
		r.Draws++
	}
	r.UpdatedAt = m.now()
	m.st.ratings[playerID] = r
	return &r, nil
}

func (m *Memory) CreateRatingChange(ctx context.Context, change *models.RatingChange) error {
	defer m.lock()()
	for _, c := range m.st.changes {
		if c.GameID == change.GameID && c.PlayerID == change.PlayerID {
			return ErrDuplicate
		}
	}
	change.CreatedAt = m.now()
	m.st.changes = append(m.st.changes, *change)
	return nil
}

func (m *Memory) ListRatingChanges(ctx context.Context, playerID string, limit int) ([]models.RatingChange, error) {
	defer m.lock()()
	var out []models.RatingChange
	for i := len(m.st.changes) - 1; i >= 0; i-- {
		if m.st.changes[i].PlayerID == playerID {
			out = append(out, m.st.changes[i])
		}
	}
	return truncate(out, limit), nil
}

func (m *Memory) CreateNotification(ctx context.Context, n *models.Notification) error {
	defer m.lock()()
	n.CreatedAt = m.now()
	m.st.notifications = append(m.st.notifications, *n)
	return nil
}

func (m *Memory) ListNotifications(ctx context.Context, receiverID string, limit int) ([]models.Notification, error) {
	defer m.lock()()
	var out []models.Notification
	for i := len(m.st.notifications) - 1; i >= 0; i-- {
		if m.st.notifications[i].ReceiverID == receiverID {
			out = append(out, m.st.notifications[i])
		}
	}
	return truncate(out, limit), nil
}

func (m *Memory) ListNotificationsSince(ctx context.Context, receiverID string, since time.Time, limit int) ([]models.Notification, error) {
	defer m.lock()()
	var out []models.Notification
	for _, n := range m.st.notifications {
		if n.ReceiverID == receiverID && n.CreatedAt.After(since) {
			out = append(out, n)
		}
	}
	return truncate(out, limit), nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
