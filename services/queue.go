package services

import (
	"container/list"
	"sync"
	"time"

	"chess-matchmaking/metrics"
	"chess-matchmaking/models"
)

// Queue holds waiting players in arrival order. Every method is safe for
// concurrent use.
type Queue struct {
	mu    sync.Mutex
	order *list.List // of models.QueuedPlayer, oldest at the front
	index map[string]*list.Element
}

func NewQueue() *Queue {
	return &Queue{
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

// Enqueue appends p, or returns ErrAlreadyQueued if p.ID is waiting already.
func (q *Queue) Enqueue(p models.QueuedPlayer) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[p.ID]; ok {
		return ErrAlreadyQueued
	}
	q.index[p.ID] = q.order.PushBack(p)
	q.report()
	return nil
}

// Dequeue removes and returns the player. It is safe to call after the
// player was already paired; that case reports ErrNotQueued.
func (q *Queue) Dequeue(id string) (models.QueuedPlayer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	el, ok := q.index[id]
	if !ok {
		return models.QueuedPlayer{}, ErrNotQueued
	}
	q.remove(el)
	q.report()
	return el.Value.(models.QueuedPlayer), nil
}

func (q *Queue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.index[id]
	return ok
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.order.Len()
}

// PopOldest removes up to n of the longest-waiting players, oldest first.
// A short read means another caller got there first.
func (q *Queue) PopOldest(n int) []models.QueuedPlayer {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.QueuedPlayer, 0, n)
	for len(out) < n {
		el := q.order.Front()
		if el == nil {
			break
		}
		q.remove(el)
		out = append(out, el.Value.(models.QueuedPlayer))
	}
	q.report()
	return out
}

// PushFront puts players back at the head of the queue, keeping their
// relative order. Players that re-joined in the meantime are left where they
// are. It returns how many were restored.
func (q *Queue) PushFront(players ...models.QueuedPlayer) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	restored := 0
	for i := len(players) - 1; i >= 0; i-- {
		p := players[i]
		if _, ok := q.index[p.ID]; ok {
			continue
		}
		q.index[p.ID] = q.order.PushFront(p)
		restored++
	}
	q.report()
	return restored
}

// Expire drops every player that joined before cutoff and returns them.
func (q *Queue) Expire(cutoff time.Time) []models.QueuedPlayer {
	q.mu.Lock()
	defer q.mu.Unlock()

	var expired []models.QueuedPlayer
	for el := q.order.Front(); el != nil; {
		next := el.Next()
		if p := el.Value.(models.QueuedPlayer); p.JoinedAt.Before(cutoff) {
			q.remove(el)
			expired = append(expired, p)
		}
		el = next
	}
	q.report()
	return expired
}

func (q *Queue) remove(el *list.Element) {
	q.order.Remove(el)
	delete(q.index, el.Value.(models.QueuedPlayer).ID)
}

func (q *Queue) report() {
	metrics.QueueSize.Set(float64(q.order.Len()))
}
