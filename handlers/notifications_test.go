package handlers

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"chess-matchmaking/logger"
	"chess-matchmaking/models"
	"chess-matchmaking/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStreamPushesOnlyNewNotifications(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, e.store.CreateNotification(ctx, &models.Notification{
		ID: "old", ReceiverID: "alice", Title: "Game over", Content: "already seen",
	}))

	routes := NotificationRoutes{Service: e.notifications, PollInterval: 10 * time.Millisecond, Log: logger.Nop()}
	out := &lockedBuffer{}
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		routes.stream(ctx, bufio.NewWriter(out), "alice")
	}()

	require.Eventually(t, func() bool { return out.String() == ":\n\n" }, time.Second, 5*time.Millisecond)

	require.NoError(t, e.store.CreateNotification(ctx, &models.Notification{
		ID: "fresh", ReceiverID: "alice", Title: "Game over", Content: "you won",
	}))
	require.NoError(t, e.store.CreateNotification(ctx, &models.Notification{
		ID: "other", ReceiverID: "bob", Title: "Game over", Content: "you lost",
	}))

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte(`"id":"fresh"`))
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after cancel")
	}

	got := out.String()
	assert.Contains(t, got, "event: notification\ndata: ")
	assert.NotContains(t, got, "already seen")
	assert.NotContains(t, got, `"id":"other"`)
}

type stubValidator struct{}

func (stubValidator) ValidateToken(ctx context.Context, token, deviceID string) (*services.ValidateResponse, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &services.ValidateResponse{UserID: "alice", DeviceID: deviceID}, nil
}

func TestStreamRequiresQueryToken(t *testing.T) {
	e := newTestEnv(t)
	app := fiber.New()
	SetupNotificationRoutes(app.Group("/api"), NotificationRoutes{
		Service:   e.notifications,
		Validator: stubValidator{},
		Log:       logger.Nop(),
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/notifications/stream", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/notifications/stream?token=bad&device_id=d1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
