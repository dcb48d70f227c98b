package handlers

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name   string
		checks map[string]Pinger
		want   int
		status string
	}{
		{"all up", map[string]Pinger{"database": ok}, fiber.StatusOK, "ok"},
		{"redis down", map[string]Pinger{"database": ok, "redis": down}, fiber.StatusServiceUnavailable, "degraded"},
		{"no checks", nil, fiber.StatusOK, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			SetupHealthRoutes(app, func() int { return 3 }, tt.checks)

			resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			raw, _ := io.ReadAll(resp.Body)

			var body map[string]any
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, tt.status, body["status"])
			assert.EqualValues(t, 3, body["queue_size"])
		})
	}
}
