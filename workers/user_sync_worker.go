package workers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chess-matchmaking/logger"
	"chess-matchmaking/metrics"
	"chess-matchmaking/models"
	"chess-matchmaking/store"
	"chess-matchmaking/utils"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// RemoteProfile is one entry of the profile service change feed.
type RemoteProfile struct {
	ExternalID    string    `json:"external_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FirstName     *string   `json:"first_name,omitempty"`
	LastName      *string   `json:"last_name,omitempty"`
	AccountStatus string    `json:"account_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type profileChanges struct {
	Users []RemoteProfile `json:"users"`
}

// UserSyncWorker mirrors accounts from the profile service into the local
// users table so matchmaking can look players up without a network call.
type UserSyncWorker struct {
	store        store.Users
	log          *logger.Logger
	interval     time.Duration
	baseURL      string // e.g. "http://localhost:8500"
	endpointPath string // e.g. "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client
}

func NewUserSyncWorker(s store.Users, log *logger.Logger, baseURL, endpointPath, serviceToken string, interval time.Duration) *UserSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &UserSyncWorker{
		store:        s,
		log:          log.With(zap.String("worker", "user_sync")),
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *UserSyncWorker) Start(ctx context.Context) {
	w.log.Info("🔁 starting user sync worker", zap.String("source", w.baseURL))
	go w.run(ctx)
}

func (w *UserSyncWorker) run(ctx context.Context) {
	if _, err := w.SyncOnce(ctx); err != nil {
		w.log.Warn("initial user sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.Error("user sync failed", err)
			}
		case <-ctx.Done():
			w.log.Info("⏹️ user sync worker stopped")
			return
		}
	}
}

// SyncOnce pulls changes newer than the latest local update and upserts them.
func (w *UserSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	since, err := w.store.LatestUserUpdate(ctx)
	if err != nil {
		return 0, err
	}

	profiles, err := w.fetch(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(profiles) == 0 {
		w.log.Debug("no profile changes", zap.Time("since", since))
		return 0, nil
	}

	users := make([]models.User, 0, len(profiles))
	for _, p := range profiles {
		if p.ExternalID == "" {
			continue
		}
		users = append(users, toUser(p))
	}

	n, err := w.store.UpsertUsers(ctx, users)
	if err != nil {
		return 0, err
	}
	metrics.ProfileSyncUpsertsTotal.Add(float64(n))
	w.log.Info("✅ synced users", zap.Int("received", len(profiles)), zap.Int("upserted", n))
	return n, nil
}

func (w *UserSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid sync service URL %q", w.baseURL)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "failed to build sync request")
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "sync service request failed")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sync service returned %d: %s", resp.StatusCode, body)
	}

	var changes profileChanges
	if err := json.NewDecoder(resp.Body).Decode(&changes); err != nil {
		return nil, eris.Wrap(err, "failed to decode sync response")
	}
	return changes.Users, nil
}

func toUser(p RemoteProfile) models.User {
	var parts []string
	for _, s := range []*string{p.FirstName, p.LastName} {
		if s != nil && strings.TrimSpace(*s) != "" {
			parts = append(parts, strings.TrimSpace(*s))
		}
	}
	display := strings.Join(parts, " ")
	if display == "" {
		display = p.Username
	}

	status := strings.ToLower(p.AccountStatus)
	return models.User{
		ID:          p.ExternalID,
		Username:    norm.NFC.String(p.Username),
		DisplayName: norm.NFC.String(display),
		Email:       p.Email,
		IsBanned:    status == "suspended" || status == "banned",
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
