package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"chess-matchmaking/utils"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// AuthServiceClient validates end-user tokens against the auth service.
// Only the notification stream needs it: browsers cannot set the gateway
// headers on an EventSource request.
type AuthServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type ValidateResponse struct {
	UserID   string   `json:"user_id"`
	DeviceID string   `json:"device_id"`
	Roles    []string `json:"roles"`
}

func NewAuthServiceClient(baseURL, token string) *AuthServiceClient {
	return &AuthServiceClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  utils.HTTPClient,
	}
}

// ValidateToken calls /auth/validate. A non-200 answer is ErrUnauthenticated.
func (c *AuthServiceClient) ValidateToken(ctx context.Context, accessToken, deviceID string) (*ValidateResponse, error) {
	body, err := json.Marshal(map[string]string{
		"access_token": accessToken,
		"device_id":    deviceID,
	})
	if err != nil {
		return nil, eris.Wrap(err, "failed to encode validate request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/auth/validate", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "failed to build validate request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "auth service unreachable")
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: auth service answered %d", ErrUnauthenticated, resp.StatusCode)
	}

	var out ValidateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "failed to decode validate response")
	}
	if out.UserID == "" {
		return nil, fmt.Errorf("%w: auth service returned no user", ErrUnauthenticated)
	}
	return &out, nil
}
