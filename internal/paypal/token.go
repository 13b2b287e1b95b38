package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// tokenSource holds the provider access token and refreshes it at 90% of the
// reported lifetime, so requests never race an expiring token.
type tokenSource struct {
	client *Client

	mu          sync.RWMutex
	accessToken string
}

func newTokenSource(client *Client) *tokenSource {
	return &tokenSource{client: client}
}

func (t *tokenSource) token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.accessToken
}

func (t *tokenSource) start(ctx context.Context) {
	go func() {
		retry := 30 * time.Second
		for {
			wait := retry
			expiresIn, err := t.refresh(ctx)
			if err != nil {
				slog.Error("refresh billing access token", "error", err)
			} else {
				wait = expiresIn * 9 / 10
				slog.Info("billing access token refreshed", "next_refresh", wait)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}()
}

func (t *tokenSource) refresh(ctx context.Context) (time.Duration, error) {
	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.client.baseURL+"/v1/oauth2/token", form)
	if err != nil {
		return 0, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(t.client.clientID, t.client.secret)

	resp, err := t.client.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("token endpoint status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return 0, fmt.Errorf("decode token response: %w", err)
	}

	t.mu.Lock()
	t.accessToken = body.AccessToken
	t.mu.Unlock()

	return time.Duration(body.ExpiresIn) * time.Second, nil
}
