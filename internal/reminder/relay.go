package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RelayClient talks to the push relay service that owns the actual web-push
// plumbing. It implements NotificationClient.
type RelayClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewRelayClient(baseURL, token string) *RelayClient {
	return &RelayClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a relay endpoint is configured. Without one every
// reminder request falls back to in-app delivery.
func (c *RelayClient) Enabled() bool {
	return c.baseURL != ""
}

type subscriptionRequest struct {
	Handle string `json:"handle"`
}

type subscriptionResponse struct {
	Subscription string `json:"subscription"`
}

func (c *RelayClient) GetOrCreateSubscription(ctx context.Context, handle string) (string, error) {
	if handle == "" {
		return "", fmt.Errorf("empty subscription handle")
	}
	var resp subscriptionResponse
	if err := c.post(ctx, "/v1/subscriptions", subscriptionRequest{Handle: handle}, &resp); err != nil {
		return "", err
	}
	return resp.Subscription, nil
}

type scheduleRequest struct {
	Key          string    `json:"key"`
	Subscription string    `json:"subscription"`
	WhenUTC      time.Time `json:"when_utc"`
}

func (c *RelayClient) ScheduleOneShot(ctx context.Context, key, subscription string, whenUTC time.Time) error {
	return c.post(ctx, "/v1/schedules", scheduleRequest{
		Key:          key,
		Subscription: subscription,
		WhenUTC:      whenUTC,
	}, nil)
}

func (c *RelayClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push relay %s returned %d: %s", path, resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
