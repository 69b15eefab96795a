// Package farcaster provides a client for the managed Farcaster API used for
// social lookups and fan-out notification delivery.
package farcaster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/miniis3/lotteryd/pkg/logger"
)

const defaultBaseURL = "https://api.neynar.com"

// NotificationDetails are the self-hosted delivery credentials a Farcaster
// client hands out when a user enables notifications for the mini-app.
type NotificationDetails struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// User is the subset of a Farcaster profile the backend cares about.
type User struct {
	FID         int64  `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Client calls the managed Farcaster API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates a managed-API client.
func NewClient(apiKey string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewDefault("farcaster")
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

// WithBaseURL overrides the API endpoint. Used in tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// FetchBulkUsers resolves FIDs to profiles. Unknown FIDs are simply absent
// from the result.
func (c *Client) FetchBulkUsers(ctx context.Context, fids []int64) ([]User, error) {
	if len(fids) == 0 {
		return nil, nil
	}
	parts := make([]string, len(fids))
	for i, fid := range fids {
		parts[i] = strconv.FormatInt(fid, 10)
	}
	path := "/v2/farcaster/user/bulk?fids=" + strings.Join(parts, ",")

	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	return resp.Users, nil
}

// PublishNotification delivers a mini-app notification through the managed
// service. An empty fid list broadcasts to every user who has opted in. The
// returned count is the number of accepted deliveries.
func (c *Client) PublishNotification(ctx context.Context, fids []int64, title, body, targetURL string) (int, error) {
	if fids == nil {
		fids = []int64{}
	}
	payload := map[string]interface{}{
		"target_fids": fids,
		"notification": map[string]string{
			"title":      title,
			"body":       body,
			"target_url": targetURL,
		},
	}

	var resp struct {
		Deliveries []struct {
			FID    int64  `json:"fid"`
			Status string `json:"status"`
		} `json:"notification_deliveries"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/farcaster/frame/notifications", payload, &resp); err != nil {
		return 0, fmt.Errorf("publish notification: %w", err)
	}
	return len(resp.Deliveries), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, target interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
