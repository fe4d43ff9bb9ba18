// Package spotify is a minimal Spotify Web API client covering what the
// alarm needs: refresh-token auth, device lookup, and playback control.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wakespot/wakespot/internal/logger"
)

const (
	defaultAPIBaseURL     = "https://api.spotify.com"
	defaultAccountsURL    = "https://accounts.spotify.com"
	defaultRequestTimeout = 10 * time.Second

	// tokenSlack renews the access token this long before its stated
	// expiry so in-flight requests never race the deadline.
	tokenSlack = 60 * time.Second
)

// ErrDeviceNotFound is returned when the configured playback device is not
// currently visible to the account.
var ErrDeviceNotFound = errors.New("spotify: device not found")

// Config holds the API credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// Device is one Spotify Connect playback device.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"is_active"`
	VolumePercent int    `json:"volume_percent"`
}

// Client talks to the Spotify Web API. It caches the access token and
// refreshes it transparently before expiry. Safe for concurrent use.
type Client struct {
	api      *resty.Client
	accounts *resty.Client
	cfg      Config
	logger   *logger.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewClient creates a client with the default Spotify endpoints.
func NewClient(cfg Config, log *logger.Logger) *Client {
	return &Client{
		api:      resty.New().SetBaseURL(defaultAPIBaseURL).SetTimeout(defaultRequestTimeout),
		accounts: resty.New().SetBaseURL(defaultAccountsURL).SetTimeout(defaultRequestTimeout),
		cfg:      cfg,
		logger:   log,
	}
}

// SetBaseURLs overrides the API endpoints. Used by tests.
func (c *Client) SetBaseURLs(apiURL, accountsURL string) {
	c.api.SetBaseURL(apiURL)
	c.accounts.SetBaseURL(accountsURL)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns a valid access token, refreshing it when the cached one is
// absent or close to expiry.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Until(c.expiresAt) > tokenSlack {
		return c.accessToken, nil
	}
	return c.refreshLocked(ctx)
}

// Refresh forces a token refresh regardless of the cached expiry. The
// maintenance keep-alive job uses this to keep the refresh grant warm.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.refreshLocked(ctx)
	return err
}

func (c *Client) refreshLocked(ctx context.Context) (string, error) {
	var token tokenResponse
	resp, err := c.accounts.R().
		SetContext(ctx).
		SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": c.cfg.RefreshToken,
		}).
		SetResult(&token).
		Post("/api/token")
	if err != nil {
		return "", fmt.Errorf("spotify: token refresh: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("spotify: token refresh: status %d", resp.StatusCode())
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("spotify: token refresh: empty access token")
	}

	c.accessToken = token.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	c.logger.Debug("spotify access token refreshed",
		logger.Field{Key: "expires_in", Value: token.ExpiresIn})
	return c.accessToken, nil
}

// ProbeToken verifies the current token against the profile endpoint. It is
// a read-only readiness probe; a failure here is reported, not repaired.
func (c *Client) ProbeToken(ctx context.Context) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}

	resp, err := c.api.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get("/v1/me")
	if err != nil {
		return fmt.Errorf("spotify: token probe: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("spotify: token probe: status %d", resp.StatusCode())
	}
	return nil
}

type devicesResponse struct {
	Devices []Device `json:"devices"`
}

// Devices lists the playback devices currently visible to the account.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	var result devicesResponse
	resp, err := c.api.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&result).
		Get("/v1/me/player/devices")
	if err != nil {
		return nil, fmt.Errorf("spotify: list devices: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("spotify: list devices: status %d", resp.StatusCode())
	}
	return result.Devices, nil
}

// FindDevice looks up a device by its display name.
func (c *Client) FindDevice(ctx context.Context, name string) (Device, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return Device{}, err
	}
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}

// ProbeDevice verifies the named device is currently visible.
func (c *Client) ProbeDevice(ctx context.Context, name string) error {
	_, err := c.FindDevice(ctx, name)
	return err
}

// Play starts playback of the given context URI on a device.
func (c *Client) Play(ctx context.Context, deviceID, contextURI string) error {
	body := map[string]any{}
	if contextURI != "" {
		body["context_uri"] = contextURI
	}
	return c.playerPut(ctx, "/v1/me/player/play", deviceID, body)
}

// Pause pauses playback on a device.
func (c *Client) Pause(ctx context.Context, deviceID string) error {
	return c.playerPut(ctx, "/v1/me/player/pause", deviceID, nil)
}

// SetShuffle toggles shuffle mode on a device.
func (c *Client) SetShuffle(ctx context.Context, deviceID string, on bool) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}

	resp, err := c.api.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("state", strconv.FormatBool(on)).
		SetQueryParam("device_id", deviceID).
		Put("/v1/me/player/shuffle")
	if err != nil {
		return fmt.Errorf("spotify: set shuffle: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("spotify: set shuffle: status %d", resp.StatusCode())
	}
	return nil
}

// SetVolume sets the playback volume on a device.
func (c *Client) SetVolume(ctx context.Context, deviceID string, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	token, err := c.Token(ctx)
	if err != nil {
		return err
	}

	resp, err := c.api.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("volume_percent", strconv.Itoa(percent)).
		SetQueryParam("device_id", deviceID).
		Put("/v1/me/player/volume")
	if err != nil {
		return fmt.Errorf("spotify: set volume: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("spotify: set volume: status %d", resp.StatusCode())
	}
	return nil
}

func (c *Client) playerPut(ctx context.Context, path, deviceID string, body map[string]any) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}

	req := c.api.R().
		SetContext(ctx).
		SetAuthToken(token)
	if deviceID != "" {
		req.SetQueryParam("device_id", deviceID)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Put(path)
	if err != nil {
		return fmt.Errorf("spotify: %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("spotify: %s: status %d", path, resp.StatusCode())
	}
	return nil
}
