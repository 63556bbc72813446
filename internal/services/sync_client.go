// Reconciliation protocol client for the sync server
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const (
	defaultSyncBaseURL = "http://127.0.0.1:3000"
	syncSessionPath    = "/api/sync/session"
	defaultSyncTimeout = 2 * time.Second
)

// SyncClient speaks the session protocol over HTTP.
//
// Each call runs under its own timeout so a slow server costs at most one tick.
type SyncClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewSyncClient creates a client for the sync server at baseURL.
func NewSyncClient(baseURL string, client *http.Client, timeout time.Duration) *SyncClient {
	if baseURL == "" {
		baseURL = defaultSyncBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultSyncTimeout
	}

	return &SyncClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		timeout:    timeout,
	}
}

// SyncError is a non-2xx answer from the sync server.
type SyncError struct {
	StatusCode int
	Message    string
	err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync server error (status %d): %s", e.StatusCode, e.Message)
}

func (e *SyncError) Unwrap() error { return e.err }

// Create starts a new session.
func (c *SyncClient) Create(ctx context.Context) (*models.CreateResponse, error) {
	var resp models.CreateResponse
	if err := c.post(ctx, models.SyncRequest{Action: models.ActionCreate}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Join registers deviceID in the session referenced by key (id or code) and returns the session state.
func (c *SyncClient) Join(ctx context.Context, key, deviceID, deviceName string, progressMs int64) (*models.SessionState, error) {
	req := models.SyncRequest{
		Action:     models.ActionJoin,
		SessionID:  key,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		ProgressMs: progressMs,
	}

	var resp models.JoinResponse
	if err := c.post(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Session, nil
}

// Update reports the host's position. A nil playing leaves the session flag unchanged.
func (c *SyncClient) Update(ctx context.Context, key, deviceID string, progressMs int64, playing *bool) error {
	req := models.SyncRequest{
		Action:     models.ActionUpdate,
		SessionID:  key,
		DeviceID:   deviceID,
		ProgressMs: progressMs,
		IsPlaying:  playing,
	}
	return c.post(ctx, req, &models.SuccessResponse{})
}

// Get polls the session state.
func (c *SyncClient) Get(ctx context.Context, key string) (*models.SessionState, error) {
	var resp models.SessionState
	if err := c.post(ctx, models.SyncRequest{Action: models.ActionGet, SessionID: key}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Leave removes deviceID from the session.
func (c *SyncClient) Leave(ctx context.Context, key, deviceID string) error {
	req := models.SyncRequest{Action: models.ActionLeave, SessionID: key, DeviceID: deviceID}
	return c.post(ctx, req, &models.SuccessResponse{})
}

func (c *SyncClient) post(ctx context.Context, payload models.SyncRequest, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+syncSessionPath, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s", shared.ErrTimeout, payload.Action, c.baseURL)
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return syncError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// syncError maps an error body back to the sentinel the server raised.
func syncError(status int, body []byte) error {
	var e models.ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		e.Error = strings.TrimSpace(string(body))
	}

	var sentinel error
	switch {
	case status == http.StatusNotFound && strings.EqualFold(e.Error, shared.ErrDeviceNotInSession.Error()):
		sentinel = shared.ErrDeviceNotInSession
	case status == http.StatusNotFound:
		sentinel = shared.ErrSessionNotFound
	case status == http.StatusBadRequest && strings.EqualFold(e.Error, shared.ErrInvalidAction.Error()):
		sentinel = shared.ErrInvalidAction
	case status == http.StatusBadRequest:
		sentinel = shared.ErrInvalidInput
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		sentinel = shared.ErrServiceUnavailable
	default:
		sentinel = shared.ErrAPIRequest
	}
	return &SyncError{StatusCode: status, Message: e.Error, err: sentinel}
}
