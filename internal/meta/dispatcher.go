package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const (
	// APIVersion is the Graph API version events are sent against.
	APIVersion = "v18.0"

	defaultBaseURL = "https://graph.facebook.com"

	// A slow Graph API must never visibly delay a checkout flow; timeouts
	// are treated as an ordinary dispatch failure.
	dispatchTimeout = 5 * time.Second
)

// Config holds the Conversions API credentials. PixelID and AccessToken come
// from FB_PIXEL_ID / FB_ACCESS_TOKEN; both absent or either absent disables
// server-side tracking entirely.
type Config struct {
	PixelID       string
	AccessToken   string
	TestEventCode string

	// BaseURL overrides the Graph API host, for tests.
	BaseURL string
}

// Enabled reports whether both required secrets are present.
func (c Config) Enabled() bool {
	return c.PixelID != "" && c.AccessToken != ""
}

// ServerResponse is Meta's receipt for an accepted batch.
type ServerResponse struct {
	EventsReceived int    `json:"events_received"`
	FBTraceID      string `json:"fbtrace_id"`
}

// envelope is the wire body. The access token rides in the body and must
// never appear in logs.
type envelope struct {
	Data          []Event `json:"data"`
	TestEventCode string  `json:"test_event_code,omitempty"`
	AccessToken   string  `json:"access_token"`
}

// Dispatcher sends events to the Conversions API. Every failure mode is
// terminal here: the dispatcher logs and returns nil so that tracking can
// never break the business operation that triggered it.
type Dispatcher struct {
	cfg    Config
	client *http.Client
}

func NewDispatcher(cfg Config) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: dispatchTimeout},
	}
}

// Send posts a single event to the Graph API and returns the parsed receipt,
// or nil when tracking is disabled or the dispatch failed.
func (d *Dispatcher) Send(ctx context.Context, event Event) *ServerResponse {
	if !d.cfg.Enabled() {
		log.Printf("[Meta] Tracking disabled: FB_PIXEL_ID or FB_ACCESS_TOKEN not configured, skipping %s", event.EventName)
		return nil
	}

	body, err := json.Marshal(envelope{
		Data:          []Event{event},
		TestEventCode: d.cfg.TestEventCode,
		AccessToken:   d.cfg.AccessToken,
	})
	if err != nil {
		log.Printf("[Meta] Failed to marshal %s event: %v", event.EventName, err)
		return nil
	}

	baseURL := d.cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	url := fmt.Sprintf("%s/%s/%s/events", baseURL, APIVersion, d.cfg.PixelID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Printf("[Meta] Failed to build request for %s: %v", event.EventName, err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		log.Printf("[Meta] %s dispatch failed: %v", event.EventName, err)
		return nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[Meta] Failed to read response for %s: %v", event.EventName, err)
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[Meta] Graph API rejected %s (status %d): %s", event.EventName, resp.StatusCode, respBody)
		return nil
	}

	var sr ServerResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		log.Printf("[Meta] Failed to parse response for %s: %v", event.EventName, err)
		return nil
	}

	log.Printf("[Meta] %s accepted (events_received=%d, fbtrace_id=%s)", event.EventName, sr.EventsReceived, sr.FBTraceID)
	return &sr
}
