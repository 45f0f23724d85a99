package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/packforge/packforge/pkg/hook"
)

// envURL names the environment variable carrying the endpoint URL.
const envURL = "PACKFORGE_WEBHOOK_URL"

// requestTimeout bounds a single delivery attempt.
const requestTimeout = 10 * time.Second

// defaultHTTPClient is shared across deliveries for connection reuse.
var defaultHTTPClient = &http.Client{
	Timeout: requestTimeout,
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("too many redirects")
		}
		return nil
	},
	Transport: &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	},
}

// WebhookHook delivers build and release events to an HTTP endpoint.
type WebhookHook struct {
	// URL overrides the PACKFORGE_WEBHOOK_URL environment variable.
	URL string
	// Client overrides the shared HTTP client.
	Client *http.Client
}

// Payload is the JSON document posted to the endpoint.
type Payload struct {
	Event   hook.Event   `json:"event"`
	Sent    time.Time    `json:"sent"`
	Context hook.Context `json:"context"`
}

// Name identifies the hook in logs and veto messages.
func (h *WebhookHook) Name() string { return "webhook" }

// Handle posts the event and its context to the configured endpoint.
func (h *WebhookHook) Handle(event hook.Event, hctx hook.Context) error {
	url := h.URL
	if url == "" {
		url = os.Getenv(envURL)
	}
	if url == "" {
		return fmt.Errorf("%s is not set", envURL)
	}

	body, err := json.Marshal(Payload{
		Event:   event,
		Sent:    time.Now().UTC(),
		Context: hctx,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Packforge-Event", string(event))

	client := h.Client
	if client == nil {
		client = defaultHTTPClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
