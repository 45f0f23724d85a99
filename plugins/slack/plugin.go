package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/packforge/packforge/pkg/hook"
)

// envWebhook names the environment variable carrying the incoming
// webhook URL.
const envWebhook = "PACKFORGE_SLACK_WEBHOOK_URL"

// requestTimeout bounds a single delivery attempt.
const requestTimeout = 10 * time.Second

// changelogLimit caps the changelog text included in a notification.
const changelogLimit = 2000

// defaultHTTPClient pins deliveries to hooks.slack.com over TLS 1.3.
var defaultHTTPClient = &http.Client{
	Timeout: requestTimeout,
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("too many redirects")
		}
		if req.URL.Scheme != "https" {
			return fmt.Errorf("redirect to non-HTTPS URL not allowed")
		}
		if req.URL.Host != "hooks.slack.com" {
			return fmt.Errorf("redirect away from hooks.slack.com not allowed")
		}
		return nil
	},
	Transport: &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS13,
		},
	},
}

// SlackHook posts release announcements to a Slack incoming webhook.
type SlackHook struct {
	// URL overrides the PACKFORGE_SLACK_WEBHOOK_URL environment variable.
	URL string
	// Client overrides the shared HTTP client.
	Client *http.Client
}

// message is a Slack webhook payload.
type message struct {
	Text        string       `json:"text,omitempty"`
	Attachments []attachment `json:"attachments,omitempty"`
}

// attachment is a legacy-style Slack attachment.
type attachment struct {
	Color  string  `json:"color,omitempty"`
	Title  string  `json:"title,omitempty"`
	Text   string  `json:"text,omitempty"`
	Fields []field `json:"fields,omitempty"`
	Footer string  `json:"footer,omitempty"`
	Ts     int64   `json:"ts,omitempty"`
}

// field is a short labelled value inside an attachment.
type field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Name identifies the hook in logs and veto messages.
func (h *SlackHook) Name() string { return "slack" }

// Handle announces finished releases and reports cancelled ones. Build
// and pre-release events pass silently so the channel only hears about
// outcomes.
func (h *SlackHook) Handle(event hook.Event, hctx hook.Context) error {
	switch event {
	case hook.EventPostRelease:
		return h.send(h.releasedMessage(hctx))
	case hook.EventReleaseCancelled:
		return h.send(h.cancelledMessage(hctx))
	default:
		return nil
	}
}

func (h *SlackHook) releasedMessage(hctx hook.Context) message {
	fields := []field{
		{Title: "Package", Value: hctx.PackageName, Short: true},
		{Title: "Version", Value: hctx.PackageVersion, Short: true},
	}
	if hctx.TagName != "" {
		fields = append(fields, field{Title: "Tag", Value: hctx.TagName, Short: true})
	}
	if hctx.Revision != "" {
		fields = append(fields, field{Title: "Revision", Value: hctx.Revision, Short: true})
	}
	if hctx.PreviousVersion != "" {
		fields = append(fields, field{Title: "Previous", Value: hctx.PreviousVersion, Short: true})
	}
	if hctx.User != "" {
		fields = append(fields, field{Title: "Released by", Value: hctx.User, Short: true})
	}

	text := hctx.ReleaseMessage
	if hctx.Changelog != "" {
		notes := hctx.Changelog
		if len(notes) > changelogLimit {
			notes = notes[:changelogLimit] + "..."
		}
		if text != "" {
			text += "\n"
		}
		text += notes
	}

	return message{
		Attachments: []attachment{
			{
				Color:  "good",
				Title:  fmt.Sprintf(":rocket: Released %s-%s", hctx.PackageName, hctx.PackageVersion),
				Text:   text,
				Fields: fields,
				Footer: "Packforge",
				Ts:     time.Now().Unix(),
			},
		},
	}
}

func (h *SlackHook) cancelledMessage(hctx hook.Context) message {
	return message{
		Attachments: []attachment{
			{
				Color: "danger",
				Title: fmt.Sprintf(":x: Release %s-%s cancelled", hctx.PackageName, hctx.PackageVersion),
				Fields: []field{
					{Title: "Package", Value: hctx.PackageName, Short: true},
					{Title: "Version", Value: hctx.PackageVersion, Short: true},
				},
				Footer: "Packforge",
				Ts:     time.Now().Unix(),
			},
		},
	}
}

func (h *SlackHook) send(msg message) error {
	url := h.URL
	if url == "" {
		url = os.Getenv(envWebhook)
	}
	if url == "" {
		return fmt.Errorf("%s is not set", envWebhook)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = defaultHTTPClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}
