// Package slack posts batch run summaries to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/target/mmk-items-api/internal/domain/model"
	"github.com/target/mmk-items-api/internal/observability/notify"
	"github.com/target/mmk-items-api/internal/util"
)

// maxListedFailures caps how many failed item IDs end up in one message.
const maxListedFailures = 10

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL   string
	Channel      string
	Username     string
	Timeout      time.Duration
	RetryLimit   int
	Client       *http.Client
	RunURLPrefix string
	// FailuresOnly suppresses messages for COMPLETED runs.
	FailuresOnly bool
}

// Client delivers batch run notifications to a Slack webhook.
type Client struct {
	webhookURL   string
	channel      string
	username     string
	retryLimit   int
	runURLPrefix string
	failuresOnly bool
	client       *http.Client
}

var _ notify.Sink = (*Client)(nil)

// NewClient builds a Slack webhook client.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		webhookURL:   webhookURL,
		channel:      strings.TrimSpace(cfg.Channel),
		username:     fallbackString(strings.TrimSpace(cfg.Username), "items-api"),
		retryLimit:   max(cfg.RetryLimit, 0),
		runURLPrefix: strings.TrimSpace(cfg.RunURLPrefix),
		failuresOnly: cfg.FailuresOnly,
		client:       hc,
	}, nil
}

// SendBatchRun posts a formatted run summary to Slack.
func (c *Client) SendBatchRun(ctx context.Context, payload notify.BatchRunPayload) error {
	if c.failuresOnly && payload.Status == model.BatchRunStatusCompleted {
		return nil
	}

	body, err := json.Marshal(c.formatMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	var lastErr error
	for attempt := range c.retryLimit + 1 {
		if attempt > 0 {
			// Linear backoff between attempts.
			timer := time.NewTimer(time.Duration(attempt) * 200 * time.Millisecond)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if lastErr = c.post(ctx, body); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (c *Client) formatMessage(p notify.BatchRunPayload) map[string]any {
	var text strings.Builder

	text.WriteString("*Batch run ")
	text.WriteString(strings.ToLower(strings.ReplaceAll(string(p.Status), "_", " ")))
	text.WriteString("* ")
	text.WriteString(c.formatRunValue(p.RunID))
	text.WriteByte('\n')

	writeField(&text, "Severity", fallbackString(p.Severity, notify.SeverityInfo))
	writeField(&text, "Items", fmt.Sprintf("%d total, %d processed, %d failed", p.Total, p.Succeeded, p.Failed))
	if d := p.FinishedAt.Sub(p.StartedAt); d > 0 {
		writeField(&text, "Duration", util.FormatDuration(d))
	}
	writeField(&text, "Error", escapeSlackText(p.Error))
	writeFailures(&text, p.Failures)

	finished := p.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	text.WriteString("• Finished: ")
	text.WriteString(finished.UTC().Format(time.RFC3339))

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func (c *Client) formatRunValue(runID string) string {
	id := escapeSlackText(strings.TrimSpace(runID))
	if id == "" {
		return ""
	}
	if link := c.buildRunLink(runID); link != "" {
		return fmt.Sprintf("<%s|%s>", link, id)
	}
	return "`" + id + "`"
}

func (c *Client) buildRunLink(runID string) string {
	if c.runURLPrefix == "" {
		return ""
	}
	u, err := url.Parse(c.runURLPrefix)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	link, err := url.JoinPath(u.String(), strings.TrimSpace(runID))
	if err != nil {
		return ""
	}
	return link
}

func writeFailures(text *strings.Builder, failures []model.BatchFailure) {
	if len(failures) == 0 {
		return
	}
	text.WriteString("• Failures:\n")
	for i, f := range failures {
		if i == maxListedFailures {
			text.WriteString("    • … and ")
			text.WriteString(strconv.Itoa(len(failures) - maxListedFailures))
			text.WriteString(" more\n")
			break
		}
		text.WriteString("    • `")
		text.WriteString(escapeSlackText(f.ItemID))
		text.WriteString("`: ")
		text.WriteString(string(f.Reason))
		text.WriteByte('\n')
	}
}

func writeField(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	text.WriteString("• ")
	text.WriteString(label)
	text.WriteString(": ")
	text.WriteString(value)
	text.WriteByte('\n')
}

func escapeSlackText(value string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(value)
}

func fallbackString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("slack webhook %s: read body: %w", resp.Status, readErr)
		}
		return fmt.Errorf("slack webhook %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain slack response body: %w", err)
	}
	return nil
}
