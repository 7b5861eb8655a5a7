// Package notifier delivers deal announcements to a Discord webhook.
package notifier

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

	"github.com/pauljones0/dealfeed-bot/internal/models"
	"github.com/pauljones0/dealfeed-bot/internal/util"
)

const (
	embedColor        = 16753920 // #FFA500
	couponInfoMaxLen  = 200
	defaultRetryAfter = time.Second
)

// Category classifies a delivery failure for the retry state machine.
type Category int

const (
	// RateLimited means the service said to slow down; RetryAfter carries
	// its advised wait.
	RateLimited Category = iota
	// Conflict means a concurrent-modification style rejection worth a retry.
	Conflict
	// Transient covers 5xx responses and network errors.
	Transient
	// Fatal means retrying cannot help (payload rejected, bad webhook).
	Fatal
)

func (c Category) String() string {
	switch c {
	case RateLimited:
		return "rate_limited"
	case Conflict:
		return "conflict"
	case Transient:
		return "transient"
	default:
		return "fatal"
	}
}

// SendError describes a failed delivery attempt.
type SendError struct {
	Category   Category
	RetryAfter time.Duration // only meaningful for RateLimited
	Status     int           // 0 for network errors
	Err        error
}

func (e *SendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("discord send failed (%s, status %d): %v", e.Category, e.Status, e.Err)
	}
	return fmt.Sprintf("discord send failed (%s): %v", e.Category, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Notifier is the delivery seam the pipeline depends on.
type Notifier interface {
	Send(ctx context.Context, deal models.Deal) error
	SendAlert(ctx context.Context, text string) error
}

// Client posts deal embeds to a single Discord webhook.
type Client struct {
	webhookURL string
	client     *http.Client
}

func New(webhookURL string) (*Client, error) {
	if webhookURL == "" {
		return nil, errors.New("webhook URL is required")
	}
	return &Client{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

type embedThumbnail struct {
	URL string `json:"url,omitempty"`
}

type embed struct {
	Description string          `json:"description,omitempty"`
	URL         string          `json:"url,omitempty"`
	Color       int             `json:"color,omitempty"`
	Thumbnail   *embedThumbnail `json:"thumbnail,omitempty"`
}

type rateLimitResponse struct {
	RetryAfter float64 `json:"retry_after"`
}

func formatDeal(deal models.Deal) embed {
	var b strings.Builder
	fmt.Fprintf(&b, "%s 🎉 New deal! 🎉\n\n", deal.Tag)
	fmt.Fprintf(&b, "📌 **%s**\n\n", deal.Title)
	fmt.Fprintf(&b, "💵 Price: %s\n", deal.Price)
	if deal.OriginalPrice != "" && deal.OriginalPrice != deal.Price {
		fmt.Fprintf(&b, "💰 Original price: %s\n", deal.OriginalPrice)
	}
	if deal.Coupon != "" {
		fmt.Fprintf(&b, "🎟️ Coupon: `%s`\n", deal.Coupon)
	}
	if deal.CouponInfo != "" {
		fmt.Fprintf(&b, "ℹ️ %s\n", util.Truncate(deal.CouponInfo, couponInfoMaxLen))
	}
	fmt.Fprintf(&b, "\n🔗 %s", deal.Link)

	e := embed{
		Description: b.String(),
		URL:         deal.Link,
		Color:       embedColor,
	}
	if deal.Image != "" && deal.Image != models.ImageUnavailable {
		e.Thumbnail = &embedThumbnail{URL: deal.Image}
	}
	return e
}

// Send posts one deal embed. Failures come back as *SendError so the
// deliverer can pick a retry strategy per category.
func (c *Client) Send(ctx context.Context, deal models.Deal) error {
	return c.post(ctx, webhookPayload{Embeds: []embed{formatDeal(deal)}})
}

// SendAlert posts a plain error notice to the same channel. Best effort.
func (c *Client) SendAlert(ctx context.Context, text string) error {
	return c.post(ctx, webhookPayload{Content: "🚨 **Deal bot error** 🚨\n\n" + text})
}

func (c *Client) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &SendError{Category: Fatal, Err: fmt.Errorf("marshaling payload: %w", err)}
	}

	parsed, err := url.Parse(c.webhookURL)
	if err != nil {
		return &SendError{Category: Fatal, Err: fmt.Errorf("parsing webhook URL: %w", err)}
	}
	q := parsed.Query()
	q.Set("wait", "true")
	parsed.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, parsed.String(), bytes.NewReader(body))
	if err != nil {
		return &SendError{Category: Fatal, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &SendError{Category: Transient, Err: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &SendError{
			Category:   RateLimited,
			RetryAfter: parseRetryAfter(resp, respBody),
			Status:     resp.StatusCode,
			Err:        fmt.Errorf("rate limited: %s", string(respBody)),
		}
	case resp.StatusCode == http.StatusConflict:
		return &SendError{
			Category: Conflict,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("conflict: %s", string(respBody)),
		}
	case resp.StatusCode >= 500:
		return &SendError{
			Category: Transient,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("server error %d: %s", resp.StatusCode, string(respBody)),
		}
	default:
		return &SendError{
			Category: Fatal,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("rejected with status %d: %s", resp.StatusCode, string(respBody)),
		}
	}
}

// parseRetryAfter prefers the JSON retry_after (seconds, possibly fractional)
// and falls back to the Retry-After header, then a one second floor.
func parseRetryAfter(resp *http.Response, body []byte) time.Duration {
	var rl rateLimitResponse
	if err := json.Unmarshal(body, &rl); err == nil && rl.RetryAfter > 0 {
		return time.Duration(rl.RetryAfter * float64(time.Second))
	}
	if h := resp.Header.Get("Retry-After"); h != "" {
		if secs, err := strconv.ParseFloat(h, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return defaultRetryAfter
}
