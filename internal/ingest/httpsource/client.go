// Package httpsource fetches stock records from the public stock API.
package httpsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/bissquit/stockwatch/internal/stock"
)

const (
	// DefaultURL is the public endpoint returning the latest stock messages.
	DefaultURL     = "https://plantsvsbrainrots.com/api/latest-message"
	defaultTimeout = 10 * time.Second
)

// Config contains HTTP source configuration.
type Config struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// FetchError describes a failed fetch. Fetch errors are transient: the caller retries on the next tick.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client polls the stock API.
type Client struct {
	url    string
	client *resty.Client
}

// NewClient creates a new HTTP source client.
func NewClient(config Config) *Client {
	if config.URL == "" {
		config.URL = DefaultURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	client := resty.New().
		SetTimeout(config.Timeout).
		SetHeader("Accept", "application/json")
	if config.UserAgent != "" {
		client.SetHeader("User-Agent", config.UserAgent)
	}

	return &Client{url: config.URL, client: client}
}

// Fetch returns the records currently published by the API, newest first.
func (c *Client) Fetch(ctx context.Context) ([]stock.Record, error) {
	resp, err := c.client.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return nil, &FetchError{URL: c.url, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &FetchError{URL: c.url, StatusCode: resp.StatusCode()}
	}

	records, err := decode(resp.Body())
	if err != nil {
		return nil, &FetchError{URL: c.url, Err: err}
	}
	return records, nil
}

// decode accepts a JSON array of messages or a single message object.
func decode(body []byte) ([]stock.Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("decode response: empty body")
	}

	var items []json.RawMessage
	if body[0] == '{' {
		items = []json.RawMessage{body}
	} else if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	records := make([]stock.Record, 0, len(items))
	for _, item := range items {
		var rec stock.Record
		if err := json.Unmarshal(item, &rec); err != nil {
			// Stays in place with an empty id; the pipeline skips it as malformed.
			rec = stock.Record{}
		}
		rec.Source = domain.SourceHTTP
		rec.Raw = append(json.RawMessage(nil), item...)
		records = append(records, rec)
	}
	return records, nil
}
