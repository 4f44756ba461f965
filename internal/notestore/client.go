package notestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/starford/notepress/internal/apperr"
	"github.com/starford/notepress/internal/checksum"
)

// DefaultPageSize is the query page size used when none is configured.
const DefaultPageSize = 100

// retryMargin is added to the service-reported cooldown before retrying.
const retryMargin = 5 * time.Second

// Client talks to the note service over HTTP. All calls retry indefinitely
// on rate-limit responses, sleeping out the reported cooldown plus a small
// margin.
type Client struct {
	base     string
	token    string
	http     *http.Client
	log      *slog.Logger
	pageSize int
	margin   time.Duration
}

// NewClient creates a note-store client for the service at baseURL.
func NewClient(baseURL, token string, pageSize int, log *slog.Logger) *Client {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{
		base:     baseURL,
		token:    token,
		http:     &http.Client{Timeout: 60 * time.Second},
		log:      log,
		pageSize: pageSize,
		margin:   retryMargin,
	}
}

// GetNote fetches a full note by GUID.
func (c *Client) GetNote(ctx context.Context, guid string) (*Note, error) {
	var n Note
	err := c.withRetry(ctx, func() error {
		return c.do(ctx, http.MethodGet, "/notes/"+url.PathEscape(guid), nil, nil, &n)
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

type findPage struct {
	Notes      []Metadata `json:"notes"`
	Total      int        `json:"total"`
	StartIndex int        `json:"start_index"`
}

// FindNotes pages through the query results, yielding each summary with its
// absolute offset so a caller can re-enter efficiently after interruption.
func (c *Client) FindNotes(ctx context.Context, query string, fn func(offset int, md Metadata) bool) error {
	offset := 0
	for {
		q := url.Values{}
		q.Set("query", query)
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(c.pageSize))

		var page findPage
		err := c.withRetry(ctx, func() error {
			return c.do(ctx, http.MethodGet, "/notes", q, nil, &page)
		})
		if err != nil {
			return err
		}
		for i, md := range page.Notes {
			if !fn(offset+i, md) {
				return nil
			}
		}
		if page.StartIndex+c.pageSize >= page.Total {
			return nil
		}
		offset += c.pageSize
	}
}

// CreateNote stores a new note, filling in resource body hashes when absent.
func (c *Client) CreateNote(ctx context.Context, n *Note) error {
	hashResources(n)
	return c.withRetry(ctx, func() error {
		return c.do(ctx, http.MethodPost, "/notes", nil, n, nil)
	})
}

// UpdateNote replaces an existing note.
func (c *Client) UpdateNote(ctx context.Context, n *Note) error {
	hashResources(n)
	return c.withRetry(ctx, func() error {
		return c.do(ctx, http.MethodPut, "/notes/"+url.PathEscape(n.GUID), nil, n, nil)
	})
}

func hashResources(n *Note) {
	for i := range n.Resources {
		if n.Resources[i].BodyHash == "" {
			n.Resources[i].BodyHash = checksum.Sum(n.Resources[i].Body)
		}
	}
}

// withRetry runs call until it succeeds or fails with anything other than a
// rate-limit condition. There is no retry cap: the service reports when it
// is safe to continue.
func (c *Client) withRetry(ctx context.Context, call func() error) error {
	for {
		err := call()
		var rl *apperr.RateLimitError
		if !errors.As(err, &rl) {
			return err
		}
		wait := rl.Cooldown + c.margin
		c.log.Warn("note store rate limit reached, waiting before retry",
			slog.Duration("wait", wait))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		c.log.Debug("finished waiting for rate limit reset")
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("notestore: encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("notestore: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("notestore: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		cooldown := 60 * time.Second
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil {
				cooldown = time.Duration(secs) * time.Second
			}
		}
		return &apperr.RateLimitError{Cooldown: cooldown}
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("notestore: %s %s: %w", method, path, apperr.ErrNotFound)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notestore: %s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("notestore: decode response: %w", err)
		}
	}
	return nil
}
