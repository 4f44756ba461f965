// Package wordpress is the client for the publish target: stub creation,
// full updates, fetches, and binary uploads.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/starford/notepress/internal/apperr"
)

// PublishedFields are the service-authoritative fields returned after a
// create, fetch, or update.
type PublishedFields struct {
	ID       int       `json:"id"`
	Link     string    `json:"link"`
	Date     time.Time `json:"date"`
	Modified time.Time `json:"modified"`
}

// PostFields is the full update payload for an article or page.
type PostFields struct {
	Title        string            `json:"title"`
	Slug         string            `json:"slug,omitempty"`
	Content      string            `json:"content,omitempty"`
	Type         string            `json:"type,omitempty"`
	Status       string            `json:"status,omitempty"`
	ParentID     int               `json:"parent,omitempty"`
	ThumbnailID  int               `json:"featured_media,omitempty"`
	Categories   []string          `json:"categories,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	CustomFields map[string]string `json:"meta,omitempty"`
}

// MediaFields is the full update payload for an uploaded attachment.
type MediaFields struct {
	Title       string `json:"title,omitempty"`
	Caption     string `json:"caption,omitempty"`
	Description string `json:"description,omitempty"`
	ParentID    int    `json:"post,omitempty"`
}

// Publisher is the publish-target interface the orchestrator consumes.
type Publisher interface {
	// CreateStub creates a minimal post carrying only the title and
	// returns its new identifier.
	CreateStub(ctx context.Context, title string) (int, error)
	// UploadBinary uploads an attachment body and returns its identifier.
	UploadBinary(ctx context.Context, data []byte, filename, mime string) (int, error)
	// GetPost fetches the published fields of an existing item.
	GetPost(ctx context.Context, id int) (*PublishedFields, error)
	// UpdatePost issues the full update for a post or page.
	UpdatePost(ctx context.Context, id int, f *PostFields) (*PublishedFields, error)
	// UpdateMedia issues the full update for an attachment.
	UpdateMedia(ctx context.Context, id int, f *MediaFields) (*PublishedFields, error)
}

// Client talks to the publish target's REST API.
type Client struct {
	base     string
	username string
	password string
	http     *http.Client
}

// NewClient creates a publish-target client for the API at baseURL.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		base:     baseURL,
		username: username,
		password: password,
		http:     &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *Client) CreateStub(ctx context.Context, title string) (int, error) {
	var pf PublishedFields
	if err := c.doJSON(ctx, http.MethodPost, "/posts", &PostFields{Title: title}, &pf); err != nil {
		return 0, err
	}
	return pf.ID, nil
}

func (c *Client) UploadBinary(ctx context.Context, data []byte, filename, mime string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/media", bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("wordpress: build upload request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", mime)
	req.Header.Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	var pf PublishedFields
	if err := c.send(req, &pf); err != nil {
		return 0, err
	}
	return pf.ID, nil
}

func (c *Client) GetPost(ctx context.Context, id int) (*PublishedFields, error) {
	var pf PublishedFields
	if err := c.doJSON(ctx, http.MethodGet, "/posts/"+strconv.Itoa(id), nil, &pf); err != nil {
		return nil, err
	}
	return &pf, nil
}

func (c *Client) UpdatePost(ctx context.Context, id int, f *PostFields) (*PublishedFields, error) {
	var pf PublishedFields
	if err := c.doJSON(ctx, http.MethodPut, "/posts/"+strconv.Itoa(id), f, &pf); err != nil {
		return nil, err
	}
	return &pf, nil
}

func (c *Client) UpdateMedia(ctx context.Context, id int, f *MediaFields) (*PublishedFields, error) {
	var pf PublishedFields
	if err := c.doJSON(ctx, http.MethodPut, "/media/"+strconv.Itoa(id), f, &pf); err != nil {
		return nil, err
	}
	return &pf, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("wordpress: encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return fmt.Errorf("wordpress: build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("wordpress: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("wordpress: %s %s: %w", req.Method, req.URL.Path, apperr.ErrNotFound)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("wordpress: %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("wordpress: decode response: %w", err)
		}
	}
	return nil
}
