// Package joplin is a minimal client for the Joplin Web Clipper API,
// covering the three operations the migration needs.
package joplin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"time"
)

// DefaultBaseURL is the Web Clipper service address on a local Joplin.
const DefaultBaseURL = "http://127.0.0.1:41184"

// Client talks to one Joplin instance. The token authorizes every
// request as a query parameter, the way the Web Clipper API expects.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// New creates a Client for baseURL authorized by token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

// NewNote carries the fields of a note creation request. Timestamps
// are epoch milliseconds. Tags is a comma-joined list; empty means the
// field is omitted from the request.
type NewNote struct {
	Title     string
	Body      string
	ParentID  string
	Tags      string
	CreatedMS int64
	UpdatedMS int64
}

type idResponse struct {
	ID string `json:"id"`
}

// CreateFolder creates a notebook folder and returns its identifier.
func (c *Client) CreateFolder(ctx context.Context, title string) (string, error) {
	body, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return "", fmt.Errorf("joplin: marshal folder: %w", err)
	}
	resp, err := c.post(ctx, "/folders", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "create folder"); err != nil {
		return "", err
	}
	var out idResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("joplin: decode folder response: %w", err)
	}
	return out.ID, nil
}

// CreateResource uploads the file at filePath as a resource titled
// title and returns the resource identifier.
func (c *Client) CreateResource(ctx context.Context, filePath, title string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("joplin: open resource file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("data", title)
	if err != nil {
		return "", fmt.Errorf("joplin: multipart data part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("joplin: copy resource payload: %w", err)
	}
	props, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return "", fmt.Errorf("joplin: marshal resource props: %w", err)
	}
	if err := mw.WriteField("props", string(props)); err != nil {
		return "", fmt.Errorf("joplin: multipart props part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("joplin: close multipart: %w", err)
	}

	resp, err := c.post(ctx, "/resources", mw.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "create resource"); err != nil {
		return "", err
	}
	var out idResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("joplin: decode resource response: %w", err)
	}
	return out.ID, nil
}

// CreateNote creates a note under its parent folder.
func (c *Client) CreateNote(ctx context.Context, n NewNote) error {
	payload := map[string]any{
		"title":             n.Title,
		"body":              n.Body,
		"parent_id":         n.ParentID,
		"user_created_time": n.CreatedMS,
		"user_updated_time": n.UpdatedMS,
	}
	if n.Tags != "" {
		payload["tags"] = n.Tags
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("joplin: marshal note: %w", err)
	}
	resp, err := c.post(ctx, "/notes", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, "create note")
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	u := c.baseURL + path + "?token=" + url.QueryEscape(c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return nil, fmt.Errorf("joplin: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("joplin: %s: %w", path, err)
	}
	return resp, nil
}

// checkStatus turns any non-2xx response into an error carrying the
// status code and a snippet of the body.
func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("joplin: %s: unexpected status %d: %s", op, resp.StatusCode, bytes.TrimSpace(snippet))
}
