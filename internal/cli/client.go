package cli

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
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/convotutor/internal/models"
)

// Client calls the HTTP API of a running ConvoTutor server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL. A nil httpClient uses a client
// with a generous timeout, since uploads embed whole batches.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// ProcessFiles uploads files as one batch. The summary is returned together with the
// error when the server rejected some or all of the documents.
func (c *Client) ProcessFiles(ctx context.Context, paths []string) (*models.ProcessSummary, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		part, err := mw.CreateFormFile("files", filepath.Base(p))
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/documents", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	var sum models.ProcessSummary
	if resp.StatusCode != http.StatusCreated {
		if json.Unmarshal(b, &sum) == nil && len(sum.Failed) > 0 {
			return &sum, fmt.Errorf("server returned %d", resp.StatusCode)
		}
		return nil, statusError(resp.StatusCode, b)
	}
	if err := json.Unmarshal(b, &sum); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &sum, nil
}

// Ask asks a question against the server's active index.
func (c *Client) Ask(ctx context.Context, question, language string, topK int) (*AskResult, error) {
	var res AskResult
	in := map[string]interface{}{"question": question, "language": language, "top_k": topK}
	if err := c.postJSON(ctx, "/api/v1/ask", in, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Retrieve returns the passages most similar to question.
func (c *Client) Retrieve(ctx context.Context, question string, topK int) (*RetrieveResult, error) {
	var res RetrieveResult
	in := map[string]interface{}{"question": question, "top_k": topK}
	if err := c.postJSON(ctx, "/api/v1/retrieve", in, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Translate translates text into target.
func (c *Client) Translate(ctx context.Context, text, source, target string) (*TranslateResult, error) {
	var res TranslateResult
	in := map[string]string{"text": text, "source": source, "target": target}
	if err := c.postJSON(ctx, "/api/v1/translate", in, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Status returns the server status report.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, http.StatusOK, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// WatchDirectories lists the directories the server watches.
func (c *Client) WatchDirectories(ctx context.Context) ([]string, error) {
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/watch/directories", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Directories, nil
}

// AddWatchDirectory asks the server to watch path. With sync set the directory's current
// documents are indexed right away.
func (c *Client) AddWatchDirectory(ctx context.Context, path string, sync bool) error {
	in := map[string]interface{}{"path": path, "sync": sync}
	return c.postJSON(ctx, "/api/v1/watch/directories", in, http.StatusCreated, nil)
}

// RemoveWatchDirectory stops the server watching path.
func (c *Client) RemoveWatchDirectory(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/watch/directories?path="+url.QueryEscape(path), nil, http.StatusOK, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, in interface{}, want int, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), want, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, want int, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		return statusError(resp.StatusCode, b)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError prefers the "error" field of a JSON error body over the raw text.
func statusError(code int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", code, e.Error)
	}
	return fmt.Errorf("server returned %d: %s", code, strings.TrimSpace(string(body)))
}
