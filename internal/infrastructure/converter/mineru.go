package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"paperforge/internal/config"
	"paperforge/internal/ports"
)

// MineruClient implements ports.DocumentConverter against the Mineru
// extraction API: upload or submit a document, then poll the job handle
// until it reaches a terminal state or the configured ceiling elapses.
type MineruClient struct {
	endpoint     string
	token        string
	pollInterval time.Duration
	pollCeiling  time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

var _ ports.DocumentConverter = (*MineruClient)(nil)

// NewMineruClient builds a client from configuration.
func NewMineruClient(cfg config.ConverterConfig, client *http.Client, logger *slog.Logger) *MineruClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &MineruClient{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		token:        cfg.Token,
		pollInterval: cfg.PollInterval,
		pollCeiling:  cfg.PollCeiling,
		httpClient:   client,
		logger:       logger,
	}
}

// Convert submits the document and waits for the converted text.
func (c *MineruClient) Convert(ctx context.Context, path string) (string, error) {
	if c.token == "" || c.endpoint == "" {
		return "", fmt.Errorf("converter misconfigured")
	}

	var (
		jobID string
		err   error
	)
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		jobID, err = c.submitURL(ctx, path)
	} else {
		jobID, err = c.uploadFile(ctx, path)
	}
	if err != nil {
		return "", err
	}

	c.logger.Info("conversion job submitted", "job", jobID)
	return c.poll(ctx, jobID)
}

func (c *MineruClient) submitURL(ctx context.Context, url string) (string, error) {
	body, err := json.Marshal(map[string]any{"url": url, "model_version": "vlm"})
	if err != nil {
		return "", fmt.Errorf("marshal submit payload: %w", err)
	}

	var resp struct {
		Data struct {
			TaskID string `json:"task_id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, c.endpoint+"/extract/task", "application/json", bytes.NewReader(body), &resp); err != nil {
		return "", fmt.Errorf("submit conversion: %w", err)
	}
	if resp.Data.TaskID == "" {
		return "", fmt.Errorf("conversion service returned no job handle")
	}
	return resp.Data.TaskID, nil
}

func (c *MineruClient) uploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy source into form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	var resp struct {
		Code int `json:"code"`
		Msg  string
		Data struct {
			TaskID string `json:"task_id"`
			URL    string `json:"url"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, c.endpoint+"/file/upload", writer.FormDataContentType(), &buf, &resp); err != nil {
		return "", fmt.Errorf("upload source: %w", err)
	}
	if resp.Code != 0 {
		return "", fmt.Errorf("upload rejected: %s", resp.Msg)
	}

	if resp.Data.TaskID != "" {
		return resp.Data.TaskID, nil
	}
	if resp.Data.URL != "" {
		return c.submitURL(ctx, resp.Data.URL)
	}
	return "", fmt.Errorf("upload succeeded but returned no job handle")
}

// poll queries the job until completed/failed or the ceiling elapses. The
// ceiling is a hard bound: the fallback extractor takes over afterwards.
func (c *MineruClient) poll(ctx context.Context, jobID string) (string, error) {
	deadline := time.Now().Add(c.pollCeiling)
	statusURL := fmt.Sprintf("%s/extract/task/%s", c.endpoint, jobID)

	for time.Now().Before(deadline) {
		var resp struct {
			Data struct {
				Status      string `json:"status"`
				Markdown    string `json:"markdown"`
				MarkdownURL string `json:"markdown_url"`
			} `json:"data"`
		}
		err := c.do(ctx, http.MethodGet, statusURL, "", nil, &resp)
		switch {
		case err != nil:
			c.logger.Warn("poll failed", "job", jobID, "error", err)
		case resp.Data.Status == "completed":
			if resp.Data.MarkdownURL != "" {
				return c.fetchText(ctx, resp.Data.MarkdownURL)
			}
			return resp.Data.Markdown, nil
		case resp.Data.Status == "failed":
			return "", fmt.Errorf("conversion job %s failed", jobID)
		default:
			c.logger.Debug("conversion pending", "job", jobID, "status", resp.Data.Status)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return "", fmt.Errorf("conversion job %s timed out after %s", jobID, c.pollCeiling)
}

func (c *MineruClient) fetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch converted text: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch converted text: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read converted text: %w", err)
	}
	return string(data), nil
}

func (c *MineruClient) do(ctx context.Context, method, url, contentType string, body io.Reader, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
