// Package vision implements the image-analysis chat feature: a one-shot
// multipart request per exchange instead of a live socket, sharing the
// reconciler and session store with the plain chat feature.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client talks to the backend's analyze-image endpoint.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient builds a client against the given API base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Analyze POSTs input_text plus the image file as multipart form data and
// returns the backend's analysis text.
func (c *Client) Analyze(ctx context.Context, inputText, imagePath string) (string, error) {
	img, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("opening image: %w", err)
	}
	defer img.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("input_text", inputText); err != nil {
		return "", fmt.Errorf("building form: %w", err)
	}
	part, err := form.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return "", fmt.Errorf("building form: %w", err)
	}
	if _, err := io.Copy(part, img); err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("building form: %w", err)
	}

	url := c.baseURL + "/api/v1/analyze-image"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("analyze request failed: unexpected status %d", resp.StatusCode)
	}

	var decoded struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding analyze response: %w", err)
	}
	return decoded.Response, nil
}
