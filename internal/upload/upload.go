// Package upload places deployment scripts at content-addressed locations.
package upload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
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
)

// Uploader stores a local script and returns its content locator. Identical
// content yields the same locator.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// IPFSConfig configures an IPFS uploader
type IPFSConfig struct {
	// URL is the base URL of an IPFS HTTP API, e.g. https://api.thegraph.com/ipfs
	URL    string
	APIKey string
	// HTTPClient defaults to a client with a 60s timeout
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// IPFS uploads scripts through the /api/v0/add endpoint of an IPFS HTTP API
type IPFS struct {
	url    string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

var _ Uploader = (*IPFS)(nil)

// NewIPFS creates an IPFS uploader
func NewIPFS(cfg IPFSConfig) (*IPFS, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, fmt.Errorf("IPFS URL is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IPFS{url: base, apiKey: cfg.APIKey, client: client, logger: logger}, nil
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Upload implements Uploader
func (u *IPFS) Upload(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read script %s: %w", path, err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url+"/api/v0/add", &body)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload script: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var added addResponse
	if err := json.Unmarshal(payload, &added); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	if added.Hash == "" {
		return "", fmt.Errorf("upload response carries no hash")
	}

	u.logger.Info("script uploaded", "file", path, "cid", added.Hash)
	return "ipfs://" + added.Hash, nil
}

// Local copies scripts into a directory named by the SHA-256 of their content
type Local struct {
	dir string
}

var _ Uploader = (*Local)(nil)

// NewLocal creates an uploader storing blobs under dir
func NewLocal(dir string) *Local {
	return &Local{dir: dir}
}

// Upload implements Uploader
func (u *Local) Upload(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read script %s: %w", path, err)
	}

	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	if err := os.MkdirAll(u.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	blob := filepath.Join(u.dir, digest)
	if _, err := os.Stat(blob); os.IsNotExist(err) {
		if err := os.WriteFile(blob, content, 0644); err != nil {
			return "", fmt.Errorf("failed to store script: %w", err)
		}
	}
	return "sha256://" + digest, nil
}
