package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Bucket is the tenant-scoped object store. Upload has idempotent upsert
// semantics: re-uploading the same path overwrites cleanly so retries are
// safe.
type Bucket interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error
	SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)
}

// HTTPBucket talks to an object-store REST endpoint (Supabase-style paths:
// /object/{bucket}/{path} for writes, /object/sign/{bucket}/{path} for URLs).
type HTTPBucket struct {
	baseURL    string
	serviceKey string
	client     *http.Client
	logger     *slog.Logger
}

func NewHTTPBucket(baseURL, serviceKey string, client *http.Client, logger *slog.Logger) *HTTPBucket {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPBucket{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		client:     client,
		logger:     logger,
	}
}

func (b *HTTPBucket) objectURL(bucket, path string) string {
	return b.baseURL + "/object/" + url.PathEscape(bucket) + "/" + escapePath(path)
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func (b *HTTPBucket) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.objectURL(bucket, path), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+b.serviceKey)
	req.Header.Set("Content-Type", contentType)
	// Upsert keeps re-uploads of the same path clean for retried files.
	req.Header.Set("x-upsert", "true")

	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Error("storage.upload.failed", "bucket", bucket, "path", path, "error", err)
		return fmt.Errorf("storage upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		b.logger.Error("storage.upload.rejected", "bucket", bucket, "path", path, "status", resp.StatusCode)
		return fmt.Errorf("storage upload status %d: %s", resp.StatusCode, string(body))
	}

	b.logger.Info("storage.upload.ok",
		"bucket", bucket,
		"path", path,
		"bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (b *HTTPBucket) SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	payload := fmt.Sprintf(`{"expiresIn":%d}`, int(ttl.Seconds()))
	signURL := b.baseURL + "/object/sign/" + url.PathEscape(bucket) + "/" + escapePath(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, signURL, strings.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+b.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Error("storage.sign.failed", "bucket", bucket, "path", path, "error", err)
		return "", fmt.Errorf("sign url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("sign url status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}
	// Response body: {"signedURL":"/object/sign/...?token=..."}
	const key = `"signedURL":"`
	idx := strings.Index(string(body), key)
	if idx < 0 {
		return "", fmt.Errorf("sign url response missing signedURL")
	}
	rest := string(body)[idx+len(key):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return "", fmt.Errorf("sign url response malformed")
	}
	return b.baseURL + rest[:end], nil
}

// FSBucket stores objects on the local filesystem. Used for development and
// tests; layout is root/bucket/path.
type FSBucket struct {
	root   string
	logger *slog.Logger
}

func NewFSBucket(root string, logger *slog.Logger) *FSBucket {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSBucket{root: root, logger: logger}
}

func (b *FSBucket) Upload(_ context.Context, bucket, path string, data []byte, _ string) error {
	full := filepath.Join(b.root, bucket, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	// WriteFile truncates, which gives the same upsert semantics as the
	// remote store.
	if err := os.WriteFile(full, data, 0o644); err != nil {
		b.logger.Error("storage.fs.write_failed", "path", full, "error", err)
		return err
	}
	return nil
}

func (b *FSBucket) SignedURL(_ context.Context, bucket, path string, _ time.Duration) (string, error) {
	full := filepath.Join(b.root, bucket, filepath.FromSlash(path))
	return "file://" + full, nil
}
