package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/ks2178o2/callharbor/constants"
)

// Downloader pulls remote audio bytes with a hard payload ceiling. The HTTP
// client is shared across files within a job; the orchestrator owns its
// lifecycle.
type Downloader struct {
	client *http.Client
	logger *slog.Logger
}

func NewDownloader(client *http.Client, logger *slog.Logger) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{client: client, logger: logger}
}

// DownloadResult carries the payload plus any name the server volunteered.
type DownloadResult struct {
	Data        []byte
	ContentType string
	// ServerFilename is taken from Content-Disposition when present.
	ServerFilename string
}

// Download fetches url, aborting early when the payload exceeds
// constants.MaxDownloadBytes. The body is never buffered unbounded: a
// declared oversized Content-Length fails before reading, and an undeclared
// one fails as soon as the cap is crossed.
func (d *Downloader) Download(ctx context.Context, url string) (*DownloadResult, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error("transfer.download.failed", "url", url, "error", err)
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}
	if resp.ContentLength > constants.MaxDownloadBytes {
		return nil, fmt.Errorf("file too large: %d bytes exceeds %d byte limit", resp.ContentLength, constants.MaxDownloadBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxDownloadBytes+1))
	if err != nil {
		d.logger.Error("transfer.download.read_failed", "url", url, "error", err)
		return nil, fmt.Errorf("read download: %w", err)
	}
	if len(data) > constants.MaxDownloadBytes {
		return nil, fmt.Errorf("file too large: payload exceeds %d byte limit", constants.MaxDownloadBytes)
	}

	var serverName string
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			serverName = params["filename"]
		}
	}

	d.logger.Info("transfer.download.ok",
		"url", url,
		"bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &DownloadResult{
		Data:           data,
		ContentType:    resp.Header.Get("Content-Type"),
		ServerFilename: serverName,
	}, nil
}
