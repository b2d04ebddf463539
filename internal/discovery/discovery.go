package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ks2178o2/callharbor/constants"
)

// FileDescriptor is one candidate audio file found at a remote source.
type FileDescriptor struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	ProviderID string `json:"provider_id,omitempty"`
}

// Discoverer turns a source URL into candidate audio files. Given the same
// remote state, two runs must yield the same descriptor set so downstream
// dedup is safe on retry.
type Discoverer interface {
	Discover(ctx context.Context, sourceURL string) ([]FileDescriptor, error)
}

// NoFilesError is the terminal "nothing importable found" condition. It is not
// retryable; the job fails with this message.
type NoFilesError struct {
	SourceURL string
	Hint      string
}

func (e *NoFilesError) Error() string {
	return fmt.Sprintf("no importable audio files found at %s: %s", e.SourceURL, e.Hint)
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// maxDiscoveryBody caps how much of a listing page we read.
const maxDiscoveryBody = 8 << 20

// Service is the composite discoverer: it routes Drive-style folder URLs to
// the scraping strategy and everything else to the generic content-type
// branch.
type Service struct {
	client       *http.Client
	drive        *driveScraper
	logger       *slog.Logger
	fetchTimeout time.Duration
}

func NewService(client *http.Client, logger *slog.Logger, probeTimeout time.Duration) *Service {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		client:       client,
		logger:       logger,
		fetchTimeout: 60 * time.Second,
	}
	s.drive = newDriveScraper(client, logger, probeTimeout)
	return s
}

func (s *Service) Discover(ctx context.Context, sourceURL string) ([]FileDescriptor, error) {
	start := time.Now()
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("source url is not a valid http(s) url: %q", sourceURL)
	}

	var files []FileDescriptor
	if isDriveFolderURL(u) {
		files, err = s.drive.Discover(ctx, u)
	} else {
		files, err = s.discoverGeneric(ctx, u)
	}
	if err != nil {
		s.logger.Error("discovery.failed", "source_url", sourceURL, "elapsed_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, err
	}

	s.logger.Info("discovery.ok",
		"source_url", sourceURL,
		"files", len(files),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return files, nil
}

// discoverGeneric fetches the URL once and branches on the response
// Content-Type: direct audio, an HTML listing, or a JSON document.
func (s *Service) discoverGeneric(ctx context.Context, u *url.URL) ([]FileDescriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	ctype, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	s.logger.Debug("discovery.generic.fetched", "url", u.String(), "content_type", ctype)

	switch {
	case strings.HasPrefix(ctype, "audio/") || strings.HasPrefix(ctype, "video/"):
		return []FileDescriptor{{Name: fileNameFromURL(u), URL: u.String()}}, nil

	case ctype == "text/html" || strings.HasPrefix(ctype, "text/html"):
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxDiscoveryBody))
		if err != nil {
			return nil, fmt.Errorf("read listing: %w", err)
		}
		files := extractHTMLAudioLinks(u, body)
		if len(files) == 0 {
			return nil, &NoFilesError{SourceURL: u.String(), Hint: "the page has no links to supported audio files (.wav, .mp3, .m4a, .webm, .ogg)"}
		}
		return files, nil

	case ctype == "application/json" || strings.HasSuffix(ctype, "+json"):
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxDiscoveryBody))
		if err != nil {
			return nil, fmt.Errorf("read json: %w", err)
		}
		files := extractJSONAudioURLs(body)
		if len(files) == 0 {
			return nil, &NoFilesError{SourceURL: u.String(), Hint: "the JSON document contains no absolute URLs with a supported audio extension"}
		}
		return files, nil

	default:
		// Unknown content type: accept single file only if the URL path itself
		// carries an allowed extension.
		if constants.IsAllowedExt(path.Ext(u.Path)) {
			return []FileDescriptor{{Name: fileNameFromURL(u), URL: u.String()}}, nil
		}
		return nil, &NoFilesError{SourceURL: u.String(), Hint: fmt.Sprintf("unsupported content type %q and the URL does not end in a supported audio extension", ctype)}
	}
}

func fileNameFromURL(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "audio"
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		return decoded
	}
	return name
}
