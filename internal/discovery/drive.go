package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ks2178o2/callharbor/constants"
)

// Drive file ids are exactly 33 characters of [A-Za-z0-9_-]. The folder page
// does not expose a documented listing API for anonymous shares, so ids are
// recovered from the raw HTML and embedded script bodies with several
// overlapping heuristics. The patterns live here as package vars because they
// track undocumented markup and need tuning when Drive changes its pages.
var (
	reDriveFilePath = regexp.MustCompile(`/file/d/([A-Za-z0-9_-]{33})`)
	reDriveDataID   = regexp.MustCompile(`data-id="([A-Za-z0-9_-]{33})"`)
	reDriveJSONID   = regexp.MustCompile(`"id"\s*:\s*"([A-Za-z0-9_-]{33})"`)
	reDriveBareID   = regexp.MustCompile(`[A-Za-z0-9_-]{33}`)
	reDriveFilename = regexp.MustCompile(`"([^"\\/]{1,120}?\.(?i:wav|mp3|m4a|webm|ogg))"`)
	reDriveFolderID = regexp.MustCompile(`/folders/([A-Za-z0-9_-]+)`)
	reDrivePageTitle = regexp.MustCompile(`<title>([^<]+)</title>`)
)

const (
	// driveProbeCap bounds how many candidate ids get an existence probe.
	// Candidates past the cap are included without one.
	driveProbeCap = 20
	// driveProbeConcurrency bounds in-flight probes.
	driveProbeConcurrency = 4
	// driveNameWindow is how far around a filename match we scan for an id.
	driveNameWindow = 600
)

func isDriveFolderURL(u *url.URL) bool {
	return strings.Contains(u.Host, "drive.google") && strings.Contains(u.Path, "/folders/")
}

func driveDownloadURL(id string) string {
	return "https://drive.google.com/uc?export=download&id=" + id
}

type driveScraper struct {
	client       *http.Client
	logger       *slog.Logger
	probeTimeout time.Duration
}

func newDriveScraper(client *http.Client, logger *slog.Logger, probeTimeout time.Duration) *driveScraper {
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &driveScraper{client: client, logger: logger, probeTimeout: probeTimeout}
}

func (d *driveScraper) Discover(ctx context.Context, folderURL *url.URL) ([]FileDescriptor, error) {
	page, err := d.fetchFolderPage(ctx, folderURL)
	if err != nil {
		return nil, err
	}

	folderID := ""
	if m := reDriveFolderID.FindStringSubmatch(folderURL.Path); len(m) == 2 {
		folderID = m[1]
	}

	candidates := extractDriveCandidates(page, folderID)
	d.logger.Info("discovery.drive.candidates", "folder_id", folderID, "count", len(candidates))
	if len(candidates) == 0 {
		return nil, &NoFilesError{
			SourceURL: folderURL.String(),
			Hint: "the folder page exposed no file ids; make sure the folder is shared as " +
				"\"anyone with the link can view\" and contains audio files",
		}
	}

	names := extractDriveFilenames(page, candidates)
	pageTitle := driveFolderTitle(page)

	surviving, probedNames := d.probeCandidates(ctx, candidates)

	var out []FileDescriptor
	for _, id := range surviving {
		name := names[id]
		if name == "" {
			name = probedNames[id]
		}
		if name == "" && pageTitle != "" && len(surviving) == 1 {
			// A single-file folder sometimes carries the file name in the title.
			name = pageTitle
		}
		if name == "" {
			name = "file_" + id + ".wav"
		}
		out = append(out, FileDescriptor{Name: name, URL: driveDownloadURL(id), ProviderID: id})
	}

	// The host is the specialized folder provider: the true extension is
	// unknown until download, so nothing is filtered out by extension here.
	out = filterAudioLike(out, true)

	if len(out) == 0 {
		return nil, &NoFilesError{
			SourceURL: folderURL.String(),
			Hint:      "all discovered ids were rejected; the folder may contain no audio or lack link sharing",
		}
	}
	return out, nil
}

func (d *driveScraper) fetchFolderPage(ctx context.Context, folderURL *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, folderURL.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch folder page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("folder page returned status %d (is the folder link-shared?)", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDiscoveryBody))
	if err != nil {
		return "", fmt.Errorf("read folder page: %w", err)
	}
	return string(body), nil
}

// extractDriveCandidates applies the overlapping id heuristics in order of
// decreasing precision and returns unique ids in first-occurrence order.
func extractDriveCandidates(page, folderID string) []string {
	seen := make(map[string]struct{})
	var ordered []string
	add := func(id string) {
		if !plausibleDriveID(id, folderID) {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}

	for _, re := range []*regexp.Regexp{reDriveFilePath, reDriveDataID, reDriveJSONID} {
		for _, m := range re.FindAllStringSubmatch(page, -1) {
			add(m[1])
		}
	}

	// Proximity pass: ids appearing near a quoted filename are strong signals
	// even when none of the structured patterns matched.
	for _, loc := range reDriveFilename.FindAllStringIndex(page, -1) {
		lo := max(0, loc[0]-driveNameWindow)
		hi := min(len(page), loc[1]+driveNameWindow)
		for _, id := range reDriveBareID.FindAllString(page[lo:hi], -1) {
			add(id)
		}
	}

	// Catch-all: any bare 33-character token. Highest false-positive rate, so
	// it runs last and leans on plausibleDriveID to discard junk.
	for _, id := range reDriveBareID.FindAllString(page, -1) {
		add(id)
	}

	return ordered
}

// plausibleDriveID rejects token shapes that match the id alphabet but are
// known non-files: the folder's own id, API keys, and OAuth access tokens.
func plausibleDriveID(id, folderID string) bool {
	if len(id) != 33 {
		return false
	}
	if id == folderID {
		return false
	}
	if strings.HasPrefix(id, "AIza") || strings.HasPrefix(id, "ya29") {
		return false
	}
	// Real file ids mix character classes; a token that is a single run of one
	// class is markup noise.
	hasUpper := strings.IndexFunc(id, func(r rune) bool { return r >= 'A' && r <= 'Z' }) >= 0
	hasLower := strings.IndexFunc(id, func(r rune) bool { return r >= 'a' && r <= 'z' }) >= 0
	hasDigit := strings.IndexFunc(id, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
	classes := 0
	for _, b := range []bool{hasUpper, hasLower, hasDigit} {
		if b {
			classes++
		}
	}
	return classes >= 2
}

// extractDriveFilenames maps candidate ids to human-readable names by scanning
// a fixed window around every filename-looking quoted string for an id.
func extractDriveFilenames(page string, candidates []string) map[string]string {
	inCandidates := make(map[string]struct{}, len(candidates))
	for _, id := range candidates {
		inCandidates[id] = struct{}{}
	}

	names := make(map[string]string)
	for _, loc := range reDriveFilename.FindAllStringSubmatchIndex(page, -1) {
		name := page[loc[2]:loc[3]]
		lo := max(0, loc[0]-driveNameWindow)
		hi := min(len(page), loc[1]+driveNameWindow)
		for _, id := range reDriveBareID.FindAllString(page[lo:hi], -1) {
			if _, ok := inCandidates[id]; !ok {
				continue
			}
			if _, taken := names[id]; !taken {
				names[id] = name
			}
		}
	}
	return names
}

func driveFolderTitle(page string) string {
	m := reDrivePageTitle.FindStringSubmatch(page)
	if len(m) != 2 {
		return ""
	}
	title := strings.TrimSpace(m[1])
	title = strings.TrimSuffix(title, " - Google Drive")
	return title
}

// probeCandidates issues a lightweight existence probe per candidate, capped
// at driveProbeCap. A candidate is excluded only on a definite 404: probe
// network or permission failures include the candidate anyway, because false
// negatives are worse than false positives here (spurious entries can be
// discarded manually downstream; silently dropped real files cannot).
// It also captures any filename the probe response exposes.
func (d *driveScraper) probeCandidates(ctx context.Context, candidates []string) ([]string, map[string]string) {
	probeCount := min(len(candidates), driveProbeCap)

	keep := make([]bool, len(candidates))
	for i := range keep {
		keep[i] = true
	}
	probedNames := make(map[string]string)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(driveProbeConcurrency)
	for i := 0; i < probeCount; i++ {
		g.Go(func() error {
			exists, name := d.probeOne(gctx, candidates[i])
			mu.Lock()
			defer mu.Unlock()
			keep[i] = exists
			if name != "" {
				probedNames[candidates[i]] = name
			}
			return nil
		})
	}
	_ = g.Wait()

	var surviving []string
	for i, id := range candidates {
		if keep[i] {
			surviving = append(surviving, id)
		}
	}
	d.logger.Info("discovery.drive.probed",
		"candidates", len(candidates),
		"probed", probeCount,
		"surviving", len(surviving),
	)
	return surviving, probedNames
}

func (d *driveScraper) probeOne(ctx context.Context, id string) (exists bool, name string) {
	ctx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, driveDownloadURL(id), nil)
	if err != nil {
		return true, ""
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		// Network failure: probably valid, include anyway.
		d.logger.Debug("discovery.drive.probe_error", "id", id, "error", err)
		return true, ""
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, ""
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			name = params["filename"]
		}
	}
	return true, name
}

// filterAudioLike keeps descriptors whose name or URL carries an allowed audio
// extension. When the source is the specialized folder provider the filter is
// waived, since the real extension is unknown until download.
func filterAudioLike(files []FileDescriptor, specializedProvider bool) []FileDescriptor {
	if specializedProvider {
		return files
	}
	var out []FileDescriptor
	for _, f := range files {
		if hasAudioExt(f.Name) || hasAudioExt(f.URL) {
			out = append(out, f)
		}
	}
	return out
}

func hasAudioExt(s string) bool {
	dot := strings.LastIndexByte(s, '.')
	if dot < 0 {
		return false
	}
	return constants.IsAllowedExt(s[dot:])
}
