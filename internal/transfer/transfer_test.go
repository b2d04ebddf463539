package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ks2178o2/callharbor/constants"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDownloadCapturesPayloadAndServerFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Content-Disposition", `attachment; filename="renamed.wav"`)
		w.Write([]byte("RIFF fake audio"))
	}))
	defer srv.Close()

	d := NewDownloader(srv.Client(), testLogger())
	res, err := d.Download(context.Background(), srv.URL+"/a.wav")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(res.Data) != "RIFF fake audio" {
		t.Errorf("data = %q", res.Data)
	}
	if res.ContentType != "audio/wav" {
		t.Errorf("content type = %q", res.ContentType)
	}
	if res.ServerFilename != "renamed.wav" {
		t.Errorf("server filename = %q", res.ServerFilename)
	}
}

func TestDownloadRejectsDeclaredOversizedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(int64(constants.MaxDownloadBytes)+1))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDownloader(srv.Client(), testLogger())
	_, err := d.Download(context.Background(), srv.URL+"/huge.wav")
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("err = %v, want a size rejection before reading the body", err)
	}
}

func TestDownloadRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	d := NewDownloader(srv.Client(), testLogger())
	_, err := d.Download(context.Background(), srv.URL+"/a.wav")
	if err == nil || !strings.Contains(err.Error(), "status 410") {
		t.Fatalf("err = %v", err)
	}
}

func TestEnsureCompatible(t *testing.T) {
	data := []byte("payload")

	got, ext, err := EnsureCompatible(data, "call.WAV")
	if err != nil {
		t.Fatalf("EnsureCompatible: %v", err)
	}
	if ext != "wav" {
		t.Errorf("ext = %q, want normalized wav", ext)
	}
	if string(got) != "payload" {
		t.Errorf("data altered: %q", got)
	}

	if _, _, err := EnsureCompatible(data, "call"); err == nil {
		t.Error("missing extension accepted")
	}
	if _, _, err := EnsureCompatible(data, "call.flac"); err == nil {
		t.Error("unsupported extension accepted")
	}
	if _, _, err := EnsureCompatible(nil, "call.mp3"); err == nil {
		t.Error("empty payload accepted")
	}
}

func TestFSBucketUploadIsUpsert(t *testing.T) {
	root := t.TempDir()
	b := NewFSBucket(root, testLogger())

	if err := b.Upload(context.Background(), "calls", "user/job/a.wav", []byte("v1"), "audio/wav"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := b.Upload(context.Background(), "calls", "user/job/a.wav", []byte("v2"), "audio/wav"); err != nil {
		t.Fatalf("re-Upload: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "calls", "user", "job", "a.wav"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("content = %q, want the second write", got)
	}

	u, err := b.SignedURL(context.Background(), "calls", "user/job/a.wav", time.Hour)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	if !strings.HasPrefix(u, "file://") {
		t.Errorf("url = %q", u)
	}
}

func TestHTTPBucketUpload(t *testing.T) {
	var gotPath, gotAuth, gotUpsert, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotUpsert = r.Header.Get("x-upsert")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := NewHTTPBucket(srv.URL, "service-key", srv.Client(), testLogger())
	err := b.Upload(context.Background(), "calls", "user/job/a b.wav", []byte("bytes"), "audio/wav")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if gotPath != "/object/calls/user/job/a%20b.wav" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer service-key" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotUpsert != "true" {
		t.Errorf("x-upsert = %q", gotUpsert)
	}
	if gotBody != "bytes" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestHTTPBucketUploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bucket missing"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	b := NewHTTPBucket(srv.URL, "k", srv.Client(), testLogger())
	err := b.Upload(context.Background(), "nope", "a.wav", []byte("x"), "audio/wav")
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("err = %v", err)
	}
}

func TestHTTPBucketSignedURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/object/sign/calls/") {
			t.Errorf("sign path = %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"expiresIn":3600`) {
			t.Errorf("payload = %s", body)
		}
		w.Write([]byte(`{"signedURL":"/object/sign/calls/a.wav?token=abc123"}`))
	}))
	defer srv.Close()

	b := NewHTTPBucket(srv.URL, "k", srv.Client(), testLogger())
	u, err := b.SignedURL(context.Background(), "calls", "a.wav", time.Hour)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	if u != srv.URL+"/object/sign/calls/a.wav?token=abc123" {
		t.Errorf("url = %q", u)
	}
}
