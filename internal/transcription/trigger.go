package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Request is the hand-off to the external transcription subsystem. That
// subsystem eventually writes the transcript onto the call record, runs
// analysis, and advances the import file to a terminal status; this repo only
// fires the trigger and polls for the outcome.
type Request struct {
	StoragePath   string    `json:"storage_path"`
	SignedURL     string    `json:"signed_url"`
	ProviderName  string    `json:"provider_name"`
	FileExtension string    `json:"file_extension"`
	SpeakerLabels bool      `json:"speaker_labels"`
	CallRecordID  uuid.UUID `json:"call_record_id"`
	FileID        uuid.UUID `json:"file_id"`
}

// Trigger starts transcription for one uploaded file.
type Trigger interface {
	Trigger(ctx context.Context, req Request) error
}

// HTTPTrigger posts the request to the transcription service endpoint.
type HTTPTrigger struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPTrigger(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPTrigger {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPTrigger{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (t *HTTPTrigger) Trigger(ctx context.Context, req Request) error {
	start := time.Now()

	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal transcription request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/transcriptions", bytes.NewReader(b))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		t.logger.Error("transcription.trigger.failed", "call_record_id", req.CallRecordID, "error", err)
		return fmt.Errorf("trigger transcription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		t.logger.Error("transcription.trigger.rejected", "call_record_id", req.CallRecordID, "status", resp.StatusCode)
		return fmt.Errorf("transcription service status %d: %s", resp.StatusCode, string(body))
	}

	t.logger.Info("transcription.trigger.ok",
		"call_record_id", req.CallRecordID,
		"file_id", req.FileID,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
