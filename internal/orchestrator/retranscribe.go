package orchestrator

import (
	"context"
	"path"

	"github.com/google/uuid"

	"github.com/ks2178o2/callharbor/constants"
	"github.com/ks2178o2/callharbor/internal/common"
)

// Retranscribe replays transcription for a single uploaded file: prior
// analysis rows are dropped, the call record is reset to the processing
// placeholder, and a fresh trigger is fired with a new signed URL.
func (o *Orchestrator) Retranscribe(ctx context.Context, fileID uuid.UUID) error {
	log := o.logger.With("file_id", fileID, "req_id", uuid.New().String())

	f, err := o.deps.Files.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if f.CallRecordID == nil || f.StoragePath == nil {
		return common.NewAppError("NOT_RETRANSCRIBABLE", "file has not been uploaded and linked to a call record", common.ErrInvalidInput)
	}
	job, err := o.deps.Jobs.GetByID(ctx, f.JobID)
	if err != nil {
		return err
	}
	callID := *f.CallRecordID

	// Overcome details reference objections, so they go first.
	if err := o.deps.Overcomes.DeleteForCall(ctx, callID); err != nil {
		return err
	}
	if err := o.deps.Objections.DeleteForCall(ctx, callID); err != nil {
		return err
	}
	if err := o.deps.Calls.ResetForRetranscription(ctx, callID); err != nil {
		return err
	}
	if err := o.deps.Files.SetStatus(ctx, fileID, constants.FileStatusTranscribing); err != nil {
		return err
	}

	signed, err := o.deps.Bucket.SignedURL(ctx, job.BucketName, *f.StoragePath, o.cfg.SignedURLTTL)
	if err != nil {
		return err
	}

	ext := ""
	if f.FileFormat != nil {
		ext = *f.FileFormat
	} else {
		ext = constants.NormalizeExt(path.Ext(f.FileName))
	}
	o.fireTrigger(*f.StoragePath, signed, ext, callID, fileID, log)

	log.Info("orchestrator.retranscribe.started", "call_record_id", callID)
	return nil
}
