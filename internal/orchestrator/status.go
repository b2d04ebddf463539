package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/ks2178o2/callharbor/internal/entity"
)

// FileDetail pairs an import file with its resolved call record and analysis
// children.
type FileDetail struct {
	File            *entity.ImportFile               `json:"file"`
	CallRecord      *entity.CallRecord               `json:"call_record,omitempty"`
	Objections      []*entity.Objection              `json:"objections,omitempty"`
	OvercomeDetails []*entity.ObjectionOvercomeDetail `json:"overcome_details,omitempty"`
}

// JobStatus is the exposed view of a job: the record itself, a progress
// percentage (0 when no files are known yet), and optional per-file detail.
type JobStatus struct {
	Job             *entity.ImportJob `json:"job"`
	ProgressPercent float64           `json:"progress_percent"`
	Files           []FileDetail      `json:"files,omitempty"`
}

// JobStatus resolves the job view. With includeFiles, child rows are fetched
// in one batch per table over the collected call ids, never one query per
// file.
func (o *Orchestrator) JobStatus(ctx context.Context, jobID uuid.UUID, includeFiles bool) (*JobStatus, error) {
	job, err := o.deps.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	out := &JobStatus{Job: job, ProgressPercent: job.Progress()}
	if !includeFiles {
		return out, nil
	}

	files, err := o.deps.Files.ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	callIDs := make([]uuid.UUID, 0, len(files))
	for _, f := range files {
		if f.CallRecordID != nil {
			callIDs = append(callIDs, *f.CallRecordID)
		}
	}

	callsByID := make(map[uuid.UUID]*entity.CallRecord, len(callIDs))
	objectionsByCall := make(map[uuid.UUID][]*entity.Objection)
	overcomeByCall := make(map[uuid.UUID][]*entity.ObjectionOvercomeDetail)
	if len(callIDs) > 0 {
		calls, err := o.deps.Calls.ListByIDs(ctx, callIDs)
		if err != nil {
			return nil, err
		}
		for _, c := range calls {
			callsByID[c.ID] = c
		}
		objections, err := o.deps.Objections.ListByCalls(ctx, callIDs)
		if err != nil {
			return nil, err
		}
		for _, obj := range objections {
			objectionsByCall[obj.CallRecordID] = append(objectionsByCall[obj.CallRecordID], obj)
		}
		overcomes, err := o.deps.Overcomes.ListByCalls(ctx, callIDs)
		if err != nil {
			return nil, err
		}
		for _, d := range overcomes {
			overcomeByCall[d.CallRecordID] = append(overcomeByCall[d.CallRecordID], d)
		}
	}

	out.Files = make([]FileDetail, 0, len(files))
	for _, f := range files {
		detail := FileDetail{File: f}
		if f.CallRecordID != nil {
			detail.CallRecord = callsByID[*f.CallRecordID]
			detail.Objections = objectionsByCall[*f.CallRecordID]
			detail.OvercomeDetails = overcomeByCall[*f.CallRecordID]
		}
		out.Files = append(out.Files, detail)
	}
	return out, nil
}
