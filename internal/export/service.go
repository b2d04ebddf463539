package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/ks2178o2/callharbor/internal/common"
	"github.com/ks2178o2/callharbor/internal/entity"
	"github.com/ks2178o2/callharbor/internal/repository"
)

// Service is a tiny façade over repositories that produces XLSX bytes for a
// job's call-analysis report.
type Service struct {
	jobs       repository.ImportJobRepository
	files      repository.ImportFileRepository
	calls      repository.CallRecordRepository
	objections repository.ObjectionRepository
	logger     *slog.Logger
}

func NewService(jobs repository.ImportJobRepository, files repository.ImportFileRepository, calls repository.CallRecordRepository, objections repository.ObjectionRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, files: files, calls: calls, objections: objections, logger: logger}
}

// ExportJobXLSX returns an XLSX workbook with one row per imported file,
// joined with its call record's categorization and objection count. Child
// rows are fetched in one batch per table.
func (s *Service) ExportJobXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error) {
	start := time.Now()

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}
	files, err := s.files.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}

	callIDs := make([]uuid.UUID, 0, len(files))
	for _, imp := range files {
		if imp.CallRecordID != nil {
			callIDs = append(callIDs, *imp.CallRecordID)
		}
	}
	callsByID := make(map[uuid.UUID]*entity.CallRecord, len(callIDs))
	objectionCount := make(map[uuid.UUID]int)
	if len(callIDs) > 0 {
		calls, err := s.calls.ListByIDs(ctx, callIDs)
		if err != nil {
			return nil, fmt.Errorf("query call records: %w", err)
		}
		for _, c := range calls {
			callsByID[c.ID] = c
		}
		objections, err := s.objections.ListByCalls(ctx, callIDs)
		if err != nil {
			return nil, fmt.Errorf("query objections: %w", err)
		}
		for _, o := range objections {
			objectionCount[o.CallRecordID]++
		}
	}

	f := excelize.NewFile()
	const sheet = "Calls"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"File Name",
		"File Status",
		"Call Category",
		"Call Type",
		"Confidence",
		"Analysis Source",
		"Objections",
		"Notes",
		"Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, imp := range files {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, imp.FileName)
		write(2, string(imp.Status))

		if imp.CallRecordID != nil {
			if c, ok := callsByID[*imp.CallRecordID]; ok {
				if c.CallCategory != nil {
					write(3, string(*c.CallCategory))
				}
				if c.CallType != nil {
					write(4, string(*c.CallType))
				}
				if c.CategorizationConfidence != nil {
					write(5, fmt.Sprintf("%.2f", *c.CategorizationConfidence))
				}
				if c.CategorizationSource != nil {
					write(6, string(*c.CategorizationSource))
				}
				write(7, objectionCount[c.ID])
				if c.CategorizationNotes != nil {
					write(8, common.Truncate(*c.CategorizationNotes, 140))
				}
			}
		}
		if imp.ErrorMessage != nil {
			write(9, common.Truncate(*imp.ErrorMessage, 140))
		}

		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 36) // file name
	_ = f.SetColWidth(sheet, "B", "B", 14) // status
	_ = f.SetColWidth(sheet, "C", "D", 24) // category, type
	_ = f.SetColWidth(sheet, "E", "G", 12) // confidence, source, objections
	_ = f.SetColWidth(sheet, "H", "I", 48) // notes, error

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"job_id", job.ID.String(),
		"rows", len(files),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
