package outbox

import (
	"context"
	"fmt"
	"time"

	"shiftcheck/internal/mirror"
	"shiftcheck/internal/shared/clock"

	"go.uber.org/zap"
)

// ChecklistMarker lets the pipeline report the sync outcome back onto the
// checklist row without importing the session package.
type ChecklistMarker interface {
	MarkSynced(ctx context.Context, checklistID string, at time.Time) error
	MarkSyncFailed(ctx context.Context, checklistID string) error
	RevertSyncFailed(ctx context.Context, checklistID string, at time.Time) error
}

// Pipeline drives one submission through the four mirror steps. Progress is
// persisted after every step, so a crash at any point resumes from the last
// completed step instead of starting over.
type Pipeline struct {
	repo       Repository
	sheets     mirror.SheetsClient
	drive      mirror.DriveClient
	checklists ChecklistMarker
	clk        clock.Clock
	logger     *zap.Logger
}

func NewPipeline(
	repo Repository,
	sheets mirror.SheetsClient,
	drive mirror.DriveClient,
	checklists ChecklistMarker,
	clk clock.Clock,
	logger *zap.Logger,
) *Pipeline {
	l := zap.L()
	if logger != nil {
		l = logger
	}
	return &Pipeline{
		repo:       repo,
		sheets:     sheets,
		drive:      drive,
		checklists: checklists,
		clk:        clk,
		logger:     l.Named("outbox.pipeline"),
	}
}

// Process runs the incomplete steps of a submission in order, skipping any
// already recorded as done. A step failure stops the attempt; the next tick
// picks the submission up again after its backoff.
func (p *Pipeline) Process(ctx context.Context, sub *Submission) error {
	if sub.Status == StatusComplete || sub.Status == StatusFailed {
		return nil
	}

	// Step 1: append the summary row.
	if sub.Status == StatusPending {
		rowID, err := p.sheets.AppendRow(ctx, sub.ID, sub.Snapshot)
		if err != nil {
			return p.fail(ctx, sub, mirror.StepSheetsWrite, err)
		}
		sub.Status = StatusSheetsDone
		sub.SheetsRowID = rowID
		if err := p.persist(ctx, sub); err != nil {
			return err
		}
		p.logger.Info("sheets row appended",
			zap.String("submission_id", sub.ID),
			zap.String("row_id", rowID),
		)
	}

	// Step 2: render the document from the snapshot.
	if sub.PDFStatus == PDFPending || sub.PDFStatus == PDFFailed {
		data, err := mirror.RenderPDF(sub.Snapshot)
		if err != nil {
			return p.fail(ctx, sub, mirror.StepPDFGenerate, err)
		}
		sub.PDFStatus = PDFGenerated
		sub.PDFData = data
		if err := p.persist(ctx, sub); err != nil {
			return err
		}
	}

	// Step 3: upload the document.
	if sub.PDFStatus == PDFGenerated {
		name := fmt.Sprintf("checklist-%s-%s.pdf", sub.Snapshot.Date, sub.ID)
		fileID, fileURL, err := p.drive.Upload(ctx, name, sub.PDFData)
		if err != nil {
			return p.fail(ctx, sub, mirror.StepPDFUpload, err)
		}
		sub.PDFStatus = PDFUploaded
		sub.DriveFileID = fileID
		sub.DriveFileURL = fileURL
		sub.PDFData = nil // bytes live in the object store now
		if err := p.persist(ctx, sub); err != nil {
			return err
		}
		p.logger.Info("pdf uploaded",
			zap.String("submission_id", sub.ID),
			zap.String("file_id", fileID),
		)
	}

	// Step 4: patch the row with the document link.
	if sub.Status == StatusSheetsDone && sub.PDFStatus == PDFUploaded {
		if err := p.sheets.UpdateRowLink(ctx, sub.SheetsRowID, sub.DriveFileURL); err != nil {
			return p.fail(ctx, sub, mirror.StepSheetsUpdate, err)
		}
		now := p.clk.Now()
		sub.Status = StatusComplete
		sub.CompletedAt = &now
		sub.NextAttemptAt = nil
		if err := p.persist(ctx, sub); err != nil {
			return err
		}

		if err := p.checklists.MarkSynced(ctx, sub.ChecklistID, now); err != nil {
			p.logger.Error("mark checklist synced failed",
				zap.String("checklist_id", sub.ChecklistID),
				zap.Error(err),
			)
		}
		p.logger.Info("submission complete", zap.String("submission_id", sub.ID))
	}

	return nil
}

// fail records the step error and either schedules a retry or terminates
// the submission. The backoff uses the retry count at the time of the
// attempt: 1s after the first failure, 2s after the second, capped at 60s.
func (p *Pipeline) fail(ctx context.Context, sub *Submission, step mirror.Step, cause error) error {
	now := p.clk.Now()
	stepErr := mirror.AsStepError(step, cause)
	stepErr.Timestamp = now

	delay := Backoff(sub.RetryCount)
	sub.ErrorLog = append(sub.ErrorLog, *stepErr)
	sub.RetryCount++
	sub.LastAttemptAt = &now

	if step == mirror.StepPDFGenerate || step == mirror.StepPDFUpload {
		if !stepErr.Retryable {
			sub.PDFStatus = PDFFailed
		}
	}

	exhausted := sub.RetryCount >= sub.MaxRetries
	if !stepErr.Retryable || exhausted {
		sub.Status = StatusFailed
		sub.NextAttemptAt = nil
		if err := p.persist(ctx, sub); err != nil {
			return err
		}

		if err := p.checklists.MarkSyncFailed(ctx, sub.ChecklistID); err != nil {
			p.logger.Error("mark checklist sync_failed failed",
				zap.String("checklist_id", sub.ChecklistID),
				zap.Error(err),
			)
		}
		p.logger.Error("submission failed permanently",
			zap.String("submission_id", sub.ID),
			zap.String("step", string(step)),
			zap.Int("retry_count", sub.RetryCount),
			zap.Bool("retryable", stepErr.Retryable),
			zap.String("cause", stepErr.Message),
		)
		return stepErr
	}

	next := now.Add(delay)
	sub.NextAttemptAt = &next
	if err := p.persist(ctx, sub); err != nil {
		return err
	}

	p.logger.Warn("step failed, retry scheduled",
		zap.String("submission_id", sub.ID),
		zap.String("step", string(step)),
		zap.Int("retry_count", sub.RetryCount),
		zap.Duration("delay", delay),
		zap.String("cause", stepErr.Message),
	)
	return stepErr
}

func (p *Pipeline) persist(ctx context.Context, sub *Submission) error {
	if err := p.repo.Update(ctx, sub); err != nil {
		p.logger.Error("persist submission failed",
			zap.String("submission_id", sub.ID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
