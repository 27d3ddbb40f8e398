package vschallan

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/invento-software-limited/Smart-Vat-Challan/config"
	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/utils"
)

const (
	autoSyncLockKey = "vschallan:auto-sync"
	autoSyncLockTTL = 30 * time.Minute
)

// ShouldRun decides whether a scheduled pass is due. Daily and After Submit
// always run; the others wait for their interval in calendar days since the
// last run.
func ShouldRun(schedule models.SyncSchedule, lastSync *time.Time, now time.Time) bool {
	interval := schedule.IntervalDays()
	if interval == 0 || lastSync == nil {
		return true
	}
	return utils.DaysBetween(*lastSync, now) >= interval
}

type AutoSyncReport struct {
	Ran                bool   `json:"ran"`
	Skipped            string `json:"skipped,omitempty"`
	RunID              uint   `json:"run_id,omitempty"`
	ReturnsProcessed   int    `json:"returns_processed"`
	ReturnErrors       int    `json:"return_errors"`
	InvoicesDispatched int    `json:"invoices_dispatched"`
	DispatchErrors     int    `json:"dispatch_errors"`
}

// AutoSync is the scheduled entry point. It attaches new returns to their
// invoices, dispatches every Pending or Failed invoice and records the run.
// Only one worker runs it at a time.
func (s *Service) AutoSync(ctx context.Context) (AutoSyncReport, error) {
	const op = "AutoSync"
	report := AutoSyncReport{}

	release, err := s.locker.Obtain(ctx, autoSyncLockKey, autoSyncLockTTL)
	if errors.Is(err, ErrLockHeld) {
		report.Skipped = "locked"
		return report, nil
	}
	if err != nil {
		config.LogError(s.logger, moduleName, op, "obtain lock", autoSyncLockKey, err)
		return report, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			config.LogError(s.logger, moduleName, op, "release lock", autoSyncLockKey, err)
		}
	}()

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return report, err
	}
	now := s.now()
	if !ShouldRun(cfg.SyncSchedule, cfg.LastSyncDate, now) {
		report.Skipped = "not due"
		return report, nil
	}

	triggeredBy, ok := utils.GetTriggeredByFromContext(ctx)
	if !ok || triggeredBy == "" {
		triggeredBy = models.SyncTriggeredSystem
	}
	started := now
	run, err := s.repo.CreateSyncRun(ctx, models.SyncRun{
		Status:      models.SyncRunStatusRunning,
		TriggeredBy: triggeredBy,
		Schedule:    cfg.SyncSchedule,
		StartedAt:   &started,
	})
	if err != nil {
		config.LogError(s.logger, moduleName, op, "create sync run", nil, err)
		return report, err
	}
	report.Ran = true
	report.RunID = run.ID

	returns, err := s.repo.ListUnlinkedReturnTransactions(ctx, cfg.LastSyncDate)
	if err != nil {
		config.LogError(s.logger, moduleName, op, "list return transactions", run.ID, err)
		s.recordSyncError(ctx, run.ID, models.SyncEntityReturnTransaction, "", err)
		report.ReturnErrors++
	}
	for _, txn := range returns {
		if err := s.ReturnVatInvoice(ctx, txn); err != nil {
			s.recordSyncError(ctx, run.ID, models.SyncEntityReturnTransaction, txn.Name, err)
			report.ReturnErrors++
			continue
		}
		report.ReturnsProcessed++
	}

	invoices, err := s.repo.ListVatInvoicesByStatus(ctx, models.VatInvoiceStatusPending, models.VatInvoiceStatusFailed)
	if err != nil {
		config.LogError(s.logger, moduleName, op, "list outstanding invoices", run.ID, err)
		s.recordSyncError(ctx, run.ID, models.SyncEntityVatInvoice, "", err)
		report.DispatchErrors++
	}
	correlationID, _ := utils.GetCorrelationIdFromContext(ctx)
	for _, invoice := range invoices {
		job := SyncJob{ID: uuid.NewString(), InvoiceNumber: invoice.InvoiceNumber, CorrelationID: correlationID}
		if err := s.dispatcher.Dispatch(ctx, job); err != nil {
			s.recordSyncError(ctx, run.ID, models.SyncEntityVatInvoice, invoice.InvoiceNumber, err)
			report.DispatchErrors++
			continue
		}
		report.InvoicesDispatched++
	}

	if err := s.repo.UpdateLastSyncDate(ctx, utils.StartOfDay(now)); err != nil {
		config.LogError(s.logger, moduleName, op, "update last sync date", run.ID, err)
	}

	finished := s.now()
	run.FinishedAt = &finished
	run.DurationMs = finished.Sub(started).Milliseconds()
	run.ReturnsQueued = report.ReturnsProcessed
	run.InvoicesQueued = report.InvoicesDispatched
	run.ErrorCount = report.ReturnErrors + report.DispatchErrors
	switch {
	case run.ErrorCount == 0:
		run.Status = models.SyncRunStatusSuccess
	case report.ReturnsProcessed+report.InvoicesDispatched > 0:
		run.Status = models.SyncRunStatusPartial
	default:
		run.Status = models.SyncRunStatusFailed
	}
	if _, err := s.repo.SaveSyncRun(ctx, *run); err != nil {
		config.LogError(s.logger, moduleName, op, "finish sync run", run.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"module":              moduleName,
		"func":                op,
		"run_id":              run.ID,
		"status":              run.Status,
		"triggered_by":        triggeredBy,
		"returns_processed":   report.ReturnsProcessed,
		"invoices_dispatched": report.InvoicesDispatched,
		"errors":              run.ErrorCount,
	}).Info("auto sync finished")
	return report, nil
}

func (s *Service) recordSyncError(ctx context.Context, runID uint, entityType, entityName string, err error) {
	code := "internal"
	retryable := true
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		code = e.Kind.Error()
		retryable = !errors.Is(err, ErrValidation)
	}
	if saveErr := s.repo.CreateSyncError(ctx, models.SyncError{
		SyncRunId:  runID,
		EntityType: entityType,
		EntityName: entityName,
		ErrorCode:  code,
		Message:    err.Error(),
		Retryable:  retryable,
	}); saveErr != nil {
		config.LogError(s.logger, moduleName, "AutoSync", "record sync error", entityName, saveErr)
	}
}
