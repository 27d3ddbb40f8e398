package vschallan

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/invento-software-limited/Smart-Vat-Challan/utils"
)

// SyncJob asks a worker to run one invoice sync.
type SyncJob struct {
	ID            string `json:"id"`
	InvoiceNumber string `json:"invoice_number"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Dispatcher hands sync jobs to whatever runs them.
type Dispatcher interface {
	Dispatch(ctx context.Context, job SyncJob) error
}

// InlineDispatcher runs every job before Dispatch returns.
type InlineDispatcher struct {
	handle func(context.Context, SyncJob) SyncResult
}

func NewInlineDispatcher(handle func(context.Context, SyncJob) SyncResult) *InlineDispatcher {
	return &InlineDispatcher{handle: handle}
}

// Dispatch runs the job. A failed sync is already recorded on the invoice, so
// only a missing handler is an error.
func (d *InlineDispatcher) Dispatch(ctx context.Context, job SyncJob) error {
	if d == nil || d.handle == nil {
		return errors.New("inline dispatcher has no handler")
	}
	d.handle(ctx, job)
	return nil
}

// HandleSyncJob is the worker side of a dispatched job.
func (s *Service) HandleSyncJob(ctx context.Context, job SyncJob) SyncResult {
	const op = "HandleSyncJob"
	if job.CorrelationID != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, job.CorrelationID)
	}
	result := s.SyncVatInvoice(ctx, job.InvoiceNumber)
	s.logger.WithFields(logrus.Fields{
		"module":         moduleName,
		"func":           op,
		"job_id":         job.ID,
		"invoice_number": job.InvoiceNumber,
		"status":         result.Status,
		"ok":             result.OK(),
	}).Info("sync job handled")
	return result
}
