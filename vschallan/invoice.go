package vschallan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/invento-software-limited/Smart-Vat-Challan/config"
	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/store"
	"github.com/invento-software-limited/Smart-Vat-Challan/utils"
)

const (
	recordVatPath         = "/integration/record_vat"
	invoiceDetailsPath    = "/integration/get_vat_invoice_details"
	downloadSchallanPath  = "/integration/download_schallan"
	returnInvoiceRequest  = "/integration/return_invoice_request"
	badRequestRemoteError = "Bad request"
)

// SyncResult reports a background operation. Err is never propagated; the
// status transition is the visible effect.
type SyncResult struct {
	InvoiceNumber  string                  `json:"invoice_number"`
	Status         models.VatInvoiceStatus `json:"status"`
	VatInvoiceID   string                  `json:"vat_invoice_id,omitempty"`
	SChallanNumber string                  `json:"s_challan_number,omitempty"`
	Error          string                  `json:"error,omitempty"`
	Err            error                   `json:"-"`
}

func (r SyncResult) OK() bool {
	return r.Err == nil
}

func resultFor(invoice *models.VatInvoice, err error) SyncResult {
	r := SyncResult{
		InvoiceNumber:  invoice.InvoiceNumber,
		Status:         invoice.Status,
		VatInvoiceID:   invoice.VatInvoiceId,
		SChallanNumber: invoice.SChallanNumber,
		Err:            err,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func transition(invoice *models.VatInvoice, next models.VatInvoiceStatus) error {
	if !invoice.Status.CanTransitionTo(next) {
		return newError(ErrInvalidTransition, "transition", fmt.Sprintf("%s: %s -> %s", invoice.InvoiceNumber, invoice.Status, next), nil)
	}
	invoice.Status = next
	return nil
}

// failSync moves invoice to Failed where the state machine allows it, saves
// it and reports err.
func (s *Service) failSync(ctx context.Context, op string, invoice *models.VatInvoice, err error) SyncResult {
	config.LogError(s.logger, moduleName, op, "sync failed", invoice.InvoiceNumber, err)
	if invoice.Status.CanTransitionTo(models.VatInvoiceStatusFailed) {
		invoice.Status = models.VatInvoiceStatusFailed
	}
	if _, saveErr := s.repo.SaveVatInvoice(ctx, *invoice); saveErr != nil {
		config.LogError(s.logger, moduleName, op, "save failed invoice", invoice.InvoiceNumber, saveErr)
	}
	return resultFor(invoice, err)
}

// recoverSync turns a panic inside a background operation into a Failed
// status. It must be deferred directly.
func (s *Service) recoverSync(ctx context.Context, op, invoiceNumber string, result *SyncResult) {
	r := recover()
	if r == nil {
		return
	}
	err := fmt.Errorf("panic: %v", r)
	invoice, loadErr := s.repo.GetVatInvoice(ctx, invoiceNumber)
	if loadErr != nil {
		config.LogError(s.logger, moduleName, op, "recovered panic", invoiceNumber, err)
		*result = SyncResult{InvoiceNumber: invoiceNumber, Err: err, Error: err.Error()}
		return
	}
	*result = s.failSync(ctx, op, invoice, err)
}

// CreateInvoice builds the VAT invoice of a sale. A second call for the same
// transaction returns the stored invoice unchanged.
func (s *Service) CreateInvoice(ctx context.Context, txn models.PosTransaction) (*models.VatInvoice, error) {
	const op = "CreateInvoice"
	ctx = utils.SetInvoiceNumberInContext(ctx, txn.Name)

	if txn.Name == "" {
		return nil, newError(ErrValidation, op, "transaction name is required", nil)
	}
	existing, err := s.repo.GetVatInvoice(ctx, txn.Name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkServiceTypes(ctx, txn); err != nil {
		return nil, err
	}

	payload := buildInvoicePayload(txn)
	raw, err := utils.MarshalToJSON(payload)
	if err != nil {
		return nil, newError(ErrValidation, op, "encode payload", err)
	}

	invoice, err := s.repo.CreateVatInvoice(ctx, models.VatInvoice{
		InvoiceNumber:       txn.Name,
		InvoiceDate:         txn.PostedAt(),
		PosTransaction:      txn.Name,
		CustomerId:          txn.CustomerId,
		TxnAmount:           payload.TxnAmount,
		TotalAmount:         payload.TotalAmount,
		TotalVatAmount:      payload.TotalVatAmount,
		TotalDiscountAmount: payload.TotalDiscountAmount,
		TotalSdAmount:       payload.TotalSdAmount,
		TotalSdPercentage:   payload.TotalSdPercentage,
		TotalQty:            payload.TotalQty,
		PaymentMethod:       txn.PaymentMethod,
		RetailerId:          txn.RetailerId,
		RetailerBranchId:    txn.RetailerBranchId,
		Status:              models.VatInvoiceStatusPending,
		RequestedPayloads:   raw,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return s.repo.GetVatInvoice(ctx, txn.Name)
	}
	if err != nil {
		config.LogError(s.logger, moduleName, op, "create vat invoice", txn.Name, err)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"module":         moduleName,
		"func":           op,
		"invoice_number": invoice.InvoiceNumber,
		"total_amount":   invoice.TotalAmount.String(),
		"schedule":       cfg.SyncSchedule,
	}).Info("vat invoice created")

	if cfg.SyncSchedule == models.SyncScheduleAfterSubmit {
		s.SyncVatInvoice(ctx, invoice.InvoiceNumber)
		return s.repo.GetVatInvoice(ctx, invoice.InvoiceNumber)
	}
	return invoice, nil
}

// checkServiceTypes rejects a sale carrying a service type the retailer is
// not registered for.
func (s *Service) checkServiceTypes(ctx context.Context, txn models.PosTransaction) error {
	const op = "CreateInvoice"
	if len(txn.Details) == 0 {
		return newError(ErrValidation, op, "transaction has no items", nil)
	}
	retailer, err := s.repo.GetRetailerByRemoteID(ctx, txn.RetailerId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrValidation, op, fmt.Sprintf("retailer %q is not registered", txn.RetailerId), err)
		}
		return err
	}
	permitted := make(map[string]struct{}, len(retailer.ServiceTypes))
	for _, id := range retailer.ServiceTypeIds() {
		permitted[id] = struct{}{}
	}
	for _, item := range txn.Details {
		if _, ok := permitted[item.ServiceTypeRemoteId]; !ok {
			return newError(ErrValidation, op, fmt.Sprintf("item %q has service type %q not permitted for retailer %s", item.ItemName, item.ServiceTypeRemoteId, txn.RetailerId), nil)
		}
	}
	return nil
}

// SyncVatInvoice replays the stored request payload to the authority.
func (s *Service) SyncVatInvoice(ctx context.Context, invoiceNumber string) (result SyncResult) {
	const op = "SyncVatInvoice"
	ctx = utils.SetInvoiceNumberInContext(ctx, invoiceNumber)
	defer s.recoverSync(ctx, op, invoiceNumber, &result)

	invoice, err := s.repo.GetVatInvoice(ctx, invoiceNumber)
	if err != nil {
		config.LogError(s.logger, moduleName, op, "load vat invoice", invoiceNumber, err)
		return SyncResult{InvoiceNumber: invoiceNumber, Err: err, Error: err.Error()}
	}
	if err := transition(invoice, models.VatInvoiceStatusSyncing); err != nil {
		config.LogError(s.logger, moduleName, op, "start sync", invoiceNumber, err)
		return resultFor(invoice, err)
	}
	if invoice, err = s.repo.SaveVatInvoice(ctx, *invoice); err != nil {
		config.LogError(s.logger, moduleName, op, "save syncing status", invoiceNumber, err)
		return SyncResult{InvoiceNumber: invoiceNumber, Err: err, Error: err.Error()}
	}

	doc, err := s.Call(ctx, http.MethodPost, recordVatPath, json.RawMessage(invoice.RequestedPayloads), nil)
	if err != nil {
		return s.failSync(ctx, op, invoice, err)
	}
	invoice.Response = utils.MarshalOrEmpty(doc)

	switch {
	case doc.String("status_code") == "200":
		invoice.VatInvoiceId = doc.FindString("vat_invoice_id")
		invoice.SChallanNumber = doc.FindString("s_challan_number")
		invoice.Status = models.VatInvoiceStatusSynced
		if _, err := s.fetchDetails(ctx, invoice); err != nil {
			config.LogError(s.logger, moduleName, op, "fetch details", invoiceNumber, err)
		}
	case doc.String("success") == "0":
		// The authority answers success=0 for a record it already holds.
		details, err := s.fetchDetails(ctx, invoice)
		var vatInvoiceID, sChallan string
		if err == nil {
			vatInvoiceID = details.FindString("vat_invoice_id")
			sChallan = details.FindString("s_challan_number")
		}
		if vatInvoiceID == "" && sChallan == "" {
			if err == nil {
				err = newError(ErrUnexpectedResponse, op, "record_vat rejected: "+doc.firstString("error", "message"), nil)
			}
			if invoice.IsReturn && invoice.ReturnResponse == "" {
				// A pending return is still attempted; its outcome sets the status.
				config.LogError(s.logger, moduleName, op, "unconfirmed record, attempting return", invoiceNumber, err)
				return s.syncReturn(ctx, invoice)
			}
			return s.failSync(ctx, op, invoice, err)
		}
		invoice.VatInvoiceId = vatInvoiceID
		invoice.SChallanNumber = sChallan
		invoice.Status = models.VatInvoiceStatusSynced
	default:
		return s.failSync(ctx, op, invoice, newError(ErrUnexpectedResponse, op, "record_vat answer has neither status_code nor success", nil))
	}

	if invoice, err = s.repo.SaveVatInvoice(ctx, *invoice); err != nil {
		config.LogError(s.logger, moduleName, op, "save synced invoice", invoiceNumber, err)
		return SyncResult{InvoiceNumber: invoiceNumber, Err: err, Error: err.Error()}
	}
	s.logger.WithFields(logrus.Fields{
		"module":           moduleName,
		"func":             op,
		"invoice_number":   invoice.InvoiceNumber,
		"vat_invoice_id":   invoice.VatInvoiceId,
		"s_challan_number": invoice.SChallanNumber,
	}).Info("vat invoice synced")

	if invoice.IsReturn && invoice.ReturnResponse == "" {
		return s.syncReturn(ctx, invoice)
	}
	return resultFor(invoice, nil)
}

// fetchDetails stores the authority's view of invoice in GetResponse. The
// caller saves the invoice.
func (s *Service) fetchDetails(ctx context.Context, invoice *models.VatInvoice) (Document, error) {
	query := url.Values{}
	query.Set("invoice_number", invoice.InvoiceNumber)
	query.Set("s_challan_number", invoice.SChallanNumber)
	doc, err := s.Call(ctx, http.MethodGet, invoiceDetailsPath, nil, query)
	if err != nil {
		return nil, err
	}
	invoice.GetResponse = utils.MarshalOrEmpty(doc)
	return doc, nil
}

// GetVatInvoiceDetails refreshes the stored details. Invoices that were never
// synced get a sync pass instead, which fetches details itself.
func (s *Service) GetVatInvoiceDetails(ctx context.Context, invoiceNumber string) (result SyncResult) {
	const op = "GetVatInvoiceDetails"
	defer s.recoverSync(ctx, op, invoiceNumber, &result)

	invoice, err := s.repo.GetVatInvoice(ctx, invoiceNumber)
	if err != nil {
		config.LogError(s.logger, moduleName, op, "load vat invoice", invoiceNumber, err)
		return SyncResult{InvoiceNumber: invoiceNumber, Err: err, Error: err.Error()}
	}
	if invoice.Status.IsRetryable() {
		return s.SyncVatInvoice(ctx, invoiceNumber)
	}
	if _, err := s.fetchDetails(ctx, invoice); err != nil {
		config.LogError(s.logger, moduleName, op, "fetch details", invoiceNumber, err)
		return resultFor(invoice, err)
	}
	if invoice, err = s.repo.SaveVatInvoice(ctx, *invoice); err != nil {
		config.LogError(s.logger, moduleName, op, "save details", invoiceNumber, err)
		return SyncResult{InvoiceNumber: invoiceNumber, Err: err, Error: err.Error()}
	}
	return resultFor(invoice, nil)
}

// DownloadSchallan returns the URL of the rendered challan of a synced
// invoice.
func (s *Service) DownloadSchallan(ctx context.Context, invoiceNumber string) (string, error) {
	const op = "DownloadSchallan"
	invoice, err := s.repo.GetVatInvoice(ctx, invoiceNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", newError(ErrValidation, op, fmt.Sprintf("vat invoice %s not found", invoiceNumber), err)
		}
		return "", err
	}
	if invoice.VatInvoiceId == "" {
		err := newError(ErrDownload, op, fmt.Sprintf("vat invoice %s has no vat_invoice_id yet", invoiceNumber), nil)
		config.LogError(s.logger, moduleName, op, "download schallan", invoiceNumber, err)
		return "", err
	}

	doc, err := s.Call(ctx, http.MethodPost, downloadSchallanPath, map[string]string{"vat_invoice_id": invoice.VatInvoiceId}, nil)
	if err != nil {
		err = newError(ErrDownload, op, invoiceNumber, err)
		config.LogError(s.logger, moduleName, op, "download schallan", invoiceNumber, err)
		return "", err
	}
	downloadURL := doc.FindString("download_url")
	if doc.String("status_code") != "200" || downloadURL == "" {
		msg := doc.firstString("error", "message")
		if msg == "" {
			msg = "no download_url in response"
		}
		err := newError(ErrDownload, op, msg, nil)
		config.LogError(s.logger, moduleName, op, "download schallan", invoiceNumber, err)
		return "", err
	}
	return downloadURL, nil
}

// HandlePosTransaction is the hook for a submitted sale. Sales create an
// invoice, returns attach to the original one and, under After Submit, sync it
// right away.
func (s *Service) HandlePosTransaction(ctx context.Context, txn models.PosTransaction) (*models.VatInvoice, error) {
	const op = "HandlePosTransaction"
	if !txn.IsReturnTransaction() {
		return s.CreateInvoice(ctx, txn)
	}

	if err := s.ReturnVatInvoice(ctx, txn); err != nil {
		return nil, err
	}
	invoice, err := s.repo.GetVatInvoiceByReturnInvoiceNo(ctx, txn.Name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		config.LogError(s.logger, moduleName, op, "load returned invoice", txn.Name, err)
		return nil, err
	}

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.SyncSchedule == models.SyncScheduleAfterSubmit {
		s.SyncVatInvoice(ctx, invoice.InvoiceNumber)
		return s.repo.GetVatInvoice(ctx, invoice.InvoiceNumber)
	}
	return invoice, nil
}
