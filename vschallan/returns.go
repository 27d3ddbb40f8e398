package vschallan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/invento-software-limited/Smart-Vat-Challan/config"
	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/store"
	"github.com/invento-software-limited/Smart-Vat-Challan/utils"
)

// ReturnVatInvoice links a return transaction to the invoice it returns
// against and stores the return payload. Nothing is sent here. A return whose
// original invoice is unknown is logged and skipped.
func (s *Service) ReturnVatInvoice(ctx context.Context, txn models.PosTransaction) error {
	const op = "ReturnVatInvoice"
	ctx = utils.SetInvoiceNumberInContext(ctx, txn.ReturnAgainst)

	invoice, err := s.repo.GetVatInvoice(ctx, txn.ReturnAgainst)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.WithFields(logrus.Fields{
			"module":         moduleName,
			"func":           op,
			"return_invoice": txn.Name,
			"return_against": txn.ReturnAgainst,
		}).Warn("no vat invoice for returned transaction, skipping")
		return nil
	}
	if err != nil {
		config.LogError(s.logger, moduleName, op, "load original invoice", txn.ReturnAgainst, err)
		return err
	}

	invoice.IsReturn = true
	invoice.ReturnInvoiceNo = txn.Name
	invoice.ReturnResponse = ""
	invoice.ReturnPayload = ""
	switch invoice.Status {
	case models.VatInvoiceStatusSynced, models.VatInvoiceStatusReturn, models.VatInvoiceStatusPartlyReturn:
		invoice.Status = models.VatInvoiceStatusPending
	}

	if invoice.GetResponse == "" && invoice.VatInvoiceId != "" {
		if _, err := s.fetchDetails(ctx, invoice); err != nil {
			config.LogError(s.logger, moduleName, op, "fetch details", invoice.InvoiceNumber, err)
		}
	}

	payload, buildErr := buildReturnPayload(*invoice, txn)
	if buildErr == nil {
		invoice.ReturnPayload = utils.MarshalOrEmpty(payload)
	}
	if _, err := s.repo.SaveVatInvoice(ctx, *invoice); err != nil {
		config.LogError(s.logger, moduleName, op, "save returned invoice", invoice.InvoiceNumber, err)
		return err
	}
	if buildErr != nil {
		err := newError(ErrValidation, op, txn.Name, buildErr)
		config.LogError(s.logger, moduleName, op, "build return payload", txn.Name, err)
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"module":         moduleName,
		"func":           op,
		"invoice_number": invoice.InvoiceNumber,
		"return_invoice": txn.Name,
		"returned_qty":   payload.TotalQty.String(),
	}).Info("return attached to vat invoice")
	return nil
}

// SyncReturnVatInvoice sends the stored return of a synced invoice.
func (s *Service) SyncReturnVatInvoice(ctx context.Context, invoiceNumber string) (result SyncResult) {
	const op = "SyncReturnVatInvoice"
	ctx = utils.SetInvoiceNumberInContext(ctx, invoiceNumber)
	defer s.recoverSync(ctx, op, invoiceNumber, &result)

	invoice, err := s.repo.GetVatInvoice(ctx, invoiceNumber)
	if err != nil {
		config.LogError(s.logger, moduleName, op, "load vat invoice", invoiceNumber, err)
		return SyncResult{InvoiceNumber: invoiceNumber, Err: err, Error: err.Error()}
	}
	if !invoice.IsReturn || invoice.ReturnInvoiceNo == "" {
		err := newError(ErrValidation, op, fmt.Sprintf("vat invoice %s has no pending return", invoiceNumber), nil)
		config.LogError(s.logger, moduleName, op, "sync return", invoiceNumber, err)
		return resultFor(invoice, err)
	}
	return s.syncReturn(ctx, invoice)
}

func (s *Service) syncReturn(ctx context.Context, invoice *models.VatInvoice) SyncResult {
	const op = "SyncReturnVatInvoice"

	payload, err := s.returnPayload(ctx, invoice)
	if err != nil {
		return s.failSync(ctx, op, invoice, err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return s.failSync(ctx, op, invoice, err)
	}
	invoice.ReturnPayload = string(raw)

	doc, err := s.Call(ctx, http.MethodPost, returnInvoiceRequest, json.RawMessage(raw), nil)
	if err != nil {
		return s.failSync(ctx, op, invoice, err)
	}
	invoice.ReturnResponse = utils.MarshalOrEmpty(doc)

	if doc.String("success") == "0" && doc.String("error") == badRequestRemoteError {
		return s.failSync(ctx, op, invoice, newError(ErrUnexpectedResponse, op, "return rejected: "+badRequestRemoteError, nil))
	}

	returnedQty := invoice.ReturnedQty.Add(payload.TotalQty)
	next := models.VatInvoiceStatusPartlyReturn
	if returnedQty.GreaterThanOrEqual(invoice.TotalQty) {
		next = models.VatInvoiceStatusReturn
	}
	if err := transition(invoice, next); err != nil {
		return s.failSync(ctx, op, invoice, err)
	}
	invoice.ReturnedQty = returnedQty

	saved, err := s.repo.SaveVatInvoice(ctx, *invoice)
	if err != nil {
		config.LogError(s.logger, moduleName, op, "save returned invoice", invoice.InvoiceNumber, err)
		return resultFor(invoice, err)
	}
	s.logger.WithFields(logrus.Fields{
		"module":         moduleName,
		"func":           op,
		"invoice_number": saved.InvoiceNumber,
		"status":         saved.Status,
		"returned_qty":   saved.ReturnedQty.String(),
		"total_qty":      saved.TotalQty.String(),
	}).Info("return synced")
	return resultFor(saved, nil)
}

// returnPayload decodes the stored return payload, building it from the
// return transaction when missing. Remote ids captured after the payload was
// built are filled in.
func (s *Service) returnPayload(ctx context.Context, invoice *models.VatInvoice) (ReturnPayload, error) {
	const op = "SyncReturnVatInvoice"
	var payload ReturnPayload
	if invoice.ReturnPayload != "" {
		if err := utils.UnmarshalFromJSON([]byte(invoice.ReturnPayload), &payload); err != nil {
			return ReturnPayload{}, newError(ErrValidation, op, "decode stored return payload", err)
		}
	} else {
		txn, err := s.repo.GetPosTransaction(ctx, invoice.ReturnInvoiceNo)
		if err != nil {
			return ReturnPayload{}, newError(ErrValidation, op, "load return transaction "+invoice.ReturnInvoiceNo, err)
		}
		payload, err = buildReturnPayload(*invoice, *txn)
		if err != nil {
			return ReturnPayload{}, newError(ErrValidation, op, invoice.ReturnInvoiceNo, err)
		}
	}
	if payload.VatInvoiceID == "" {
		payload.VatInvoiceID = invoice.VatInvoiceId
	}
	if payload.SChallanNumber == "" {
		payload.SChallanNumber = invoice.SChallanNumber
	}
	return payload, nil
}
