package vschallan

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/store"
	"github.com/invento-software-limited/Smart-Vat-Challan/store/memory"
)

const (
	recordVatOK      = `{"status_code":"200","data":{"vat_invoice_id":"V-1","s_challan_number":"SC-1"}}`
	invoiceDetailsOK = `{"status_code":"200","data":{"vat_invoice_id":"V-1","s_challan_number":"SC-1","items":[{"product_name":"Tea","qty":"10","rate":"20","discount_amount":"0","vat_percentage":"15","sd_percentage":"0","is_tax_inclusive":"1"}]}}`
)

// registerRetailer seeds RT-1 registered for service type S1 only.
func registerRetailer(t *testing.T, repo *memory.Store) {
	t.Helper()
	_, err := repo.SaveRetailer(context.Background(), models.RetailerRegistration{
		BusinessName: "Karim Traders",
		RetailerId:   "RT-1",
		ServiceTypes: []models.RetailerServiceType{{ServiceTypeRemoteId: "S1"}},
		DocStatus:    models.DocStatusSubmitted,
	})
	if err != nil {
		t.Fatalf("SaveRetailer error: %v", err)
	}
}

func saleTxn(name string, qty int64) models.PosTransaction {
	return models.PosTransaction{
		Name:          name,
		PostingDate:   time.Date(2026, 10, 1, 0, 0, 0, 0, time.Local),
		PostingTime:   "10:30:00",
		Status:        models.PosTransactionStatusPaid,
		RetailerId:    "RT-1",
		PaymentMethod: "Cash",
		Details: []models.PosTransactionItem{{
			ItemName:            "Tea",
			ServiceTypeRemoteId: "S1",
			Qty:                 decimal.NewFromInt(qty),
			Rate:                decimal.NewFromInt(20),
			VatPercentage:       decimal.NewFromInt(15),
		}},
	}
}

func TestCreateInvoice_RejectsUnpermittedServiceType(t *testing.T) {
	f := newFakeAuthority(t)
	svc, repo := newTestService(t, f, models.SyncScheduleDaily)
	registerRetailer(t, repo)
	ctx := context.Background()

	txn := saleTxn("POS-1", 2)
	txn.Details[0].ServiceTypeRemoteId = "S9"
	_, err := svc.CreateInvoice(ctx, txn)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := repo.GetVatInvoice(ctx, "POS-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("nothing should be persisted, got %v", err)
	}

	txn = saleTxn("POS-2", 2)
	txn.RetailerId = "RT-UNKNOWN"
	if _, err := svc.CreateInvoice(ctx, txn); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown retailer: expected ErrValidation, got %v", err)
	}
}

func TestCreateInvoice_StoresComputedPayload(t *testing.T) {
	f := newFakeAuthority(t)
	svc, repo := newTestService(t, f, models.SyncScheduleDaily)
	registerRetailer(t, repo)

	// 10 x 20 at 15% inclusive.
	invoice, err := svc.CreateInvoice(context.Background(), saleTxn("POS-1", 10))
	if err != nil {
		t.Fatalf("CreateInvoice error: %v", err)
	}
	if invoice.Status != models.VatInvoiceStatusPending {
		t.Fatalf("expected Pending, got %s", invoice.Status)
	}
	if !invoice.TotalAmount.Equal(decimal.NewFromInt(200)) || !invoice.TotalVatAmount.Equal(decimal.RequireFromString("26.09")) {
		t.Fatalf("unexpected totals %s / %s", invoice.TotalAmount, invoice.TotalVatAmount)
	}
	if !invoice.TotalQty.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected total qty %s", invoice.TotalQty)
	}
	for _, want := range []string{`"invoice_number":"POS-1"`, `"invoice_date":"2026-10-01"`, `"pre_tax_amount":"173.91"`} {
		if !strings.Contains(invoice.RequestedPayloads, want) {
			t.Fatalf("payload missing %s: %s", want, invoice.RequestedPayloads)
		}
	}
	if f.count(recordVatPath) != 0 {
		t.Fatalf("Daily schedule must not sync on create")
	}
}

func TestCreateInvoice_SecondCallReturnsExisting(t *testing.T) {
	f := newFakeAuthority(t)
	svc, repo := newTestService(t, f, models.SyncScheduleDaily)
	registerRetailer(t, repo)
	ctx := context.Background()

	first, err := svc.CreateInvoice(ctx, saleTxn("POS-1", 10))
	if err != nil {
		t.Fatalf("CreateInvoice error: %v", err)
	}
	second, err := svc.CreateInvoice(ctx, saleTxn("POS-1", 3))
	if err != nil {
		t.Fatalf("CreateInvoice error: %v", err)
	}
	if second.ID != first.ID || !second.TotalQty.Equal(first.TotalQty) {
		t.Fatalf("expected the stored invoice, got %+v", second)
	}
}

func TestCreateInvoice_AfterSubmitSyncsImmediately(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle(recordVatPath, jsonReply(http.StatusOK, recordVatOK))
	f.handle(invoiceDetailsPath, jsonReply(http.StatusOK, invoiceDetailsOK))
	svc, repo := newTestService(t, f, models.SyncScheduleAfterSubmit)
	registerRetailer(t, repo)

	invoice, err := svc.CreateInvoice(context.Background(), saleTxn("POS-1", 10))
	if err != nil {
		t.Fatalf("CreateInvoice error: %v", err)
	}
	if invoice.Status != models.VatInvoiceStatusSynced || invoice.VatInvoiceId != "V-1" {
		t.Fatalf("expected synced invoice, got %s %q", invoice.Status, invoice.VatInvoiceId)
	}
}

func TestSyncVatInvoice_Outcomes(t *testing.T) {
	cases := []struct {
		name       string
		recordVat  http.HandlerFunc
		details    http.HandlerFunc
		wantStatus models.VatInvoiceStatus
		wantID     string
		wantErr    bool
	}{
		{
			name:       "accepted",
			recordVat:  jsonReply(http.StatusOK, recordVatOK),
			details:    jsonReply(http.StatusOK, invoiceDetailsOK),
			wantStatus: models.VatInvoiceStatusSynced,
			wantID:     "V-1",
		},
		{
			name:       "accepted while details fail",
			recordVat:  jsonReply(http.StatusOK, recordVatOK),
			details:    jsonReply(http.StatusInternalServerError, `down`),
			wantStatus: models.VatInvoiceStatusSynced,
			wantID:     "V-1",
		},
		{
			name:       "server error",
			recordVat:  jsonReply(http.StatusInternalServerError, `down`),
			wantStatus: models.VatInvoiceStatusFailed,
			wantErr:    true,
		},
		{
			name:       "already recorded and confirmed by details",
			recordVat:  jsonReply(http.StatusOK, `{"success":"0","error":"Invoice already exists"}`),
			details:    jsonReply(http.StatusOK, invoiceDetailsOK),
			wantStatus: models.VatInvoiceStatusSynced,
			wantID:     "V-1",
		},
		{
			name:       "rejected without record",
			recordVat:  jsonReply(http.StatusOK, `{"success":"0","error":"Invalid retailer"}`),
			details:    jsonReply(http.StatusOK, `{"status_code":"200","data":{}}`),
			wantStatus: models.VatInvoiceStatusFailed,
			wantErr:    true,
		},
		{
			name:       "unrecognised answer",
			recordVat:  xmlReply(http.StatusOK, `<r><note>hi</note></r>`),
			wantStatus: models.VatInvoiceStatusFailed,
			wantErr:    true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeAuthority(t)
			f.handle(recordVatPath, tc.recordVat)
			if tc.details != nil {
				f.handle(invoiceDetailsPath, tc.details)
			}
			svc, repo := newTestService(t, f, models.SyncScheduleDaily)
			registerRetailer(t, repo)
			ctx := context.Background()
			if _, err := svc.CreateInvoice(ctx, saleTxn("POS-1", 10)); err != nil {
				t.Fatalf("CreateInvoice error: %v", err)
			}

			result := svc.SyncVatInvoice(ctx, "POS-1")
			if result.OK() == tc.wantErr {
				t.Fatalf("unexpected result error %v", result.Err)
			}
			stored, _ := repo.GetVatInvoice(ctx, "POS-1")
			if stored.Status != tc.wantStatus || result.Status != tc.wantStatus {
				t.Fatalf("expected %s, got stored=%s result=%s", tc.wantStatus, stored.Status, result.Status)
			}
			if stored.VatInvoiceId != tc.wantID {
				t.Fatalf("expected vat_invoice_id %q, got %q", tc.wantID, stored.VatInvoiceId)
			}
			if tc.wantStatus == models.VatInvoiceStatusSynced && stored.SChallanNumber != "SC-1" {
				t.Fatalf("expected s_challan_number SC-1, got %q", stored.SChallanNumber)
			}
		})
	}
}

func TestSyncVatInvoice_ReplaysStoredPayload(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle(recordVatPath, jsonReply(http.StatusInternalServerError, `down`))
	svc, repo := newTestService(t, f, models.SyncScheduleDaily)
	registerRetailer(t, repo)
	ctx := context.Background()
	invoice, err := svc.CreateInvoice(ctx, saleTxn("POS-1", 10))
	if err != nil {
		t.Fatalf("CreateInvoice error: %v", err)
	}

	svc.SyncVatInvoice(ctx, "POS-1")
	f.handle(recordVatPath, jsonReply(http.StatusOK, recordVatOK))
	result := svc.SyncVatInvoice(ctx, "POS-1")
	if !result.OK() || result.Status != models.VatInvoiceStatusSynced {
		t.Fatalf("retry from Failed should sync, got %+v", result)
	}
	if body := f.lastBody(recordVatPath); body != invoice.RequestedPayloads {
		t.Fatalf("retry must send the stored payload\nwant %s\ngot  %s", invoice.RequestedPayloads, body)
	}
}

func TestGetVatInvoiceDetails_RefreshesSyncedInvoice(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle(recordVatPath, jsonReply(http.StatusOK, recordVatOK))
	f.handle(invoiceDetailsPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("invoice_number") != "POS-1" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		jsonReply(http.StatusOK, invoiceDetailsOK)(w, r)
	})
	svc, repo := newTestService(t, f, models.SyncScheduleAfterSubmit)
	registerRetailer(t, repo)
	ctx := context.Background()
	if _, err := svc.CreateInvoice(ctx, saleTxn("POS-1", 10)); err != nil {
		t.Fatalf("CreateInvoice error: %v", err)
	}

	before := f.count(invoiceDetailsPath)
	result := svc.GetVatInvoiceDetails(ctx, "POS-1")
	if !result.OK() {
		t.Fatalf("GetVatInvoiceDetails error: %v", result.Err)
	}
	if f.count(invoiceDetailsPath) != before+1 || f.count(recordVatPath) != 1 {
		t.Fatalf("synced invoice should only refresh details")
	}
	stored, _ := repo.GetVatInvoice(ctx, "POS-1")
	if !strings.Contains(stored.GetResponse, "Tea") {
		t.Fatalf("details not stored: %s", stored.GetResponse)
	}
}

func TestDownloadSchallan(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle(recordVatPath, jsonReply(http.StatusOK, recordVatOK))
	f.handle(invoiceDetailsPath, jsonReply(http.StatusOK, invoiceDetailsOK))
	f.handle(downloadSchallanPath, jsonReply(http.StatusOK, `{"status_code":"200","data":{"download_url":"https://vat.example.com/sc/SC-1.pdf"}}`))
	svc, repo := newTestService(t, f, models.SyncScheduleDaily)
	registerRetailer(t, repo)
	ctx := context.Background()
	if _, err := svc.CreateInvoice(ctx, saleTxn("POS-1", 10)); err != nil {
		t.Fatalf("CreateInvoice error: %v", err)
	}

	if _, err := svc.DownloadSchallan(ctx, "POS-1"); !errors.Is(err, ErrDownload) {
		t.Fatalf("unsynced invoice: expected ErrDownload, got %v", err)
	}
	if _, err := svc.DownloadSchallan(ctx, "POS-404"); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown invoice: expected ErrValidation, got %v", err)
	}

	svc.SyncVatInvoice(ctx, "POS-1")
	link, err := svc.DownloadSchallan(ctx, "POS-1")
	if err != nil {
		t.Fatalf("DownloadSchallan error: %v", err)
	}
	if link != "https://vat.example.com/sc/SC-1.pdf" {
		t.Fatalf("unexpected url %q", link)
	}
	if body := f.lastBody(downloadSchallanPath); body != `{"vat_invoice_id":"V-1"}` {
		t.Fatalf("unexpected body %s", body)
	}

	f.handle(downloadSchallanPath, jsonReply(http.StatusOK, `{"success":"0","error":"not ready"}`))
	if _, err := svc.DownloadSchallan(ctx, "POS-1"); !errors.Is(err, ErrDownload) {
		t.Fatalf("expected ErrDownload, got %v", err)
	}
}
