package vschallan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/store"
)

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, svc)
	r.POST("/pubsub/vschallan-sync", PubSubPushHandler(svc, true))
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", store.ErrNotFound), http.StatusNotFound},
		{newError(ErrValidation, "op", "bad", nil), http.StatusBadRequest},
		{newError(ErrValidation, "op", "retailer 9 not found", store.ErrNotFound), http.StatusBadRequest},
		{newError(ErrConfiguration, "op", "vendor configuration not found", store.ErrNotFound), http.StatusServiceUnavailable},
		{newError(ErrConfiguration, "op", "missing", nil), http.StatusServiceUnavailable},
		{newError(ErrRegistration, "op", "rejected", nil), http.StatusUnprocessableEntity},
		{newError(ErrInvalidTransition, "op", "Synced -> Syncing", nil), http.StatusConflict},
		{newError(ErrRequest, "op", "500", nil), http.StatusBadGateway},
		{newError(ErrDownload, "op", "no url", nil), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestHandlers_TransactionSyncAndDownload(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle(recordVatPath, jsonReply(http.StatusOK, recordVatOK))
	f.handle(invoiceDetailsPath, jsonReply(http.StatusOK, invoiceDetailsOK))
	f.handle(downloadSchallanPath, jsonReply(http.StatusOK, `{"status_code":"200","download_url":"https://vat.example.com/SC-1.pdf"}`))
	svc, repo := newTestService(t, f, models.SyncScheduleDaily)
	registerRetailer(t, repo)
	if _, err := repo.SavePosTransaction(context.Background(), saleTxn("POS-1", 10)); err != nil {
		t.Fatalf("SavePosTransaction error: %v", err)
	}
	r := newTestRouter(svc)

	w := serve(r, http.MethodPost, "/api/vschallan/transactions/POS-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("transaction: expected 200, got %d %s", w.Code, w.Body.String())
	}
	var created TransactionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.Invoice == nil {
		t.Fatalf("decode transaction response: %v %s", err, w.Body.String())
	}
	if created.Invoice.Status != models.VatInvoiceStatusPending {
		t.Fatalf("expected Pending, got %s", created.Invoice.Status)
	}

	w = serve(r, http.MethodGet, "/api/vschallan/invoices/POS-1/schallan", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("download before sync: expected 502, got %d", w.Code)
	}

	w = serve(r, http.MethodPost, "/api/vschallan/invoices/POS-1/sync", "")
	if w.Code != http.StatusOK {
		t.Fatalf("sync: expected 200, got %d %s", w.Code, w.Body.String())
	}
	var result SyncResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode sync result: %v", err)
	}
	if result.Status != models.VatInvoiceStatusSynced || result.SChallanNumber != "SC-1" {
		t.Fatalf("unexpected sync result %+v", result)
	}

	w = serve(r, http.MethodGet, "/api/vschallan/invoices/POS-1/schallan", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "SC-1.pdf") {
		t.Fatalf("download: %d %s", w.Code, w.Body.String())
	}

	if w := serve(r, http.MethodGet, "/api/vschallan/invoices/POS-404/schallan", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown invoice download: expected 400, got %d", w.Code)
	}

	w = serve(r, http.MethodPost, "/api/vschallan/transactions/POS-404", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown transaction: expected 404, got %d", w.Code)
	}
}

func TestHandlers_RegistrationErrors(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle(retailerRegistrationPath, jsonReply(http.StatusOK, `{"success":"0","error":"duplicate BIN"}`))
	svc, repo := newTestService(t, f, models.SyncScheduleDaily)
	retailer := seedRetailer(t, repo)
	r := newTestRouter(svc)

	if w := serve(r, http.MethodPost, "/api/vschallan/retailers/abc/register", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", w.Code)
	}
	if w := serve(r, http.MethodPost, "/api/vschallan/retailers/999/register", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown retailer: expected 400, got %d", w.Code)
	}
	w := serve(r, http.MethodPost, fmt.Sprintf("/api/vschallan/retailers/%d/register", retailer.ID), "")
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "duplicate BIN") {
		t.Fatalf("rejected registration: %d %s", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodPost, fmt.Sprintf("/api/vschallan/retailers/%d/upload", retailer.ID), `{"category":"tin"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("upload without path: expected 400, got %d", w.Code)
	}
}

func TestHandlers_ReferenceAndAutoSync(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle(zoneEndpoint.path, jsonReply(http.StatusOK, `{"data":[{"id":"Z1","name":"Dhaka"}]}`))
	svc, repo := newTestService(t, f, models.SyncScheduleDaily)
	r := newTestRouter(svc)

	w := serve(r, http.MethodPost, "/api/vschallan/reference/zone/sync", `{"force_refresh":true}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Dhaka") {
		t.Fatalf("zone sync: %d %s", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodPost, "/api/vschallan/reference/planet/sync", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown kind: expected 400, got %d", w.Code)
	}

	w = serve(r, http.MethodPost, "/api/vschallan/auto-sync", "")
	if w.Code != http.StatusOK {
		t.Fatalf("auto-sync: expected 200, got %d %s", w.Code, w.Body.String())
	}
	runs := repo.SyncRuns()
	if len(runs) != 1 || runs[0].TriggeredBy != models.SyncTriggeredManual {
		t.Fatalf("expected one manual run, got %+v", runs)
	}
}

func TestPubSubPushHandler_AlwaysAcknowledges(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle(recordVatPath, jsonReply(http.StatusInternalServerError, `down`))
	svc, repo := newTestService(t, f, models.SyncScheduleDaily)
	registerRetailer(t, repo)
	if _, err := svc.CreateInvoice(context.Background(), saleTxn("POS-1", 1)); err != nil {
		t.Fatalf("CreateInvoice error: %v", err)
	}
	r := newTestRouter(svc)

	job, _ := json.Marshal(SyncJob{ID: "job-1", InvoiceNumber: "POS-1"})
	envelope, _ := json.Marshal(map[string]any{
		"message":      map[string]any{"data": job, "messageId": "m-1"},
		"subscription": "projects/p/subscriptions/s",
	})
	for _, body := range []string{string(envelope), `not json`, `{"message":{"data":"bm90IGpzb24="}}`} {
		if w := serve(r, http.MethodPost, "/pubsub/vschallan-sync", body); w.Code != http.StatusNoContent {
			t.Fatalf("expected 204 for %q, got %d", body, w.Code)
		}
	}
	stored, _ := repo.GetVatInvoice(context.Background(), "POS-1")
	if stored.Status != models.VatInvoiceStatusFailed {
		t.Fatalf("pushed job should have run and failed, got %s", stored.Status)
	}
	if f.count(recordVatPath) != 1 {
		t.Fatalf("expected exactly one record_vat call, got %d", f.count(recordVatPath))
	}
}
