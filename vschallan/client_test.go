package vschallan

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/utils"
)

func TestCall_RetriesOnceAfterUnauthorized(t *testing.T) {
	f := newFakeAuthority(t)
	var hits int32
	f.handle("/integration/ping", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Token tok-1" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if got := r.Header.Get("companyID"); got != "C-9" {
			t.Errorf("unexpected companyID header %q", got)
		}
		jsonReply(http.StatusOK, `{"status_code":"200"}`)(w, r)
	})
	svc, _ := newTestService(t, f, models.SyncScheduleDaily)

	doc, err := svc.Call(context.Background(), http.MethodGet, "/integration/ping", nil, nil)
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if doc.String("status_code") != "200" {
		t.Fatalf("unexpected document %v", doc)
	}
	if got := f.count("/integration/ping"); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
	// One initial authentication plus one forced refresh.
	if got := f.count(authenticatePath); got != 2 {
		t.Fatalf("expected 2 authenticate calls, got %d", got)
	}
}

func TestCall_SecondUnauthorizedFails(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle("/integration/ping", jsonReply(http.StatusUnauthorized, `{"detail":"expired"}`))
	svc, _ := newTestService(t, f, models.SyncScheduleDaily)

	_, err := svc.Call(context.Background(), http.MethodGet, "/integration/ping", nil, nil)
	if !errors.Is(err, ErrRequest) {
		t.Fatalf("expected ErrRequest, got %v", err)
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 in error, got %d", StatusCode(err))
	}
	if got := f.count("/integration/ping"); got != 2 {
		t.Fatalf("expected exactly 2 requests, got %d", got)
	}
}

func TestCall_ServerErrorAndUnknownBody(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle("/integration/boom", jsonReply(http.StatusInternalServerError, `oops`))
	f.handle("/integration/text", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json or xml")
	})
	svc, _ := newTestService(t, f, models.SyncScheduleDaily)

	_, err := svc.Call(context.Background(), http.MethodPost, "/integration/boom", map[string]string{"a": "b"}, nil)
	if !errors.Is(err, ErrRequest) || StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("expected ErrRequest with 500, got %v", err)
	}
	if got := f.count("/integration/boom"); got != 1 {
		t.Fatalf("5xx must not be retried, got %d requests", got)
	}

	_, err = svc.Call(context.Background(), http.MethodGet, "/integration/text", nil, nil)
	if !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestCall_SendsQueryAndJSONBody(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle("/integration/echo", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("zone_id") != "5" {
			t.Errorf("missing query, got %q", r.URL.RawQuery)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected Content-Type %q", ct)
		}
		jsonReply(http.StatusOK, `{"ok":true}`)(w, r)
	})
	svc, _ := newTestService(t, f, models.SyncScheduleDaily)

	doc, err := svc.Call(context.Background(), http.MethodPost, "/integration/echo", map[string]string{"name": "x"}, map[string][]string{"zone_id": {"5"}})
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if doc.String("ok") != "true" {
		t.Fatalf("expected ok=true, got %v", doc)
	}
	if body := f.lastBody("/integration/echo"); body != `{"name":"x"}` {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestUploadFile_SendsMultipart(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle(uploadFilePath, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("unexpected Content-Type %q", r.Header.Get("Content-Type"))
		}
		jsonReply(http.StatusOK, `{"status_code":"200","data":{"file_id":"F-1"}}`)(w, r)
	})
	svc, _ := newTestService(t, f, models.SyncScheduleDaily)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "license.pdf"), []byte("%PDF-1.4 test"), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	svc.files = &utils.UploadedFileLocator{BaseDir: dir}

	doc, err := svc.UploadFile(context.Background(), "trade_license", "license.pdf", "R-1")
	if err != nil {
		t.Fatalf("UploadFile error: %v", err)
	}
	if doc.Map("data").String("file_id") != "F-1" {
		t.Fatalf("unexpected document %v", doc)
	}
	body := f.lastBody(uploadFilePath)
	for _, want := range []string{`name="category"`, "trade_license", `name="retailer_id"`, `filename="license.pdf"`, "%PDF-1.4 test"} {
		if !strings.Contains(body, want) {
			t.Fatalf("multipart body missing %q", want)
		}
	}

	_, err = svc.UploadFile(context.Background(), "trade_license", "missing.pdf", "R-1")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing file, got %v", err)
	}
}
