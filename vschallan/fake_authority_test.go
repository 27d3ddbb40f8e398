package vschallan

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/store/memory"
)

// fakeAuthority is an httptest stand-in for the VAT authority API. Every
// route counts its calls; authentication succeeds by default.
type fakeAuthority struct {
	mu     sync.Mutex
	calls  map[string]int
	bodies map[string][]string
	routes map[string]http.HandlerFunc
	srv    *httptest.Server
}

func newFakeAuthority(t *testing.T) *fakeAuthority {
	t.Helper()
	f := &fakeAuthority{
		calls:  map[string]int{},
		bodies: map[string][]string{},
		routes: map[string]http.HandlerFunc{},
	}
	f.handle(authenticatePath, jsonReply(http.StatusOK, `{"access_token":"tok-1","expiry_time":"2099-01-01 00:00:00","company_id":"C-9"}`))
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls[r.URL.Path]++
		f.bodies[r.URL.Path] = append(f.bodies[r.URL.Path], string(body))
		h := f.routes[r.URL.Path]
		f.mu.Unlock()
		if h == nil {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAuthority) handle(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = h
}

func (f *fakeAuthority) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeAuthority) lastBody(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	bodies := f.bodies[path]
	if len(bodies) == 0 {
		return ""
	}
	return bodies[len(bodies)-1]
}

func jsonReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func xmlReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestService stores a vendor configuration pointing at f and builds a
// service over an in-memory repository.
func newTestService(t *testing.T, f *fakeAuthority, schedule models.SyncSchedule) (*Service, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()
	if _, err := SaveVendorConfiguration(ctx, repo, nil, models.VendorConfiguration{
		BaseUrl:      f.srv.URL,
		ClientId:     "client",
		ClientSecret: "secret",
		SyncSchedule: schedule,
	}); err != nil {
		t.Fatalf("SaveVendorConfiguration error: %v", err)
	}
	svc, err := New(ctx, Options{
		Repo:       repo,
		HTTPClient: f.srv.Client(),
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return svc, repo
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
