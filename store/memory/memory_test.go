package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/store"
)

func TestVatInvoices_CreateIsUniqueAndReadsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateVatInvoice(ctx, models.VatInvoice{InvoiceNumber: "POS-1", Status: models.VatInvoiceStatusPending})
	if err != nil {
		t.Fatalf("CreateVatInvoice error: %v", err)
	}
	if _, err := s.CreateVatInvoice(ctx, models.VatInvoice{InvoiceNumber: "POS-1"}); !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	created.Status = models.VatInvoiceStatusSynced
	stored, _ := s.GetVatInvoice(ctx, "POS-1")
	if stored.Status != models.VatInvoiceStatusPending {
		t.Fatalf("caller mutation leaked into the store")
	}
	if _, err := s.SaveVatInvoice(ctx, models.VatInvoice{InvoiceNumber: "POS-9"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on save of unknown invoice, got %v", err)
	}

	pending, _ := s.ListVatInvoicesByStatus(ctx, models.VatInvoiceStatusPending, models.VatInvoiceStatusFailed)
	if len(pending) != 1 || pending[0].InvoiceNumber != "POS-1" {
		t.Fatalf("unexpected pending list %+v", pending)
	}
}

func TestListUnlinkedReturnTransactions(t *testing.T) {
	s := New()
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2026, 10, d, 0, 0, 0, 0, time.Local) }
	for _, txn := range []models.PosTransaction{
		{Name: "RET-OLD", Status: models.PosTransactionStatusReturn, PostingDate: day(1)},
		{Name: "RET-LINKED", Status: models.PosTransactionStatusReturn, PostingDate: day(5)},
		{Name: "RET-NEW", Status: models.PosTransactionStatusReturn, PostingDate: day(6)},
		{Name: "POS-1", Status: models.PosTransactionStatusPaid, PostingDate: day(6)},
	} {
		if _, err := s.SavePosTransaction(ctx, txn); err != nil {
			t.Fatalf("SavePosTransaction error: %v", err)
		}
	}
	if _, err := s.CreateVatInvoice(ctx, models.VatInvoice{InvoiceNumber: "POS-0", ReturnInvoiceNo: "RET-LINKED"}); err != nil {
		t.Fatalf("CreateVatInvoice error: %v", err)
	}

	since := day(5).Add(15 * time.Hour)
	got, err := s.ListUnlinkedReturnTransactions(ctx, &since)
	if err != nil {
		t.Fatalf("ListUnlinkedReturnTransactions error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "RET-NEW" {
		t.Fatalf("unexpected returns %+v", got)
	}

	all, _ := s.ListUnlinkedReturnTransactions(ctx, nil)
	if len(all) != 2 || all[0].Name != "RET-OLD" {
		t.Fatalf("unexpected returns %+v", all)
	}
}

func TestVendorConfiguration_Singleton(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.GetVendorConfiguration(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	first, _ := s.SaveVendorConfiguration(ctx, models.VendorConfiguration{BaseUrl: "https://a", ClientId: "c"})
	second, _ := s.SaveVendorConfiguration(ctx, models.VendorConfiguration{BaseUrl: "https://b", ClientId: "c"})
	if first.ID != second.ID {
		t.Fatalf("expected one row, got ids %d and %d", first.ID, second.ID)
	}
	if err := s.UpdateVendorToken(ctx, "tok", "2099-01-01 00:00:00", "C-1"); err != nil {
		t.Fatalf("UpdateVendorToken error: %v", err)
	}
	cfg, _ := s.GetVendorConfiguration(ctx)
	if cfg.BaseUrl != "https://b" || cfg.AccessToken != "tok" || cfg.CompanyId != "C-1" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
