package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateLineAmounts(t *testing.T) {
	d := decimal.RequireFromString
	cases := []struct {
		name      string
		qty, rate string
		discount  string
		vat, sd   string
		inclusive bool
		preTax    string
		vatAmount string
		total     string
		sdAmount  string
		grand     string
	}{
		{"inclusive 15%", "1", "200", "0", "15", "0", true, "173.91", "26.09", "200", "0", "200"},
		{"exclusive 15%", "1", "200", "0", "15", "0", false, "200", "30", "230", "0", "230"},
		{"inclusive with discount", "2", "100", "20", "15", "0", true, "156.52", "23.48", "180", "0", "180"},
		{"exclusive with sd", "4", "50", "0", "15", "10", false, "200", "30", "230", "23", "253"},
		{"zero vat", "3", "10", "0", "0", "0", true, "30", "0", "30", "0", "30"},
	}
	for _, tc := range cases {
		got := CalculateLineAmounts(d(tc.qty), d(tc.rate), d(tc.discount), d(tc.vat), d(tc.sd), tc.inclusive)
		checks := []struct {
			field string
			got   decimal.Decimal
			want  string
		}{
			{"PreTaxAmount", got.PreTaxAmount, tc.preTax},
			{"VatAmount", got.VatAmount, tc.vatAmount},
			{"TotalAmount", got.TotalAmount, tc.total},
			{"SdAmount", got.SdAmount, tc.sdAmount},
			{"GrandTotal", got.GrandTotal, tc.grand},
		}
		for _, c := range checks {
			if !c.got.Equal(d(c.want)) {
				t.Fatalf("%s: %s expected %s, got %s", tc.name, c.field, c.want, c.got)
			}
		}
		if !got.PreTaxAmount.Add(got.VatAmount).Equal(got.TotalAmount) {
			t.Fatalf("%s: pre tax + vat != total", tc.name)
		}
	}
}

func TestProrateDiscount(t *testing.T) {
	d := decimal.RequireFromString
	if got := ProrateDiscount(d("30"), d("10"), d("-4")); !got.Equal(d("12")) {
		t.Fatalf("expected 12, got %s", got)
	}
	if got := ProrateDiscount(d("30"), decimal.Zero, d("4")); !got.IsZero() {
		t.Fatalf("zero original qty should give zero, got %s", got)
	}
}

func TestWeightedPercentage(t *testing.T) {
	d := decimal.RequireFromString
	if got := WeightedPercentage(d("26.09"), d("173.91")); !got.Equal(d("15")) {
		t.Fatalf("expected 15, got %s", got)
	}
	if got := WeightedPercentage(d("5"), decimal.Zero); !got.IsZero() {
		t.Fatalf("zero base should give zero, got %s", got)
	}
}
