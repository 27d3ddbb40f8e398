package utils

import (
	"github.com/shopspring/decimal"
)

var decimalOneHundred = decimal.NewFromInt(100)

// LineAmounts is the computed breakdown of one invoice line. All values are
// rounded to 2 places.
type LineAmounts struct {
	Gross          decimal.Decimal
	DiscountAmount decimal.Decimal
	PreTaxAmount   decimal.Decimal
	VatAmount      decimal.Decimal
	// TotalAmount is the VAT inclusive amount before SD.
	TotalAmount decimal.Decimal
	SdAmount    decimal.Decimal
	// GrandTotal is TotalAmount plus SdAmount.
	GrandTotal decimal.Decimal
}

// CalculateLineAmounts splits qty*rate-discount into pre tax and VAT parts.
// Inclusive lines already contain VAT in the rate, exclusive lines get VAT
// added on top. SD is charged on TotalAmount and never enters the VAT base.
func CalculateLineAmounts(qty, rate, discount, vatPercentage, sdPercentage decimal.Decimal, isTaxInclusive bool) LineAmounts {
	gross := qty.Mul(rate)
	net := gross.Sub(discount)

	var preTax, vat, total decimal.Decimal
	if isTaxInclusive {
		// Tax-inclusive: total / (100 + rate) * 100
		total = net.Round(2)
		preTax = net.Mul(decimalOneHundred).DivRound(decimalOneHundred.Add(vatPercentage), 8).Round(2)
		vat = total.Sub(preTax)
	} else {
		// Tax-exclusive: (preTax / 100) * rate
		preTax = net.Round(2)
		vat = net.Mul(vatPercentage).DivRound(decimalOneHundred, 8).Round(2)
		total = preTax.Add(vat)
	}

	sd := decimal.Zero
	if sdPercentage.GreaterThan(decimal.Zero) {
		sd = total.Mul(sdPercentage).DivRound(decimalOneHundred, 8).Round(2)
	}

	return LineAmounts{
		Gross:          gross.Round(2),
		DiscountAmount: discount.Round(2),
		PreTaxAmount:   preTax,
		VatAmount:      vat,
		TotalAmount:    total,
		SdAmount:       sd,
		GrandTotal:     total.Add(sd),
	}
}

// ProrateDiscount scales a line discount to a partial quantity.
func ProrateDiscount(discount, originalQty, qty decimal.Decimal) decimal.Decimal {
	if originalQty.IsZero() || discount.IsZero() {
		return decimal.Zero
	}
	return discount.Mul(qty.Abs()).DivRound(originalQty.Abs(), 8)
}

// WeightedPercentage returns part/base*100 rounded to 2 places, or zero when
// base is zero.
func WeightedPercentage(part, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return part.Mul(decimalOneHundred).DivRound(base, 8).Round(2)
}
