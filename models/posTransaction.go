package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PosTransaction is the sale record written by the point-of-sale host. This
// service only reads it.
type PosTransaction struct {
	ID               uint                 `gorm:"primary_key" json:"id"`
	Name             string               `gorm:"size:140;uniqueIndex;not null" json:"name"`
	PostingDate      time.Time            `gorm:"type:date;index;not null" json:"posting_date"`
	PostingTime      string               `gorm:"size:16" json:"posting_time"`
	Status           string               `gorm:"size:32;index" json:"status"`
	IsReturn         bool                 `gorm:"not null;default:false" json:"is_return"`
	ReturnAgainst    string               `gorm:"size:140;index" json:"return_against"`
	RetailerId       string               `gorm:"size:64" json:"retailer_id"`
	RetailerBranchId string               `gorm:"size:64" json:"retailer_branch_id"`
	CustomerId       string               `gorm:"size:140" json:"customer_id"`
	CustomerName     string               `gorm:"size:255" json:"customer_name"`
	CustomerMobile   string               `gorm:"size:32" json:"customer_mobile"`
	PaymentMethod    string               `gorm:"size:64" json:"payment_method"`
	Details          []PosTransactionItem `gorm:"foreignKey:PosTransactionId" json:"items"`
	CreatedAt        time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type PosTransactionItem struct {
	ID                  uint            `gorm:"primary_key" json:"id"`
	PosTransactionId    uint            `gorm:"index;not null" json:"pos_transaction_id"`
	ItemName            string          `gorm:"size:255;not null" json:"item_name"`
	ServiceTypeRemoteId string          `gorm:"size:64" json:"service_type_id"`
	Qty                 decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	Rate                decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"rate"`
	DiscountAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	VatPercentage       decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"vat_percentage"`
	SdPercentage        decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"sd_percentage"`
	IsTaxInclusive      *bool           `gorm:"not null;default:true" json:"is_tax_inclusive"`
}

func (t PosTransaction) IsReturnTransaction() bool {
	return t.IsReturn || t.Status == PosTransactionStatusReturn
}

// PostedAt combines the posting date with the posting time (HH:MM[:SS]) in
// local time. A missing or malformed time falls back to midnight.
func (t PosTransaction) PostedAt() time.Time {
	y, m, d := t.PostingDate.Date()
	base := time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	for _, layout := range []string{"15:04:05", "15:04:05.999999", "15:04"} {
		if clock, err := time.Parse(layout, t.PostingTime); err == nil {
			return base.Add(time.Duration(clock.Hour())*time.Hour +
				time.Duration(clock.Minute())*time.Minute +
				time.Duration(clock.Second())*time.Second)
		}
	}
	return base
}

func (t PosTransaction) TotalQty() decimal.Decimal {
	total := decimal.Zero
	for _, item := range t.Details {
		total = total.Add(item.Qty.Abs())
	}
	return total
}

func (i PosTransactionItem) TaxInclusive() bool {
	return i.IsTaxInclusive == nil || *i.IsTaxInclusive
}
