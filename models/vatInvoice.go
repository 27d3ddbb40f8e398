package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VatInvoice tracks one POS transaction through the authority's reporting
// flow. RequestedPayloads is written at creation and replayed verbatim by
// every sync attempt.
type VatInvoice struct {
	ID                  uint             `gorm:"primary_key" json:"id"`
	InvoiceNumber       string           `gorm:"size:140;uniqueIndex;not null" json:"invoice_number"`
	InvoiceDate         time.Time        `gorm:"not null" json:"invoice_date"`
	PosTransaction      string           `gorm:"size:140;index" json:"pos_transaction"`
	CustomerId          string           `gorm:"size:140" json:"customer_id"`
	TxnAmount           decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"txn_amount"`
	TotalAmount         decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	TotalVatAmount      decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_vat_amount"`
	TotalDiscountAmount decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_discount_amount"`
	TotalSdAmount       decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_sd_amount"`
	TotalSdPercentage   decimal.Decimal  `gorm:"type:decimal(10,4);default:0" json:"total_sd_percentage"`
	TotalQty            decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_qty"`
	ReturnedQty         decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"returned_qty"`
	PaymentMethod       string           `gorm:"size:64" json:"payment_method"`
	RetailerId          string           `gorm:"size:64;index" json:"retailer_id"`
	RetailerBranchId    string           `gorm:"size:64" json:"retailer_branch_id"`
	Status              VatInvoiceStatus `gorm:"size:20;index;not null;default:Pending" json:"status"`
	RequestedPayloads   string           `gorm:"type:longtext" json:"requested_payloads"`
	Response            string           `gorm:"type:longtext" json:"response"`
	GetResponse         string           `gorm:"type:longtext" json:"get_response"`
	VatInvoiceId        string           `gorm:"size:64" json:"vat_invoice_id"`
	SChallanNumber      string           `gorm:"size:64" json:"s_challan_number"`
	IsReturn            bool             `gorm:"not null;default:false" json:"is_return"`
	ReturnInvoiceNo     string           `gorm:"size:140;index" json:"return_invoice_no"`
	ReturnPayload       string           `gorm:"type:longtext" json:"return_payload"`
	ReturnResponse      string           `gorm:"type:longtext" json:"return_response"`
	CreatedAt           time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}
