package vschallan

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/utils"
)

const payloadDateLayout = "2006-01-02"

// InvoicePayload is the body of /integration/record_vat. It is stored as
// requested_payloads once and replayed unchanged by every sync attempt.
type InvoicePayload struct {
	InvoiceNumber       string               `json:"invoice_number"`
	InvoiceDate         string               `json:"invoice_date"`
	Timestamp           int64                `json:"timestamp"`
	RetailerID          string               `json:"retailer_id"`
	RetailerBranchID    string               `json:"retailer_branch_id,omitempty"`
	CustomerID          string               `json:"customer_id,omitempty"`
	CustomerName        string               `json:"customer_name,omitempty"`
	CustomerMobile      string               `json:"customer_mobile,omitempty"`
	PaymentMethod       string               `json:"payment_method"`
	TxnAmount           decimal.Decimal      `json:"txn_amount"`
	TotalAmount         decimal.Decimal      `json:"total_amount"`
	TotalVatAmount      decimal.Decimal      `json:"total_vat_amount"`
	TotalDiscountAmount decimal.Decimal      `json:"total_discount_amount"`
	TotalSdAmount       decimal.Decimal      `json:"total_sd_amount"`
	TotalSdPercentage   decimal.Decimal      `json:"total_sd_percentage"`
	TotalQty            decimal.Decimal      `json:"total_qty"`
	Items               []InvoicePayloadItem `json:"items"`
}

type InvoicePayloadItem struct {
	ProductName    string          `json:"product_name"`
	ServiceTypeID  string          `json:"service_type_id"`
	Qty            decimal.Decimal `json:"qty"`
	Rate           decimal.Decimal `json:"rate"`
	Discount       decimal.Decimal `json:"discount_amount"`
	PreTaxAmount   decimal.Decimal `json:"pre_tax_amount"`
	VatPercentage  decimal.Decimal `json:"vat_percentage"`
	VatAmount      decimal.Decimal `json:"vat_amount"`
	SdPercentage   decimal.Decimal `json:"sd_percentage"`
	SdAmount       decimal.Decimal `json:"sd_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	IsTaxInclusive bool            `json:"is_tax_inclusive"`
}

// ReturnPayload is the body of /integration/return_invoice_request.
type ReturnPayload struct {
	InvoiceNumber       string               `json:"invoice_number"`
	ReturnInvoiceNumber string               `json:"return_invoice_number"`
	VatInvoiceID        string               `json:"vat_invoice_id"`
	SChallanNumber      string               `json:"s_challan_number"`
	ReturnDate          string               `json:"return_date"`
	Timestamp           int64                `json:"timestamp"`
	RetailerID          string               `json:"retailer_id"`
	TotalAmount         decimal.Decimal      `json:"total_amount"`
	TotalVatAmount      decimal.Decimal      `json:"total_vat_amount"`
	TotalDiscountAmount decimal.Decimal      `json:"total_discount_amount"`
	TotalSdAmount       decimal.Decimal      `json:"total_sd_amount"`
	VatPercentage       decimal.Decimal      `json:"vat_percentage"`
	TotalQty            decimal.Decimal      `json:"total_qty"`
	Items               []InvoicePayloadItem `json:"items"`
}

// buildInvoicePayload computes every line of txn and the header totals.
func buildInvoicePayload(txn models.PosTransaction) InvoicePayload {
	payload := InvoicePayload{
		InvoiceNumber:    txn.Name,
		InvoiceDate:      txn.PostingDate.Format(payloadDateLayout),
		Timestamp:        txn.PostedAt().Unix(),
		RetailerID:       txn.RetailerId,
		RetailerBranchID: txn.RetailerBranchId,
		CustomerID:       txn.CustomerId,
		CustomerName:     txn.CustomerName,
		CustomerMobile:   txn.CustomerMobile,
		PaymentMethod:    txn.PaymentMethod,
		Items:            make([]InvoicePayloadItem, 0, len(txn.Details)),
	}

	var gross, total, vat, discount, sd, qty decimal.Decimal
	for _, item := range txn.Details {
		amounts := utils.CalculateLineAmounts(item.Qty, item.Rate, item.DiscountAmount, item.VatPercentage, item.SdPercentage, item.TaxInclusive())
		payload.Items = append(payload.Items, InvoicePayloadItem{
			ProductName:    item.ItemName,
			ServiceTypeID:  item.ServiceTypeRemoteId,
			Qty:            item.Qty,
			Rate:           item.Rate,
			Discount:       amounts.DiscountAmount,
			PreTaxAmount:   amounts.PreTaxAmount,
			VatPercentage:  item.VatPercentage,
			VatAmount:      amounts.VatAmount,
			SdPercentage:   item.SdPercentage,
			SdAmount:       amounts.SdAmount,
			TotalAmount:    amounts.GrandTotal,
			IsTaxInclusive: item.TaxInclusive(),
		})
		gross = gross.Add(amounts.Gross)
		total = total.Add(amounts.GrandTotal)
		vat = vat.Add(amounts.VatAmount)
		discount = discount.Add(amounts.DiscountAmount)
		sd = sd.Add(amounts.SdAmount)
		qty = qty.Add(item.Qty.Abs())
	}

	payload.TxnAmount = gross
	payload.TotalAmount = total
	payload.TotalVatAmount = vat
	payload.TotalDiscountAmount = discount
	payload.TotalSdAmount = sd
	payload.TotalSdPercentage = utils.WeightedPercentage(sd, total.Sub(sd))
	payload.TotalQty = qty
	return payload
}

// originalLine is a previously submitted line as recovered from the stored
// details response or the stored request payload.
type originalLine struct {
	ProductName    string
	ServiceTypeID  string
	Qty            decimal.Decimal
	Rate           decimal.Decimal
	Discount       decimal.Decimal
	VatPercentage  decimal.Decimal
	SdPercentage   decimal.Decimal
	IsTaxInclusive bool
}

// originalLines takes the lines of the stored request payload, which hold
// the convention and rates actually submitted. Items of the stored details
// response only fill fields the payload lacks and add lines it does not name.
func originalLines(invoice models.VatInvoice) []originalLine {
	var lines []originalLine
	var payload InvoicePayload
	if invoice.RequestedPayloads != "" {
		if err := json.Unmarshal([]byte(invoice.RequestedPayloads), &payload); err == nil {
			for _, item := range payload.Items {
				lines = append(lines, originalLine{
					ProductName:    item.ProductName,
					ServiceTypeID:  item.ServiceTypeID,
					Qty:            item.Qty,
					Rate:           item.Rate,
					Discount:       item.Discount,
					VatPercentage:  item.VatPercentage,
					SdPercentage:   item.SdPercentage,
					IsTaxInclusive: item.IsTaxInclusive,
				})
			}
		}
	}
	if invoice.GetResponse == "" {
		return lines
	}
	parsed, err := Parse([]byte(invoice.GetResponse))
	if err != nil {
		return lines
	}

	known := make(map[string]int, len(lines))
	for i, line := range lines {
		if _, ok := known[line.ProductName]; !ok {
			known[line.ProductName] = i
		}
	}
	for _, remote := range linesFromDocument(parsed.Document) {
		i, ok := known[remote.ProductName]
		if !ok {
			known[remote.ProductName] = len(lines)
			lines = append(lines, remote)
			continue
		}
		line := &lines[i]
		if line.ServiceTypeID == "" {
			line.ServiceTypeID = remote.ServiceTypeID
		}
		if line.Qty.IsZero() {
			line.Qty = remote.Qty
		}
		if line.Rate.IsZero() {
			line.Rate = remote.Rate
		}
	}
	return lines
}

func linesFromDocument(doc Document) []originalLine {
	raw, ok := doc.Find("items")
	if !ok {
		return nil
	}
	var lines []originalLine
	for _, item := range documents(asList(raw)) {
		name := item.firstString("product_name", "item_name")
		if name == "" {
			continue
		}
		lines = append(lines, originalLine{
			ProductName:    name,
			ServiceTypeID:  item.String("service_type_id"),
			Qty:            utils.DecimalOrZero(item.String("qty")),
			Rate:           utils.DecimalOrZero(item.String("rate")),
			Discount:       utils.DecimalOrZero(item.firstString("discount_amount", "discount")),
			VatPercentage:  utils.DecimalOrZero(item.String("vat_percentage")),
			SdPercentage:   utils.DecimalOrZero(item.String("sd_percentage")),
			IsTaxInclusive: parseFlag(item.String("is_tax_inclusive"), true),
		})
	}
	return lines
}

func parseFlag(raw string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

// buildReturnPayload recomputes every returned line with the convention,
// rates and pro-rated discount of the matching original line.
func buildReturnPayload(invoice models.VatInvoice, txn models.PosTransaction) (ReturnPayload, error) {
	lines := originalLines(invoice)
	byName := make(map[string]originalLine, len(lines))
	for _, line := range lines {
		if _, ok := byName[line.ProductName]; !ok {
			byName[line.ProductName] = line
		}
	}

	payload := ReturnPayload{
		InvoiceNumber:       invoice.InvoiceNumber,
		ReturnInvoiceNumber: txn.Name,
		VatInvoiceID:        invoice.VatInvoiceId,
		SChallanNumber:      invoice.SChallanNumber,
		ReturnDate:          txn.PostingDate.Format(payloadDateLayout),
		Timestamp:           txn.PostedAt().Unix(),
		RetailerID:          invoice.RetailerId,
	}

	var preTaxSum decimal.Decimal
	var unmatched []string
	for _, item := range txn.Details {
		original, ok := byName[item.ItemName]
		if !ok {
			unmatched = append(unmatched, item.ItemName)
			continue
		}
		qty := item.Qty.Abs()
		discount := utils.ProrateDiscount(original.Discount, original.Qty, qty)
		amounts := utils.CalculateLineAmounts(qty, original.Rate, discount, original.VatPercentage, original.SdPercentage, original.IsTaxInclusive)
		payload.Items = append(payload.Items, InvoicePayloadItem{
			ProductName:    original.ProductName,
			ServiceTypeID:  original.ServiceTypeID,
			Qty:            qty,
			Rate:           original.Rate,
			Discount:       amounts.DiscountAmount,
			PreTaxAmount:   amounts.PreTaxAmount,
			VatPercentage:  original.VatPercentage,
			VatAmount:      amounts.VatAmount,
			SdPercentage:   original.SdPercentage,
			SdAmount:       amounts.SdAmount,
			TotalAmount:    amounts.GrandTotal,
			IsTaxInclusive: original.IsTaxInclusive,
		})
		payload.TotalAmount = payload.TotalAmount.Add(amounts.GrandTotal)
		payload.TotalVatAmount = payload.TotalVatAmount.Add(amounts.VatAmount)
		payload.TotalDiscountAmount = payload.TotalDiscountAmount.Add(amounts.DiscountAmount)
		payload.TotalSdAmount = payload.TotalSdAmount.Add(amounts.SdAmount)
		payload.TotalQty = payload.TotalQty.Add(qty)
		preTaxSum = preTaxSum.Add(amounts.PreTaxAmount)
	}

	if len(payload.Items) == 0 {
		return ReturnPayload{}, fmt.Errorf("no returned item matches invoice %s (unmatched: %s)", invoice.InvoiceNumber, strings.Join(unmatched, ", "))
	}
	payload.VatPercentage = utils.WeightedPercentage(payload.TotalVatAmount, preTaxSum)
	return payload, nil
}
