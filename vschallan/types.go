package vschallan

import "github.com/invento-software-limited/Smart-Vat-Challan/models"

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type TokenRequest struct {
	ForceRefresh bool `json:"force_refresh"`
}

type TokenResponse struct {
	ExpiryDate string `json:"expiry_date"`
	CompanyID  string `json:"company_id"`
}

type ReferenceSyncRequest struct {
	ForceRefresh bool   `json:"force_refresh"`
	ParentID     string `json:"parent_id"`
}

type UploadFileRequest struct {
	Category   string `json:"category" binding:"required"`
	Path       string `json:"path" binding:"required"`
	RetailerID string `json:"retailer_id"`
}

type DownloadResponse struct {
	InvoiceNumber string `json:"invoice_number"`
	DownloadURL   string `json:"download_url"`
}

type TransactionResponse struct {
	Invoice *models.VatInvoice `json:"invoice"`
}
