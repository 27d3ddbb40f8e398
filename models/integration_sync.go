package models

import "time"

const (
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredSystem = "system"
)

const (
	SyncEntityReturnTransaction = "return_transaction"
	SyncEntityVatInvoice        = "vat_invoice"
)

// SyncRun is one auto-sync pass.
type SyncRun struct {
	ID             uint         `gorm:"primary_key" json:"id"`
	Status         string       `gorm:"size:20;not null" json:"status"`
	TriggeredBy    string       `gorm:"size:20" json:"triggered_by"`
	Schedule       SyncSchedule `gorm:"size:20" json:"schedule"`
	ReturnsQueued  int          `json:"returns_queued"`
	InvoicesQueued int          `json:"invoices_queued"`
	ErrorCount     int          `json:"error_count"`
	StartedAt      *time.Time   `json:"started_at"`
	FinishedAt     *time.Time   `json:"finished_at"`
	DurationMs     int64        `json:"duration_ms"`
	CreatedAt      time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type SyncError struct {
	ID         uint      `gorm:"primary_key" json:"id"`
	SyncRunId  uint      `gorm:"index;not null" json:"sync_run_id"`
	EntityType string    `gorm:"size:50" json:"entity_type"`
	EntityName string    `gorm:"size:140" json:"entity_name"`
	ErrorCode  string    `gorm:"size:64" json:"error_code"`
	Message    string    `gorm:"type:text" json:"message"`
	Retryable  bool      `gorm:"default:false" json:"retryable"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
