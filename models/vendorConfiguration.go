package models

import (
	"time"
)

// ExpiryDateLayout is the format of VendorConfiguration.ExpiryDate as returned
// by the authentication endpoint.
const ExpiryDateLayout = "2006-01-02 15:04:05"

// VendorConfiguration is the singleton holding the VAT authority credentials
// and the sync cadence. The token fields are rewritten on every refresh.
type VendorConfiguration struct {
	ID           uint         `gorm:"primary_key" json:"id"`
	BaseUrl      string       `gorm:"size:255;not null" json:"base_url" validate:"required,url"`
	ClientId     string       `gorm:"size:140;not null" json:"client_id" validate:"required"`
	ClientSecret string       `gorm:"type:text" json:"-" validate:"required"`
	AccessToken  string       `gorm:"type:text" json:"-"`
	ExpiryDate   string       `gorm:"size:32" json:"expiry_date"`
	CompanyId    string       `gorm:"size:140" json:"company_id"`
	Disabled     bool         `gorm:"not null;default:false" json:"disabled"`
	SyncSchedule SyncSchedule `gorm:"size:20;not null;default:Daily" json:"sync_schedule" validate:"required,oneof=Daily Weekly Monthly Quarterly 'After Submit'"`
	LastSyncDate *time.Time   `gorm:"type:date" json:"last_sync_date"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// ExpiresAt parses ExpiryDate in local time. ok is false when the value is
// empty or malformed.
func (c VendorConfiguration) ExpiresAt() (t time.Time, ok bool) {
	if c.ExpiryDate == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(ExpiryDateLayout, c.ExpiryDate, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
