package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reference entities are append-only local copies of the VAT authority's
// master data. RemoteId is the authority's id and the deduplication key.

type ReferenceKind string

const (
	ReferenceKindZone              ReferenceKind = "zone"
	ReferenceKindVatCommissionRate ReferenceKind = "vat_commission_rate"
	ReferenceKindDivision          ReferenceKind = "division"
	ReferenceKindCircle            ReferenceKind = "circle"
	ReferenceKindServiceType       ReferenceKind = "service_type"
)

type Zone struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	RemoteId  string    `gorm:"size:64;uniqueIndex;not null" json:"remote_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type VatCommissionRate struct {
	ID           uint      `gorm:"primary_key" json:"id"`
	RemoteId     string    `gorm:"size:64;uniqueIndex;not null" json:"remote_id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	ZoneRemoteId string    `gorm:"size:64;index" json:"zone_remote_id"`
	ZoneId       *uint     `json:"zone_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type Division struct {
	ID                        uint      `gorm:"primary_key" json:"id"`
	RemoteId                  string    `gorm:"size:64;uniqueIndex;not null" json:"remote_id"`
	Name                      string    `gorm:"size:255;not null" json:"name"`
	ZoneRemoteId              string    `gorm:"size:64;index" json:"zone_remote_id"`
	ZoneId                    *uint     `json:"zone_id"`
	VatCommissionRateRemoteId string    `gorm:"size:64;index" json:"vat_commission_rate_remote_id"`
	VatCommissionRateId       *uint     `json:"vat_commission_rate_id"`
	CreatedAt                 time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type Circle struct {
	ID                        uint      `gorm:"primary_key" json:"id"`
	RemoteId                  string    `gorm:"size:64;uniqueIndex;not null" json:"remote_id"`
	Name                      string    `gorm:"size:255;not null" json:"name"`
	DivisionRemoteId          string    `gorm:"size:64;index" json:"division_remote_id"`
	DivisionId                *uint     `json:"division_id"`
	ZoneRemoteId              string    `gorm:"size:64" json:"zone_remote_id"`
	ZoneId                    *uint     `json:"zone_id"`
	VatCommissionRateRemoteId string    `gorm:"size:64" json:"vat_commission_rate_remote_id"`
	VatCommissionRateId       *uint     `json:"vat_commission_rate_id"`
	CreatedAt                 time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type ServiceType struct {
	ID            uint            `gorm:"primary_key" json:"id"`
	RemoteId      string          `gorm:"size:64;uniqueIndex;not null" json:"remote_id"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	Code          string          `gorm:"size:64" json:"code"`
	VatPercentage decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"vat_percentage"`
	SdPercentage  decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"sd_percentage"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
