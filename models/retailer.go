package models

import (
	"time"
)

type RetailerRegistration struct {
	ID                 uint                  `gorm:"primary_key" json:"id"`
	BusinessName       string                `gorm:"size:255;not null" json:"business_name" validate:"required"`
	OwnerName          string                `gorm:"size:255;not null" json:"owner_name" validate:"required"`
	OwnerMobile        string                `gorm:"size:32;not null" json:"owner_mobile" validate:"required"`
	OwnerEmail         string                `gorm:"size:255" json:"owner_email" validate:"omitempty,email"`
	OwnerNid           string                `gorm:"size:64" json:"owner_nid"`
	Bin                string                `gorm:"size:64" json:"bin"`
	TradeLicenseNo     string                `gorm:"size:128" json:"trade_license_no"`
	Address            string                `gorm:"type:text" json:"address" validate:"required"`
	ZoneRemoteId       string                `gorm:"size:64" json:"zone_id" validate:"required"`
	CommissionRemoteId string                `gorm:"size:64" json:"vat_commissionrate_id" validate:"required"`
	DivisionRemoteId   string                `gorm:"size:64" json:"division_id" validate:"required"`
	CircleRemoteId     string                `gorm:"size:64" json:"circle_id" validate:"required"`
	ServiceTypes       []RetailerServiceType `gorm:"foreignKey:RetailerRegistrationId" json:"service_types" validate:"required,min=1,dive"`
	RetailerId         string                `gorm:"size:64;index" json:"retailer_id"`
	RetailerNumber     string                `gorm:"size:64" json:"retailer_number"`
	Response           string                `gorm:"type:longtext" json:"response"`
	DocStatus          DocStatus             `gorm:"size:20;not null;default:Draft" json:"docstatus"`
	CreatedAt          time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

type RetailerServiceType struct {
	ID                     uint   `gorm:"primary_key" json:"id"`
	RetailerRegistrationId uint   `gorm:"index;not null" json:"retailer_registration_id"`
	ServiceTypeRemoteId    string `gorm:"size:64;not null" json:"service_type_id" validate:"required"`
}

// IsRegistered is true once the authority assigned a retailer id.
func (r RetailerRegistration) IsRegistered() bool {
	return r.RetailerId != ""
}

// ServiceTypeIds flattens the linked service types into the remote ids the
// authority expects.
func (r RetailerRegistration) ServiceTypeIds() []string {
	ids := make([]string, 0, len(r.ServiceTypes))
	for _, st := range r.ServiceTypes {
		if st.ServiceTypeRemoteId != "" {
			ids = append(ids, st.ServiceTypeRemoteId)
		}
	}
	return ids
}

type RetailerBranchRegistration struct {
	ID               uint      `gorm:"primary_key" json:"id"`
	RetailerId       string    `gorm:"size:64;index;not null" json:"retailer_id" validate:"required"`
	BranchName       string    `gorm:"size:255;not null" json:"branch_name" validate:"required"`
	ContactPerson    string    `gorm:"size:255" json:"contact_person"`
	ContactMobile    string    `gorm:"size:32" json:"contact_mobile" validate:"required"`
	Address          string    `gorm:"type:text" json:"address" validate:"required"`
	ZoneRemoteId     string    `gorm:"size:64" json:"zone_id"`
	DivisionRemoteId string    `gorm:"size:64" json:"division_id"`
	CircleRemoteId   string    `gorm:"size:64" json:"circle_id" validate:"required"`
	BranchId         string    `gorm:"size:64;index" json:"branch_id"`
	BranchNumber     string    `gorm:"size:64" json:"branch_number"`
	Response         string    `gorm:"type:longtext" json:"response"`
	DocStatus        DocStatus `gorm:"size:20;not null;default:Draft" json:"docstatus"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b RetailerBranchRegistration) IsRegistered() bool {
	return b.BranchId != ""
}
