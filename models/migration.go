package models

import (
	"log"

	"gorm.io/gorm"
)

// AllModels lists every table this service owns, parents before children.
func AllModels() []interface{} {
	return []interface{}{
		&VendorConfiguration{},
		&Zone{}, &VatCommissionRate{}, &Division{}, &Circle{}, &ServiceType{},
		&RetailerRegistration{}, &RetailerServiceType{}, &RetailerBranchRegistration{},
		&PosTransaction{}, &PosTransactionItem{},
		&VatInvoice{},
		&SyncRun{}, &SyncError{},
	}
}

func MigrateTable(db *gorm.DB) {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		log.Fatal(err)
	}
}
