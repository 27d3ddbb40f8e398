package gormstore

import (
	"context"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/store"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) GetVendorConfiguration(ctx context.Context) (*models.VendorConfiguration, error) {
	var cfg models.VendorConfiguration
	if err := s.db.WithContext(ctx).Order("id").First(&cfg).Error; err != nil {
		return nil, notFound(err)
	}
	return &cfg, nil
}

func (s *Store) SaveVendorConfiguration(ctx context.Context, cfg models.VendorConfiguration) (*models.VendorConfiguration, error) {
	db := s.db.WithContext(ctx)
	if cfg.ID == 0 {
		var existing models.VendorConfiguration
		err := db.Order("id").First(&existing).Error
		if err == nil {
			cfg.ID = existing.ID
			cfg.CreatedAt = existing.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if err := db.Save(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Store) UpdateVendorToken(ctx context.Context, accessToken string, expiryDate string, companyID string) error {
	res := s.db.WithContext(ctx).Model(&models.VendorConfiguration{}).
		Where("id = (?)", s.db.Model(&models.VendorConfiguration{}).Select("MIN(id)")).
		Updates(map[string]interface{}{
			"access_token": accessToken,
			"expiry_date":  expiryDate,
			"company_id":   companyID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateLastSyncDate(ctx context.Context, date time.Time) error {
	cfg, err := s.GetVendorConfiguration(ctx)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.VendorConfiguration{}).
		Where("id = ?", cfg.ID).
		Update("last_sync_date", date).Error
}

func (s *Store) ListZones(ctx context.Context) ([]models.Zone, error) {
	var rows []models.Zone
	err := s.db.WithContext(ctx).Order("id").Find(&rows).Error
	return rows, err
}

func (s *Store) ListVatCommissionRates(ctx context.Context, zoneRemoteID string) ([]models.VatCommissionRate, error) {
	var rows []models.VatCommissionRate
	q := s.db.WithContext(ctx).Order("id")
	if zoneRemoteID != "" {
		q = q.Where("zone_remote_id = ?", zoneRemoteID)
	}
	err := q.Find(&rows).Error
	return rows, err
}

func (s *Store) ListDivisions(ctx context.Context, rateRemoteID string) ([]models.Division, error) {
	var rows []models.Division
	q := s.db.WithContext(ctx).Order("id")
	if rateRemoteID != "" {
		q = q.Where("vat_commission_rate_remote_id = ?", rateRemoteID)
	}
	err := q.Find(&rows).Error
	return rows, err
}

func (s *Store) ListCircles(ctx context.Context, divisionRemoteID string) ([]models.Circle, error) {
	var rows []models.Circle
	q := s.db.WithContext(ctx).Order("id")
	if divisionRemoteID != "" {
		q = q.Where("division_remote_id = ?", divisionRemoteID)
	}
	err := q.Find(&rows).Error
	return rows, err
}

func (s *Store) ListServiceTypes(ctx context.Context) ([]models.ServiceType, error) {
	var rows []models.ServiceType
	err := s.db.WithContext(ctx).Order("id").Find(&rows).Error
	return rows, err
}

func referenceModel(kind models.ReferenceKind) (interface{}, bool) {
	switch kind {
	case models.ReferenceKindZone:
		return &models.Zone{}, true
	case models.ReferenceKindVatCommissionRate:
		return &models.VatCommissionRate{}, true
	case models.ReferenceKindDivision:
		return &models.Division{}, true
	case models.ReferenceKindCircle:
		return &models.Circle{}, true
	case models.ReferenceKindServiceType:
		return &models.ServiceType{}, true
	}
	return nil, false
}

func (s *Store) ReferenceLocalID(ctx context.Context, kind models.ReferenceKind, remoteID string) (uint, error) {
	model, ok := referenceModel(kind)
	if !ok {
		return 0, store.ErrNotFound
	}
	var ids []uint
	if err := s.db.WithContext(ctx).Model(model).
		Where("remote_id = ?", remoteID).
		Limit(1).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, store.ErrNotFound
	}
	return ids[0], nil
}

// createReference relies on the unique remote_id index as the backstop for
// the caller's existence check.
func createReference[T any](ctx context.Context, db *gorm.DB, row T) (*T, error) {
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, store.ErrAlreadyExists
		}
		return nil, err
	}
	return &row, nil
}

func (s *Store) CreateZone(ctx context.Context, zone models.Zone) (*models.Zone, error) {
	return createReference(ctx, s.db, zone)
}

func (s *Store) CreateVatCommissionRate(ctx context.Context, rate models.VatCommissionRate) (*models.VatCommissionRate, error) {
	return createReference(ctx, s.db, rate)
}

func (s *Store) CreateDivision(ctx context.Context, division models.Division) (*models.Division, error) {
	return createReference(ctx, s.db, division)
}

func (s *Store) CreateCircle(ctx context.Context, circle models.Circle) (*models.Circle, error) {
	return createReference(ctx, s.db, circle)
}

func (s *Store) CreateServiceType(ctx context.Context, serviceType models.ServiceType) (*models.ServiceType, error) {
	return createReference(ctx, s.db, serviceType)
}

func (s *Store) GetRetailer(ctx context.Context, id uint) (*models.RetailerRegistration, error) {
	var r models.RetailerRegistration
	if err := s.db.WithContext(ctx).Preload("ServiceTypes").First(&r, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *Store) GetRetailerByRemoteID(ctx context.Context, retailerID string) (*models.RetailerRegistration, error) {
	var r models.RetailerRegistration
	if err := s.db.WithContext(ctx).Preload("ServiceTypes").
		Where("retailer_id = ?", retailerID).
		First(&r).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *Store) SaveRetailer(ctx context.Context, retailer models.RetailerRegistration) (*models.RetailerRegistration, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("ServiceTypes").Save(&retailer).Error; err != nil {
			return err
		}
		if err := tx.Where("retailer_registration_id = ?", retailer.ID).
			Delete(&models.RetailerServiceType{}).Error; err != nil {
			return err
		}
		for i := range retailer.ServiceTypes {
			retailer.ServiceTypes[i].ID = 0
			retailer.ServiceTypes[i].RetailerRegistrationId = retailer.ID
		}
		if len(retailer.ServiceTypes) > 0 {
			return tx.Create(&retailer.ServiceTypes).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &retailer, nil
}

func (s *Store) GetBranch(ctx context.Context, id uint) (*models.RetailerBranchRegistration, error) {
	var b models.RetailerBranchRegistration
	if err := s.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (s *Store) SaveBranch(ctx context.Context, branch models.RetailerBranchRegistration) (*models.RetailerBranchRegistration, error) {
	if err := s.db.WithContext(ctx).Save(&branch).Error; err != nil {
		return nil, err
	}
	return &branch, nil
}

func (s *Store) GetPosTransaction(ctx context.Context, name string) (*models.PosTransaction, error) {
	var txn models.PosTransaction
	if err := s.db.WithContext(ctx).Preload("Details").
		Where("name = ?", name).
		First(&txn).Error; err != nil {
		return nil, notFound(err)
	}
	return &txn, nil
}

func (s *Store) SavePosTransaction(ctx context.Context, txn models.PosTransaction) (*models.PosTransaction, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if txn.ID == 0 {
			var existing models.PosTransaction
			err := tx.Where("name = ?", txn.Name).First(&existing).Error
			if err == nil {
				txn.ID = existing.ID
				txn.CreatedAt = existing.CreatedAt
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		if err := tx.Omit("Details").Save(&txn).Error; err != nil {
			return err
		}
		if err := tx.Where("pos_transaction_id = ?", txn.ID).
			Delete(&models.PosTransactionItem{}).Error; err != nil {
			return err
		}
		for i := range txn.Details {
			txn.Details[i].ID = 0
			txn.Details[i].PosTransactionId = txn.ID
		}
		if len(txn.Details) > 0 {
			return tx.Create(&txn.Details).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (s *Store) ListUnlinkedReturnTransactions(ctx context.Context, since *time.Time) ([]models.PosTransaction, error) {
	var rows []models.PosTransaction
	q := s.db.WithContext(ctx).Preload("Details").
		Where("status = ?", models.PosTransactionStatusReturn).
		Where("name NOT IN (?)", s.db.Model(&models.VatInvoice{}).
			Select("return_invoice_no").
			Where("return_invoice_no <> ''"))
	if since != nil {
		q = q.Where("posting_date >= ?", since.Format("2006-01-02"))
	}
	err := q.Order("posting_date, name").Find(&rows).Error
	return rows, err
}

func (s *Store) GetVatInvoice(ctx context.Context, invoiceNumber string) (*models.VatInvoice, error) {
	var inv models.VatInvoice
	if err := s.db.WithContext(ctx).Where("invoice_number = ?", invoiceNumber).First(&inv).Error; err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

func (s *Store) GetVatInvoiceByReturnInvoiceNo(ctx context.Context, returnInvoiceNo string) (*models.VatInvoice, error) {
	var inv models.VatInvoice
	if err := s.db.WithContext(ctx).Where("return_invoice_no = ?", returnInvoiceNo).First(&inv).Error; err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

func (s *Store) CreateVatInvoice(ctx context.Context, invoice models.VatInvoice) (*models.VatInvoice, error) {
	if err := s.db.WithContext(ctx).Create(&invoice).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, store.ErrAlreadyExists
		}
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) SaveVatInvoice(ctx context.Context, invoice models.VatInvoice) (*models.VatInvoice, error) {
	if invoice.ID == 0 {
		existing, err := s.GetVatInvoice(ctx, invoice.InvoiceNumber)
		if err != nil {
			return nil, err
		}
		invoice.ID = existing.ID
		invoice.CreatedAt = existing.CreatedAt
	}
	if err := s.db.WithContext(ctx).Save(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) ListVatInvoicesByStatus(ctx context.Context, statuses ...models.VatInvoiceStatus) ([]models.VatInvoice, error) {
	var rows []models.VatInvoice
	if len(statuses) == 0 {
		return rows, nil
	}
	err := s.db.WithContext(ctx).Where("status IN ?", statuses).Order("id").Find(&rows).Error
	return rows, err
}

func (s *Store) CreateSyncRun(ctx context.Context, run models.SyncRun) (*models.SyncRun, error) {
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Store) SaveSyncRun(ctx context.Context, run models.SyncRun) (*models.SyncRun, error) {
	if err := s.db.WithContext(ctx).Save(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Store) CreateSyncError(ctx context.Context, syncErr models.SyncError) error {
	return s.db.WithContext(ctx).Create(&syncErr).Error
}

var _ store.Repository = (*Store)(nil)
