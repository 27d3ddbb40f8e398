package store

import (
	"context"
	"errors"
	"time"

	"github.com/invento-software-limited/Smart-Vat-Challan/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

type Repository interface {
	GetVendorConfiguration(ctx context.Context) (*models.VendorConfiguration, error)
	SaveVendorConfiguration(ctx context.Context, cfg models.VendorConfiguration) (*models.VendorConfiguration, error)
	UpdateVendorToken(ctx context.Context, accessToken string, expiryDate string, companyID string) error
	UpdateLastSyncDate(ctx context.Context, date time.Time) error

	ListZones(ctx context.Context) ([]models.Zone, error)
	ListVatCommissionRates(ctx context.Context, zoneRemoteID string) ([]models.VatCommissionRate, error)
	ListDivisions(ctx context.Context, rateRemoteID string) ([]models.Division, error)
	ListCircles(ctx context.Context, divisionRemoteID string) ([]models.Circle, error)
	ListServiceTypes(ctx context.Context) ([]models.ServiceType, error)
	// ReferenceLocalID returns the local id of a reference row by remote id,
	// or ErrNotFound.
	ReferenceLocalID(ctx context.Context, kind models.ReferenceKind, remoteID string) (uint, error)
	CreateZone(ctx context.Context, zone models.Zone) (*models.Zone, error)
	CreateVatCommissionRate(ctx context.Context, rate models.VatCommissionRate) (*models.VatCommissionRate, error)
	CreateDivision(ctx context.Context, division models.Division) (*models.Division, error)
	CreateCircle(ctx context.Context, circle models.Circle) (*models.Circle, error)
	CreateServiceType(ctx context.Context, serviceType models.ServiceType) (*models.ServiceType, error)

	GetRetailer(ctx context.Context, id uint) (*models.RetailerRegistration, error)
	GetRetailerByRemoteID(ctx context.Context, retailerID string) (*models.RetailerRegistration, error)
	SaveRetailer(ctx context.Context, retailer models.RetailerRegistration) (*models.RetailerRegistration, error)
	GetBranch(ctx context.Context, id uint) (*models.RetailerBranchRegistration, error)
	SaveBranch(ctx context.Context, branch models.RetailerBranchRegistration) (*models.RetailerBranchRegistration, error)

	GetPosTransaction(ctx context.Context, name string) (*models.PosTransaction, error)
	SavePosTransaction(ctx context.Context, txn models.PosTransaction) (*models.PosTransaction, error)
	// ListUnlinkedReturnTransactions returns return transactions posted on or
	// after since (all when since is nil) that no VAT invoice references yet.
	ListUnlinkedReturnTransactions(ctx context.Context, since *time.Time) ([]models.PosTransaction, error)

	GetVatInvoice(ctx context.Context, invoiceNumber string) (*models.VatInvoice, error)
	GetVatInvoiceByReturnInvoiceNo(ctx context.Context, returnInvoiceNo string) (*models.VatInvoice, error)
	CreateVatInvoice(ctx context.Context, invoice models.VatInvoice) (*models.VatInvoice, error)
	SaveVatInvoice(ctx context.Context, invoice models.VatInvoice) (*models.VatInvoice, error)
	ListVatInvoicesByStatus(ctx context.Context, statuses ...models.VatInvoiceStatus) ([]models.VatInvoice, error)

	CreateSyncRun(ctx context.Context, run models.SyncRun) (*models.SyncRun, error)
	SaveSyncRun(ctx context.Context, run models.SyncRun) (*models.SyncRun, error)
	CreateSyncError(ctx context.Context, syncErr models.SyncError) error
}
