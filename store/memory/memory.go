package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/store"
)

// Store is an in-process Repository for tests and local runs.
// Every read returns a copy so callers cannot mutate stored rows.
type Store struct {
	mu                 sync.RWMutex
	nextID             uint
	vendorConfig       *models.VendorConfiguration
	zones              []models.Zone
	rates              []models.VatCommissionRate
	divisions          []models.Division
	circles            []models.Circle
	serviceTypes       []models.ServiceType
	retailersByID      map[uint]models.RetailerRegistration
	branchesByID       map[uint]models.RetailerBranchRegistration
	transactionsByName map[string]models.PosTransaction
	invoicesByNumber   map[string]models.VatInvoice
	syncRunsByID       map[uint]models.SyncRun
	syncErrors         []models.SyncError
}

func New() *Store {
	return &Store{
		retailersByID:      map[uint]models.RetailerRegistration{},
		branchesByID:       map[uint]models.RetailerBranchRegistration{},
		transactionsByName: map[string]models.PosTransaction{},
		invoicesByNumber:   map[string]models.VatInvoice{},
		syncRunsByID:       map[uint]models.SyncRun{},
	}
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

func (s *Store) GetVendorConfiguration(ctx context.Context) (*models.VendorConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.vendorConfig == nil {
		return nil, store.ErrNotFound
	}
	cfg := copyVendorConfig(*s.vendorConfig)
	return &cfg, nil
}

func (s *Store) SaveVendorConfiguration(ctx context.Context, cfg models.VendorConfiguration) (*models.VendorConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.ID == 0 {
		if s.vendorConfig != nil {
			cfg.ID = s.vendorConfig.ID
		} else {
			cfg.ID = s.id()
		}
	}
	cfg.UpdatedAt = time.Now()
	stored := copyVendorConfig(cfg)
	s.vendorConfig = &stored
	out := copyVendorConfig(cfg)
	return &out, nil
}

func (s *Store) UpdateVendorToken(ctx context.Context, accessToken string, expiryDate string, companyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vendorConfig == nil {
		return store.ErrNotFound
	}
	s.vendorConfig.AccessToken = accessToken
	s.vendorConfig.ExpiryDate = expiryDate
	s.vendorConfig.CompanyId = companyID
	s.vendorConfig.UpdatedAt = time.Now()
	return nil
}

func (s *Store) UpdateLastSyncDate(ctx context.Context, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vendorConfig == nil {
		return store.ErrNotFound
	}
	d := date
	s.vendorConfig.LastSyncDate = &d
	return nil
}

func copyVendorConfig(cfg models.VendorConfiguration) models.VendorConfiguration {
	if cfg.LastSyncDate != nil {
		d := *cfg.LastSyncDate
		cfg.LastSyncDate = &d
	}
	return cfg
}

func (s *Store) ListZones(ctx context.Context) ([]models.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.zones), nil
}

func (s *Store) ListVatCommissionRates(ctx context.Context, zoneRemoteID string) ([]models.VatCommissionRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.VatCommissionRate, 0, len(s.rates))
	for _, r := range s.rates {
		if zoneRemoteID == "" || r.ZoneRemoteId == zoneRemoteID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) ListDivisions(ctx context.Context, rateRemoteID string) ([]models.Division, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Division, 0, len(s.divisions))
	for _, d := range s.divisions {
		if rateRemoteID == "" || d.VatCommissionRateRemoteId == rateRemoteID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) ListCircles(ctx context.Context, divisionRemoteID string) ([]models.Circle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Circle, 0, len(s.circles))
	for _, c := range s.circles {
		if divisionRemoteID == "" || c.DivisionRemoteId == divisionRemoteID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ListServiceTypes(ctx context.Context) ([]models.ServiceType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.serviceTypes), nil
}

func (s *Store) ReferenceLocalID(ctx context.Context, kind models.ReferenceKind, remoteID string) (uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.referenceLocalID(kind, remoteID); ok {
		return id, nil
	}
	return 0, store.ErrNotFound
}

func (s *Store) referenceLocalID(kind models.ReferenceKind, remoteID string) (uint, bool) {
	switch kind {
	case models.ReferenceKindZone:
		for _, z := range s.zones {
			if z.RemoteId == remoteID {
				return z.ID, true
			}
		}
	case models.ReferenceKindVatCommissionRate:
		for _, r := range s.rates {
			if r.RemoteId == remoteID {
				return r.ID, true
			}
		}
	case models.ReferenceKindDivision:
		for _, d := range s.divisions {
			if d.RemoteId == remoteID {
				return d.ID, true
			}
		}
	case models.ReferenceKindCircle:
		for _, c := range s.circles {
			if c.RemoteId == remoteID {
				return c.ID, true
			}
		}
	case models.ReferenceKindServiceType:
		for _, st := range s.serviceTypes {
			if st.RemoteId == remoteID {
				return st.ID, true
			}
		}
	}
	return 0, false
}

func (s *Store) CreateZone(ctx context.Context, zone models.Zone) (*models.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.referenceLocalID(models.ReferenceKindZone, zone.RemoteId); ok {
		return nil, store.ErrAlreadyExists
	}
	zone.ID = s.id()
	zone.CreatedAt = time.Now()
	s.zones = append(s.zones, zone)
	return &zone, nil
}

func (s *Store) CreateVatCommissionRate(ctx context.Context, rate models.VatCommissionRate) (*models.VatCommissionRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.referenceLocalID(models.ReferenceKindVatCommissionRate, rate.RemoteId); ok {
		return nil, store.ErrAlreadyExists
	}
	rate.ID = s.id()
	rate.CreatedAt = time.Now()
	s.rates = append(s.rates, rate)
	return &rate, nil
}

func (s *Store) CreateDivision(ctx context.Context, division models.Division) (*models.Division, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.referenceLocalID(models.ReferenceKindDivision, division.RemoteId); ok {
		return nil, store.ErrAlreadyExists
	}
	division.ID = s.id()
	division.CreatedAt = time.Now()
	s.divisions = append(s.divisions, division)
	return &division, nil
}

func (s *Store) CreateCircle(ctx context.Context, circle models.Circle) (*models.Circle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.referenceLocalID(models.ReferenceKindCircle, circle.RemoteId); ok {
		return nil, store.ErrAlreadyExists
	}
	circle.ID = s.id()
	circle.CreatedAt = time.Now()
	s.circles = append(s.circles, circle)
	return &circle, nil
}

func (s *Store) CreateServiceType(ctx context.Context, serviceType models.ServiceType) (*models.ServiceType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.referenceLocalID(models.ReferenceKindServiceType, serviceType.RemoteId); ok {
		return nil, store.ErrAlreadyExists
	}
	serviceType.ID = s.id()
	serviceType.CreatedAt = time.Now()
	s.serviceTypes = append(s.serviceTypes, serviceType)
	return &serviceType, nil
}

func (s *Store) GetRetailer(ctx context.Context, id uint) (*models.RetailerRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.retailersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r = copyRetailer(r)
	return &r, nil
}

func (s *Store) GetRetailerByRemoteID(ctx context.Context, retailerID string) (*models.RetailerRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.retailersByID {
		if retailerID != "" && r.RetailerId == retailerID {
			r = copyRetailer(r)
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) SaveRetailer(ctx context.Context, retailer models.RetailerRegistration) (*models.RetailerRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if retailer.ID == 0 {
		retailer.ID = s.id()
		retailer.CreatedAt = time.Now()
	}
	for i := range retailer.ServiceTypes {
		if retailer.ServiceTypes[i].ID == 0 {
			retailer.ServiceTypes[i].ID = s.id()
		}
		retailer.ServiceTypes[i].RetailerRegistrationId = retailer.ID
	}
	retailer.UpdatedAt = time.Now()
	s.retailersByID[retailer.ID] = copyRetailer(retailer)
	out := copyRetailer(retailer)
	return &out, nil
}

func copyRetailer(r models.RetailerRegistration) models.RetailerRegistration {
	r.ServiceTypes = slices.Clone(r.ServiceTypes)
	return r
}

func (s *Store) GetBranch(ctx context.Context, id uint) (*models.RetailerBranchRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.branchesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (s *Store) SaveBranch(ctx context.Context, branch models.RetailerBranchRegistration) (*models.RetailerBranchRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if branch.ID == 0 {
		branch.ID = s.id()
		branch.CreatedAt = time.Now()
	}
	branch.UpdatedAt = time.Now()
	s.branchesByID[branch.ID] = branch
	return &branch, nil
}

func (s *Store) GetPosTransaction(ctx context.Context, name string) (*models.PosTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.transactionsByName[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	txn = copyTransaction(txn)
	return &txn, nil
}

func (s *Store) SavePosTransaction(ctx context.Context, txn models.PosTransaction) (*models.PosTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.transactionsByName[txn.Name]; ok && txn.ID == 0 {
		txn.ID = existing.ID
	}
	if txn.ID == 0 {
		txn.ID = s.id()
		txn.CreatedAt = time.Now()
	}
	for i := range txn.Details {
		if txn.Details[i].ID == 0 {
			txn.Details[i].ID = s.id()
		}
		txn.Details[i].PosTransactionId = txn.ID
	}
	txn.UpdatedAt = time.Now()
	s.transactionsByName[txn.Name] = copyTransaction(txn)
	out := copyTransaction(txn)
	return &out, nil
}

func (s *Store) ListUnlinkedReturnTransactions(ctx context.Context, since *time.Time) ([]models.PosTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	linked := map[string]bool{}
	for _, inv := range s.invoicesByNumber {
		if inv.ReturnInvoiceNo != "" {
			linked[inv.ReturnInvoiceNo] = true
		}
	}
	var out []models.PosTransaction
	for _, txn := range s.transactionsByName {
		if txn.Status != models.PosTransactionStatusReturn || linked[txn.Name] {
			continue
		}
		if since != nil && txn.PostingDate.Before(truncateDay(*since)) {
			continue
		}
		out = append(out, copyTransaction(txn))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PostingDate.Equal(out[j].PostingDate) {
			return out[i].Name < out[j].Name
		}
		return out[i].PostingDate.Before(out[j].PostingDate)
	})
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func copyTransaction(txn models.PosTransaction) models.PosTransaction {
	txn.Details = slices.Clone(txn.Details)
	return txn
}

func (s *Store) GetVatInvoice(ctx context.Context, invoiceNumber string) (*models.VatInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoicesByNumber[invoiceNumber]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &inv, nil
}

func (s *Store) GetVatInvoiceByReturnInvoiceNo(ctx context.Context, returnInvoiceNo string) (*models.VatInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invoicesByNumber {
		if returnInvoiceNo != "" && inv.ReturnInvoiceNo == returnInvoiceNo {
			return &inv, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateVatInvoice(ctx context.Context, invoice models.VatInvoice) (*models.VatInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoicesByNumber[invoice.InvoiceNumber]; ok {
		return nil, store.ErrAlreadyExists
	}
	invoice.ID = s.id()
	invoice.CreatedAt = time.Now()
	invoice.UpdatedAt = invoice.CreatedAt
	s.invoicesByNumber[invoice.InvoiceNumber] = invoice
	return &invoice, nil
}

func (s *Store) SaveVatInvoice(ctx context.Context, invoice models.VatInvoice) (*models.VatInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.invoicesByNumber[invoice.InvoiceNumber]
	if !ok {
		return nil, store.ErrNotFound
	}
	invoice.ID = existing.ID
	invoice.CreatedAt = existing.CreatedAt
	invoice.UpdatedAt = time.Now()
	s.invoicesByNumber[invoice.InvoiceNumber] = invoice
	return &invoice, nil
}

func (s *Store) ListVatInvoicesByStatus(ctx context.Context, statuses ...models.VatInvoiceStatus) ([]models.VatInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.VatInvoice
	for _, inv := range s.invoicesByNumber {
		if slices.Contains(statuses, inv.Status) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateSyncRun(ctx context.Context, run models.SyncRun) (*models.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.ID = s.id()
	run.CreatedAt = time.Now()
	s.syncRunsByID[run.ID] = run
	return &run, nil
}

func (s *Store) SaveSyncRun(ctx context.Context, run models.SyncRun) (*models.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.syncRunsByID[run.ID]; !ok {
		return nil, store.ErrNotFound
	}
	run.UpdatedAt = time.Now()
	s.syncRunsByID[run.ID] = run
	return &run, nil
}

func (s *Store) CreateSyncError(ctx context.Context, syncErr models.SyncError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	syncErr.ID = s.id()
	syncErr.CreatedAt = time.Now()
	s.syncErrors = append(s.syncErrors, syncErr)
	return nil
}

// SyncRuns returns the recorded runs ordered by id.
func (s *Store) SyncRuns() []models.SyncRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SyncRun, 0, len(s.syncRunsByID))
	for _, run := range s.syncRunsByID {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) SyncErrors() []models.SyncError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.syncErrors)
}

var _ store.Repository = (*Store)(nil)
