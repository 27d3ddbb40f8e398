package vschallan

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/invento-software-limited/Smart-Vat-Challan/config"
	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/store"
	"github.com/invento-software-limited/Smart-Vat-Challan/utils"
)

const moduleName = "vschallan"

const requestTimeout = 30 * time.Second

// FileLocator resolves an uploaded file path to its content.
type FileLocator interface {
	Locate(ctx context.Context, path string) (*utils.UploadedFile, error)
}

// Options carries every collaborator of the Service. Only Repo is required.
type Options struct {
	Repo        store.Repository
	HTTPClient  *http.Client
	Logger      *logrus.Logger
	Dispatcher  Dispatcher
	Cache       ReferenceCache
	Locker      Locker
	Files       FileLocator
	Secrets     *config.SecretBox
	PhoneRegion string
	Now         func() time.Time
}

// Service is the VAT Smart Challan client: token lifecycle, transport,
// reference data, registrations and the invoice state machine.
type Service struct {
	repo        store.Repository
	http        *http.Client
	logger      *logrus.Logger
	dispatcher  Dispatcher
	cache       ReferenceCache
	locker      Locker
	files       FileLocator
	secrets     *config.SecretBox
	validate    *validator.Validate
	phoneRegion string
	now         func() time.Time
	baseURL     string

	tokenMu sync.Mutex
}

// New loads the vendor configuration and fails fast when it is missing,
// disabled or incomplete.
func New(ctx context.Context, opts Options) (*Service, error) {
	const op = "New"
	if opts.Repo == nil {
		return nil, newError(ErrConfiguration, op, "repository is required", nil)
	}

	s := &Service{
		repo:        opts.Repo,
		http:        opts.HTTPClient,
		logger:      opts.Logger,
		dispatcher:  opts.Dispatcher,
		cache:       opts.Cache,
		locker:      opts.Locker,
		files:       opts.Files,
		secrets:     opts.Secrets,
		validate:    validator.New(),
		phoneRegion: opts.PhoneRegion,
		now:         opts.Now,
	}
	if s.http == nil {
		s.http = &http.Client{Timeout: requestTimeout}
	}
	if s.logger == nil {
		s.logger = config.GetLogger()
	}
	if s.dispatcher == nil {
		s.dispatcher = NewInlineDispatcher(s.HandleSyncJob)
	}
	if s.cache == nil {
		s.cache = NoopReferenceCache{}
	}
	if s.locker == nil {
		s.locker = NewLocalLocker()
	}
	if s.files == nil {
		s.files = utils.NewUploadedFileLocator()
	}
	if s.phoneRegion == "" {
		s.phoneRegion = utils.CountryCode
	}
	if s.now == nil {
		s.now = time.Now
	}

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	s.baseURL = strings.TrimRight(cfg.BaseUrl, "/")
	return s, nil
}

// loadConfig reads the vendor configuration fresh from the repository.
func (s *Service) loadConfig(ctx context.Context) (*models.VendorConfiguration, error) {
	const op = "loadConfig"
	cfg, err := s.repo.GetVendorConfiguration(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(ErrConfiguration, op, "vendor configuration not found", err)
		}
		return nil, newError(ErrConfiguration, op, "load vendor configuration", err)
	}
	if cfg.Disabled {
		return nil, newError(ErrConfiguration, op, "vendor configuration is disabled", nil)
	}
	if err := s.validate.Struct(cfg); err != nil {
		return nil, newError(ErrConfiguration, op, utils.FormatValidationErrors(err), nil)
	}
	return cfg, nil
}

// Now is the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) openSecret(sealed string) (string, error) {
	if !config.IsSealed(sealed) {
		return sealed, nil
	}
	if s.secrets == nil {
		return "", errors.New("client secret is sealed but no secret key is configured")
	}
	return s.secrets.Open(sealed)
}

// SaveVendorConfiguration validates cfg, seals its client secret when a key is
// available and stores it as the singleton configuration.
func SaveVendorConfiguration(ctx context.Context, repo store.Repository, secrets *config.SecretBox, cfg models.VendorConfiguration) (*models.VendorConfiguration, error) {
	const op = "SaveVendorConfiguration"
	if cfg.SyncSchedule == "" {
		cfg.SyncSchedule = models.SyncScheduleDaily
	}
	cfg.BaseUrl = strings.TrimRight(strings.TrimSpace(cfg.BaseUrl), "/")
	if err := validator.New().Struct(cfg); err != nil {
		return nil, newError(ErrValidation, op, utils.FormatValidationErrors(err), nil)
	}
	if secrets != nil && !config.IsSealed(cfg.ClientSecret) {
		sealed, err := secrets.Seal(cfg.ClientSecret)
		if err != nil {
			return nil, newError(ErrConfiguration, op, "seal client secret", err)
		}
		cfg.ClientSecret = sealed
	}
	return repo.SaveVendorConfiguration(ctx, cfg)
}
