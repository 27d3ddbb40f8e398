package vschallan

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/invento-software-limited/Smart-Vat-Challan/config"
	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/store"
	"github.com/invento-software-limited/Smart-Vat-Challan/utils"
)

type referenceEndpoint struct {
	kind        models.ReferenceKind
	path        string
	collection  []string
	parentQuery string
	required    []string
}

var (
	zoneEndpoint = referenceEndpoint{
		kind:       models.ReferenceKindZone,
		path:       "/integration/zone",
		collection: []string{"zone", "zones", "data", "results"},
		required:   []string{"id", "name"},
	}
	vatCommissionRateEndpoint = referenceEndpoint{
		kind:        models.ReferenceKindVatCommissionRate,
		path:        "/integration/vat_commissionrate",
		collection:  []string{"vat_commissionrate", "vat_commission_rate", "vat_commissionrates", "data", "results"},
		parentQuery: "zone_id",
		required:    []string{"id", "name"},
	}
	divisionEndpoint = referenceEndpoint{
		kind:        models.ReferenceKindDivision,
		path:        "/integration/division",
		collection:  []string{"division", "divisions", "data", "results"},
		parentQuery: "vat_commissionrate_id",
		required:    []string{"id", "name"},
	}
	circleEndpoint = referenceEndpoint{
		kind:        models.ReferenceKindCircle,
		path:        "/integration/circle",
		collection:  []string{"circle", "circles", "data", "results"},
		parentQuery: "division_id",
		required:    []string{"id", "name", "division_id"},
	}
	serviceTypeEndpoint = referenceEndpoint{
		kind:       models.ReferenceKindServiceType,
		path:       "/integration/retailer_service_type",
		collection: []string{"retailer_service_type", "service_type", "service_types", "data", "results"},
		required:   []string{"id", "name"},
	}
)

// extractCollection finds the record list in doc. A single record, or a
// wrapper holding one, is returned as a one-element list.
func extractCollection(doc Document, keys []string) []Document {
	for _, key := range keys {
		if v, ok := doc[key]; ok {
			if items := collectionItems(v, keys, 0); items != nil {
				return items
			}
		}
	}
	if doc.String("id") != "" {
		return []Document{doc}
	}
	return nil
}

func collectionItems(v any, keys []string, depth int) []Document {
	if depth > 3 {
		return nil
	}
	switch t := v.(type) {
	case []any:
		return documents(t)
	case Document:
		return collectionItems(map[string]any(t), keys, depth)
	case map[string]any:
		d := Document(t)
		if d.String("id") != "" {
			return []Document{d}
		}
		for _, key := range keys {
			if inner, ok := d[key]; ok {
				return collectionItems(inner, keys, depth+1)
			}
		}
		if len(d) == 1 {
			for _, inner := range d {
				return collectionItems(inner, keys, depth+1)
			}
		}
	}
	return nil
}

func hasRequired(item Document, fields []string) bool {
	for _, f := range fields {
		if item.String(f) == "" {
			return false
		}
	}
	return true
}

// syncReference returns local rows when present and not forced, otherwise
// fetches from the authority and inserts the records it does not have yet.
func syncReference[T any](
	ctx context.Context,
	s *Service,
	ep referenceEndpoint,
	forceRefresh bool,
	parentID string,
	list func(ctx context.Context) ([]T, error),
	insert func(ctx context.Context, item Document) error,
) ([]T, error) {
	op := "Get." + string(ep.kind)

	if !forceRefresh {
		var cached []T
		hit, err := s.cache.Get(ctx, ep.kind, parentID, &cached)
		if err != nil {
			config.LogError(s.logger, moduleName, op, "reference cache get", parentID, err)
		}
		if hit && len(cached) > 0 {
			return cached, nil
		}
		local, err := list(ctx)
		if err != nil {
			return nil, err
		}
		if len(local) > 0 {
			if err := s.cache.Set(ctx, ep.kind, parentID, local); err != nil {
				config.LogError(s.logger, moduleName, op, "reference cache set", parentID, err)
			}
			return local, nil
		}
	}

	var query url.Values
	if ep.parentQuery != "" && parentID != "" {
		query = url.Values{ep.parentQuery: []string{parentID}}
	}
	doc, err := s.Call(ctx, http.MethodGet, ep.path, nil, query)
	if err != nil {
		return nil, err
	}

	inserted, skipped := 0, 0
	for _, item := range extractCollection(doc, ep.collection) {
		if !hasRequired(item, ep.required) {
			skipped++
			continue
		}
		if _, err := s.repo.ReferenceLocalID(ctx, ep.kind, item.String("id")); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if err := insert(ctx, item); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				continue
			}
			return nil, err
		}
		inserted++
	}

	if inserted > 0 {
		if err := s.cache.Invalidate(ctx, ep.kind); err != nil {
			config.LogError(s.logger, moduleName, op, "reference cache invalidate", nil, err)
		}
	}
	s.logger.WithFields(logrus.Fields{
		"module":   moduleName,
		"func":     op,
		"parent":   parentID,
		"inserted": inserted,
		"skipped":  skipped,
	}).Info("reference data synced")

	return list(ctx)
}

// localID resolves a parent reference by remote id. Missing parents leave the
// link unset.
func (s *Service) localID(ctx context.Context, kind models.ReferenceKind, remoteID string) (*uint, error) {
	if remoteID == "" {
		return nil, nil
	}
	id, err := s.repo.ReferenceLocalID(ctx, kind, remoteID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &id, nil
}

func (s *Service) GetZones(ctx context.Context, forceRefresh bool) ([]models.Zone, error) {
	return syncReference(ctx, s, zoneEndpoint, forceRefresh, "",
		s.repo.ListZones,
		func(ctx context.Context, item Document) error {
			_, err := s.repo.CreateZone(ctx, models.Zone{
				RemoteId: item.String("id"),
				Name:     item.String("name"),
			})
			return err
		})
}

func (s *Service) GetVatCommissionRates(ctx context.Context, forceRefresh bool, zoneID string) ([]models.VatCommissionRate, error) {
	return syncReference(ctx, s, vatCommissionRateEndpoint, forceRefresh, zoneID,
		func(ctx context.Context) ([]models.VatCommissionRate, error) {
			return s.repo.ListVatCommissionRates(ctx, zoneID)
		},
		func(ctx context.Context, item Document) error {
			zoneRemote := item.firstString("zone_id", "zone")
			if zoneRemote == "" {
				zoneRemote = zoneID
			}
			zoneLocal, err := s.localID(ctx, models.ReferenceKindZone, zoneRemote)
			if err != nil {
				return err
			}
			_, err = s.repo.CreateVatCommissionRate(ctx, models.VatCommissionRate{
				RemoteId:     item.String("id"),
				Name:         item.String("name"),
				ZoneRemoteId: zoneRemote,
				ZoneId:       zoneLocal,
			})
			return err
		})
}

func (s *Service) GetDivisions(ctx context.Context, forceRefresh bool, rateID string) ([]models.Division, error) {
	return syncReference(ctx, s, divisionEndpoint, forceRefresh, rateID,
		func(ctx context.Context) ([]models.Division, error) {
			return s.repo.ListDivisions(ctx, rateID)
		},
		func(ctx context.Context, item Document) error {
			zoneRemote := item.firstString("zone_id", "zone")
			rateRemote := item.firstString("vat_commissionrate_id", "vat_commission_rate_id", "vat_commissionrate")
			if rateRemote == "" {
				rateRemote = rateID
			}
			zoneLocal, err := s.localID(ctx, models.ReferenceKindZone, zoneRemote)
			if err != nil {
				return err
			}
			rateLocal, err := s.localID(ctx, models.ReferenceKindVatCommissionRate, rateRemote)
			if err != nil {
				return err
			}
			_, err = s.repo.CreateDivision(ctx, models.Division{
				RemoteId:                  item.String("id"),
				Name:                      item.String("name"),
				ZoneRemoteId:              zoneRemote,
				ZoneId:                    zoneLocal,
				VatCommissionRateRemoteId: rateRemote,
				VatCommissionRateId:       rateLocal,
			})
			return err
		})
}

func (s *Service) GetCircles(ctx context.Context, forceRefresh bool, divisionID string) ([]models.Circle, error) {
	return syncReference(ctx, s, circleEndpoint, forceRefresh, divisionID,
		func(ctx context.Context) ([]models.Circle, error) {
			return s.repo.ListCircles(ctx, divisionID)
		},
		func(ctx context.Context, item Document) error {
			divisionRemote := item.String("division_id")
			zoneRemote := item.firstString("zone_id", "zone")
			rateRemote := item.firstString("vat_commissionrate_id", "vat_commission_rate_id", "vat_commissionrate")
			divisionLocal, err := s.localID(ctx, models.ReferenceKindDivision, divisionRemote)
			if err != nil {
				return err
			}
			zoneLocal, err := s.localID(ctx, models.ReferenceKindZone, zoneRemote)
			if err != nil {
				return err
			}
			rateLocal, err := s.localID(ctx, models.ReferenceKindVatCommissionRate, rateRemote)
			if err != nil {
				return err
			}
			_, err = s.repo.CreateCircle(ctx, models.Circle{
				RemoteId:                  item.String("id"),
				Name:                      item.String("name"),
				DivisionRemoteId:          divisionRemote,
				DivisionId:                divisionLocal,
				ZoneRemoteId:              zoneRemote,
				ZoneId:                    zoneLocal,
				VatCommissionRateRemoteId: rateRemote,
				VatCommissionRateId:       rateLocal,
			})
			return err
		})
}

func (s *Service) GetServiceTypes(ctx context.Context, forceRefresh bool) ([]models.ServiceType, error) {
	return syncReference(ctx, s, serviceTypeEndpoint, forceRefresh, "",
		s.repo.ListServiceTypes,
		func(ctx context.Context, item Document) error {
			_, err := s.repo.CreateServiceType(ctx, models.ServiceType{
				RemoteId:      item.String("id"),
				Name:          item.String("name"),
				Code:          item.firstString("code", "service_code"),
				VatPercentage: utils.DecimalOrZero(item.firstString("vat_percentage", "vat")),
				SdPercentage:  utils.DecimalOrZero(item.firstString("sd_percentage", "sd")),
			})
			return err
		})
}

// ReferenceSyncReport counts the rows stored per kind after a full sync.
type ReferenceSyncReport struct {
	Zones              int `json:"zones"`
	VatCommissionRates int `json:"vat_commission_rates"`
	Divisions          int `json:"divisions"`
	Circles            int `json:"circles"`
	ServiceTypes       int `json:"service_types"`
}

// SyncReferenceData refreshes every kind in dependency order so parent links
// resolve: zones, commission rates, divisions, circles, then service types.
func (s *Service) SyncReferenceData(ctx context.Context) (ReferenceSyncReport, error) {
	var report ReferenceSyncReport

	zones, err := s.GetZones(ctx, true)
	if err != nil {
		return report, err
	}
	report.Zones = len(zones)

	rates, err := s.GetVatCommissionRates(ctx, true, "")
	if err != nil {
		return report, err
	}
	report.VatCommissionRates = len(rates)

	divisions, err := s.GetDivisions(ctx, true, "")
	if err != nil {
		return report, err
	}
	report.Divisions = len(divisions)

	circles, err := s.GetCircles(ctx, true, "")
	if err != nil {
		return report, err
	}
	report.Circles = len(circles)

	serviceTypes, err := s.GetServiceTypes(ctx, true)
	if err != nil {
		return report, err
	}
	report.ServiceTypes = len(serviceTypes)

	return report, nil
}

// GetReference is the getter of kind. parentID filters the kinds that have a
// parent and is ignored by the others.
func (s *Service) GetReference(ctx context.Context, kind models.ReferenceKind, forceRefresh bool, parentID string) (any, error) {
	switch kind {
	case models.ReferenceKindZone:
		return s.GetZones(ctx, forceRefresh)
	case models.ReferenceKindVatCommissionRate:
		return s.GetVatCommissionRates(ctx, forceRefresh, parentID)
	case models.ReferenceKindDivision:
		return s.GetDivisions(ctx, forceRefresh, parentID)
	case models.ReferenceKindCircle:
		return s.GetCircles(ctx, forceRefresh, parentID)
	case models.ReferenceKindServiceType:
		return s.GetServiceTypes(ctx, forceRefresh)
	default:
		return nil, newError(ErrValidation, "GetReference", fmt.Sprintf("unknown reference kind %q", kind), nil)
	}
}
