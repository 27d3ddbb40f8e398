package vschallan

import (
	"context"
	"net/http"
	"testing"

	"github.com/invento-software-limited/Smart-Vat-Challan/models"
)

func TestGetZones_RepeatedForcedSyncIsIdempotent(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle(zoneEndpoint.path, jsonReply(http.StatusOK, `{"status_code":"200","data":[{"id":1,"name":"Dhaka"},{"id":2,"name":"Chattogram"}]}`))
	svc, repo := newTestService(t, f, models.SyncScheduleDaily)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		zones, err := svc.GetZones(ctx, true)
		if err != nil {
			t.Fatalf("GetZones pass %d error: %v", i, err)
		}
		if len(zones) != 2 {
			t.Fatalf("pass %d: expected 2 zones, got %d", i, len(zones))
		}
	}
	stored, _ := repo.ListZones(ctx)
	seen := map[string]bool{}
	for _, z := range stored {
		if seen[z.RemoteId] {
			t.Fatalf("remote id %s stored twice", z.RemoteId)
		}
		seen[z.RemoteId] = true
	}
	if f.count(zoneEndpoint.path) != 3 {
		t.Fatalf("forced refresh must call the API each time, got %d", f.count(zoneEndpoint.path))
	}
}

func TestGetZones_LocalRowsServeUnforcedReads(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle(zoneEndpoint.path, jsonReply(http.StatusOK, `{"zone":[{"id":"1","name":"Dhaka"}]}`))
	svc, _ := newTestService(t, f, models.SyncScheduleDaily)
	ctx := context.Background()

	if _, err := svc.GetZones(ctx, false); err != nil {
		t.Fatalf("GetZones error: %v", err)
	}
	if _, err := svc.GetZones(ctx, false); err != nil {
		t.Fatalf("GetZones error: %v", err)
	}
	if got := f.count(zoneEndpoint.path); got != 1 {
		t.Fatalf("expected 1 API call, got %d", got)
	}
}

func TestGetCircles_SkipsIncompleteRecordsAndLinksParents(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle(zoneEndpoint.path, jsonReply(http.StatusOK, `{"data":[{"id":"Z1","name":"Dhaka"}]}`))
	f.handle(divisionEndpoint.path, jsonReply(http.StatusOK, `{"data":[{"id":"D1","name":"Gulshan","zone_id":"Z1"}]}`))
	f.handle(circleEndpoint.path, xmlReply(http.StatusOK, `<response>
		<circle><id>C1</id><name>Circle 1</name><division_id>D1</division_id><zone_id>Z1</zone_id></circle>
		<circle><id>C2</id><name>No division</name></circle>
		<circle><name>No id</name><division_id>D1</division_id></circle>
	</response>`))
	svc, _ := newTestService(t, f, models.SyncScheduleDaily)
	ctx := context.Background()

	if _, err := svc.GetZones(ctx, true); err != nil {
		t.Fatalf("GetZones error: %v", err)
	}
	divisions, err := svc.GetDivisions(ctx, true, "")
	if err != nil {
		t.Fatalf("GetDivisions error: %v", err)
	}
	if len(divisions) != 1 || divisions[0].ZoneId == nil {
		t.Fatalf("division not linked to zone: %+v", divisions)
	}

	circles, err := svc.GetCircles(ctx, true, "D1")
	if err != nil {
		t.Fatalf("GetCircles error: %v", err)
	}
	if len(circles) != 1 {
		t.Fatalf("expected 1 circle, got %d: %+v", len(circles), circles)
	}
	c := circles[0]
	if c.RemoteId != "C1" || c.DivisionId == nil || *c.DivisionId != divisions[0].ID || c.ZoneId == nil {
		t.Fatalf("circle links wrong: %+v", c)
	}
	if f.lastBody(circleEndpoint.path) != "" {
		t.Fatalf("GET must not send a body")
	}
}

func TestGetVatCommissionRates_SendsParentFilter(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle(vatCommissionRateEndpoint.path, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("zone_id") != "Z9" {
			t.Errorf("expected zone_id=Z9, got %q", r.URL.RawQuery)
		}
		jsonReply(http.StatusOK, `{"data":{"vat_commissionrate":[{"id":"R1","name":"Standard"}]}}`)(w, r)
	})
	svc, _ := newTestService(t, f, models.SyncScheduleDaily)

	rates, err := svc.GetVatCommissionRates(context.Background(), true, "Z9")
	if err != nil {
		t.Fatalf("GetVatCommissionRates error: %v", err)
	}
	if len(rates) != 1 || rates[0].ZoneRemoteId != "Z9" {
		t.Fatalf("unexpected rates %+v", rates)
	}
}

func TestGetReference_UnknownKind(t *testing.T) {
	f := newFakeAuthority(t)
	svc, _ := newTestService(t, f, models.SyncScheduleDaily)
	if _, err := svc.GetReference(context.Background(), "planet", false, ""); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
